//go:build tinygo

// cmd/pico-logger: the flash image for the Pico logging board. UART0 carries
// the remote node's telemetry, UART1 is the operator console, the INA219 on
// I2C0 measures the supply rail, and the logs live in a littlefs partition
// on the on-chip flash.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/tinyfs/littlefs"

	"datalogger-go/bus"
	"datalogger-go/drivers/ina219"
	"datalogger-go/services/config"
	"datalogger-go/services/heartbeat"
	"datalogger-go/services/logstore"
	"datalogger-go/services/recorder"
	"datalogger-go/storage/flashfs"
	"datalogger-go/types"
)

const device = "pico"

// Pin map for the logger carrier board.
const (
	uplinkTX = machine.GP0
	uplinkRX = machine.GP1
	consTX   = machine.GP8
	consRX   = machine.GP9
	i2cSDA   = machine.GP4
	i2cSCL   = machine.GP5
)

// uartPort adapts a uartx UART to the polled recorder.Port. RecvSomeContext
// with an immediate deadline returns whatever is buffered without waiting
// for more.
type uartPort struct{ u *uartx.UART }

func (p *uartPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *uartPort) TryRead(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	n, err := p.u.RecvSomeContext(ctx, b)
	cancel()
	if err != nil {
		// Deadline with an empty RX buffer; not a fault.
		return 0, nil
	}
	return n, nil
}

func halt(reason string) {
	for {
		println("halted:", reason)
		time.Sleep(5 * time.Second)
	}
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	cfg, err := config.Resolve(device)
	if err != nil {
		halt("config")
	}

	// Serial ports.
	_ = uartx.UART0.Configure(uartx.UARTConfig{BaudRate: cfg.Baud, TX: uplinkTX, RX: uplinkRX})
	_ = uartx.UART1.Configure(uartx.UARTConfig{BaudRate: 115_200, TX: consTX, RX: consRX})
	uplink := &uartPort{u: uartx.UART0}
	console := &uartPort{u: uartx.UART1}

	// Power sensor.
	machine.I2C0.Configure(machine.I2CConfig{SDA: i2cSDA, SCL: i2cSCL, Frequency: 400_000})
	sensor := ina219.New(machine.I2C0, ina219.DefaultConfig())
	if err := sensor.Configure(ina219.Config{
		Address:       ina219.AddressDefault,
		RShunt_uOhm:   100_000, // R100 shunt on the carrier board
		MaxCurrent_mA: 2000,
	}); err != nil {
		halt("sensor config")
	}

	// Log storage on the flash partition. A virgin chip mounts dirty once;
	// format and retry before giving up.
	lfs := littlefs.New(machine.Flash)
	lfs.Configure(&littlefs.Config{CacheSize: 512, LookaheadSize: 512, BlockCycles: 100})
	if err := lfs.Mount(); err != nil {
		if err := lfs.Format(); err != nil {
			halt("flash format")
		}
		if err := lfs.Mount(); err != nil {
			halt("flash mount")
		}
	}
	med := flashfs.New(lfs)

	ctx := context.Background()
	b := bus.NewBus(8)

	cfgSvc := config.NewConfigService()
	cfgSvc.Start(context.WithValue(ctx, config.CtxDeviceKey, device), b.NewConnection("config"))

	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	tele, power := recorder.Streams(cfg)
	store := logstore.New(med, tele, power)
	conn := b.NewConnection("recorder")
	r := recorder.NewRecorder(cfg, store, tele, power, sensor, uplink, console, conn)

	if err := r.Boot(); err != nil {
		halt("power sensor")
	}
	conn.Publish(conn.NewMessage(bus.Topic{"recorder", "sensor"}, types.SensorInfo{
		Sensor:      "ina219",
		Addr:        ina219.AddressDefault,
		Bus:         "i2c0",
		RShunt_mOhm: 100,
	}, true))
	r.Run(ctx)
}
