//go:build !tinygo

// Host development harness: the full service stack wired against an
// in-memory medium, a synthetic telemetry feed, and a synthetic power
// sensor. Lets the loop, the streams, and the console be exercised on a
// laptop before flashing hardware.
package main

import (
	"context"
	"os"
	"sync"
	"time"

	"datalogger-go/bus"
	"datalogger-go/services/config"
	"datalogger-go/services/heartbeat"
	"datalogger-go/services/logstore"
	"datalogger-go/services/recorder"
	"datalogger-go/storage/memfs"
	"datalogger-go/x/fmtx"
)

// hostPort is a recorder.Port over an in-process byte queue. Writes go to
// the attached sink (stdout for the console, discarded for the uplink).
type hostPort struct {
	mu  sync.Mutex
	buf []byte
	out *os.File
}

func (p *hostPort) TryRead(b []byte) (int, error) {
	p.mu.Lock()
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	p.mu.Unlock()
	return n, nil
}

func (p *hostPort) Write(b []byte) (int, error) {
	if p.out == nil {
		return len(b), nil
	}
	return p.out.Write(b)
}

func (p *hostPort) push(s string) {
	p.mu.Lock()
	p.buf = append(p.buf, s...)
	p.mu.Unlock()
}

// synthSensor fakes a battery discharging under load.
type synthSensor struct{ n int32 }

func (s *synthSensor) ReadSample() (int32, int32, error) {
	s.n++
	return 3300 - s.n%7, 12_500 + 40*(s.n%5), nil
}

func main() {
	cfg, err := config.Resolve("pico")
	if err != nil {
		fmtx.Printf("config: %v\n", err)
		os.Exit(1)
	}
	// Compressed settling window so the sleep-phase sample shows up within
	// the demo run.
	cfg.SleepDelayMs = 3000

	b := bus.NewBus(8)
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	cfgSvc := config.NewConfigService()
	cfgSvc.Start(context.WithValue(ctx, config.CtxDeviceKey, "pico"), b.NewConnection("config"))

	hb := &heartbeat.Service{}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	// Watch recorder diagnostics.
	diag := b.NewConnection("diag")
	diagSub := diag.Subscribe(bus.Topic{"recorder", "#"})
	go func() {
		for m := range diagSub.Channel() {
			fmtx.Printf("[bus] %v: %+v\n", m.Topic, m.Payload)
		}
	}()

	uplink := &hostPort{}
	console := &hostPort{out: os.Stdout}

	med := memfs.New()
	tele, power := recorder.Streams(cfg)
	store := logstore.New(med, tele, power)
	r := recorder.NewRecorder(cfg, store, tele, power, &synthSensor{}, uplink, console, b.NewConnection("recorder"))

	if err := r.Boot(); err != nil {
		fmtx.Printf("boot: %v\n", err)
		os.Exit(1)
	}

	// Synthetic remote node: one frame, deep sleep, another frame.
	go func() {
		uplink.push("23.5,44,1003.2,95000,1,2,3\n")
		time.Sleep(4 * time.Second)
		uplink.push("23.7,44,1003.1,95200,1,2,3\n")
	}()

	r.Run(ctx)

	// Post-run console session against the same state.
	console.push("status\nprint\nprintpower\n")
	for i := 0; i < 4; i++ {
		r.Step()
	}
}
