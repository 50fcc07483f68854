// Package ina219 implements a minimal TinyGo driver for the INA219 high-side
// current and bus-voltage monitor.
//
// Design notes (datasheet references):
// • I2C, read/write word protocol; data-high then data-low (big-endian).
// • Default 7-bit address = 0b1000000.
// • Integer-only telemetry scaling: bus voltage LSB 4 mV, shunt LSB 10 µV,
//   current LSB programmed through the calibration register.
// • CNVR flag in the bus-voltage register signals first conversion done.
package ina219

import (
	"errors"

	"tinygo.org/x/drivers"
)

var (
	ErrRShuntUnset     = errors.New("RShunt_uOhm must be set")
	ErrMaxCurrentUnset = errors.New("MaxCurrent_mA must be set")
	ErrOverflow        = errors.New("math overflow; readings invalid")
)

// Driver configuration. Integer-only.
type Config struct {
	Address       uint16
	RShunt_uOhm   uint32 // shunt resistor in µΩ (e.g. 100000 for R100)
	MaxCurrent_mA uint32 // full-scale expected current; sets the current LSB
}

// DefaultConfig provides minimal defaults; caller must set the shunt value.
func DefaultConfig() Config {
	return Config{Address: AddressDefault}
}

func (c Config) Validate() error {
	if c.RShunt_uOhm == 0 {
		return ErrRShuntUnset
	}
	if c.MaxCurrent_mA == 0 {
		return ErrMaxCurrentUnset
	}
	return nil
}

type Device struct {
	i2c  drivers.I2C
	addr uint16

	lsb_nA uint32 // programmed current LSB

	// Fixed buffers to avoid per-call heap allocations.
	w [3]byte
	r [2]byte
}

func New(i2c drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	return &Device{i2c: i2c, addr: addr}
}

// Configure resets the part, programs the default conversion mode, and writes
// the calibration word derived from the shunt value and full-scale current.
func (d *Device) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := d.writeWord(regConfig, cfgReset); err != nil {
		return err
	}
	if err := d.writeWord(regConfig, cfgDefault); err != nil {
		return err
	}
	// current LSB (nA) = full-scale (nA) / 2^15
	d.lsb_nA = uint32((uint64(cfg.MaxCurrent_mA) * 1_000_000) >> 15)
	if d.lsb_nA == 0 {
		d.lsb_nA = 1
	}
	// cal = 0.04096 / (currentLSB[A] * Rshunt[Ω]), all in integer space:
	// 4.096e13 / (LSB[nA] * Rshunt[µΩ]).
	cal := uint64(40_960_000_000_000) / (uint64(d.lsb_nA) * uint64(cfg.RShunt_uOhm))
	if cal > 0xFFFE {
		cal = 0xFFFE
	}
	return d.writeWord(regCalibration, uint16(cal))
}

// ConversionReady reports whether the part has completed a conversion since
// the flag was last cleared. Checked once at boot before sampling starts.
func (d *Device) ConversionReady() (bool, error) {
	v, err := d.readWord(regBusVoltage)
	if err != nil {
		return false, err
	}
	return (v & busCNVR) != 0, nil
}

// Voltages

func (d *Device) BusVoltage_mV() (int32, error) {
	v, err := d.readWord(regBusVoltage)
	if err != nil {
		return 0, err
	}
	if (v & busOVF) != 0 {
		return 0, ErrOverflow
	}
	return int32(v>>busShift) * busLSB_mV, nil
}

func (d *Device) ShuntVoltage_uV() (int32, error) {
	raw, err := d.readS16(regShuntVoltage)
	if err != nil {
		return 0, err
	}
	return int32(raw) * shuntLSBuV, nil
}

// Currents

func (d *Device) Current_uA() (int32, error) {
	raw, err := d.readS16(regCurrent)
	if err != nil {
		return 0, err
	}
	return int32((int64(raw) * int64(d.lsb_nA)) / 1000), nil
}

// Power register LSB is 20× the current LSB.
func (d *Device) Power_uW() (uint32, error) {
	raw, err := d.readWord(regPower)
	if err != nil {
		return 0, err
	}
	return uint32((uint64(raw) * 20 * uint64(d.lsb_nA)) / 1000), nil
}

// ReadSample is the one-shot pair consumed by the sampling scheduler: a
// single blocking bus-voltage read followed by a current read.
func (d *Device) ReadSample() (bus_mV int32, cur_uA int32, err error) {
	bus_mV, err = d.BusVoltage_mV()
	if err != nil {
		return 0, 0, err
	}
	cur_uA, err = d.Current_uA()
	if err != nil {
		return 0, 0, err
	}
	return bus_mV, cur_uA, nil
}

// I2C 16-bit word operations (big-endian: HIGH then LOW).

func (d *Device) readWord(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) readS16(reg byte) (int16, error) {
	u, err := d.readWord(reg)
	return int16(u), err
}

func (d *Device) writeWord(reg byte, val uint16) error {
	d.w[0] = reg
	d.w[1] = byte(val >> 8) // high
	d.w[2] = byte(val)      // low
	return d.i2c.Tx(d.addr, d.w[:3], nil)
}
