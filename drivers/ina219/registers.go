// Package ina219 provides constants for register addresses and bitfields used
// in the operation of the INA219 high-side current/power monitor.
package ina219

const (
	// 7-bit I2C address with A1=A0=GND.
	AddressDefault = 0x40

	// --- Register sub-addresses (16-bit word registers, MSB first) ---
	regConfig       = 0x00 // R/W
	regShuntVoltage = 0x01 // R
	regBusVoltage   = 0x02 // R
	regPower        = 0x03 // R
	regCurrent      = 0x04 // R
	regCalibration  = 0x05 // R/W

	// --- CONFIG (0x00) ---
	cfgReset = 1 << 15

	// 32V bus range, /8 shunt gain (±320mV), 12-bit conversions on both
	// channels, continuous shunt+bus mode. Matches the part's power-on
	// defaults; written explicitly so a warm reset is deterministic.
	cfgDefault = 0x399F

	// --- BUS_VOLTAGE (0x02) flag bits ---
	busCNVR = 1 << 1 // conversion ready
	busOVF  = 1 << 0 // math overflow; current/power invalid

	// Bus voltage value occupies bits 15:3; LSB = 4 mV.
	busShift   = 3
	busLSB_mV  = 4
	shuntLSBuV = 10 // shunt voltage LSB = 10 µV
)
