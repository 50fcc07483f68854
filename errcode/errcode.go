package errcode

// Code is a stable, diagnostics-facing status identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Log store
	FileFull       Code = "file_full"       // capacity ceiling reached; stream latched off
	StreamDisabled Code = "stream_disabled" // latch already off; medium not measured
	OpenFailed     Code = "open_failed"     // transient; retried naturally on next attempt
	ReadFailed     Code = "read_failed"
	FormatFailed   Code = "format_failed" // wipe failed; prior state retained

	// Sensor
	SensorInit Code = "sensor_init" // fatal at boot in power-sensing builds

	Error Code = "error" // generic fallback
)

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	return Error
}
