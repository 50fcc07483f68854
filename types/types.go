package types

// ------------------------
// Deployment topology
// ------------------------

// Topology selects where the power sensor sits relative to the remote sensor
// node. It changes the expected telemetry field count and the telemetry CSV
// header. Chosen at startup from config; both paths live in one binary.
type Topology uint8

const (
	// TopologyColocated: power sensor shares the logger board; telemetry
	// frames carry 7 fields.
	TopologyColocated Topology = iota
	// TopologyRemote: power is measured on the remote node and travels
	// inside the telemetry frame; 9 fields.
	TopologyRemote
)

func (t Topology) String() string {
	if t == TopologyRemote {
		return "remote"
	}
	return "colocated"
}

// FieldCount is the number of comma-separated fields a valid telemetry frame
// carries for this topology.
func (t Topology) FieldCount() int {
	if t == TopologyRemote {
		return 9
	}
	return 7
}

// ------------------------
// Recorder configuration
// ------------------------

// RecorderConfig is resolved once at boot (embedded config service, with
// compiled-in defaults) and never changes at runtime.
type RecorderConfig struct {
	Topology Topology

	// Capacity ceilings in bytes, one per stream.
	TelemetryCapacity int64
	PowerCapacity     int64

	// Loop idle delay in ms; clamped to 1..100 by the recorder.
	TickMs uint32

	// Telemetry link baud rate (MCU builds).
	Baud uint32

	// SleepDelayMs is fixed by design (30 s); present here so tests can
	// compress it, never exposed to runtime reconfiguration.
	SleepDelayMs int64
}

// ------------------------
// Streams
// ------------------------

// StreamUsage reports current occupancy against the ceiling.
type StreamUsage struct {
	CurrentBytes  int64 `json:"current_bytes"`
	CapacityBytes int64 `json:"capacity_bytes"`
	Enabled       bool  `json:"enabled"`
}

// ------------------------
// Recorder state (retained diag payload)
// ------------------------

type RecorderState struct {
	Level  string `json:"level"`  // "boot", "running", "halted", "stopped"
	Status string `json:"status"` // freeform short code
	TSms   int64  `json:"ts_ms"`
}
