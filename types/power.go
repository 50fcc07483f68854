package types

// ------------------------
// Power sampling (ina219)
// ------------------------

// Phase tags when a power sample was taken relative to a telemetry
// transmission.
type Phase uint8

const (
	// PhaseActive: sampled at the moment a transmission begins.
	PhaseActive Phase = iota
	// PhaseSleep: sampled a fixed delay after transmission start, while the
	// remote node is expected to be in deep sleep.
	PhaseSleep
)

// Tag is the single-letter CSV marker.
func (p Phase) Tag() string {
	if p == PhaseSleep {
		return "s"
	}
	return "a"
}

// PowerSample is transient: serialized into the power stream, never retained.
// Integer fixed-point to suit TinyGo.
type PowerSample struct {
	TSms   int64 `json:"ts_ms"`
	Bus_mV int32 `json:"bus_mV"`
	Cur_uA int32 `json:"cur_uA"`
	Phase  Phase `json:"phase"`
}

// SensorInfo describes the attached power sensor (diag payload).
type SensorInfo struct {
	Sensor      string `json:"sensor"` // "ina219"
	Addr        uint16 `json:"addr"`
	Bus         string `json:"bus"`
	RShunt_mOhm uint32 `json:"rshunt_mohm"`
}
