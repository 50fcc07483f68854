package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPico = `{
  "recorder": {
      "topology": "colocated",
      "telemetry_capacity": 1048576,
      "power_capacity": 262144,
      "tick_ms": 10,
      "baud": 115200
  },
  "heartbeat": {
      "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
}
