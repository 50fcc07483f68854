package config

import (
	"context"
	"errors"

	"datalogger-go/bus"
	"datalogger-go/types"

	"github.com/andreyvit/tinyjson"
)

// -----------------------------------------------------------------------------
// String constants (live in flash, not RAM)
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig reads the device config from embedded data and publishes each
// top-level key as a retained message under {config, key}.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}

	m, err := deviceObject(device)
	if err != nil {
		return err
	}

	for k, v := range m {
		msg := &bus.Message{
			Topic:    bus.T(configPrefix, k),
			Payload:  v,
			Retained: true,
		}
		conn.Publish(msg)
	}

	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		_ = s.publishConfig(ctx, conn)
	}()
}

// -----------------------------------------------------------------------------
// Recorder config resolution
// -----------------------------------------------------------------------------

// Resolve decodes the "recorder" object of the device's embedded config into
// a RecorderConfig. Missing keys keep their zero value; the recorder applies
// its own clamps. Called once at boot, before the loop starts.
func Resolve(device string) (types.RecorderConfig, error) {
	var cfg types.RecorderConfig

	m, err := deviceObject(device)
	if err != nil {
		return cfg, err
	}
	rec, ok := m["recorder"].(map[string]any)
	if !ok {
		return cfg, errors.New("embedded config has no recorder object")
	}

	if s, ok := rec["topology"].(string); ok && s == "remote" {
		cfg.Topology = types.TopologyRemote
	}
	cfg.TelemetryCapacity = asInt64(rec["telemetry_capacity"])
	cfg.PowerCapacity = asInt64(rec["power_capacity"])
	cfg.TickMs = uint32(asInt64(rec["tick_ms"]))
	cfg.Baud = uint32(asInt64(rec["baud"]))
	return cfg, nil
}

func deviceObject(device string) (map[string]any, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, errors.New("no embedded config for device: " + device)
	}

	r := tinyjson.Raw(raw)
	val := r.Value() // should be a map[string]any
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return nil, errors.New("embedded config is not a JSON object")
	}
	return m, nil
}

// asInt64 tolerates whichever numeric type the JSON decoder produced.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
