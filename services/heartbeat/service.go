package heartbeat

import (
	"context"
	"time"

	"datalogger-go/bus"
	"datalogger-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicHeartbeat       = bus.Topic{"heartbeat"}
)

// Beat is the retained liveness payload: late subscribers see the most recent
// uptime immediately.
type Beat struct {
	UptimeMs int64 `json:"uptime_ms"`
}

type Service struct{}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	// loop until context is cancelled, respond to tick and config changes
	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			conn.Publish(conn.NewMessage(topicHeartbeat, Beat{UptimeMs: timex.UptimeMs()}, true))
		case msg := <-cfgSub.Channel():
			// Change tick interval if needed
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"]; ok {
					if interval := asSeconds(iv); interval > 0 {
						tick.Reset(time.Duration(interval) * time.Second)
					}
				}
			}
		}
	}
}

func asSeconds(v any) int64 {
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

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
