// Package mqtt publishes controller events and lifecycle messages to an MQTT
// broker, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tank-controller/internal/logic"
)

// Topic is the MQTT topic for control events.
const Topic = "aquarium/tank/controller/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "aquarium/tank/controller/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a control event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // SIGTERM, SIGINT, MQTT_DISCONNECT
	RawPayload []byte // pre-formatted status snapshot; returned as-is by FormatSystemPayload
	Retained   bool
}

// Payload is the MQTT message for a control event.
type Payload struct {
	Tank TankPayload `json:"tank"`
}

// TankPayload contains the event details.
type TankPayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Level      int    `json:"level"`
	Error      string `json:"error,omitempty"`
	Pump       *int   `json:"pump,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	AmountMl   uint16 `json:"amount_ml,omitempty"`
}

// FormatPayload creates the JSON payload for a control event.
func FormatPayload(event logic.Event) ([]byte, error) {
	inner := TankPayload{
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
		Event:      string(event.Type),
		Level:      event.Level,
		DurationMs: event.Duration.Milliseconds(),
		AmountMl:   event.AmountMl,
	}
	if event.Error != logic.ErrNone {
		inner.Error = event.Error.String()
	}
	if event.Pump >= 0 {
		p := event.Pump
		inner.Pump = &p
	}
	return json.Marshal(Payload{Tank: inner})
}

// SystemPayload is the payload for simple system events (LWT, RECONNECTED)
// that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
