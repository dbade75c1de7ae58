// Package mqtt publishes patch-bay events to an MQTT broker, with a fake
// publisher for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/patchbay/internal/patch"
)

// Topic is the MQTT topic for patch events.
const Topic = "patchbay/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "patchbay/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Send publishes one patch event. It makes a Publisher a transmit.Sink.
	Send(event patch.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message payload for a patch event.
type Payload struct {
	Patch PatchPayload `json:"patch"`
}

// PatchPayload contains the state of one output jack.
type PatchPayload struct {
	Timestamp  string `json:"timestamp"`
	Output     int    `json:"output"`
	Controller uint8  `json:"controller"`
	Value      uint32 `json:"value"`
	Bits       string `json:"bits"`
	Forced     bool   `json:"forced"`
}

// FormatPayload creates the JSON payload for a patch event on a patch bay
// with width inputs.
func FormatPayload(event patch.Event, width int) ([]byte, error) {
	payload := Payload{
		Patch: PatchPayload{
			Timestamp:  event.Time.UTC().Format(time.RFC3339),
			Output:     event.Output,
			Controller: event.Controller,
			Value:      event.Value,
			Bits:       patch.FormatBits(event.Value, width),
			Forced:     event.Forced,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events
// that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
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
