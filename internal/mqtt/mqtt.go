// Package mqtt publishes alarm telemetry over MQTT with abstraction for testing.
// Publishing is outbound only: nothing received from the broker reaches the alarm.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/car-alarm/internal/logic"
)

// Topic is the MQTT topic for state transitions.
const Topic = "vehicle/car-alarm/events"

// TopicSystem is the MQTT topic for daemon lifecycle events.
const TopicSystem = "vehicle/car-alarm/system"

// EventStateChange is the event name of every transition payload.
const EventStateChange = "STATE_CHANGE"

// Publisher publishes alarm events to MQTT.
type Publisher interface {
	// Publish sends a state transition to the broker.
	// Returns error if publishing fails (should not stop the alarm loop).
	Publish(event logic.Event) error

	// PublishSystem sends a daemon lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a lifecycle event (startup, shutdown, heartbeat, offline).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Alarm AlarmPayload `json:"alarm"`
}

// AlarmPayload contains the transition details.
type AlarmPayload struct {
	Timestamp       string         `json:"timestamp"`
	Event           string         `json:"event"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	ArmDelayMinutes int            `json:"arm_delay_minutes"`
	Outputs         OutputsPayload `json:"outputs"`
}

// OutputsPayload is the actuator levels after the transition.
type OutputsPayload struct {
	LED   bool `json:"led"`
	Siren bool `json:"siren"`
	Relay bool `json:"relay"`
}

// FormatPayload creates the JSON payload for a state transition.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Alarm: AlarmPayload{
			Timestamp:       event.Timestamp.UTC().Format(time.RFC3339),
			Event:           EventStateChange,
			From:            event.From.String(),
			To:              event.To.String(),
			ArmDelayMinutes: event.ArmDelay,
			Outputs: OutputsPayload{
				LED:   event.Outputs.LED,
				Siren: event.Outputs.Siren,
				Relay: event.Outputs.Relay,
			},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is used for simple events (LWT) that don't carry a full status snapshot.
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
