// Package mqtt publishes tank telemetry and lifecycle events, with a fake for
// testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "waterlevel"

// Topic names below the prefix.
const (
	TopicVoltage     = "voltage"
	TopicLevel       = "level"
	TopicVolume      = "volume"
	TopicCurrent     = "current"
	TopicTemperature = "temperature"
	TopicChannel1    = "channel1"
	TopicChannel2    = "channel2"
	TopicFilling     = "filling"
	TopicPumping     = "pumping"
	TopicState       = "state"
	TopicSystem      = "system"
)

// Topic joins prefix and name.
func Topic(prefix, name string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "/" + name
}

// Publisher publishes telemetry and system events.
type Publisher interface {
	// PublishTelemetry sends one set of readings. Returns an error if the
	// broker is unreachable; callers log and move on.
	PublishTelemetry(t Telemetry) error

	// PublishSystem sends a lifecycle event, buffering it while offline.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Telemetry is one periodic publication.
type Telemetry struct {
	Voltage     float64
	Level       float64
	Volume      float64
	Current     float64
	Temperature float64
	Channel1    bool
	Channel2    bool
	Filling     bool
	Pumping     bool
	// State is an optional JSON document published on the state topic.
	State []byte
}

// Message is a single MQTT publication.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// TelemetryMessages expands t into per-topic messages, all QoS 1 and not
// retained.
func TelemetryMessages(prefix string, t Telemetry) []Message {
	msgs := []Message{
		{Topic: Topic(prefix, TopicVoltage), Payload: float2(t.Voltage)},
		{Topic: Topic(prefix, TopicLevel), Payload: float2(t.Level)},
		{Topic: Topic(prefix, TopicVolume), Payload: float2(t.Volume)},
		{Topic: Topic(prefix, TopicCurrent), Payload: float2(t.Current)},
		{Topic: Topic(prefix, TopicTemperature), Payload: float2(t.Temperature)},
		{Topic: Topic(prefix, TopicChannel1), Payload: flag(t.Channel1)},
		{Topic: Topic(prefix, TopicChannel2), Payload: flag(t.Channel2)},
		{Topic: Topic(prefix, TopicFilling), Payload: flag(t.Filling)},
		{Topic: Topic(prefix, TopicPumping), Payload: flag(t.Pumping)},
	}
	if t.State != nil {
		msgs = append(msgs, Message{Topic: Topic(prefix, TopicState), Payload: t.State})
	}
	for i := range msgs {
		msgs[i].QoS = 1
	}
	return msgs
}

func float2(v float64) []byte {
	return []byte(fmt.Sprintf("%.2f", v))
}

func flag(on bool) []byte {
	if on {
		return []byte("1")
	}
	return []byte("0")
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED"
	Reason     string // e.g., "SIGTERM" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{Event: event.Event, Reason: event.Reason}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is the last will the broker publishes when we vanish.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	return data
}
