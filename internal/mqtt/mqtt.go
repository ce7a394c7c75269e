// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/weather"
)

// TopicEvents is the MQTT topic for status transitions and faults.
const TopicEvents = "home/nido/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/nido/system"

// TopicWeather carries the latest outdoor conditions, retained.
const TopicWeather = "home/nido/weather"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a thermostat event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// PublishWeather sends the current outdoor conditions.
	PublishWeather(event WeatherEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// WeatherEvent is a conditions lookup result ready for publishing.
type WeatherEvent struct {
	Timestamp  time.Time
	Conditions *weather.Conditions
	AgeSeconds int64
	Err        error
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Nido EventPayload `json:"nido"`
}

// EventPayload contains the thermostat event details.
type EventPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Status    string  `json:"status"`
	Mode      string  `json:"mode"`
	TempC     float64 `json:"temp_c"`
	SetPointC float64 `json:"set_point_c"`
	Detail    string  `json:"detail,omitempty"`
}

// FormatPayload creates the JSON payload for a thermostat event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Nido: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Status:    string(event.Status),
			Mode:      string(event.Mode),
			TempC:     logic.RoundTenth(event.Temperature),
			SetPointC: event.SetPoint,
			Detail:    event.Detail,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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

// WeatherPayload is the retained weather message.
type WeatherPayload struct {
	Weather WeatherPayloadInner `json:"weather"`
}

// WeatherPayloadInner mirrors the /weather.json body.
type WeatherPayloadInner struct {
	Timestamp    string              `json:"timestamp"`
	Conditions   *weather.Conditions `json:"conditions"`
	RetrievalAge int64               `json:"retrieval_age"`
	Error        string              `json:"error,omitempty"`
}

// FormatWeatherPayload creates the JSON payload for a weather event.
func FormatWeatherPayload(event WeatherEvent) ([]byte, error) {
	inner := WeatherPayloadInner{
		Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
		Conditions:   event.Conditions,
		RetrievalAge: event.AgeSeconds,
	}
	if event.Err != nil {
		inner.Error = event.Err.Error()
	}
	return json.Marshal(WeatherPayload{Weather: inner})
}
