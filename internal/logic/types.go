// Package logic contains the pure decision rules of the thermostat.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the operating mode selected by the user.
type Mode string

const (
	ModeOff      Mode = "Off"
	ModeHeat     Mode = "Heat"
	ModeCool     Mode = "Cool"
	ModeHeatCool Mode = "Heat_Cool" // reserved, resolves to shutdown
)

// Modes lists every valid mode in display order.
var Modes = []Mode{ModeOff, ModeHeat, ModeCool, ModeHeatCool}

// ParseMode matches s against the known modes, ignoring case.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Status is the actuator state as read back from the output lines.
type Status string

const (
	StatusOff     Status = "Off"
	StatusHeating Status = "Heating"
	StatusCooling Status = "Cooling"
)

// Params drives a single control decision.
type Params struct {
	SetPoint   float64 // °C
	Hysteresis float64 // °C, >= 0
	Mode       Mode
}

// DefaultHysteresis is used when the configuration does not set one.
const DefaultHysteresis = 0.6

// Action is what the controller should do with the output lines.
type Action int

const (
	// ActionHold leaves both lines as they are.
	ActionHold Action = iota
	// ActionShutdown drives both lines inactive.
	ActionShutdown
	// ActionHeat drives heat active and cool inactive.
	ActionHeat
)

func (a Action) String() string {
	switch a {
	case ActionHold:
		return "hold"
	case ActionShutdown:
		return "shutdown"
	case ActionHeat:
		return "heat"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// EventType represents a status transition event.
type EventType string

const (
	EventHeatOn  EventType = "HEAT_ON"
	EventHeatOff EventType = "HEAT_OFF"
	EventCoolOn  EventType = "COOL_ON"
	EventCoolOff EventType = "COOL_OFF"
	EventFault   EventType = "FAULT"
)

// Event represents a status transition to be published.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	Status      Status
	Mode        Mode
	Temperature float64
	SetPoint    float64
	Detail      string // fault description, FAULT only
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	HeatOn       int
	HeatOff      int
	CoolOn       int
	CoolOff      int
	Faults       int
	SensorErrors int
}

// Add increments the counter for the given event type.
func (c *EventCounts) Add(t EventType) {
	switch t {
	case EventHeatOn:
		c.HeatOn++
	case EventHeatOff:
		c.HeatOff++
	case EventCoolOn:
		c.CoolOn++
	case EventCoolOff:
		c.CoolOff++
	case EventFault:
		c.Faults++
	}
}
