package logic

import (
	"errors"
	"math"
)

// ErrBothActive is returned when heat and cool read active at the same time.
var ErrBothActive = errors.New("heat and cool outputs both active")

// StatusFromLines derives the actuator status from the two output lines.
func StatusFromLines(heat, cool bool) (Status, error) {
	switch {
	case heat && cool:
		return StatusOff, ErrBothActive
	case heat:
		return StatusHeating, nil
	case cool:
		return StatusCooling, nil
	default:
		return StatusOff, nil
	}
}

// Decide returns the action for the given current status, temperature and
// parameters. It never returns an action that enables both outputs.
func Decide(current Status, temp float64, p Params) Action {
	switch p.Mode {
	case ModeOff:
		return ActionShutdown
	case ModeHeat:
		return decideHeat(current, temp, p)
	case ModeCool, ModeHeatCool:
		// Not implemented yet; treated like Off.
		return ActionShutdown
	default:
		return ActionShutdown
	}
}

func decideHeat(current Status, temp float64, p Params) Action {
	// Every comparison below is false for NaN, which would leave a running
	// heater on.
	if !finite(temp) || !finite(p.SetPoint) || !finite(p.Hysteresis) {
		return ActionShutdown
	}
	if temp >= p.SetPoint {
		return ActionShutdown
	}
	// Clearly below the band.
	if temp+p.Hysteresis < p.SetPoint {
		return ActionHeat
	}
	// Dead band: keep heating once started, otherwise leave the lines alone.
	if current == StatusHeating {
		return ActionHeat
	}
	return ActionHold
}

// Apply returns the status that results from taking action a in status current.
func Apply(current Status, a Action) Status {
	switch a {
	case ActionShutdown:
		return StatusOff
	case ActionHeat:
		return StatusHeating
	default:
		return current
	}
}

// Transitions returns the events implied by moving from one status to
// another. Off events come before on events.
func Transitions(from, to Status) []EventType {
	if from == to {
		return nil
	}
	var events []EventType
	switch from {
	case StatusHeating:
		events = append(events, EventHeatOff)
	case StatusCooling:
		events = append(events, EventCoolOff)
	}
	switch to {
	case StatusHeating:
		events = append(events, EventHeatOn)
	case StatusCooling:
		events = append(events, EventCoolOn)
	}
	return events
}

// ListModes returns the modes a user may select given the enabled ones.
// Off is always first; Heat_Cool is offered only when both Heat and Cool
// are enabled.
func ListModes(enabled []Mode) []Mode {
	var heat, cool bool
	for _, m := range enabled {
		switch m {
		case ModeHeat:
			heat = true
		case ModeCool:
			cool = true
		}
	}

	modes := []Mode{ModeOff}
	if heat {
		modes = append(modes, ModeHeat)
	}
	if cool {
		modes = append(modes, ModeCool)
	}
	if heat && cool {
		modes = append(modes, ModeHeatCool)
	}
	return modes
}

// RoundTenth rounds v to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// FahrenheitToCelsius converts f to °C rounded to one decimal place.
func FahrenheitToCelsius(f float64) float64 {
	return RoundTenth((f - 32) * 5 / 9)
}

// CelsiusToFahrenheit converts c to °F rounded to one decimal place.
func CelsiusToFahrenheit(c float64) float64 {
	return RoundTenth(c*9/5 + 32)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
