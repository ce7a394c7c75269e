// Package control runs one thermostat decision per call against the real
// (or fake) outputs. Status is always read back from the outputs, never
// remembered, so external changes and partial failures are corrected on
// the next cycle.
//
// Engine is not safe for concurrent use; the daemon calls it from a single
// goroutine.
package control

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/sweeney/nido/internal/gpio"
	"github.com/sweeney/nido/internal/logic"
	"github.com/sweeney/nido/internal/sensor"
)

// ErrHardwareFault is matched by errors.Is for every *HardwareFaultError.
var ErrHardwareFault = errors.New("hardware fault")

// HardwareFaultError reports both outputs observed active. Both outputs
// have already been driven inactive when it is returned.
type HardwareFaultError struct {
	ShutdownErr error // non-nil if forcing the outputs off also failed
}

func (e *HardwareFaultError) Error() string {
	msg := "heat and cool outputs were both active; both disabled as a precaution"
	if e.ShutdownErr != nil {
		msg += fmt.Sprintf(" (shutdown failed: %v)", e.ShutdownErr)
	}
	return msg
}

func (e *HardwareFaultError) Is(target error) bool {
	return target == ErrHardwareFault
}

// ErrInvalidReading is wrapped in a *SensorError when the sensor returns a
// value that is not a finite number.
var ErrInvalidReading = errors.New("temperature is not a finite number")

// errInvalidParams is wrapped in a *ParamsError when the set point or
// hysteresis is not a finite number.
var errInvalidParams = errors.New("set point and hysteresis must be finite numbers")

// SensorError reports a failed temperature read. Both outputs have already
// been driven inactive when it is returned.
type SensorError struct {
	Err error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("read temperature: %v", e.Err)
}

func (e *SensorError) Unwrap() error {
	return e.Err
}

// ParamsError reports that the control parameters could not be loaded.
// Both outputs have already been driven inactive when it is returned.
type ParamsError struct {
	Err error
}

func (e *ParamsError) Error() string {
	return fmt.Sprintf("load control params: %v", e.Err)
}

func (e *ParamsError) Unwrap() error {
	return e.Err
}

// ParamsSource supplies fresh control parameters on every cycle.
type ParamsSource interface {
	ControlParams() (logic.Params, error)
}

// Result describes one completed cycle.
type Result struct {
	Previous    logic.Status
	Status      logic.Status
	Action      logic.Action
	Temperature float64
	Params      logic.Params
}

// Changed reports whether the cycle changed the output status.
func (r Result) Changed() bool {
	return r.Previous != r.Status
}

// Engine decides and drives the outputs.
type Engine struct {
	act    gpio.Actuator
	sensor sensor.Reader
	params ParamsSource
}

// NewEngine creates an Engine.
func NewEngine(act gpio.Actuator, sensor sensor.Reader, params ParamsSource) *Engine {
	return &Engine{act: act, sensor: sensor, params: params}
}

// Status reads the current status from the outputs. Both outputs active
// forces a shutdown and returns ErrHardwareFault.
func (e *Engine) Status() (logic.Status, error) {
	heat, cool, err := gpio.Read(e.act)
	if err != nil {
		return logic.StatusOff, fmt.Errorf("read outputs: %w", err)
	}

	status, err := logic.StatusFromLines(heat, cool)
	if errors.Is(err, logic.ErrBothActive) {
		fault := &HardwareFaultError{ShutdownErr: e.act.Shutdown()}
		log.Printf("control: %v", fault)
		return logic.StatusOff, fault
	}
	return status, nil
}

// Update makes one decision for temp and p and drives the outputs. It
// writes at most once: a shutdown, a heat-on, or nothing.
func (e *Engine) Update(temp float64, p logic.Params) (logic.Status, error) {
	res, err := e.update(temp, p)
	return res.Status, err
}

func (e *Engine) update(temp float64, p logic.Params) (Result, error) {
	if !finite(temp) {
		return e.failSafe(), &SensorError{Err: fmt.Errorf("%w: %v", ErrInvalidReading, temp)}
	}
	if !finite(p.SetPoint) || !finite(p.Hysteresis) {
		res := e.failSafe()
		res.Temperature = temp
		return res, &ParamsError{Err: errInvalidParams}
	}

	res := Result{Temperature: temp, Params: p}

	current, err := e.Status()
	if err != nil {
		res.Previous, res.Status = logic.StatusOff, logic.StatusOff
		if errors.Is(err, ErrHardwareFault) {
			res.Action = logic.ActionShutdown
		}
		return res, err
	}
	res.Previous = current

	action := logic.Decide(current, temp, p)
	res.Action = action
	if err := e.apply(action); err != nil {
		res.Status = current
		return res, err
	}
	res.Status = logic.Apply(current, action)
	return res, nil
}

func (e *Engine) apply(a logic.Action) error {
	switch a {
	case logic.ActionHold:
		return nil
	case logic.ActionShutdown:
		if err := e.act.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case logic.ActionHeat:
		if err := e.act.WriteCool(false); err != nil {
			e.shutdownAfter(err)
			return fmt.Errorf("enable heating: %w", err)
		}
		if err := e.act.WriteHeat(true); err != nil {
			e.shutdownAfter(err)
			return fmt.Errorf("enable heating: %w", err)
		}
		return nil
	default:
		err := fmt.Errorf("unknown action %v", a)
		e.shutdownAfter(err)
		return err
	}
}

// shutdownAfter releases both outputs after cause left them in an unknown
// state. A failure here is only logged; cause is what gets returned.
func (e *Engine) shutdownAfter(cause error) {
	if err := e.act.Shutdown(); err != nil {
		log.Printf("control: shutdown after %v: %v", cause, err)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Cycle reads the sensor and the parameters, then runs Update. Any
// failure before a decision can be made shuts both outputs off first.
func (e *Engine) Cycle() (Result, error) {
	temp, err := e.sensor.ReadTemperature()
	if err != nil {
		return e.failSafe(), &SensorError{Err: err}
	}

	p, err := e.params.ControlParams()
	if err != nil {
		res := e.failSafe()
		res.Temperature = temp
		return res, &ParamsError{Err: err}
	}

	return e.update(temp, p)
}

// failSafe shuts both outputs off and reports what they were before.
func (e *Engine) failSafe() Result {
	res := Result{Previous: logic.StatusOff, Status: logic.StatusOff, Action: logic.ActionShutdown}
	if heat, cool, err := gpio.Read(e.act); err == nil {
		res.Previous, _ = logic.StatusFromLines(heat, cool)
	}
	if err := e.act.Shutdown(); err != nil {
		log.Printf("control: fail-safe shutdown: %v", err)
	}
	return res
}

// Shutdown drives both outputs inactive.
func (e *Engine) Shutdown() error {
	return e.act.Shutdown()
}
