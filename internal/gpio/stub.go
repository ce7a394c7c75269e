//go:build !linux

package gpio

import "errors"

// RealActuator is not available on non-Linux platforms.
type RealActuator struct{}

// NewRealActuator returns an error on non-Linux platforms.
func NewRealActuator(pinHeat, pinCool int) (*RealActuator, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadLines returns an error on non-Linux platforms.
func ReadLines(pinHeat, pinCool int) (heat, cool bool, err error) {
	return false, false, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadHeat is not implemented on non-Linux platforms.
func (r *RealActuator) ReadHeat() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// ReadCool is not implemented on non-Linux platforms.
func (r *RealActuator) ReadCool() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// WriteHeat is not implemented on non-Linux platforms.
func (r *RealActuator) WriteHeat(on bool) error {
	return errors.New("gpio: not supported")
}

// WriteCool is not implemented on non-Linux platforms.
func (r *RealActuator) WriteCool(on bool) error {
	return errors.New("gpio: not supported")
}

// Shutdown is not implemented on non-Linux platforms.
func (r *RealActuator) Shutdown() error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealActuator) Close() error {
	return nil
}
