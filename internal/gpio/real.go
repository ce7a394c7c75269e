//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealActuator drives relay outputs on actual hardware using Linux GPIO character device.
type RealActuator struct {
	chip     *gpiocdev.Chip
	heatLine *gpiocdev.Line
	coolLine *gpiocdev.Line
}

// NewRealActuator requests both pins as outputs on Raspberry Pi hardware.
// Both outputs start inactive so nothing runs until the first
// control decision.
func NewRealActuator(pinHeat, pinCool int) (*RealActuator, error) {
	if pinHeat == pinCool {
		return nil, fmt.Errorf("heat and cool share pin %d", pinHeat)
	}

	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	heatLine, err := chip.RequestLine(pinHeat, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request heat pin %d: %w", pinHeat, err)
	}

	coolLine, err := chip.RequestLine(pinCool, gpiocdev.AsOutput(0))
	if err != nil {
		heatLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request cool pin %d: %w", pinCool, err)
	}

	return &RealActuator{
		chip:     chip,
		heatLine: heatLine,
		coolLine: coolLine,
	}, nil
}

// ReadHeat reads back the heat output.
func (r *RealActuator) ReadHeat() (bool, error) {
	v, err := r.heatLine.Value()
	if err != nil {
		return false, fmt.Errorf("read heat pin: %w", err)
	}
	return v == 1, nil
}

// ReadCool reads back the cool output.
func (r *RealActuator) ReadCool() (bool, error) {
	v, err := r.coolLine.Value()
	if err != nil {
		return false, fmt.Errorf("read cool pin: %w", err)
	}
	return v == 1, nil
}

// WriteHeat sets the heat output.
func (r *RealActuator) WriteHeat(on bool) error {
	if err := r.heatLine.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("write heat pin: %w", err)
	}
	return nil
}

// WriteCool sets the cool output.
func (r *RealActuator) WriteCool(on bool) error {
	if err := r.coolLine.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("write cool pin: %w", err)
	}
	return nil
}

// Shutdown drives both outputs inactive. Both writes are attempted even
// if the first fails.
func (r *RealActuator) Shutdown() error {
	errHeat := r.WriteHeat(false)
	errCool := r.WriteCool(false)
	if errHeat != nil {
		return errHeat
	}
	return errCool
}

// Close releases GPIO resources.
// Drives both outputs low, then reconfigures pins to input with pull-down
// (matching Pi boot defaults) so the relays stay released after exit.
func (r *RealActuator) Close() error {
	var errs []error

	for name, line := range map[string]*gpiocdev.Line{"heat": r.heatLine, "cool": r.coolLine} {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release %s pin: %w", name, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// ReadLines reports the current level of both pins without changing their
// direction or value. Used by -print-state while the daemon may be running.
func ReadLines(pinHeat, pinCool int) (heat, cool bool, err error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return false, false, fmt.Errorf("open gpio chip: %w", err)
	}
	defer chip.Close()

	lines, err := chip.RequestLines([]int{pinHeat, pinCool}, gpiocdev.AsIs)
	if err != nil {
		return false, false, fmt.Errorf("request pins %d,%d: %w", pinHeat, pinCool, err)
	}
	defer lines.Close()

	values := make([]int, 2)
	if err := lines.Values(values); err != nil {
		return false, false, fmt.Errorf("read pins: %w", err)
	}
	return values[0] == 1, values[1] == 1, nil
}

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
