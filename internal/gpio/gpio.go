// Package gpio drives the heat and cool outputs with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Actuator drives and reads back the two relay outputs.
// Calls are synchronous and unbuffered; an error means the wiring or
// configuration is broken and is not retried.
type Actuator interface {
	// ReadHeat reports whether the heat output is active.
	ReadHeat() (bool, error)

	// ReadCool reports whether the cool output is active.
	ReadCool() (bool, error)

	// WriteHeat sets the heat output.
	WriteHeat(on bool) error

	// WriteCool sets the cool output.
	WriteCool(on bool) error

	// Shutdown drives both outputs inactive.
	Shutdown() error

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinHeat = 17
	DefaultPinCool = 27
)

// Read returns both output states.
func Read(a Actuator) (heat, cool bool, err error) {
	heat, err = a.ReadHeat()
	if err != nil {
		return false, false, err
	}
	cool, err = a.ReadCool()
	if err != nil {
		return false, false, err
	}
	return heat, cool, nil
}

var (
	_ Actuator = (*RealActuator)(nil)
	_ Actuator = (*FakeActuator)(nil)
)
