package gpio

// Write records a single output change made through FakeActuator.
type Write struct {
	Line string // "heat" or "cool"
	On   bool
}

// FakeActuator is a test double that keeps output state in memory.
type FakeActuator struct {
	// Heat and Cool hold the current line states. Tests may set them
	// directly to simulate external interference.
	Heat bool
	Cool bool

	// Writes records every write in order, including those made by Shutdown.
	Writes []Write

	// Shutdowns counts calls to Shutdown.
	Shutdowns int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by ReadHeat and ReadCool.
	ReadError error

	// WriteError, if set, will be returned by WriteHeat and WriteCool.
	WriteError error
}

// NewFakeActuator creates a FakeActuator with both outputs inactive.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// ReadHeat returns the simulated heat line.
func (f *FakeActuator) ReadHeat() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Heat, nil
}

// ReadCool returns the simulated cool line.
func (f *FakeActuator) ReadCool() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Cool, nil
}

// WriteHeat sets the simulated heat line.
func (f *FakeActuator) WriteHeat(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Heat = on
	f.Writes = append(f.Writes, Write{Line: "heat", On: on})
	return nil
}

// WriteCool sets the simulated cool line.
func (f *FakeActuator) WriteCool(on bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Cool = on
	f.Writes = append(f.Writes, Write{Line: "cool", On: on})
	return nil
}

// Shutdown drives both simulated lines inactive.
func (f *FakeActuator) Shutdown() error {
	f.Shutdowns++
	if err := f.WriteHeat(false); err != nil {
		return err
	}
	return f.WriteCool(false)
}

// Close marks the actuator as closed.
func (f *FakeActuator) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes without touching line state.
func (f *FakeActuator) Reset() {
	f.Writes = nil
	f.Shutdowns = 0
	f.Closed = false
}
