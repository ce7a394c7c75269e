package sensor

import "errors"

// FakeReader is a test double that returns scripted temperatures.
type FakeReader struct {
	// Samples contains scripted readings in °C.
	// Each call to ReadTemperature() consumes the next sample.
	Samples []float64

	// index tracks current position in Samples
	index int

	// ReadError, if set, will be returned by ReadTemperature()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...float64) *FakeReader {
	return &FakeReader{Samples: samples}
}

// ReadTemperature returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) ReadTemperature() (float64, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}
