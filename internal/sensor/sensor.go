// Package sensor reads the ambient temperature that drives the controller.
// The kernel driver (bme280, ds18b20, ...) does the bus work; this package
// only reads the value it exposes under /sys.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Reader returns the current ambient temperature in °C.
type Reader interface {
	ReadTemperature() (float64, error)
}

// DefaultPath is the IIO temperature channel of a BME280 on the first bus.
const DefaultPath = "/sys/bus/iio/devices/iio:device0/in_temp_input"

// FileReader reads a temperature from a sysfs attribute holding an integer
// number of millidegrees Celsius (IIO in_temp_input, hwmon temp1_input).
type FileReader struct {
	path string
}

// NewFileReader creates a reader for the given sysfs attribute.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

// Path returns the attribute being read.
func (r *FileReader) Path() string {
	return r.path
}

// ReadTemperature reads and scales the attribute.
func (r *FileReader) ReadTemperature() (float64, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.path, err)
	}
	return parseMilli(string(data))
}

var (
	errEmpty     = errors.New("empty reading")
	errNonFinite = errors.New("reading is not a finite number")
)

func parseMilli(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse reading %q: %w", s, err)
	}
	// ParseFloat accepts "nan" and "inf".
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse reading %q: %w", s, errNonFinite)
	}
	return v / 1000, nil
}
