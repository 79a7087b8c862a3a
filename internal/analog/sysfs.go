package analog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SysfsReader reads raw conversions from an IIO channel file.
type SysfsReader struct {
	path string
}

// NewSysfsReader checks that path is readable and returns a reader for it.
func NewSysfsReader(path string) (*SysfsReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("adc channel: %w", err)
	}
	return &SysfsReader{path: path}, nil
}

// ReadRaw triggers a single conversion by reading the channel file.
func (r *SysfsReader) ReadRaw() (int, error) {
	v, err := readInt(r.path)
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	return v, nil
}

// SysfsThermometer reads a thermal zone reporting millidegrees Celsius.
type SysfsThermometer struct {
	path string
}

// NewSysfsThermometer returns a thermometer for the thermal zone file at path.
func NewSysfsThermometer(path string) *SysfsThermometer {
	return &SysfsThermometer{path: path}
}

// Celsius returns the zone temperature.
func (t *SysfsThermometer) Celsius() (float64, error) {
	v, err := readInt(t.path)
	if err != nil {
		return 0, fmt.Errorf("read thermal zone: %w", err)
	}
	return float64(v) / 1000, nil
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
