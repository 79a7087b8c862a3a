package sensor

import (
	"errors"
	"fmt"
)

// ErrInvalidCalibration is returned when the calibration cannot map voltages
// to a level.
var ErrInvalidCalibration = errors.New("sensor: invalid calibration")

// Calibration maps sensor voltage onto tank level and volume.
type Calibration struct {
	MinVoltage   float64 // voltage at an empty tank
	MaxVoltage   float64 // voltage at a full tank
	TankCapacity float64 // litres
}

// Validate checks MinVoltage < MaxVoltage and TankCapacity > 0.
func (c Calibration) Validate() error {
	if !(c.MinVoltage < c.MaxVoltage) {
		return fmt.Errorf("%w: min voltage %.3f must be below max voltage %.3f", ErrInvalidCalibration, c.MinVoltage, c.MaxVoltage)
	}
	if !(c.TankCapacity > 0) {
		return fmt.Errorf("%w: tank capacity %.3f must be positive", ErrInvalidCalibration, c.TankCapacity)
	}
	return nil
}

// Level converts a voltage to a fill percentage clamped to [0, 100].
func (c Calibration) Level(voltage float64) float64 {
	pct := (voltage - c.MinVoltage) / (c.MaxVoltage - c.MinVoltage) * 100
	return clamp(pct, 0, 100)
}

// Volume converts a fill percentage to litres.
func (c Calibration) Volume(levelPct float64) float64 {
	return c.TankCapacity * levelPct / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
