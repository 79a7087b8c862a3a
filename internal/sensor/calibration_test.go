package sensor

import (
	"errors"
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalibrationValidate(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		ok   bool
	}{
		{"valid", Calibration{MinVoltage: 0.5, MaxVoltage: 2.5, TankCapacity: 1000}, true},
		{"equal voltages", Calibration{MinVoltage: 1, MaxVoltage: 1, TankCapacity: 1000}, false},
		{"inverted voltages", Calibration{MinVoltage: 2, MaxVoltage: 1, TankCapacity: 1000}, false},
		{"zero capacity", Calibration{MinVoltage: 0, MaxVoltage: 3, TankCapacity: 0}, false},
		{"negative capacity", Calibration{MinVoltage: 0, MaxVoltage: 3, TankCapacity: -5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cal.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidCalibration) {
				t.Fatalf("expected ErrInvalidCalibration, got %v", err)
			}
		})
	}
}

func TestLevelEndpointsAndMidpoint(t *testing.T) {
	cal := Calibration{MinVoltage: 0.5, MaxVoltage: 2.5, TankCapacity: 1000}

	if got := cal.Level(0.5); !approx(got, 0) {
		t.Errorf("Level(min) = %v, want 0", got)
	}
	if got := cal.Level(2.5); !approx(got, 100) {
		t.Errorf("Level(max) = %v, want 100", got)
	}
	if got := cal.Level(1.5); !approx(got, 50) {
		t.Errorf("Level(mid) = %v, want 50", got)
	}
}

func TestLevelClamped(t *testing.T) {
	cal := Calibration{MinVoltage: 0.5, MaxVoltage: 2.5, TankCapacity: 1000}

	for _, v := range []float64{-10, 0, 0.49, 2.51, 3.3, 100} {
		got := cal.Level(v)
		if got < 0 || got > 100 {
			t.Errorf("Level(%v) = %v, outside [0,100]", v, got)
		}
	}
	if got := cal.Level(0.1); got != 0 {
		t.Errorf("Level(below min) = %v, want 0", got)
	}
	if got := cal.Level(3.0); got != 100 {
		t.Errorf("Level(above max) = %v, want 100", got)
	}
}

func TestLevelMonotonic(t *testing.T) {
	cal := Calibration{MinVoltage: 0.5, MaxVoltage: 2.5, TankCapacity: 1000}

	prev := cal.Level(0)
	for v := 0.0; v <= 3.0; v += 0.05 {
		got := cal.Level(v)
		if got < prev {
			t.Fatalf("Level(%v) = %v decreased from %v", v, got, prev)
		}
		prev = got
	}
}

func TestVolume(t *testing.T) {
	cal := Calibration{MinVoltage: 0, MaxVoltage: 3, TankCapacity: 800}

	tests := []struct {
		level float64
		want  float64
	}{
		{0, 0},
		{25, 200},
		{50, 400},
		{100, 800},
	}
	for _, tt := range tests {
		if got := cal.Volume(tt.level); !approx(got, tt.want) {
			t.Errorf("Volume(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
