package units

import (
	"math"
	"testing"
)

func TestMMToM(t *testing.T) {
	if got := MMToM(1200); got != 1.2 {
		t.Errorf("MMToM(1200) = %v, want 1.2", got)
	}
}

func TestWrapDegrees(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0},
		{179, 179},
		{181, -179},
		{-181, 179},
		{-180, -180},
		{350, -10},
	}
	for _, tt := range tests {
		if got := WrapDegrees(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("WrapDegrees(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAngleConversions(t *testing.T) {
	if got := DegToRad(180); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("DegToRad(180) = %v", got)
	}
	if got := RadToDeg(math.Pi / 2); math.Abs(got-90) > 1e-12 {
		t.Errorf("RadToDeg(pi/2) = %v", got)
	}
}

func TestFroudeSpeed(t *testing.T) {
	// leg length such that g·L = 1 gives speed unchanged
	if got := FroudeSpeed(1.3, 1/Gravity); math.Abs(got-1.3) > 1e-12 {
		t.Errorf("FroudeSpeed = %v, want 1.3", got)
	}
}
