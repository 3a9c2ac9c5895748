// Package units provides shared constants and conversions for the length,
// speed and angle units used in pipeline outputs.
package units

import "math"

// Gravity is standard gravitational acceleration in m/s², used for Froude
// normalisation of walking speed.
const Gravity = 9.81

// MM is the capture system's length unit, written into marker file headers.
const MM = "mm"

// MMToM converts millimetres (capture system units) to metres.
func MMToM(mm float64) float64 { return mm / 1000 }

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }

// WrapDegrees folds an angle difference into [-180, 180] by one turn.
func WrapDegrees(angle float64) float64 {
	if angle < -180 {
		return angle + 360
	}
	if angle > 180 {
		return angle - 360
	}
	return angle
}

// FroudeSpeed returns speed normalised by sqrt(g·legLength).
func FroudeSpeed(speedMPS, legLengthM float64) float64 {
	return speedMPS / math.Sqrt(Gravity*legLengthM)
}
