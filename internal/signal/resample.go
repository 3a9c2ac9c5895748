package signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// Grid returns the uniform time grid at rate spanning [t0, tn]. The sample
// count is round((tn-t0)*rate)+1 so both ends are kept.
func Grid(t0, tn, rate float64) []float64 {
	n := int(math.Round((tn-t0)*rate)) + 1
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = t0 + float64(i)/rate
	}
	if n > 1 {
		out[n-1] = tn
	}
	return out
}

// Resample evaluates an interpolating not-a-knot cubic spline through
// (times, x) at grid. NaN samples are excluded from the fit; grid points
// outside the valid span of x, or inside a gap, stay NaN. Channels with fewer
// than three valid samples fall back to piecewise-linear interpolation.
func Resample(times, x, grid []float64) ([]float64, error) {
	if len(times) != len(x) {
		return nil, fmt.Errorf("resample: %d times for %d samples", len(times), len(x))
	}
	out := make([]float64, len(grid))
	for i := range out {
		out[i] = math.NaN()
	}
	for _, r := range finiteRuns(x) {
		ts, xs := times[r[0]:r[1]], x[r[0]:r[1]]
		p, err := fitRun(ts, xs)
		if err != nil {
			return nil, err
		}
		lo, hi := ts[0], ts[len(ts)-1]
		for i, g := range grid {
			if g >= lo && g <= hi {
				out[i] = p.Predict(g)
			}
		}
	}
	return out, nil
}

func fitRun(ts, xs []float64) (interp.Predictor, error) {
	switch len(ts) {
	case 1:
		return interp.Constant(xs[0]), nil
	case 2:
		var pl interp.PiecewiseLinear
		if err := pl.Fit(ts, xs); err != nil {
			return nil, fmt.Errorf("resample: %w", err)
		}
		return &pl, nil
	}
	var cs interp.NotAKnotCubic
	if err := cs.Fit(ts, xs); err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return &cs, nil
}

// ResampleMarkers resamples every marker axis onto a uniform grid at rate.
func ResampleMarkers(m gait.MarkerSet, rate float64) (gait.MarkerSet, error) {
	if m.Len() == 0 {
		return m.Clone(), nil
	}
	grid := Grid(m.Time[0], m.Time[m.Len()-1], rate)
	out := gait.MarkerSet{
		Rate:       rate,
		FirstFrame: m.FirstFrame,
		Time:       grid,
		Labels:     append([]string(nil), m.Labels...),
		Frames:     make([][]gait.Position, len(grid)),
	}
	for i := range out.Frames {
		out.Frames[i] = make([]gait.Position, len(m.Labels))
	}
	for j, label := range m.Labels {
		axes := markerAxes(m, j)
		for k := range axes {
			y, err := Resample(m.Time, axes[k], grid)
			if err != nil {
				return gait.MarkerSet{}, fmt.Errorf("marker %s: %w", label, err)
			}
			axes[k] = y
		}
		setMarkerAxes(&out, j, axes)
	}
	return out, nil
}

// ResampleAnalog resamples every analog channel onto a uniform grid at rate.
func ResampleAnalog(a gait.AnalogSet, rate float64) (gait.AnalogSet, error) {
	if a.Len() == 0 {
		return a.Clone(), nil
	}
	grid := Grid(a.Time[0], a.Time[a.Len()-1], rate)
	out := gait.AnalogSet{
		Rate:     rate,
		Time:     grid,
		Labels:   append([]string(nil), a.Labels...),
		Channels: make([][]float64, len(a.Channels)),
	}
	for i, ch := range a.Channels {
		y, err := Resample(a.Time, ch, grid)
		if err != nil {
			return gait.AnalogSet{}, fmt.Errorf("analog %s: %w", a.Labels[i], err)
		}
		out.Channels[i] = y
	}
	return out, nil
}

// Gradient returns dy/dx using second-order central differences in the
// interior and first-order differences at the ends, for non-uniform x.
func Gradient(y, x []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 || len(x) != n {
		return out
	}
	out[0] = (y[1] - y[0]) / (x[1] - x[0])
	out[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		hl := x[i] - x[i-1]
		hr := x[i+1] - x[i]
		out[i] = (hl*hl*y[i+1] - hr*hr*y[i-1] + (hr*hr-hl*hl)*y[i]) / (hl * hr * (hl + hr))
	}
	return out
}
