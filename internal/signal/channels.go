package signal

import (
	"fmt"
	"math"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/monitoring"
)

// FilterChannel low-pass filters x with the zero-phase filter c. NaN samples
// are gaps: each run of finite samples is filtered on its own and the gaps
// are left in place. Runs too short to pad pass through unchanged and are
// logged.
func FilterChannel(c Coefficients, x []float64) []float64 {
	out := append([]float64(nil), x...)
	for _, r := range finiteRuns(x) {
		y, err := c.FiltFilt(x[r[0]:r[1]])
		if err != nil {
			monitoring.Logf("[signal] samples %d-%d left unfiltered: %v", r[0], r[1]-1, err)
			continue
		}
		copy(out[r[0]:r[1]], y)
	}
	return out
}

// finiteRuns returns [lo, hi) ranges of consecutive finite samples.
func finiteRuns(x []float64) [][2]int {
	var runs [][2]int
	start := -1
	for i, v := range x {
		finite := !math.IsNaN(v) && !math.IsInf(v, 0)
		switch {
		case finite && start < 0:
			start = i
		case !finite && start >= 0:
			runs = append(runs, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int{start, len(x)})
	}
	return runs
}

// FilterMarkers filters every marker axis at cutoff Hz. The input is not
// modified.
func FilterMarkers(m gait.MarkerSet, cutoff float64) (gait.MarkerSet, error) {
	c, err := Butterworth(cutoff, m.Rate)
	if err != nil {
		return gait.MarkerSet{}, fmt.Errorf("marker filter: %w", err)
	}
	out := m.Clone()
	for j := range m.Labels {
		axes := markerAxes(m, j)
		for k := range axes {
			axes[k] = FilterChannel(c, axes[k])
		}
		setMarkerAxes(&out, j, axes)
	}
	return out, nil
}

// FilterAnalog filters every analog channel at cutoff Hz.
func FilterAnalog(a gait.AnalogSet, cutoff float64) (gait.AnalogSet, error) {
	c, err := Butterworth(cutoff, a.Rate)
	if err != nil {
		return gait.AnalogSet{}, fmt.Errorf("analog filter: %w", err)
	}
	out := a.Clone()
	for i, ch := range a.Channels {
		out.Channels[i] = FilterChannel(c, ch)
	}
	return out, nil
}

// Condition filters then resamples both marker and analog data of a trial in
// place. Analog channels share the marker cut-off. A zero target rate keeps
// the recorded rate.
func Condition(t *gait.Trial, markerCutoff, markerRate, analogRate float64) error {
	m, err := FilterMarkers(t.Markers, markerCutoff)
	if err != nil {
		return err
	}
	if markerRate > 0 && markerRate != m.Rate {
		if m, err = ResampleMarkers(m, markerRate); err != nil {
			return err
		}
	}
	t.Markers = m
	t.PointRate = m.Rate

	if t.Analog.Len() == 0 {
		return nil
	}
	a, err := FilterAnalog(t.Analog, markerCutoff)
	if err != nil {
		return err
	}
	if analogRate > 0 && analogRate != a.Rate {
		if a, err = ResampleAnalog(a, analogRate); err != nil {
			return err
		}
	}
	t.Analog = a
	t.AnalogRate = a.Rate
	monitoring.Logf("[signal] %s: markers %d frames @ %g Hz, analog %d samples @ %g Hz",
		t.Name, t.Markers.Len(), t.PointRate, t.Analog.Len(), t.AnalogRate)
	return nil
}

func markerAxes(m gait.MarkerSet, j int) [3][]float64 {
	var axes [3][]float64
	for k := range axes {
		axes[k] = make([]float64, m.Len())
	}
	for i, f := range m.Frames {
		c := f[j].Components()
		for k := range axes {
			axes[k][i] = c[k]
		}
	}
	return axes
}

func setMarkerAxes(m *gait.MarkerSet, j int, axes [3][]float64) {
	for i := range m.Frames {
		x, y, z := axes[0][i], axes[1][i], axes[2][i]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsNaN(z) {
			m.Frames[i][j] = gait.Missing
			continue
		}
		m.Frames[i][j] = gait.At(x, y, z)
	}
}

// FilterSeries filters every column of s sampled at rate Hz, such as a
// solver output table.
func FilterSeries(s gait.Series, rate, cutoff float64) (gait.Series, error) {
	c, err := Butterworth(cutoff, rate)
	if err != nil {
		return gait.Series{}, fmt.Errorf("series filter: %w", err)
	}
	out := s.Clone()
	for i, col := range s.Columns {
		out.Columns[i] = FilterChannel(c, col)
	}
	return out, nil
}
