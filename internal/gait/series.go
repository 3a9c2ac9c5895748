package gait

import (
	"fmt"
	"sort"
)

// MarkerSet is a dense, time-ordered table of marker positions. Frames[i][j]
// is marker Labels[j] at Time[i]; FirstFrame is the capture's absolute frame
// number of row 0 (1-based, as the capture system numbers frames).
type MarkerSet struct {
	Rate       float64
	FirstFrame int
	Time       []float64
	Labels     []string
	Frames     [][]Position
}

// Len returns the number of frames.
func (m MarkerSet) Len() int { return len(m.Time) }

// LastFrame returns the absolute number of the final frame.
func (m MarkerSet) LastFrame() int { return m.FirstFrame + m.Len() - 1 }

// Index returns the column of label, or -1.
func (m MarkerSet) Index(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Has reports whether the marker is present.
func (m MarkerSet) Has(label string) bool { return m.Index(label) >= 0 }

// Column returns the trajectory of one marker.
func (m MarkerSet) Column(label string) ([]Position, error) {
	j := m.Index(label)
	if j < 0 {
		return nil, fmt.Errorf("marker %q not present", label)
	}
	out := make([]Position, len(m.Frames))
	for i, f := range m.Frames {
		out[i] = f[j]
	}
	return out, nil
}

// At returns the sample of label in row i.
func (m MarkerSet) At(i int, label string) (Position, error) {
	j := m.Index(label)
	if j < 0 {
		return Missing, fmt.Errorf("marker %q not present", label)
	}
	if i < 0 || i >= len(m.Frames) {
		return Missing, fmt.Errorf("frame row %d out of range [0,%d)", i, len(m.Frames))
	}
	return m.Frames[i][j], nil
}

// RowAtOrBefore returns the last row whose time is <= t, or -1 when t precedes
// the first frame.
func (m MarkerSet) RowAtOrBefore(t float64) int {
	return rowAtOrBefore(m.Time, t)
}

// RowAtOrAfter returns the first row whose time is >= t, or -1 when t is
// past the final frame.
func (m MarkerSet) RowAtOrAfter(t float64) int {
	return rowAtOrAfter(m.Time, t)
}

// Slice returns rows [lo, hi) sharing no storage with m.
func (m MarkerSet) Slice(lo, hi int) MarkerSet {
	out := MarkerSet{
		Rate:       m.Rate,
		FirstFrame: m.FirstFrame + lo,
		Time:       append([]float64(nil), m.Time[lo:hi]...),
		Labels:     append([]string(nil), m.Labels...),
		Frames:     make([][]Position, hi-lo),
	}
	for i := lo; i < hi; i++ {
		out.Frames[i-lo] = append([]Position(nil), m.Frames[i]...)
	}
	return out
}

// Clone deep-copies the set.
func (m MarkerSet) Clone() MarkerSet { return m.Slice(0, m.Len()) }

// Midpoint returns the per-frame midpoint of two markers; a frame is invalid
// when either marker is missing.
func (m MarkerSet) Midpoint(a, b string) ([]Position, error) {
	ca, err := m.Column(a)
	if err != nil {
		return nil, err
	}
	cb, err := m.Column(b)
	if err != nil {
		return nil, err
	}
	out := make([]Position, len(ca))
	for i := range ca {
		if !ca[i].Valid || !cb[i].Valid {
			continue
		}
		out[i] = At(
			(ca[i].Vec.X+cb[i].Vec.X)/2,
			(ca[i].Vec.Y+cb[i].Vec.Y)/2,
			(ca[i].Vec.Z+cb[i].Vec.Z)/2,
		)
	}
	return out, nil
}

// AnalogSet holds analog channels sampled at Rate.
type AnalogSet struct {
	Rate     float64
	Time     []float64
	Labels   []string
	Channels [][]float64
}

// Len returns the number of samples.
func (a AnalogSet) Len() int { return len(a.Time) }

// Index returns the channel position of label, or -1.
func (a AnalogSet) Index(label string) int {
	for i, l := range a.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Channel returns the samples of label.
func (a AnalogSet) Channel(label string) ([]float64, error) {
	i := a.Index(label)
	if i < 0 {
		return nil, fmt.Errorf("analog channel %q not present", label)
	}
	return a.Channels[i], nil
}

// RowAtOrBefore returns the last sample whose time is <= t, or -1.
func (a AnalogSet) RowAtOrBefore(t float64) int { return rowAtOrBefore(a.Time, t) }

// Clone deep-copies the set.
func (a AnalogSet) Clone() AnalogSet {
	out := AnalogSet{
		Rate:     a.Rate,
		Time:     append([]float64(nil), a.Time...),
		Labels:   append([]string(nil), a.Labels...),
		Channels: make([][]float64, len(a.Channels)),
	}
	for i, c := range a.Channels {
		out.Channels[i] = append([]float64(nil), c...)
	}
	return out
}

func rowAtOrBefore(times []float64, t float64) int {
	// first index with time > t, minus one
	return sort.Search(len(times), func(i int) bool { return times[i] > t }) - 1
}

func rowAtOrAfter(times []float64, t float64) int {
	i := sort.SearchFloat64s(times, t)
	if i >= len(times) {
		return -1
	}
	return i
}

// Series is a table of named channels sharing a time vector, such as a
// solver output or the concatenated external loads.
type Series struct {
	Time    []float64
	Labels  []string
	Columns [][]float64
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.Time) }

// Index returns the column of label, or -1.
func (s Series) Index(label string) int {
	for i, l := range s.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Column returns the samples of label.
func (s Series) Column(label string) ([]float64, error) {
	i := s.Index(label)
	if i < 0 {
		return nil, fmt.Errorf("channel %q not present", label)
	}
	return s.Columns[i], nil
}

// Set replaces or appends a channel.
func (s *Series) Set(label string, v []float64) {
	if i := s.Index(label); i >= 0 {
		s.Columns[i] = v
		return
	}
	s.Labels = append(s.Labels, label)
	s.Columns = append(s.Columns, v)
}

// RowAtOrBefore returns the last sample whose time is <= t, or -1.
func (s Series) RowAtOrBefore(t float64) int { return rowAtOrBefore(s.Time, t) }

// RowAtOrAfter returns the first sample whose time is >= t, or -1.
func (s Series) RowAtOrAfter(t float64) int { return rowAtOrAfter(s.Time, t) }

// Clone deep-copies the series.
func (s Series) Clone() Series {
	out := Series{
		Time:    append([]float64(nil), s.Time...),
		Labels:  append([]string(nil), s.Labels...),
		Columns: make([][]float64, len(s.Columns)),
	}
	for i, c := range s.Columns {
		out.Columns[i] = append([]float64(nil), c...)
	}
	return out
}
