package grf

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// DefaultInterferenceWindow bounds how far (s) a stride's force span may be
// extended past its strike or off event.
const DefaultInterferenceWindow = 0.15

// Boundary names the end of a stride's force span.
type Boundary string

const (
	StartBoundary Boundary = "start"
	EndBoundary   Boundary = "end"
)

// Interference reports a force trace still in contact when the extension of
// a stride's span reached the window bound. The span is left at the bound.
type Interference struct {
	Stride   string
	Plate    int
	Boundary Boundary
	Time     float64
}

func (i Interference) String() string {
	return fmt.Sprintf("stride %s: plate %d still loaded at %s boundary (t=%.3f s)", i.Stride, i.Plate, i.Boundary, i.Time)
}

// ConcatOptions tunes the stride span extension.
type ConcatOptions struct {
	ContactThreshold   float64
	InterferenceWindow float64
}

// DefaultConcatOptions returns the reference thresholds.
func DefaultConcatOptions() ConcatOptions {
	return ConcatOptions{ContactThreshold: DefaultContactThreshold, InterferenceWindow: DefaultInterferenceWindow}
}

// Concatenate builds the two-block external-loads table. Each validated
// stride copies its plate's loads into the block of its side, from the
// strike to the off. The span is pushed outwards while the vertical force
// stays above the contact threshold so the loading transient is not cut. A
// stride without a strike starts at the first sample; one without an off
// runs to the last sample. Cells no stride covers hold zero force and
// torque with the centre of pressure at mean.
func Concatenate(time []float64, loads []Loads, strides []gait.Stride, mean r3.Vec, opt ConcatOptions) (Table, []Interference) {
	t := NewTable(time)
	for _, s := range gait.Sides {
		px := t.Get(Channel{Side: s, Quantity: Position, Axis: X})
		py := t.Get(Channel{Side: s, Quantity: Position, Axis: Y})
		for i := range time {
			px[i], py[i] = mean.X, mean.Y
		}
	}
	if len(time) == 0 {
		return t, nil
	}

	byPlate := make(map[int]Loads, len(loads))
	for _, l := range loads {
		byPlate[l.Plate] = l
	}

	var issues []Interference
	for _, s := range strides {
		p := s.Plate()
		if p < 0 {
			continue
		}
		l, ok := byPlate[p]
		if !ok || l.Len() != len(time) {
			continue
		}
		start, end := 0, len(time)-1
		if s.Strike != nil {
			var hit bool
			start, hit = extend(time, l, rowAt(time, s.Strike.Time), -1, s.Strike.Time, opt)
			if hit {
				issues = append(issues, Interference{Stride: s.ID(), Plate: p, Boundary: StartBoundary, Time: time[start]})
			}
		}
		if s.Off != nil {
			var hit bool
			end, hit = extend(time, l, rowAt(time, s.Off.Time), +1, s.Off.Time, opt)
			if hit {
				issues = append(issues, Interference{Stride: s.ID(), Plate: p, Boundary: EndBoundary, Time: time[end]})
			}
		}
		copySpan(&t, s.Side, l, start, end)
	}
	return t, issues
}

// extend walks from row in direction dir while the plate is loaded. It
// reports whether it stopped at the interference window rather than at the
// end of contact.
func extend(time []float64, l Loads, row, dir int, at float64, opt ConcatOptions) (int, bool) {
	for l.Force[row].Z > opt.ContactThreshold {
		next := row + dir
		if next < 0 || next >= len(time) {
			return row, false
		}
		if opt.InterferenceWindow > 0 && math.Abs(time[next]-at) > opt.InterferenceWindow {
			return row, true
		}
		row = next
	}
	return row, false
}

func copySpan(t *Table, side gait.Side, l Loads, start, end int) {
	for q, series := range [][]r3.Vec{l.Force, l.CoP, l.Torque} {
		cx := t.Get(Channel{Side: side, Quantity: Quantity(q), Axis: X})
		cy := t.Get(Channel{Side: side, Quantity: Quantity(q), Axis: Y})
		cz := t.Get(Channel{Side: side, Quantity: Quantity(q), Axis: Z})
		for i := start; i <= end; i++ {
			cx[i], cy[i], cz[i] = series[i].X, series[i].Y, series[i].Z
		}
	}
}

// rowAt returns the last sample at or before t, clamped to the table.
func rowAt(time []float64, t float64) int {
	i := sort.Search(len(time), func(i int) bool { return time[i] > t }) - 1
	if i < 0 {
		return 0
	}
	return i
}

// Scale converts the position and torque columns from mm to m (N·mm to
// N·m). Force columns are unchanged.
func Scale(t Table) Table {
	out := t.Clone()
	for _, c := range Channels() {
		if c.Quantity == Force {
			continue
		}
		col := out.Data[c.Index()]
		for i := range col {
			col[i] /= 1000
		}
	}
	return out
}
