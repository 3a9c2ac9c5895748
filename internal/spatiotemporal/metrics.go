// Package spatiotemporal derives stride, step, phase, speed and foot
// progression metrics from a trial's gait events and heel, toe and pelvis
// marker trajectories.
package spatiotemporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/markers"
	"github.com/banshee-data/gaitlab/internal/units"
)

// Record holds the metrics attributed to one stride. Nil fields could not
// be measured (a boundary stride, a marker gap).
type Record struct {
	Side               gait.Side
	Stride             int
	StrideLengthM      *float64
	StepLengthM        *float64
	StepWidthM         *float64
	StanceS            *float64
	SwingS             *float64
	SingleSupportS     *float64
	DoubleSupportS     *float64
	FootProgressionDeg *float64
}

// ID is the stride key of the record.
func (r Record) ID() string { return gait.Stride{Side: r.Side, Number: r.Stride}.ID() }

type recordSet struct {
	order []string
	byID  map[string]*Record
}

func (s *recordSet) get(side gait.Side, stride int) *Record {
	id := gait.Stride{Side: side, Number: stride}.ID()
	if r, ok := s.byID[id]; ok {
		return r
	}
	r := &Record{Side: side, Stride: stride}
	s.byID[id] = r
	s.order = append(s.order, id)
	return r
}

func ptr(v float64) *float64 { return &v }

// accumulator gathers the per-event samples behind the trial summary.
type accumulator struct {
	strideLengths []float64
	stepLengths   map[gait.Side][]float64
	stepWidths    []float64
	stance        []float64
	swing         []float64
	single        []float64
	double        []float64
	progression   map[gait.Side][]float64
	strikes       []float64
}

// Compute derives per-stride records and the trial summary. The markers
// should already be rotated so that walking runs along +X; lengths are
// converted from mm to m. legLengthMM <= 0 disables leg-length
// normalisation.
func Compute(trial string, m gait.MarkerSet, events []gait.Event, legLengthMM float64) ([]Record, Summary) {
	evs := gait.CloneEvents(events)
	gait.SortEvents(evs)

	walk, walkOK := walkingDirection(m)
	acc := accumulator{
		stepLengths: map[gait.Side][]float64{},
		progression: map[gait.Side][]float64{},
	}
	recs := &recordSet{byID: map[string]*Record{}}

	var strikePos [2]*r3.Vec
	var strikeStride [2]int
	var last [2]*gait.Event

	for i := range evs {
		e := &evs[i]
		side, opp := e.Side, e.Side.Opposite()

		if e.Kind == gait.FootStrike {
			acc.strikes = append(acc.strikes, e.Time)
			heel, ok := sample(m, markers.Heel(side), m.RowAtOrBefore(e.Time))
			if !ok {
				strikePos[side] = nil
			} else {
				if prev := strikePos[side]; prev != nil {
					l := heel.X - prev.X
					acc.strideLengths = append(acc.strideLengths, l)
					recs.get(side, strikeStride[side]).StrideLengthM = ptr(units.MMToM(l))
				}
				if prev := strikePos[opp]; prev != nil {
					l, w := heel.X-prev.X, math.Abs(heel.Y-prev.Y)
					acc.stepLengths[side] = append(acc.stepLengths[side], l)
					acc.stepWidths = append(acc.stepWidths, w)
					r := recs.get(side, e.Stride)
					r.StepLengthM = ptr(units.MMToM(l))
					r.StepWidthM = ptr(units.MMToM(w))
				}
				h := heel
				strikePos[side] = &h
				strikeStride[side] = e.Stride
			}
		}

		if prev := last[side]; prev != nil {
			dt := e.Time - prev.Time
			if e.Kind == gait.FootStrike {
				acc.swing = append(acc.swing, dt)
				recs.get(side, prev.Stride).SwingS = ptr(dt)
			} else {
				acc.stance = append(acc.stance, dt)
				recs.get(side, e.Stride).StanceS = ptr(dt)
				if walkOK {
					if a, ok := footProgression(m, side, (prev.Time+e.Time)/2, walk); ok {
						acc.progression[side] = append(acc.progression[side], a)
						recs.get(side, e.Stride).FootProgressionDeg = ptr(a)
					}
				}
			}
		}
		last[side] = e

		if prev := last[opp]; prev != nil {
			dt := e.Time - prev.Time
			if e.Kind == gait.FootStrike {
				acc.single = append(acc.single, dt)
				recs.get(side, e.Stride).SingleSupportS = ptr(dt)
			} else {
				acc.double = append(acc.double, dt)
				recs.get(side, e.Stride).DoubleSupportS = ptr(dt)
			}
		}
	}

	out := make([]Record, 0, len(recs.order))
	for _, id := range recs.order {
		out = append(out, *recs.byID[id])
	}
	return out, acc.summary(trial, m, walk, walkOK, legLengthMM)
}

func sample(m gait.MarkerSet, label string, row int) (r3.Vec, bool) {
	if row < 0 {
		return r3.Vec{}, false
	}
	p, err := m.At(row, label)
	if err != nil || !p.Valid {
		return r3.Vec{}, false
	}
	return p.Vec, true
}

// walkingDirection is the planar unit vector of pelvis travel between the
// first and last frames.
func walkingDirection(m gait.MarkerSet) (r3.Vec, bool) {
	if m.Len() == 0 {
		return r3.Vec{}, false
	}
	a, ok1 := pelvis(m, 0)
	b, ok2 := pelvis(m, m.Len()-1)
	if !ok1 || !ok2 {
		return r3.Vec{}, false
	}
	d := r3.Vec{X: b.X - a.X, Y: b.Y - a.Y}
	if r3.Norm(d) == 0 {
		return r3.Vec{}, false
	}
	return r3.Unit(d), true
}

func pelvis(m gait.MarkerSet, row int) (r3.Vec, bool) {
	l, ok1 := sample(m, "LASI", row)
	r, ok2 := sample(m, "RASI", row)
	if !ok1 || !ok2 {
		return r3.Vec{}, false
	}
	return r3.Scale(0.5, r3.Add(l, r)), true
}

// footProgression is the heel-to-toe angle relative to the walking
// direction at time t, in degrees. Positive is toe-out on both sides.
func footProgression(m gait.MarkerSet, side gait.Side, t float64, walk r3.Vec) (float64, bool) {
	row := m.RowAtOrAfter(t)
	heel, ok1 := sample(m, markers.Heel(side), row)
	toe, ok2 := sample(m, markers.Toe(side), row)
	if !ok1 || !ok2 {
		return 0, false
	}
	foot := math.Atan2(toe.Y-heel.Y, toe.X-heel.X)
	angle := units.RadToDeg(foot - math.Atan2(walk.Y, walk.X))
	if side == gait.Right {
		angle = -angle
	}
	return units.WrapDegrees(angle), true
}

func (a accumulator) summary(trial string, m gait.MarkerSet, walk r3.Vec, walkOK bool, legMM float64) Summary {
	s := Summary{Trial: trial}
	mean := func(v []float64) (float64, bool) {
		if len(v) == 0 {
			return 0, false
		}
		return stat.Mean(v, nil), true
	}
	if v, ok := mean(a.strideLengths); ok {
		s.set(StrideLength, units.MMToM(v))
	}
	if v, ok := mean(a.stepLengths[gait.Left]); ok {
		s.set(StepLengthLeft, units.MMToM(v))
	}
	if v, ok := mean(a.stepLengths[gait.Right]); ok {
		s.set(StepLengthRight, units.MMToM(v))
	}
	if v, ok := mean(a.stepWidths); ok {
		s.set(StepWidth, units.MMToM(v))
	}
	if st, sw := floats.Sum(a.stance), floats.Sum(a.swing); st+sw > 0 {
		s.set(StancePct, 100*st/(st+sw))
		s.set(SwingPct, 100*sw/(st+sw))
	}
	if ss, ds := floats.Sum(a.single), floats.Sum(a.double); ss+ds > 0 {
		s.set(SingleSupportPct, 100*ss/(ss+ds))
		s.set(DoubleSupportPct, 100*ds/(ss+ds))
	}
	if len(a.strikes) >= 2 {
		first, last := a.strikes[0], a.strikes[len(a.strikes)-1]
		if total := last - first; total > 0 {
			if walkOK {
				if d, ok := distanceCovered(m, first, last, walk); ok {
					s.set(Speed, units.MMToM(d)/total)
				}
			}
			s.set(Cadence, float64(len(a.strikes)-1)/total*60)
		}
	}
	if v, ok := mean(a.progression[gait.Left]); ok {
		s.set(FootProgressionLeft, v)
	}
	if v, ok := mean(a.progression[gait.Right]); ok {
		s.set(FootProgressionRight, v)
	}
	if legMM > 0 {
		s.normalise(units.MMToM(legMM))
	}
	return s
}

// distanceCovered is the pelvis displacement between t0 and t1 projected
// onto the walking direction, in mm.
func distanceCovered(m gait.MarkerSet, t0, t1 float64, walk r3.Vec) (float64, bool) {
	a, ok1 := pelvis(m, m.RowAtOrAfter(t0))
	b, ok2 := pelvis(m, m.RowAtOrAfter(t1))
	if !ok1 || !ok2 {
		return 0, false
	}
	d := r3.Sub(b, a)
	return d.X*walk.X + d.Y*walk.Y, true
}
