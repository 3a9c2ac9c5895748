// Package testutil builds synthetic captures shared by package tests: a
// subject walking along +X across two force plates, and a standing
// calibration capture.
package testutil

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/banshee-data/gaitlab/internal/capture"
	"github.com/banshee-data/gaitlab/internal/fsutil"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/markers"
)

// Walk geometry. The subject walks along +X at SpeedMMPerS with a
// CycleS gait cycle, stance lasting StanceFraction of it. Left strikes
// happen at LeftStrikeS + k*CycleS, right strikes half a cycle later.
const (
	SpeedMMPerS    = 1000.0
	CycleS         = 1.2
	StanceFraction = 0.6
	LeftStrikeS    = 0.3
	FootWidthMM    = 100.0
	ToeOffsetMM    = 200.0
	LegLengthMM    = 900.0
	BodyMassKG     = 70.0
	PlantAheadMM   = 300.0
)

// Plate corners in mm. Plate 0 lies under the second right stance (from
// 0.9 s), plate 1 under the second left stance (from 1.5 s).
var PlateCorners = [][]float64{
	rect(1000, 1500, -250, 0),
	rect(1600, 2100, 0, 250),
}

// rect lists corners in capture order: corner 0 to 1 along lab +X,
// corner 0 to 3 along lab -Y.
func rect(x0, x1, y0, y1 float64) []float64 {
	return []float64{
		x0, y1, 0,
		x1, y1, 0,
		x1, y0, 0,
		x0, y0, 0,
	}
}

// WalkOptions shapes a synthetic walking capture.
type WalkOptions struct {
	Name       string
	Frames     int
	PointRate  float64
	AnalogRate float64
	// LeadingGaps and TrailingGaps blank LTOE on that many frames at
	// either end.
	LeadingGaps  int
	TrailingGaps int
	// NoEvents drops the event parameter group.
	NoEvents bool
}

// DefaultWalk is a 3 s capture at 100 Hz with 1 kHz analog.
func DefaultWalk(name string) WalkOptions {
	return WalkOptions{Name: name, Frames: 300, PointRate: 100, AnalogRate: 1000}
}

// Stance is one foot contact.
type Stance struct {
	Side        gait.Side
	Strike, Off float64
	PlantX      float64
}

// Stances lists every contact overlapping [from, to], including contacts
// that started before the capture.
func Stances(from, to float64) []Stance {
	var out []Stance
	for _, side := range gait.Sides {
		first := LeftStrikeS
		if side == gait.Right {
			first += CycleS / 2
		}
		k := int(math.Floor((from-first)/CycleS)) - 1
		for ; ; k++ {
			strike := first + float64(k)*CycleS
			if strike > to {
				break
			}
			off := strike + StanceFraction*CycleS
			if off < from-CycleS {
				continue
			}
			out = append(out, Stance{Side: side, Strike: strike, Off: off, PlantX: SpeedMMPerS*strike + PlantAheadMM})
		}
	}
	return out
}

func sideY(side gait.Side) float64 {
	if side == gait.Right {
		return -FootWidthMM
	}
	return FootWidthMM
}

// Heel returns the heel position of side at time t: planted during stance,
// moving linearly and raised during swing.
func Heel(side gait.Side, t float64) [3]float64 {
	var prev, next *Stance
	all := Stances(t-2*CycleS, t+2*CycleS)
	for i := range all {
		s := &all[i]
		if s.Side != side {
			continue
		}
		if s.Strike <= t && t <= s.Off {
			return [3]float64{s.PlantX, sideY(side), 50}
		}
		if s.Off < t && (prev == nil || s.Off > prev.Off) {
			prev = s
		}
		if s.Strike > t && (next == nil || s.Strike < next.Strike) {
			next = s
		}
	}
	if prev == nil || next == nil {
		return [3]float64{SpeedMMPerS * t, sideY(side), 50}
	}
	f := (t - prev.Off) / (next.Strike - prev.Off)
	return [3]float64{prev.PlantX + f*(next.PlantX-prev.PlantX), sideY(side), 50 + 70*math.Sin(math.Pi*f)}
}

// MarkerLabels are the raw labels of the walking capture, canonical
// already so the identity lab map applies.
var MarkerLabels = []string{
	"LASI", "RASI", "SACR", "C7", "T10",
	"LTHI", "LKNE", "LKNEM", "LTIB", "LANK", "LMED", "LHEE", "LTOE",
	"RTHI", "RKNE", "RKNEM", "RTIB", "RANK", "RMED", "RHEE", "RTOE",
}

// IdentityMap maps every label of the walking capture to itself.
func IdentityMap() markers.Map {
	m := markers.Map{}
	for _, l := range MarkerLabels {
		raw := l
		m[l] = &raw
	}
	return m
}

func markerPositions(t float64) map[string][3]float64 {
	px := SpeedMMPerS * t
	pos := map[string][3]float64{
		"LASI": {px + 100, 120, 950},
		"RASI": {px + 100, -120, 950},
		"SACR": {px - 100, 0, 950},
		"C7":   {px - 50, 0, 1450},
		"T10":  {px - 80, 0, 1250},
	}
	for _, side := range gait.Sides {
		p, y := side.Prefix(), sideY(side)
		h := Heel(side, t)
		knee := (px + h[0]) / 2
		pos[p+"THI"] = [3]float64{knee + 20, 1.4 * y, 700}
		pos[p+"KNE"] = [3]float64{knee, 1.3 * y, 500}
		pos[p+"KNEM"] = [3]float64{knee, 0.5 * y, 500}
		pos[p+"TIB"] = [3]float64{(knee+h[0])/2 + 20, 1.3 * y, 300}
		pos[p+"ANK"] = [3]float64{h[0] + 50, 1.3 * y, h[2] + 30}
		pos[p+"MED"] = [3]float64{h[0] + 50, 0.7 * y, h[2] + 30}
		pos[p+"HEE"] = h
		pos[p+"TOE"] = [3]float64{h[0] + ToeOffsetMM, y, h[2] - 20}
	}
	return pos
}

// Events lists the gait events strictly inside (from, to), in time order.
func Events(from, to float64) []gait.Event {
	var out []gait.Event
	for _, s := range Stances(from, to) {
		if s.Strike > from && s.Strike < to {
			out = append(out, gait.Event{Time: s.Strike, Side: s.Side, Kind: gait.FootStrike})
		}
		if s.Off > from && s.Off < to {
			out = append(out, gait.Event{Time: s.Off, Side: s.Side, Kind: gait.FootOff})
		}
	}
	gait.SortEvents(out)
	return out
}

// plateForce returns the raw vertical force (negative, plate Z down) on
// plate p at time t.
func plateForce(p int, t float64) float64 {
	for _, s := range Stances(t-CycleS, t+CycleS) {
		if t < s.Strike || t > s.Off {
			continue
		}
		heel := [3]float64{s.PlantX, sideY(s.Side), 0}
		if !inside(PlateCorners[p], heel[0], heel[1]) {
			continue
		}
		f := (t - s.Strike) / (s.Off - s.Strike)
		return -BodyMassKG * 9.81 * (0.2 + math.Sin(math.Pi*f))
	}
	return -2
}

func inside(c []float64, x, y float64) bool {
	minX, maxX := math.Min(c[0], c[6]), math.Max(c[0], c[6])
	minY, maxY := math.Min(c[1], c[7]), math.Max(c[1], c[7])
	return minX <= x && x <= maxX && minY <= y && y <= maxY
}

// Walk builds a walking capture.
func Walk(opt WalkOptions) capture.Recording {
	r := capture.Recording{
		Name:       opt.Name,
		PointRate:  opt.PointRate,
		AnalogRate: opt.AnalogRate,
		FirstFrame: 1,
		Labels:     append([]string(nil), MarkerLabels...),
		Frames:     make([][]capture.Sample, opt.Frames),
		Plates:     capture.ForcePlatforms{Used: len(PlateCorners), Corners: PlateCorners},
		Subject: capture.Anthropometrics{
			HeightMM:   1750,
			MassKG:     BodyMassKG,
			LeftLegMM:  LegLengthMM,
			RightLegMM: LegLengthMM,
		},
	}
	toe := indexOf(MarkerLabels, "LTOE")
	for i := range r.Frames {
		t := float64(i) / opt.PointRate
		pos := markerPositions(t)
		row := make([]capture.Sample, len(MarkerLabels))
		for j, l := range MarkerLabels {
			p := pos[l]
			row[j] = capture.Sample{p[0], p[1], p[2], 0.8}
		}
		if i < opt.LeadingGaps || i >= opt.Frames-opt.TrailingGaps {
			row[toe] = capture.Sample{0, 0, 0, capture.MissingResidual}
		}
		r.Frames[i] = row
	}

	samples := int(math.Round(float64(opt.Frames) / opt.PointRate * opt.AnalogRate))
	for p := range PlateCorners {
		for _, c := range []string{"Fx", "Fy", "Fz", "Mx", "My", "Mz"} {
			r.Analog.Labels = append(r.Analog.Labels, c+string(rune('1'+p)))
		}
		chans := make([][]float64, 6)
		for c := range chans {
			chans[c] = make([]float64, samples)
		}
		for k := 0; k < samples; k++ {
			chans[2][k] = plateForce(p, float64(k)/opt.AnalogRate)
		}
		r.Analog.Channels = append(r.Analog.Channels, chans...)
	}

	if !opt.NoEvents {
		end := float64(opt.Frames) / opt.PointRate
		g := &capture.EventGroup{}
		for _, e := range Events(0, end) {
			g.Contexts = append(g.Contexts, e.Side.String())
			g.Labels = append(g.Labels, e.Kind.String())
			g.Times = append(g.Times, e.Time)
		}
		g.Used = len(g.Times)
		r.Events = g
	}
	return r
}

// Static builds a standing calibration capture without analog data.
func Static(name string, frames int) capture.Recording {
	r := capture.Recording{
		Name:       name,
		PointRate:  100,
		FirstFrame: 1,
		Labels:     append([]string(nil), MarkerLabels...),
		Frames:     make([][]capture.Sample, frames),
		Subject:    capture.Anthropometrics{MassKG: BodyMassKG, LeftLegMM: LegLengthMM, RightLegMM: LegLengthMM},
	}
	// frozen at a moment of double support
	pos := markerPositions(LeftStrikeS + 0.05)
	for i := range r.Frames {
		row := make([]capture.Sample, len(MarkerLabels))
		for j, l := range MarkerLabels {
			p := pos[l]
			row[j] = capture.Sample{p[0], p[1], p[2], 0.8}
		}
		r.Frames[i] = row
	}
	return r
}

// WriteBundle stores r as a capture bundle at path.
func WriteBundle(t testing.TB, fsys fsutil.FileSystem, path string, r capture.Recording) {
	t.Helper()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal %s: %v", r.Name, err)
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func indexOf(labels []string, l string) int {
	for i, v := range labels {
		if v == l {
			return i
		}
	}
	return -1
}
