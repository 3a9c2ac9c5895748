package gait

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// TrialKind distinguishes calibration captures from walking trials.
type TrialKind int

const (
	Static TrialKind = iota
	Dynamic
)

func (k TrialKind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

// Side identifies the limb an event or stride belongs to.
type Side int

const (
	Left Side = iota
	Right
)

// Sides lists both sides in block order (Left first).
var Sides = []Side{Left, Right}

func (s Side) String() string {
	if s == Right {
		return "Right"
	}
	return "Left"
}

// Prefix is the single-letter marker prefix for the side (L or R).
func (s Side) Prefix() string {
	if s == Right {
		return "R"
	}
	return "L"
}

// Suffix is the lower-case coordinate suffix used by solver outputs (l or r).
func (s Side) Suffix() string {
	if s == Right {
		return "r"
	}
	return "l"
}

// Opposite returns the contralateral side.
func (s Side) Opposite() Side {
	if s == Right {
		return Left
	}
	return Right
}

// ParseSide accepts the capture system's context strings ("Left", "Right").
func ParseSide(v string) (Side, error) {
	switch v {
	case "Left", "left", "L":
		return Left, nil
	case "Right", "right", "R":
		return Right, nil
	}
	return Left, fmt.Errorf("unknown side %q", v)
}

// EventKind is either a foot strike or a foot off.
type EventKind int

const (
	FootStrike EventKind = iota
	FootOff
)

func (k EventKind) String() string {
	if k == FootOff {
		return "Foot Off"
	}
	return "Foot Strike"
}

// ParseEventKind accepts the capture system's event labels.
func ParseEventKind(v string) (EventKind, error) {
	switch v {
	case "Foot Strike", "FootStrike", "Strike":
		return FootStrike, nil
	case "Foot Off", "FootOff", "Off":
		return FootOff, nil
	}
	return FootStrike, fmt.Errorf("unknown event label %q", v)
}

// Event is a single gait event. Plate is nil until attribution finds the
// force plate the foot is on, and is cleared again when validation rejects
// the stride.
type Event struct {
	Time   float64
	Side   Side
	Kind   EventKind
	Stride int
	Plate  *int
}

// HasPlate reports whether the event resolved to a force plate.
func (e Event) HasPlate() bool { return e.Plate != nil }

// PlateIndex returns the attributed plate or -1.
func (e Event) PlateIndex() int {
	if e.Plate == nil {
		return -1
	}
	return *e.Plate
}

// WithPlate returns a copy of the event attributed to plate p (nil clears).
func (e Event) WithPlate(p *int) Event {
	if p != nil {
		v := *p
		p = &v
	}
	e.Plate = p
	return e
}

// SortEvents orders events by time; simultaneous events keep Left before Right.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].Side < events[j].Side
	})
}

// CloneEvents deep-copies events including plate pointers.
func CloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.WithPlate(e.Plate)
	}
	return out
}

// Position is a marker sample. Valid is false for gap samples.
type Position struct {
	Vec   r3.Vec
	Valid bool
}

// At builds a valid Position.
func At(x, y, z float64) Position {
	return Position{Vec: r3.Vec{X: x, Y: y, Z: z}, Valid: true}
}

// Missing is the gap sample.
var Missing = Position{}

// Get returns the coordinates and whether the sample is present.
func (p Position) Get() (r3.Vec, bool) { return p.Vec, p.Valid }

// Components returns x, y, z, or three NaNs for a gap sample.
func (p Position) Components() [3]float64 {
	if !p.Valid {
		nan := math.NaN()
		return [3]float64{nan, nan, nan}
	}
	return [3]float64{p.Vec.X, p.Vec.Y, p.Vec.Z}
}

// Subject carries the anthropometrics recorded with the capture. Zero means
// unknown.
type Subject struct {
	HeightMM          float64
	MassKG            float64
	LeftLegMM         float64
	RightLegMM        float64
	LeftKneeWidthMM   float64
	RightKneeWidthMM  float64
	LeftAnkleWidthMM  float64
	RightAnkleWidthMM float64
}

// LegLengthMM returns the mean of the known leg lengths, or 0.
func (s Subject) LegLengthMM() float64 {
	switch {
	case s.LeftLegMM > 0 && s.RightLegMM > 0:
		return (s.LeftLegMM + s.RightLegMM) / 2
	case s.LeftLegMM > 0:
		return s.LeftLegMM
	default:
		return s.RightLegMM
	}
}

// Trial is one capture instance moving through the pipeline.
type Trial struct {
	Name       string
	Kind       TrialKind
	PointRate  float64
	AnalogRate float64
	Subject    Subject
	Markers    MarkerSet
	Analog     AnalogSet
	Events     []Event
}

// IsDynamic reports whether the trial carries force and event data.
func (t *Trial) IsDynamic() bool { return t.Kind == Dynamic }
