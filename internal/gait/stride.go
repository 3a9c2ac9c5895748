package gait

import "fmt"

// StrideState tracks a stride through plate attribution and validation.
type StrideState int

const (
	Unassigned StrideState = iota
	StrikeLocated
	StrikeOffLocated
	Validated
	Invalidated
)

func (s StrideState) String() string {
	switch s {
	case StrikeLocated:
		return "strike-located"
	case StrikeOffLocated:
		return "strike-off-located"
	case Validated:
		return "validated"
	case Invalidated:
		return "invalidated"
	}
	return "unassigned"
}

// Stride pairs a foot strike with the following foot off on the same side.
// Strides cut by the trial boundaries have only one of the two events.
type Stride struct {
	Side   Side
	Number int
	Strike *Event
	Off    *Event
	State  StrideState
}

// ID is the curation key of a stride within a trial.
func (s Stride) ID() string { return fmt.Sprintf("%s_%d", s.Side, s.Number) }

// Start returns the time of the first event of the stride.
func (s Stride) Start() float64 {
	if s.Strike != nil {
		return s.Strike.Time
	}
	if s.Off != nil {
		return s.Off.Time
	}
	return 0
}

// Plate returns the plate shared by the stride's events when it is
// validated, or -1.
func (s Stride) Plate() int {
	if s.State != Validated {
		return -1
	}
	if s.Strike != nil && s.Strike.Plate != nil {
		return *s.Strike.Plate
	}
	if s.Off != nil && s.Off.Plate != nil {
		return *s.Off.Plate
	}
	return -1
}

// Complete reports whether both events are present.
func (s Stride) Complete() bool { return s.Strike != nil && s.Off != nil }

// GroupStrides numbers the events of each side and groups them into strides.
// A strike opens a new stride; the next off on that side closes it. An off
// without a preceding open strike forms a stride of its own (the foot was
// already down when the capture started). Stride numbers restart at zero per
// side. The returned events carry their stride numbers.
func GroupStrides(events []Event) ([]Event, []Stride) {
	out := CloneEvents(events)
	SortEvents(out)

	var strides []Stride
	open := map[Side]int{Left: -1, Right: -1}
	next := map[Side]int{}
	for i := range out {
		e := &out[i]
		switch e.Kind {
		case FootStrike:
			e.Stride = next[e.Side]
			next[e.Side]++
			strides = append(strides, Stride{Side: e.Side, Number: e.Stride})
			open[e.Side] = len(strides) - 1
		case FootOff:
			if k := open[e.Side]; k >= 0 {
				e.Stride = strides[k].Number
				open[e.Side] = -1
			} else {
				e.Stride = next[e.Side]
				next[e.Side]++
				strides = append(strides, Stride{Side: e.Side, Number: e.Stride})
			}
		}
	}
	LinkStrides(out, strides)
	return out, strides
}

// LinkStrides points each stride at its events inside events.
func LinkStrides(events []Event, strides []Stride) {
	index := make(map[string]int, len(strides))
	for i := range strides {
		strides[i].Strike, strides[i].Off = nil, nil
		index[strides[i].ID()] = i
	}
	for i := range events {
		e := &events[i]
		k, ok := index[Stride{Side: e.Side, Number: e.Stride}.ID()]
		if !ok {
			continue
		}
		if e.Kind == FootStrike {
			strides[k].Strike = e
		} else {
			strides[k].Off = e
		}
	}
}

// EventsOf returns the time-ordered events of one side.
func EventsOf(events []Event, side Side) []Event {
	var out []Event
	for _, e := range events {
		if e.Side == side {
			out = append(out, e)
		}
	}
	SortEvents(out)
	return out
}
