package plates

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/markers"
)

// Locate returns the first plate whose bounding rectangle contains (x, y),
// or nil.
func Locate(plates []Plate, x, y float64) *int {
	for _, p := range plates {
		if p.Contains(x, y) {
			idx := p.Index
			return &idx
		}
	}
	return nil
}

// Attribute assigns each event to the plate under the foot. The foot is
// sampled at the marker frame at or immediately before the event: the heel
// for a foot strike, the toe for a foot off (the heel when the toe is
// missing). Events before the first frame or over a marker gap stay
// unassigned. The returned events are new values.
func Attribute(m gait.MarkerSet, events []gait.Event, plates []Plate) []gait.Event {
	out := gait.CloneEvents(events)
	for i := range out {
		e := &out[i]
		e.Plate = nil
		row := m.RowAtOrBefore(e.Time)
		if row < 0 {
			continue
		}
		pos, ok := footPosition(m, row, e.Side, e.Kind)
		if !ok {
			continue
		}
		e.Plate = Locate(plates, pos.X, pos.Y)
	}
	return out
}

func footPosition(m gait.MarkerSet, row int, side gait.Side, kind gait.EventKind) (r3.Vec, bool) {
	labels := []string{markers.Heel(side)}
	if kind == gait.FootOff {
		labels = []string{markers.Toe(side), markers.Heel(side)}
	}
	for _, l := range labels {
		p, err := m.At(row, l)
		if err != nil || !p.Valid {
			continue
		}
		return p.Vec, true
	}
	return r3.Vec{}, false
}

// Issue is a stride rejected by validation.
type Issue struct {
	Stride string
	Rule   string
	Detail string
}

// Validation rules.
const (
	RuleSharedPlate   = "shared-plate"
	RuleContamination = "contamination"
	RuleMissingEvent  = "missing-event"
)

func (i Issue) String() string {
	return fmt.Sprintf("stride %s rejected (%s): %s", i.Stride, i.Rule, i.Detail)
}

// Validate groups attributed events into strides and runs each stride
// through Unassigned -> StrikeLocated -> StrikeOffLocated -> Validated or
// Invalidated.
//
// A complete stride is valid only when its strike and off share a plate.
// A stride cut by the trial boundary is valid when its single event is on a
// plate: a strike with no later event on that side, or an off with no earlier
// one. A single-event stride inside the trial lost an event and is rejected.
// Then, walking plate contacts in time order across both sides, two
// consecutive contacts on the same plate invalidate both strides: the plate
// was loaded twice without the foot leaving another plate in between.
//
// Invalidated strides have the plate cleared on their events. Validate never
// fails; rejected strides are returned as issues.
func Validate(events []gait.Event) ([]gait.Event, []gait.Stride, []Issue) {
	out, strides := gait.GroupStrides(events)
	var issues []Issue

	reject := func(s *gait.Stride, rule, format string, args ...any) {
		if s.State != gait.Invalidated {
			issues = append(issues, Issue{Stride: s.ID(), Rule: rule, Detail: fmt.Sprintf(format, args...)})
		}
		s.State = gait.Invalidated
	}

	last := map[gait.Side]int{}
	for _, s := range strides {
		if s.Number > last[s.Side] {
			last[s.Side] = s.Number
		}
	}

	for i := range strides {
		s := &strides[i]
		s.State = locate(*s)
		switch {
		case s.Complete() && s.State == gait.StrikeOffLocated:
			if *s.Strike.Plate == *s.Off.Plate {
				s.State = gait.Validated
			} else {
				reject(s, RuleSharedPlate, "strike on plate %d, off on plate %d", *s.Strike.Plate, *s.Off.Plate)
			}
		case s.Complete() && (s.Strike.HasPlate() || s.Off.HasPlate()):
			reject(s, RuleSharedPlate, "strike on %s, off on %s", plateName(s.Strike), plateName(s.Off))
		case !s.Complete() && s.State != gait.Unassigned:
			switch {
			case s.Off == nil && s.Number != last[s.Side]:
				reject(s, RuleMissingEvent, "no foot off before the next %s strike", s.Side)
			case s.Strike == nil && s.Number != 0:
				reject(s, RuleMissingEvent, "no foot strike before the %s off", s.Side)
			default:
				s.State = gait.Validated
			}
		}
	}

	// Plate contacts in time order. A stride enters the sequence through its
	// first plated event; rejected strides still count as a contact.
	type contact struct {
		stride int
		plate  int
		time   float64
	}
	var contacts []contact
	for i, s := range strides {
		for _, e := range []*gait.Event{s.Strike, s.Off} {
			if e != nil && e.HasPlate() {
				contacts = append(contacts, contact{stride: i, plate: *e.Plate, time: e.Time})
				break
			}
		}
	}
	sort.SliceStable(contacts, func(a, b int) bool { return contacts[a].time < contacts[b].time })
	for k := 1; k < len(contacts); k++ {
		prev, cur := contacts[k-1], contacts[k]
		if prev.plate != cur.plate {
			continue
		}
		a, b := &strides[prev.stride], &strides[cur.stride]
		reject(a, RuleContamination, "plate %d also loaded by stride %s", prev.plate, b.ID())
		reject(b, RuleContamination, "plate %d also loaded by stride %s", cur.plate, a.ID())
	}

	for _, s := range strides {
		if s.State != gait.Invalidated {
			continue
		}
		if s.Strike != nil {
			s.Strike.Plate = nil
		}
		if s.Off != nil {
			s.Off.Plate = nil
		}
	}
	return out, strides, issues
}

// locate returns the attribution state reached by a stride's events.
func locate(s gait.Stride) gait.StrideState {
	switch {
	case s.Strike != nil && s.Strike.HasPlate() && s.Off != nil && s.Off.HasPlate():
		return gait.StrikeOffLocated
	case s.Strike != nil && s.Strike.HasPlate():
		return gait.StrikeLocated
	case s.Strike == nil && s.Off != nil && s.Off.HasPlate():
		return gait.StrikeOffLocated
	}
	return gait.Unassigned
}

func plateName(e *gait.Event) string {
	if e == nil || !e.HasPlate() {
		return "no plate"
	}
	return fmt.Sprintf("plate %d", *e.Plate)
}
