package cycles

import (
	"fmt"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// Cycle is one stride's slice of a series. Data[i] holds the samples of
// Channels[i].
type Cycle struct {
	Trial    string
	Side     gait.Side
	Stride   int
	Kind     Kind
	Channels []string
	Data     [][]float64
}

// ID is the curation key of the cycle within its trial.
func (c Cycle) ID() string { return gait.Stride{Side: c.Side, Number: c.Stride}.ID() }

// Len returns the number of samples per channel.
func (c Cycle) Len() int {
	if len(c.Data) == 0 {
		return 0
	}
	return len(c.Data[0])
}

// Segment cuts s into cycles running from each foot strike to the next
// strike on the same side: from the sample at or before the first strike up
// to, not including, the first sample at or after the next one. Kinetic and
// force cycles are only cut for strides that passed plate validation. Side
// conventions are applied to the cut data; s is not modified.
func Segment(trial string, kind Kind, s gait.Series, events []gait.Event, strides []gait.Stride) ([]Cycle, error) {
	valid := map[string]bool{}
	for _, st := range strides {
		if st.State == gait.Validated {
			valid[st.ID()] = true
		}
	}

	var out []Cycle
	for _, side := range gait.Sides {
		labels := Channels(kind, side)
		cols := make([][]float64, len(labels))
		for i, l := range labels {
			c, err := s.Column(l)
			if err != nil {
				return nil, fmt.Errorf("%s cycles of %s: %w", kind, trial, err)
			}
			cols[i] = c
		}

		var strikes []gait.Event
		for _, e := range gait.EventsOf(events, side) {
			if e.Kind == gait.FootStrike {
				strikes = append(strikes, e)
			}
		}
		for k := 0; k+1 < len(strikes); k++ {
			cur, next := strikes[k], strikes[k+1]
			if kind.RequiresValidStride() && !valid[gait.Stride{Side: side, Number: cur.Stride}.ID()] {
				continue
			}
			start := s.RowAtOrBefore(cur.Time)
			end := s.RowAtOrAfter(next.Time)
			if start < 0 {
				start = 0
			}
			if end < 0 {
				end = s.Len()
			}
			if end-start < 2 {
				continue
			}
			c := Cycle{
				Trial:    trial,
				Side:     side,
				Stride:   cur.Stride,
				Kind:     kind,
				Channels: append([]string(nil), labels...),
				Data:     make([][]float64, len(labels)),
			}
			for i, col := range cols {
				c.Data[i] = append([]float64(nil), col[start:end]...)
			}
			applyConventions(kind, side, c.Channels, c.Data)
			out = append(out, c)
		}
	}
	return out, nil
}
