// Package grf turns raw force-plate channels into the external-loads table
// consumed by the musculoskeletal solver: per-plate force and couple
// derivation, rotation into the laboratory frame, concatenation of the
// validated strides into one fixed two-foot layout, and alignment with the
// walking direction.
package grf

import (
	"fmt"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// SchemaVersion identifies the column layout written to external-loads
// files.
const SchemaVersion = 1

// Quantity is one of the three triplets of a load block.
type Quantity int

const (
	Force Quantity = iota
	Position
	Torque
)

func (q Quantity) String() string {
	switch q {
	case Position:
		return "position"
	case Torque:
		return "torque"
	}
	return "force"
}

// Axis is a vector component.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string { return [...]string{"x", "y", "z"}[a] }

// Channel names one data column of the table: a quantity and axis inside the
// block of one side.
type Channel struct {
	Side     gait.Side
	Quantity Quantity
	Axis     Axis
}

// Layout constants. Column 0 is time; the two blocks follow in side order.
const (
	BlockWidth  = 9
	NumChannels = 2 * BlockWidth
	NumColumns  = NumChannels + 1
)

// Index is the channel's position among the data channels (time excluded).
func (c Channel) Index() int {
	return BlockWidth*int(c.Side) + 3*int(c.Quantity) + int(c.Axis)
}

// Column is the channel's position in the written file (time is column 0).
func (c Channel) Column() int { return c.Index() + 1 }

// Label is the column name the solver binds external loads by.
func (c Channel) Label() string {
	prefix := ""
	if c.Side == gait.Right {
		prefix = "1_"
	}
	switch c.Quantity {
	case Force:
		return fmt.Sprintf("%sground_force_v%s", prefix, c.Axis)
	case Position:
		return fmt.Sprintf("%sground_force_p%s", prefix, c.Axis)
	}
	return fmt.Sprintf("%sground_torque_%s", prefix, c.Axis)
}

// Channels lists all data channels in column order.
func Channels() []Channel {
	out := make([]Channel, 0, NumChannels)
	for _, s := range gait.Sides {
		for q := Force; q <= Torque; q++ {
			for a := X; a <= Z; a++ {
				out = append(out, Channel{Side: s, Quantity: q, Axis: a})
			}
		}
	}
	return out
}

// Labels returns the full header row, time first.
func Labels() []string {
	out := []string{"time"}
	for _, c := range Channels() {
		out = append(out, c.Label())
	}
	return out
}

// ChannelByLabel resolves a column name.
func ChannelByLabel(label string) (Channel, bool) {
	for _, c := range Channels() {
		if c.Label() == label {
			return c, true
		}
	}
	return Channel{}, false
}

// Table is the concatenated external-loads series.
type Table struct {
	Time []float64
	Data [NumChannels][]float64
}

// NewTable allocates a zeroed table over time.
func NewTable(time []float64) Table {
	t := Table{Time: append([]float64(nil), time...)}
	for i := range t.Data {
		t.Data[i] = make([]float64, len(time))
	}
	return t
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Time) }

// Get returns the series of one channel.
func (t Table) Get(c Channel) []float64 { return t.Data[c.Index()] }

// Column returns the samples of a column by label, time included.
func (t Table) Column(label string) ([]float64, bool) {
	if label == "time" {
		return t.Time, true
	}
	c, ok := ChannelByLabel(label)
	if !ok {
		return nil, false
	}
	return t.Get(c), true
}

// Clone deep-copies the table.
func (t Table) Clone() Table {
	out := Table{Time: append([]float64(nil), t.Time...)}
	for i := range t.Data {
		out.Data[i] = append([]float64(nil), t.Data[i]...)
	}
	return out
}

// Row returns one row in column order, time first.
func (t Table) Row(i int) []float64 {
	row := make([]float64, 0, NumColumns)
	row = append(row, t.Time[i])
	for c := range t.Data {
		row = append(row, t.Data[c][i])
	}
	return row
}

// Series exposes the table as named channels.
func (t Table) Series() gait.Series {
	s := gait.Series{Time: append([]float64(nil), t.Time...)}
	for _, c := range Channels() {
		s.Labels = append(s.Labels, c.Label())
		s.Columns = append(s.Columns, append([]float64(nil), t.Get(c)...))
	}
	return s
}
