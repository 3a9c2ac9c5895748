package cycles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// DefaultPoints is the size of the normalised grid: 0 to 100 % inclusive.
const DefaultPoints = 101

// Normalise resamples every channel of c onto points evenly spaced
// positions by linear interpolation over the cycle's own sample index.
func Normalise(c Cycle, points int) (Cycle, error) {
	if points < 2 {
		return Cycle{}, fmt.Errorf("normalise: need at least 2 points, got %d", points)
	}
	n := c.Len()
	if n < 2 {
		return Cycle{}, fmt.Errorf("normalise %s %s: %d samples", c.Trial, c.ID(), n)
	}
	src := make([]float64, n)
	floats.Span(src, 0, 1)
	dst := make([]float64, points)
	floats.Span(dst, 0, 1)

	out := c
	out.Channels = append([]string(nil), c.Channels...)
	out.Data = make([][]float64, len(c.Data))
	for i, ch := range c.Data {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(src, ch); err != nil {
			return Cycle{}, fmt.Errorf("normalise %s %s channel %s: %w", c.Trial, c.ID(), c.Channels[i], err)
		}
		row := make([]float64, points)
		for k, x := range dst {
			row[k] = pl.Predict(x)
		}
		out.Data[i] = row
	}
	return out, nil
}

// Key identifies one cycle across a session.
type Key struct {
	Trial string
	Cycle string
}

func (k Key) String() string { return k.Trial + ":" + k.Cycle }

// ParseKey accepts "trial:Side:stride" (for example "Walk01:Left:2").
func ParseKey(v string) (Key, error) {
	i := strings.LastIndex(v, ":")
	if i <= 0 {
		return Key{}, fmt.Errorf("cycle key %q: want trial:side:stride", v)
	}
	rest, num := v[:i], v[i+1:]
	j := strings.LastIndex(rest, ":")
	if j <= 0 {
		return Key{}, fmt.Errorf("cycle key %q: want trial:side:stride", v)
	}
	side, err := gait.ParseSide(rest[j+1:])
	if err != nil {
		return Key{}, fmt.Errorf("cycle key %q: %w", v, err)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return Key{}, fmt.Errorf("cycle key %q: bad stride number %q", v, num)
	}
	return Key{Trial: rest[:j], Cycle: gait.Stride{Side: side, Number: n}.ID()}, nil
}

// KeyOf returns the key of c.
func KeyOf(c Cycle) Key { return Key{Trial: c.Trial, Cycle: c.ID()} }

// ExclusionSet holds cycles removed by the user from normalised outputs.
type ExclusionSet map[Key]struct{}

// NewExclusionSet builds a set from keys.
func NewExclusionSet(keys ...Key) ExclusionSet {
	s := ExclusionSet{}
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Contains reports whether c is excluded. A nil set excludes nothing.
func (s ExclusionSet) Contains(c Cycle) bool {
	_, ok := s[KeyOf(c)]
	return ok
}

// Keys returns the excluded keys in order.
func (s ExclusionSet) Keys() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Filter drops excluded cycles.
func (s ExclusionSet) Filter(cs []Cycle) []Cycle {
	var out []Cycle
	for _, c := range cs {
		if !s.Contains(c) {
			out = append(out, c)
		}
	}
	return out
}

// Average returns the pointwise mean of normalised cycles of one kind and
// side. All cycles must share the channel layout and grid size.
func Average(cs []Cycle) (Cycle, error) {
	if len(cs) == 0 {
		return Cycle{}, fmt.Errorf("average: no cycles")
	}
	first := cs[0]
	out := Cycle{
		Trial:    "mean",
		Side:     first.Side,
		Stride:   -1,
		Kind:     first.Kind,
		Channels: append([]string(nil), first.Channels...),
		Data:     make([][]float64, len(first.Data)),
	}
	for i := range first.Data {
		out.Data[i] = make([]float64, len(first.Data[i]))
	}
	for _, c := range cs {
		if len(c.Data) != len(out.Data) || c.Len() != first.Len() || c.Side != first.Side || c.Kind != first.Kind {
			return Cycle{}, fmt.Errorf("average: cycle %s of %s does not match layout", c.ID(), c.Trial)
		}
		for i := range c.Data {
			floats.Add(out.Data[i], c.Data[i])
		}
	}
	for i := range out.Data {
		floats.Scale(1/float64(len(cs)), out.Data[i])
	}
	return out, nil
}

// Collection gathers normalised cycles of a session.
type Collection struct {
	Points int
	cycles map[Kind][]Cycle
}

// NewCollection returns an empty collection on a grid of points.
func NewCollection(points int) *Collection {
	if points <= 0 {
		points = DefaultPoints
	}
	return &Collection{Points: points, cycles: map[Kind][]Cycle{}}
}

// Add normalises and stores cycles.
func (c *Collection) Add(cs ...Cycle) error {
	for _, cy := range cs {
		n, err := Normalise(cy, c.Points)
		if err != nil {
			return err
		}
		c.cycles[n.Kind] = append(c.cycles[n.Kind], n)
	}
	return nil
}

// Cycles returns the stored cycles of kind, ordered by side, trial and
// stride, with excluded cycles removed.
func (c *Collection) Cycles(kind Kind, exclude ExclusionSet) []Cycle {
	out := exclude.Filter(c.cycles[kind])
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		if a.Trial != b.Trial {
			return a.Trial < b.Trial
		}
		return a.Stride < b.Stride
	})
	return out
}

// Mean averages the kept cycles of kind for one side. ok is false when no
// cycle remains.
func (c *Collection) Mean(kind Kind, side gait.Side, exclude ExclusionSet) (Cycle, bool) {
	var cs []Cycle
	for _, cy := range c.Cycles(kind, exclude) {
		if cy.Side == side {
			cs = append(cs, cy)
		}
	}
	if len(cs) == 0 {
		return Cycle{}, false
	}
	m, err := Average(cs)
	if err != nil {
		return Cycle{}, false
	}
	return m, true
}
