package spatiotemporal

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/gaitlab/internal/units"
)

// Metric names as they appear in the session table.
const (
	StrideLength         = "Stride Length (m)"
	StepLengthLeft       = "Step Length - Left (m)"
	StepLengthRight      = "Step Length - Right (m)"
	StepWidth            = "Step Width (m)"
	StancePct            = "Stance Phase %"
	SwingPct             = "Swing Phase %"
	SingleSupportPct     = "Single Support Phase %"
	DoubleSupportPct     = "Double Support Phase %"
	Speed                = "Gait Speed (m/s)"
	Cadence              = "Cadence (steps/min)"
	FootProgressionLeft  = "Foot Progression - Left (deg)"
	FootProgressionRight = "Foot Progression - Right (deg)"

	StrideLengthNorm    = "Stride Length (leg lengths)"
	StepLengthLeftNorm  = "Step Length - Left (leg lengths)"
	StepLengthRightNorm = "Step Length - Right (leg lengths)"
	StepWidthNorm       = "Step Width (leg lengths)"
	SpeedNorm           = "Gait Speed (leg lengths/s)"
	SpeedFroude         = "Gait Speed (Froude)"
)

// MetricOrder is the row order of the session table.
var MetricOrder = []string{
	StrideLength, StepLengthLeft, StepLengthRight, StepWidth,
	StancePct, SwingPct, SingleSupportPct, DoubleSupportPct,
	Speed, Cadence, FootProgressionLeft, FootProgressionRight,
	StrideLengthNorm, StepLengthLeftNorm, StepLengthRightNorm, StepWidthNorm,
	SpeedNorm, SpeedFroude,
}

// Summary holds a trial's averaged metrics. Metrics that could not be
// measured are absent rather than zero.
type Summary struct {
	Trial      string
	Values     map[string]float64
	LegLengthM float64
}

func (s *Summary) set(name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if s.Values == nil {
		s.Values = map[string]float64{}
	}
	s.Values[name] = v
}

// Get returns a metric and whether it is present.
func (s Summary) Get(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// normalise adds the leg-length normalised metrics.
func (s *Summary) normalise(legM float64) {
	s.LegLengthM = legM
	for src, dst := range map[string]string{
		StrideLength:    StrideLengthNorm,
		StepLengthLeft:  StepLengthLeftNorm,
		StepLengthRight: StepLengthRightNorm,
		StepWidth:       StepWidthNorm,
		Speed:           SpeedNorm,
	} {
		if v, ok := s.Get(src); ok {
			s.set(dst, v/legM)
		}
	}
	if v, ok := s.Get(Speed); ok {
		s.set(SpeedFroude, units.FroudeSpeed(v, legM))
	}
}

// Table is the session-level spatiotemporal table: one column per trial and
// a trailing Average column.
type Table struct {
	Trials []Summary
}

// Rows returns the metric names present in at least one trial, in
// MetricOrder.
func (t Table) Rows() []string {
	var out []string
	for _, name := range MetricOrder {
		for _, s := range t.Trials {
			if _, ok := s.Get(name); ok {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// Average is the mean of a metric over the trials that have it.
func (t Table) Average(name string) (float64, bool) {
	var sum float64
	var n int
	for _, s := range t.Trials {
		if v, ok := s.Get(name); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// WriteCSV writes the table with values rounded to three decimals. Cells of
// metrics a trial lacks are empty.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{""}
	for _, s := range t.Trials {
		header = append(header, s.Trial)
	}
	header = append(header, "Average")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write spatiotemporal header: %w", err)
	}
	for _, name := range t.Rows() {
		row := []string{name}
		for _, s := range t.Trials {
			row = append(row, cell(s.Get(name)))
		}
		row = append(row, cell(t.Average(name)))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write spatiotemporal row %q: %w", name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.3f", v)
}
