package grf

import (
	"fmt"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/plates"
)

// Options collects the thresholds of the transform.
type Options struct {
	ZeroThreshold float64
	ConcatOptions
}

// DefaultOptions returns the reference thresholds.
func DefaultOptions() Options {
	return Options{ZeroThreshold: DefaultZeroThreshold, ConcatOptions: DefaultConcatOptions()}
}

// Result is the output of Build.
type Result struct {
	Table        Table
	MeanCentroid [3]float64
	Interference []Interference
}

// Build runs the plate pipeline over a conditioned analog set: zero the
// non-contact samples, derive force and couple, rotate each plate into the
// laboratory frame, recentre the centre of pressure, concatenate validated
// strides and convert to metres. Rotation onto the walking direction is left
// to the caller, which also rotates the markers.
func Build(a gait.AnalogSet, ps []plates.Plate, strides []gait.Stride, opt Options) (Result, error) {
	raw, err := ExtractRaw(a, len(ps))
	if err != nil {
		return Result{}, err
	}
	loads := make([]Loads, len(raw))
	for i, r := range raw {
		rot, err := ps[i].Rotation()
		if err != nil {
			return Result{}, fmt.Errorf("plate %d rotation: %w", i, err)
		}
		loads[i] = RotateToGlobal(DeriveForceAndCouple(ZeroNonContact(r, opt.ZeroThreshold)), rot)
	}
	loads, mean := RecentreCoP(loads, ps)

	table, issues := Concatenate(a.Time, loads, strides, mean, opt.ConcatOptions)
	monitoring.Logf("[grf] %d plates, %d samples, %d interference reports", len(ps), table.Len(), len(issues))
	return Result{
		Table:        Scale(table),
		MeanCentroid: [3]float64{mean.X, mean.Y, mean.Z},
		Interference: issues,
	}, nil
}
