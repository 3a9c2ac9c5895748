package osim

import (
	"context"
	"fmt"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/signal"
)

// Request names the inputs and outputs of a full solver pass over a trial.
type Request struct {
	Trial         string
	Model         string
	MarkerFile    string
	ExternalLoads string
	IKOutput      string
	IDOutput      string
	TimeRange     [2]float64
	// Rate is the marker rate the solver outputs are sampled at; Cutoff
	// is the low-pass applied to both outputs.
	Rate   float64
	Cutoff float64
	MassKG float64
}

// Result holds the filtered joint coordinates and the mass-normalised
// joint moments and powers.
type Result struct {
	Kinematics gait.Series
	Kinetics   gait.Series
}

// Analyse runs inverse kinematics then inverse dynamics, filters both
// outputs, derives joint powers and divides the kinetics by body mass.
func Analyse(ctx context.Context, s Solver, req Request) (Result, error) {
	ik, err := s.InverseKinematics(ctx, IKRequest{
		Trial:      req.Trial,
		Model:      req.Model,
		MarkerFile: req.MarkerFile,
		Output:     req.IKOutput,
		TimeRange:  req.TimeRange,
	})
	if err != nil {
		return Result{}, err
	}
	if ik.Len() == 0 {
		return Result{}, fmt.Errorf("inverse kinematics %s: empty output", req.Trial)
	}
	if ik, err = signal.FilterSeries(ik, req.Rate, req.Cutoff); err != nil {
		return Result{}, fmt.Errorf("filter kinematics: %w", err)
	}

	id, err := s.InverseDynamics(ctx, IDRequest{
		Trial:         req.Trial,
		Model:         req.Model,
		Coordinates:   req.IKOutput,
		ExternalLoads: req.ExternalLoads,
		Output:        req.IDOutput,
		TimeRange:     [2]float64{ik.Time[0], ik.Time[ik.Len()-1]},
	})
	if err != nil {
		return Result{}, err
	}
	if id, err = signal.FilterSeries(id, req.Rate, req.Cutoff); err != nil {
		return Result{}, fmt.Errorf("filter kinetics: %w", err)
	}
	if err := JointPowers(ik, &id); err != nil {
		return Result{}, err
	}
	if id, err = MassNormalise(id, req.MassKG); err != nil {
		return Result{}, err
	}
	return Result{Kinematics: ik, Kinetics: id}, nil
}
