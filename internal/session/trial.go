package session

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/gaitlab/internal/capture"
	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/fsutil"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/grf"
	"github.com/banshee-data/gaitlab/internal/markers"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/osim"
	"github.com/banshee-data/gaitlab/internal/plates"
	"github.com/banshee-data/gaitlab/internal/report"
	"github.com/banshee-data/gaitlab/internal/signal"
	"github.com/banshee-data/gaitlab/internal/spatiotemporal"
	"github.com/banshee-data/gaitlab/internal/trc"
)

// Stage names used on warnings.
const (
	stageHarmonise   = "harmonise"
	stageTrim        = "trim"
	stageAttribution = "attribution"
	stageGRF         = "grf"
	stageSolver      = "solver"
	stageCycles      = "cycles"
)

// trialRun carries one trial through the stages.
type trialRun struct {
	opt      Options
	rec      capture.Recording
	trial    gait.Trial
	warnings *monitoring.Warnings
	stage    *fsutil.Staging
	res      *TrialResult

	plates []plates.Plate
	loads  grf.Table
}

// processTrial runs one capture. Any failure leaves no files behind and is
// returned on the result, classified by kind.
func processTrial(ctx context.Context, path string, opt Options) (res TrialResult) {
	res = TrialResult{Path: path, Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}
	var tr *trialRun
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
		if tr != nil {
			res.Warnings = tr.warnings.Items()
			if res.Err != nil && tr.stage != nil {
				if err := tr.stage.Rollback(); err != nil {
					monitoring.Logf("[session] %s: rollback: %v", res.Name, err)
				}
			}
		}
		if res.Err != nil {
			res.Err = gait.NewTrialError(res.Name, res.Err)
			res.Files, res.Cycles, res.Records, res.Summary = nil, nil, nil, nil
			monitoring.Logf("[session] %s failed (%s): %v", res.Name, gait.KindName(res.Err), res.Err)
		}
	}()

	rec, err := opt.Source.Load(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Name = rec.Name
	tr = &trialRun{opt: opt, rec: rec, warnings: monitoring.NewWarnings(rec.Name), res: &res}
	res.Err = tr.run(ctx)
	return res
}

func (tr *trialRun) run(ctx context.Context) error {
	cfg := tr.opt.Lab.Pipeline()
	trial, err := tr.rec.Trial()
	if err != nil {
		return err
	}
	trial.Kind = tr.rec.Kind(cfg.GetDynamicMinFrames())
	tr.res.Kind = trial.Kind

	// harmonise then trim at the native rate
	harmonised, err := markers.Harmonise(trial.Markers, tr.opt.Lab.Markers())
	if err != nil {
		return err
	}
	if err := markers.RequireMarkers(harmonised); err != nil {
		return err
	}
	if dropped := len(trial.Markers.Labels) - len(harmonised.Labels); dropped > 0 {
		tr.warnings.Addf(stageHarmonise, "%d unmapped marker columns dropped", dropped)
	}
	trimmed, err := markers.Trim(harmonised, cfg.GetTrimTolerance(), cfg.GetIncompleteFraction())
	if err != nil {
		return err
	}
	if n := len(trimmed.Incomplete); n > 0 {
		tr.warnings.Addf(stageTrim, "%d frames inside [%d,%d] still have gaps", n, trimmed.First, trimmed.Last)
	}
	trial.Markers = trimmed.Markers
	tr.res.Frames, tr.res.First, tr.res.Last = trimmed.Markers.Len(), trimmed.First, trimmed.Last

	if trial.IsDynamic() {
		if trial.Analog, err = tr.rec.ExtractAnalog(trimmed.First, trimmed.Last); err != nil {
			return err
		}
		if trial.Events, err = tr.rec.ExtractEvents(trimmed.First, trimmed.Last); err != nil {
			return err
		}
		if tr.plates, err = tr.rec.ForcePlates(); err != nil {
			return gait.MissingSignalf("%v", err)
		}
	}

	if err := signal.Condition(&trial, cfg.GetMarkerCutoff(), cfg.GetMarkerRate(), cfg.GetAnalogRate()); err != nil {
		return err
	}
	tr.trial = trial

	if tr.stage, err = fsutil.NewStaging(tr.opt.FS, tr.opt.OutputDir, trial.Name); err != nil {
		return err
	}
	if trial.IsDynamic() {
		if err := tr.dynamic(ctx); err != nil {
			return err
		}
	}
	if err := tr.writeMarkers(); err != nil {
		return err
	}
	if trial.IsDynamic() && tr.opt.Solver != nil && tr.opt.Model != "" {
		tr.solve(ctx)
	}

	files, err := tr.stage.Commit()
	if err != nil {
		return err
	}
	tr.res.Files = files
	return nil
}

// dynamic attributes events, builds and rotates the external loads, and
// computes cycles and spatiotemporal metrics from markers and loads.
func (tr *trialRun) dynamic(ctx context.Context) error {
	cfg := tr.opt.Lab.Pipeline()
	t := &tr.trial

	attributed := plates.Attribute(t.Markers, t.Events, tr.plates)
	events, strides, issues := plates.Validate(attributed)
	for _, is := range issues {
		tr.warnings.Addf(stageAttribution, "%s", is)
	}
	t.Events = events
	tr.res.Events, tr.res.Strides = events, strides

	built, err := grf.Build(t.Analog, tr.plates, strides, grf.Options{
		ZeroThreshold: cfg.GetZeroThreshold(),
		ConcatOptions: grf.ConcatOptions{
			ContactThreshold:   cfg.GetContactThreshold(),
			InterferenceWindow: cfg.GetInterferenceWindow(),
		},
	})
	if err != nil {
		return err
	}
	for _, i := range built.Interference {
		tr.warnings.Addf(stageGRF, "%s", i)
	}

	rot, err := grf.GlobalRotation(t.Markers)
	if err != nil {
		return err
	}
	if !plates.IsIdentity(rot) {
		monitoring.Logf("[session] %s: rotating onto the walking direction", t.Name)
	}
	t.Markers = grf.RotateMarkers(t.Markers, rot)
	tr.loads = grf.RotateTable(built.Table, rot)

	var buf bytes.Buffer
	if err := grf.WriteMot(&buf, t.Name+"_grf", tr.loads); err != nil {
		return err
	}
	if err := tr.stage.WriteFile(t.Name+"_grf.mot", buf.Bytes()); err != nil {
		return err
	}
	if tr.opt.Report {
		buf.Reset()
		if err := report.PlotForces(&buf, t.Name, tr.loads); err != nil {
			return err
		}
		if err := tr.stage.WriteFile(t.Name+"_grf.png", buf.Bytes()); err != nil {
			return err
		}
	}

	series := tr.loads.Series()
	for _, kind := range []cycles.Kind{cycles.GRF, cycles.Torque} {
		cs, err := cycles.Segment(t.Name, kind, series, events, strides)
		if err != nil {
			return err
		}
		tr.res.Cycles = append(tr.res.Cycles, cs...)
	}

	records, summary := spatiotemporal.Compute(t.Name, t.Markers, events, t.Subject.LegLengthMM())
	tr.res.Records, tr.res.Summary = records, &summary
	return ctx.Err()
}

func (tr *trialRun) writeMarkers() error {
	w, err := tr.stage.Create(tr.trial.Name + ".trc")
	if err != nil {
		return err
	}
	if err := trc.Write(w, tr.trial.Name+".trc", tr.trial.Markers); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// solve runs the solver. A solver failure is a warning: the marker and
// force outputs of the trial stand on their own.
func (tr *trialRun) solve(ctx context.Context) {
	t := tr.trial
	dir := tr.stage.Dir()
	ikName, idName := t.Name+"_ik.mot", t.Name+"_id.sto"
	out, err := osim.Analyse(ctx, tr.opt.Solver, osim.Request{
		Trial:         t.Name,
		Model:         tr.opt.Model,
		MarkerFile:    filepath.Join(dir, t.Name+".trc"),
		ExternalLoads: filepath.Join(dir, t.Name+"_grf.mot"),
		IKOutput:      filepath.Join(dir, ikName),
		IDOutput:      filepath.Join(dir, idName),
		TimeRange:     [2]float64{t.Markers.Time[0], t.Markers.Time[t.Markers.Len()-1]},
		Rate:          t.PointRate,
		Cutoff:        tr.opt.Lab.Pipeline().GetSolverCutoff(),
		MassKG:        t.Subject.MassKG,
	})
	if err != nil {
		tr.res.SolverError = err
		tr.warnings.Addf(stageSolver, "%v", err)
		return
	}
	for _, name := range []string{ikName, idName} {
		if err := tr.stage.Adopt(name); err != nil {
			tr.warnings.Addf(stageSolver, "%v", err)
		}
	}
	outputs := []struct {
		kind   cycles.Kind
		series gait.Series
	}{
		{cycles.Kinematics, out.Kinematics},
		{cycles.Kinetics, out.Kinetics},
	}
	for _, o := range outputs {
		cs, err := cycles.Segment(t.Name, o.kind, o.series, tr.res.Events, tr.res.Strides)
		if err != nil {
			tr.warnings.Addf(stageCycles, "%v", err)
			continue
		}
		tr.res.Cycles = append(tr.res.Cycles, cs...)
	}
}
