// Package session runs the pipeline over every capture of a session:
// each trial is processed in isolation and a failing trial never stops
// the others; the normalised tables, spatiotemporal summary and report
// are written once all trials are done.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/gaitlab/internal/capture"
	"github.com/banshee-data/gaitlab/internal/config"
	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/db"
	"github.com/banshee-data/gaitlab/internal/fsutil"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/osim"
	"github.com/banshee-data/gaitlab/internal/spatiotemporal"
	"github.com/banshee-data/gaitlab/internal/version"
)

// Options configures a session run.
type Options struct {
	InputDir  string
	OutputDir string
	Lab       config.Lab
	// Source decodes captures; nil reads JSON bundles through FS.
	Source capture.Source
	// FS receives every output; nil writes to the OS filesystem.
	FS fsutil.FileSystem
	// Store records the run when set.
	Store *db.DB
	// Solver and Model enable inverse kinematics and dynamics.
	Solver osim.Solver
	Model  string
	// Exclude removes cycles from the normalised outputs, on top of the
	// exclusions held in Store.
	Exclude cycles.ExclusionSet
	// Report adds PNG figures and an HTML overview.
	Report bool
	// Progress is called after each trial.
	Progress func(Progress)
}

// Progress reports one finished trial.
type Progress struct {
	Index int
	Total int
	Trial TrialResult
}

// TrialResult is the outcome of one capture.
type TrialResult struct {
	Name     string
	Path     string
	Kind     gait.TrialKind
	Err      error
	Warnings []monitoring.Warning
	Files    []string

	Frames      int
	First, Last int
	Events      []gait.Event
	Strides     []gait.Stride
	Records     []spatiotemporal.Record
	Summary     *spatiotemporal.Summary
	Cycles      []cycles.Cycle
	SolverError error
}

// OK reports whether the trial completed.
func (r TrialResult) OK() bool { return r.Err == nil }

// Result is the outcome of a session.
type Result struct {
	RunID  string
	Trials []TrialResult
	// Files are the session-level outputs.
	Files []string
}

// Succeeded counts trials that completed.
func (r Result) Succeeded() int {
	n := 0
	for _, t := range r.Trials {
		if t.OK() {
			n++
		}
	}
	return n
}

// Failed returns the failed trials.
func (r Result) Failed() []TrialResult {
	var out []TrialResult
	for _, t := range r.Trials {
		if !t.OK() {
			out = append(out, t)
		}
	}
	return out
}

// Run processes the captures at paths in order. Cancelling ctx stops the
// session between trials; the trials finished so far are still
// summarised and the context error is returned.
func Run(ctx context.Context, paths []string, opt Options) (Result, error) {
	if opt.FS == nil {
		opt.FS = fsutil.OSFileSystem{}
	}
	if opt.Source == nil {
		opt.Source = capture.NewBundleSource(opt.FS)
	}
	if err := opt.FS.MkdirAll(opt.OutputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create output dir: %w", err)
	}

	var res Result
	if opt.Store != nil {
		runID, err := startRun(opt)
		if err != nil {
			return Result{}, err
		}
		res.RunID = runID
	}

	col := cycles.NewCollection(opt.Lab.Pipeline().GetCyclePoints())
	var runErr error
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("[session] cancelled before %s: %v", path, err)
			runErr = err
			break
		}
		tr := processTrial(ctx, path, opt)
		if tr.OK() {
			if err := col.Add(tr.Cycles...); err != nil {
				tr.Warnings = append(tr.Warnings, monitoring.Warning{Trial: tr.Name, Stage: "cycles", Message: err.Error()})
			}
		}
		if opt.Store != nil {
			if err := record(opt.Store, res.RunID, tr); err != nil {
				monitoring.Logf("[session] %s: store: %v", tr.Name, err)
			}
		}
		res.Trials = append(res.Trials, tr)
		if opt.Progress != nil {
			opt.Progress(Progress{Index: i, Total: len(paths), Trial: tr})
		}
	}

	files, err := writeSession(opt, res.Trials, col)
	res.Files = files
	if err != nil && runErr == nil {
		runErr = err
	}
	if err := fsutil.Cleanup(opt.FS, opt.OutputDir); err != nil {
		monitoring.Logf("[session] staging cleanup: %v", err)
	}
	if opt.Store != nil {
		if err := opt.Store.FinishRun(res.RunID, time.Now()); err != nil {
			monitoring.Logf("[session] %v", err)
		}
	}
	monitoring.Logf("[session] %d of %d trials processed", res.Succeeded(), len(res.Trials))
	return res, runErr
}

func startRun(opt Options) (string, error) {
	cfg, err := json.Marshal(opt.Lab.Pipeline().Resolved())
	if err != nil {
		return "", fmt.Errorf("encode pipeline config: %w", err)
	}
	run := &db.Run{
		Version:    version.Version,
		GitSHA:     version.GitSHA,
		Lab:        opt.Lab.Name(),
		InputDir:   opt.InputDir,
		OutputDir:  opt.OutputDir,
		ConfigJSON: string(cfg),
	}
	if err := opt.Store.CreateRun(run); err != nil {
		return "", err
	}
	return run.ID, nil
}

func record(store *db.DB, runID string, tr TrialResult) error {
	rec := db.TrialRecord{
		RunID:  runID,
		Trial:  tr.Name,
		Kind:   tr.Kind.String(),
		Status: db.StatusOK,
		Frames: tr.Frames,
	}
	if tr.Frames > 0 {
		rec.FirstFrame, rec.LastFrame = &tr.First, &tr.Last
	}
	if tr.Err != nil {
		rec.Status = db.StatusFailed
		rec.FailureKind = gait.KindName(tr.Err)
		rec.Failure = tr.Err.Error()
	}
	if err := store.RecordTrial(rec); err != nil {
		return err
	}
	if err := store.RecordWarnings(runID, tr.Warnings); err != nil {
		return err
	}
	if tr.Err != nil {
		return nil
	}
	if len(tr.Events) > 0 {
		if err := store.RecordEvents(runID, tr.Name, tr.Events, tr.Strides); err != nil {
			return err
		}
	}
	if len(tr.Records) > 0 {
		return store.RecordSpatiotemporal(runID, tr.Name, tr.Records)
	}
	return nil
}
