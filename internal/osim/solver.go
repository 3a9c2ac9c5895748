package osim

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/monitoring"
)

// DefaultCommand is the solver's command-line tool.
const DefaultCommand = "opensim-cmd"

// DefaultIDCutoff is the low-pass cut-off the solver applies to
// coordinates before computing joint moments.
const DefaultIDCutoff = 6.0

// IKRequest describes an inverse kinematics run.
type IKRequest struct {
	Trial      string
	Model      string
	MarkerFile string
	Output     string
	TimeRange  [2]float64
}

// IDRequest describes an inverse dynamics run over the coordinates produced
// by inverse kinematics.
type IDRequest struct {
	Trial         string
	Model         string
	Coordinates   string
	ExternalLoads string
	Output        string
	TimeRange     [2]float64
}

// Solver computes joint coordinates and joint moments for a trial.
type Solver interface {
	InverseKinematics(ctx context.Context, req IKRequest) (gait.Series, error)
	InverseDynamics(ctx context.Context, req IDRequest) (gait.Series, error)
}

// Executor runs solver commands on the local host.
type Executor struct {
	DryRun bool
	run    func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewExecutor creates an executor backed by os/exec.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{DryRun: dryRun, run: runLocal}
}

func runLocal(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Run executes name with args and returns its combined output.
func (e *Executor) Run(ctx context.Context, name string, args ...string) (string, error) {
	line := name + " " + strings.Join(args, " ")
	if e.DryRun {
		return "[DRY-RUN] Would execute: " + line, nil
	}
	monitoring.Logf("[osim] executing: %s", line)
	run := e.run
	if run == nil {
		run = runLocal
	}
	out, err := run(ctx, name, args...)
	if err != nil {
		return string(out), fmt.Errorf("%s: %w: %s", line, err, tail(string(out), 512))
	}
	return string(out), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// CommandSolver runs the solver's "run-tool" subcommand on generated setup
// documents and reads back the storage files it writes.
type CommandSolver struct {
	Command  string
	TaskSet  string
	IDCutoff float64
	Exec     *Executor
}

// NewCommandSolver returns a solver invoking command. taskSet is the
// marker weighting file used by inverse kinematics; empty uses the model's
// markers unweighted.
func NewCommandSolver(command, taskSet string) *CommandSolver {
	if command == "" {
		command = DefaultCommand
	}
	return &CommandSolver{Command: command, TaskSet: taskSet, IDCutoff: DefaultIDCutoff, Exec: NewExecutor(false)}
}

// InverseKinematics writes "<output>.setup.xml", runs it and reads the
// motion file.
func (s *CommandSolver) InverseKinematics(ctx context.Context, req IKRequest) (gait.Series, error) {
	tool := &InverseKinematicsTool{
		Name:             req.Trial,
		ResultsDirectory: filepath.Dir(req.Output),
		ModelFile:        req.Model,
		ConstraintWeight: "Inf",
		Accuracy:         1e-5,
		MarkerFile:       req.MarkerFile,
		CoordinateFile:   "Unassigned",
		TimeRange:        timeRange(req.TimeRange),
		OutputMotionFile: req.Output,
	}
	if s.TaskSet != "" {
		tool.TaskSet = &FileRef{File: s.TaskSet}
	}
	if err := s.runTool(ctx, req.Output, Document{IK: tool}); err != nil {
		return gait.Series{}, fmt.Errorf("inverse kinematics %s: %w", req.Trial, err)
	}
	return ReadStorageFile(req.Output)
}

// InverseDynamics writes the external-loads binding and the tool setup
// beside the output, runs the tool and reads the generalised forces. The
// external-loads document is removed afterwards.
func (s *CommandSolver) InverseDynamics(ctx context.Context, req IDRequest) (gait.Series, error) {
	dir := filepath.Dir(req.Output)
	loads := filepath.Join(dir, req.Trial+"_external_loads.xml")
	el := NewExternalLoads(req.ExternalLoads)
	if err := writeDocument(loads, Document{ExternalLoads: &el}); err != nil {
		return gait.Series{}, err
	}
	defer os.Remove(loads)

	tool := &InverseDynamicsTool{
		Name:              req.Trial,
		ResultsDirectory:  dir,
		ModelFile:         req.Model,
		TimeRange:         timeRange(req.TimeRange),
		ForcesToExclude:   "Muscles",
		ExternalLoadsFile: loads,
		CoordinatesFile:   req.Coordinates,
		LowpassCutoff:     s.IDCutoff,
		OutputGenForce:    filepath.Base(req.Output),
	}
	if err := s.runTool(ctx, req.Output, Document{ID: tool}); err != nil {
		return gait.Series{}, fmt.Errorf("inverse dynamics %s: %w", req.Trial, err)
	}
	return ReadStorageFile(req.Output)
}

func (s *CommandSolver) runTool(ctx context.Context, output string, doc Document) error {
	setup := strings.TrimSuffix(output, filepath.Ext(output)) + ".setup.xml"
	if err := writeDocument(setup, doc); err != nil {
		return err
	}
	ex := s.Exec
	if ex == nil {
		ex = NewExecutor(false)
	}
	_, err := ex.Run(ctx, s.Command, "run-tool", setup)
	return err
}

func writeDocument(path string, doc Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create setup: %w", err)
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
