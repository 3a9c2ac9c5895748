// Command gait processes a directory of gait-lab captures into filtered
// marker files, external loads, normalised gait cycles and spatiotemporal
// tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/banshee-data/gaitlab/internal/config"
	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/db"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/osim"
	"github.com/banshee-data/gaitlab/internal/session"
	"github.com/banshee-data/gaitlab/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitAllFail = 1
	exitUsage   = 2
	defaultOut  = "processed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// keyList collects repeated -exclude flags.
type keyList []cycles.Key

func (k *keyList) String() string {
	parts := make([]string, len(*k))
	for i, key := range *k {
		parts[i] = keyArg(key)
	}
	return strings.Join(parts, ",")
}

func (k *keyList) Set(v string) error {
	key, err := cycles.ParseKey(v)
	if err != nil {
		return err
	}
	*k = append(*k, key)
	return nil
}

type options struct {
	input, output string
	labs, lab     string
	config        string
	dbPath        string
	exclude       keyList
	solver        string
	model         string
	tasks         string
	noSolver      bool
	report        bool
	version       bool
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet("gait", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "input", "", "directory of capture bundles (required)")
	fs.StringVar(&o.output, "output", "", "output directory (default <input>/"+defaultOut+")")
	fs.StringVar(&o.labs, "labs", "labs", "directory of lab marker maps")
	fs.StringVar(&o.lab, "lab", "", "lab marker map name (default: the only map in -labs)")
	fs.StringVar(&o.config, "config", "", "pipeline config JSON (default: built-in values)")
	fs.StringVar(&o.dbPath, "db", "", "sqlite store recording the run (optional)")
	fs.Var(&o.exclude, "exclude", "exclude a cycle, as trial:side:stride (repeatable)")
	fs.StringVar(&o.solver, "solver", osim.DefaultCommand, "musculoskeletal solver command")
	fs.StringVar(&o.model, "model", "", "scaled model file; the solver runs only when set")
	fs.StringVar(&o.tasks, "ik-tasks", "", "inverse kinematics marker weighting file")
	fs.BoolVar(&o.noSolver, "no-solver", false, "skip inverse kinematics and dynamics")
	fs.BoolVar(&o.report, "report", false, "write PNG figures and an HTML overview")
	fs.BoolVar(&o.version, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, `gait - gait-lab capture processing

Usage:
  gait -input DIR [options]
  gait migrate <up|down|status|version|force N|help> [-db FILE]
  gait exclusions [-db FILE] [-remove] [-reason TEXT] [trial:side:stride ...]

Options:
`)
		fs.PrintDefaults()
	}
	return fs, o
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "migrate":
			return runMigrate(args[1:], stdout, stderr)
		case "exclusions":
			return runExclusions(args[1:], stdout, stderr)
		}
	}

	fs, o := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if o.version {
		fmt.Fprintf(stdout, "gait %s\n", version.String())
		return exitOK
	}
	if o.input == "" {
		fmt.Fprintln(stderr, "gait: -input is required")
		fs.Usage()
		return exitUsage
	}
	if o.output == "" {
		o.output = filepath.Join(o.input, defaultOut)
	}

	opt, cleanup, err := sessionOptions(o)
	if err != nil {
		fmt.Fprintf(stderr, "gait: %v\n", err)
		return exitUsage
	}
	defer cleanup()

	paths, err := session.Discover(o.input, o.output)
	if err != nil {
		fmt.Fprintf(stderr, "gait: %v\n", err)
		return exitUsage
	}
	if len(paths) == 0 {
		fmt.Fprintf(stderr, "gait: no capture bundles in %s\n", o.input)
		return exitAllFail
	}
	log.Printf("processing %d captures from %s with lab %s", len(paths), o.input, opt.Lab.Name())

	opt.Progress = func(p session.Progress) {
		fmt.Fprintln(stdout, summaryLine(p))
	}
	res, err := session.Run(ctx, paths, opt)
	if err != nil {
		fmt.Fprintf(stderr, "gait: %v\n", err)
	}
	fmt.Fprintf(stdout, "%d of %d trials processed into %s\n", res.Succeeded(), len(res.Trials), o.output)
	for _, f := range res.Files {
		fmt.Fprintf(stdout, "  %s\n", f)
	}
	if res.Succeeded() == 0 {
		return exitAllFail
	}
	return exitOK
}

func sessionOptions(o *options) (session.Options, func(), error) {
	noop := func() {}
	var cfg *config.PipelineConfig
	if o.config != "" {
		c, err := config.LoadPipelineConfig(o.config)
		if err != nil {
			return session.Options{}, noop, err
		}
		cfg = c
	}
	lab, err := loadLab(o.labs, o.lab, cfg)
	if err != nil {
		return session.Options{}, noop, err
	}

	opt := session.Options{
		InputDir:  o.input,
		OutputDir: o.output,
		Lab:       lab,
		Exclude:   cycles.NewExclusionSet(o.exclude...),
		Report:    o.report,
	}
	if !o.noSolver && o.model != "" {
		s := osim.NewCommandSolver(o.solver, o.tasks)
		s.IDCutoff = lab.Pipeline().GetSolverIDCutoff()
		opt.Solver, opt.Model = s, o.model
	}
	if o.dbPath == "" {
		return opt, noop, nil
	}
	store, err := db.NewDB(o.dbPath)
	if err != nil {
		return session.Options{}, noop, fmt.Errorf("open store: %w", err)
	}
	opt.Store = store
	return opt, func() { store.Close() }, nil
}

// loadLab picks the named lab, or the only lab in dir when name is empty.
func loadLab(dir, name string, cfg *config.PipelineConfig) (config.Lab, error) {
	if name == "" {
		labs, err := config.ListLabs(dir)
		if err != nil {
			return config.Lab{}, err
		}
		switch len(labs) {
		case 0:
			return config.Lab{}, gait.Configurationf("no lab marker maps in %s", dir)
		case 1:
			name = labs[0]
		default:
			return config.Lab{}, gait.Configurationf("several labs in %s, pick one with -lab: %s", dir, strings.Join(labs, ", "))
		}
	}
	return config.LoadLab(dir, name, cfg)
}

func summaryLine(p session.Progress) string {
	t := p.Trial
	prefix := fmt.Sprintf("[%d/%d] %-12s %-7s", p.Index+1, p.Total, t.Name, t.Kind)
	if !t.OK() {
		return fmt.Sprintf("%s FAILED %s: %v", prefix, gait.KindName(t.Err), t.Err)
	}
	line := fmt.Sprintf("%s ok     %d frames", prefix, t.Frames)
	if t.Kind == gait.Dynamic {
		validated := 0
		for _, s := range t.Strides {
			if s.State == gait.Validated {
				validated++
			}
		}
		line += fmt.Sprintf(", %d events, %d/%d strides on plates, %d cycles", len(t.Events), validated, len(t.Strides), len(t.Cycles))
	}
	if n := len(t.Warnings); n > 0 {
		line += fmt.Sprintf(", %d warnings", n)
	}
	if t.SolverError != nil {
		line += " (solver failed)"
	}
	return line
}

func runMigrate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "gait.db", "sqlite store")
	if err := fs.Parse(reorder(args)); err != nil {
		return exitUsage
	}
	if err := db.RunMigrateCommand(stdout, fs.Args(), *dbPath); err != nil {
		fmt.Fprintf(stderr, "gait migrate: %v\n", err)
		return exitUsage
	}
	return exitOK
}

// runExclusions lists the curated cycle exclusions, or adds or removes the
// given keys.
func runExclusions(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("exclusions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "gait.db", "sqlite store")
	remove := fs.Bool("remove", false, "remove the given exclusions")
	reason := fs.String("reason", "", "why the cycles are excluded")
	if err := fs.Parse(reorder(args)); err != nil {
		return exitUsage
	}
	var keys []cycles.Key
	for _, a := range fs.Args() {
		k, err := cycles.ParseKey(a)
		if err != nil {
			fmt.Fprintf(stderr, "gait exclusions: %v\n", err)
			return exitUsage
		}
		keys = append(keys, k)
	}

	store, err := db.NewDB(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "gait exclusions: %v\n", err)
		return exitUsage
	}
	defer store.Close()

	for _, k := range keys {
		if *remove {
			err = store.RemoveExclusion(k)
		} else {
			err = store.AddExclusion(k, *reason)
		}
		if err != nil {
			fmt.Fprintf(stderr, "gait exclusions: %v\n", err)
			return exitAllFail
		}
	}
	set, err := store.Exclusions()
	if err != nil {
		fmt.Fprintf(stderr, "gait exclusions: %v\n", err)
		return exitAllFail
	}
	for _, k := range set.Keys() {
		fmt.Fprintln(stdout, keyArg(k))
	}
	return exitOK
}

// keyArg formats k the way -exclude accepts it.
func keyArg(k cycles.Key) string {
	return k.Trial + ":" + strings.Replace(k.Cycle, "_", ":", 1)
}

// reorder moves flags ahead of positional arguments so that
// "migrate up -db x" parses like "migrate -db x up".
func reorder(args []string) []string {
	var flags, rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			rest = append(rest, a)
			continue
		}
		flags = append(flags, a)
		if a == "-db" || a == "--db" || a == "-reason" || a == "--reason" {
			if i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
		}
	}
	return append(flags, rest...)
}
