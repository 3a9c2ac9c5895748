package session

import (
	"bytes"
	"fmt"

	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/fsutil"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/report"
	"github.com/banshee-data/gaitlab/internal/spatiotemporal"
)

// Session-level output names.
const (
	sessionStaging     = "_session"
	SpatiotemporalFile = "spattemp.csv"
	ParquetFile        = "normalised_cycles.parquet"
	ReportFile         = "report.html"
)

// exclusions merges the exclusions given on the command line with those
// curated in the store.
func exclusions(opt Options) cycles.ExclusionSet {
	out := cycles.NewExclusionSet(opt.Exclude.Keys()...)
	if opt.Store == nil {
		return out
	}
	stored, err := opt.Store.Exclusions()
	if err != nil {
		monitoring.Logf("[session] exclusions: %v", err)
		return out
	}
	for k := range stored {
		out[k] = struct{}{}
	}
	return out
}

// writeSession writes the outputs that span all successful trials. Nothing
// is written when no trial succeeded.
func writeSession(opt Options, trials []TrialResult, col *cycles.Collection) ([]string, error) {
	var table spatiotemporal.Table
	for _, t := range trials {
		if t.OK() && t.Summary != nil {
			table.Trials = append(table.Trials, *t.Summary)
		}
	}
	exclude := exclusions(opt)
	var all []cycles.Cycle
	for _, kind := range cycles.Kinds {
		all = append(all, col.Cycles(kind, exclude)...)
	}
	if len(table.Trials) == 0 && len(all) == 0 {
		return nil, nil
	}

	stage, err := fsutil.NewStaging(opt.FS, opt.OutputDir, sessionStaging)
	if err != nil {
		return nil, err
	}
	files, err := stageSession(stage, opt, table, col, exclude, all)
	if err != nil {
		if rerr := stage.Rollback(); rerr != nil {
			monitoring.Logf("[session] rollback: %v", rerr)
		}
		return nil, fmt.Errorf("session outputs: %w", err)
	}
	return files, nil
}

func stageSession(stage *fsutil.Staging, opt Options, table spatiotemporal.Table, col *cycles.Collection, exclude cycles.ExclusionSet, all []cycles.Cycle) ([]string, error) {
	var buf bytes.Buffer
	for _, kind := range cycles.Kinds {
		cs := col.Cycles(kind, exclude)
		if len(cs) == 0 {
			continue
		}
		buf.Reset()
		if err := cycles.WriteCSV(&buf, kind, cs); err != nil {
			return nil, err
		}
		if err := stage.WriteFile(cycles.FileNames[kind], buf.Bytes()); err != nil {
			return nil, err
		}
	}
	if len(all) > 0 {
		data, err := cycles.MarshalParquet(all)
		if err != nil {
			return nil, err
		}
		if err := stage.WriteFile(ParquetFile, data); err != nil {
			return nil, err
		}
	}
	if len(table.Trials) > 0 {
		buf.Reset()
		if err := table.WriteCSV(&buf); err != nil {
			return nil, err
		}
		if err := stage.WriteFile(SpatiotemporalFile, buf.Bytes()); err != nil {
			return nil, err
		}
	}

	if opt.Report {
		for _, kind := range cycles.Kinds {
			buf.Reset()
			ok, err := report.PlotCycles(&buf, kind, col, exclude)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if err := stage.WriteFile(string(kind)+"_cycles.png", buf.Bytes()); err != nil {
				return nil, err
			}
		}
		buf.Reset()
		title := "Gait session"
		if opt.InputDir != "" {
			title = fmt.Sprintf("Gait session %s", opt.InputDir)
		}
		if err := report.WriteHTML(&buf, report.Overview{Title: title, Table: table, Cycles: col, Exclude: exclude}); err != nil {
			return nil, err
		}
		if err := stage.WriteFile(ReportFile, buf.Bytes()); err != nil {
			return nil, err
		}
	}
	return stage.Commit()
}
