package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/spatiotemporal"
)

// Trial status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one session processing pass.
type Run struct {
	ID         string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Version    string     `json:"version"`
	GitSHA     string     `json:"git_sha"`
	Lab        string     `json:"lab"`
	InputDir   string     `json:"input_dir"`
	OutputDir  string     `json:"output_dir"`
	ConfigJSON string     `json:"config_json"`
}

// TrialRecord is the outcome of one trial within a run.
type TrialRecord struct {
	RunID       string `json:"run_id"`
	Trial       string `json:"trial"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	FailureKind string `json:"failure_kind,omitempty"`
	Failure     string `json:"failure,omitempty"`
	Frames      int    `json:"frames"`
	FirstFrame  *int   `json:"first_frame,omitempty"`
	LastFrame   *int   `json:"last_frame,omitempty"`
}

// EventRow is a stored gait event with its final plate assignment.
type EventRow struct {
	Time   float64 `json:"time"`
	Side   string  `json:"side"`
	Kind   string  `json:"kind"`
	Stride int     `json:"stride"`
	Plate  *int    `json:"plate"`
	State  string  `json:"state"`
}

// CreateRun inserts a run, assigning a fresh ID when r.ID is empty.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO runs (
			run_id, started_at, version, git_sha, lab, input_dir, output_dir, config_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), r.Version, r.GitSHA, r.Lab, r.InputDir, r.OutputDir, r.ConfigJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's completion time.
func (db *DB) FinishRun(runID string, at time.Time) error {
	res, err := db.Exec(`UPDATE runs SET finished_at = ? WHERE run_id = ?`, at.UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Runs lists runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, started_at, finished_at, version, git_sha, lab, input_dir, output_dir, COALESCE(config_json, '')
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Version, &r.GitSHA, &r.Lab, &r.InputDir, &r.OutputDir, &r.ConfigJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordTrial upserts a trial outcome.
func (db *DB) RecordTrial(t TrialRecord) error {
	_, err := db.Exec(`
		INSERT INTO trials (
			run_id, trial, kind, status, failure_kind, failure, frames, first_frame, last_frame
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, trial) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			failure_kind = excluded.failure_kind,
			failure = excluded.failure,
			frames = excluded.frames,
			first_frame = excluded.first_frame,
			last_frame = excluded.last_frame`,
		t.RunID, t.Trial, t.Kind, t.Status, nullString(t.FailureKind), nullString(t.Failure),
		t.Frames, t.FirstFrame, t.LastFrame,
	)
	if err != nil {
		return fmt.Errorf("failed to record trial %s: %w", t.Trial, err)
	}
	return nil
}

// Trials lists the trial outcomes of a run by name.
func (db *DB) Trials(runID string) ([]TrialRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, trial, kind, status, COALESCE(failure_kind, ''), COALESCE(failure, ''),
			frames, first_frame, last_frame
		FROM trials WHERE run_id = ? ORDER BY trial`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var out []TrialRecord
	for rows.Next() {
		var t TrialRecord
		var first, last sql.NullInt64
		if err := rows.Scan(&t.RunID, &t.Trial, &t.Kind, &t.Status, &t.FailureKind, &t.Failure,
			&t.Frames, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		t.FirstFrame = intPtr(first)
		t.LastFrame = intPtr(last)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordWarnings stores the warnings collected for a trial.
func (db *DB) RecordWarnings(runID string, ws []monitoring.Warning) error {
	if len(ws) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT INTO warnings (run_id, trial, stage, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare warning insert: %w", err)
	}
	defer stmt.Close()
	for _, w := range ws {
		if _, err := stmt.Exec(runID, w.Trial, w.Stage, w.Message); err != nil {
			return fmt.Errorf("failed to record warning: %w", err)
		}
	}
	return tx.Commit()
}

// Warnings lists a run's warnings in insertion order.
func (db *DB) Warnings(runID string) ([]monitoring.Warning, error) {
	rows, err := db.Query(`SELECT trial, stage, message FROM warnings WHERE run_id = ? ORDER BY warning_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer rows.Close()
	var out []monitoring.Warning
	for rows.Next() {
		var w monitoring.Warning
		if err := rows.Scan(&w.Trial, &w.Stage, &w.Message); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// RecordEvents replaces a trial's events with the attributed set. Each
// event is stored with the final state of its stride.
func (db *DB) RecordEvents(runID, trial string, events []gait.Event, strides []gait.Stride) error {
	state := map[string]gait.StrideState{}
	for _, s := range strides {
		state[s.ID()] = s.State
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM events WHERE run_id = ? AND trial = ?`, runID, trial); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO events (run_id, trial, time, side, kind, stride, plate, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range events {
		id := gait.Stride{Side: e.Side, Number: e.Stride}.ID()
		if _, err := stmt.Exec(runID, trial, e.Time, e.Side.String(), e.Kind.String(), e.Stride, e.Plate, state[id].String()); err != nil {
			return fmt.Errorf("failed to record event: %w", err)
		}
	}
	return tx.Commit()
}

// Events lists a trial's events in time order.
func (db *DB) Events(runID, trial string) ([]EventRow, error) {
	rows, err := db.Query(`
		SELECT time, side, kind, stride, plate, state FROM events
		WHERE run_id = ? AND trial = ? ORDER BY time`, runID, trial)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	var out []EventRow
	for rows.Next() {
		var e EventRow
		var plate sql.NullInt64
		if err := rows.Scan(&e.Time, &e.Side, &e.Kind, &e.Stride, &plate, &e.State); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Plate = intPtr(plate)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordSpatiotemporal stores a trial's per-stride records.
func (db *DB) RecordSpatiotemporal(runID, trial string, recs []spatiotemporal.Record) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO spatiotemporal (
			run_id, trial, side, stride, stride_length_m, step_length_m, step_width_m,
			stance_s, swing_s, single_support_s, double_support_s, foot_progression_deg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare spatiotemporal insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err := stmt.Exec(runID, trial, r.Side.String(), r.Stride,
			r.StrideLengthM, r.StepLengthM, r.StepWidthM, r.StanceS, r.SwingS,
			r.SingleSupportS, r.DoubleSupportS, r.FootProgressionDeg); err != nil {
			return fmt.Errorf("failed to record stride %s: %w", r.ID(), err)
		}
	}
	return tx.Commit()
}

// Spatiotemporal lists a trial's stored records.
func (db *DB) Spatiotemporal(runID, trial string) ([]spatiotemporal.Record, error) {
	rows, err := db.Query(`
		SELECT side, stride, stride_length_m, step_length_m, step_width_m,
			stance_s, swing_s, single_support_s, double_support_s, foot_progression_deg
		FROM spatiotemporal WHERE run_id = ? AND trial = ? ORDER BY side, stride`, runID, trial)
	if err != nil {
		return nil, fmt.Errorf("failed to query spatiotemporal: %w", err)
	}
	defer rows.Close()
	var out []spatiotemporal.Record
	for rows.Next() {
		var r spatiotemporal.Record
		var side string
		var v [8]sql.NullFloat64
		if err := rows.Scan(&side, &r.Stride, &v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &v[7]); err != nil {
			return nil, fmt.Errorf("failed to scan spatiotemporal: %w", err)
		}
		if r.Side, err = gait.ParseSide(side); err != nil {
			return nil, err
		}
		dst := []**float64{&r.StrideLengthM, &r.StepLengthM, &r.StepWidthM, &r.StanceS,
			&r.SwingS, &r.SingleSupportS, &r.DoubleSupportS, &r.FootProgressionDeg}
		for i, p := range dst {
			*p = floatPtr(v[i])
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddExclusion marks a cycle as excluded from averages. Re-adding updates
// the reason.
func (db *DB) AddExclusion(key cycles.Key, reason string) error {
	_, err := db.Exec(`
		INSERT INTO cycle_exclusions (trial, cycle, reason, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (trial, cycle) DO UPDATE SET reason = excluded.reason`,
		key.Trial, key.Cycle, reason, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add exclusion %s: %w", key, err)
	}
	return nil
}

// RemoveExclusion restores a cycle.
func (db *DB) RemoveExclusion(key cycles.Key) error {
	if _, err := db.Exec(`DELETE FROM cycle_exclusions WHERE trial = ? AND cycle = ?`, key.Trial, key.Cycle); err != nil {
		return fmt.Errorf("failed to remove exclusion %s: %w", key, err)
	}
	return nil
}

// Exclusions returns every stored exclusion.
func (db *DB) Exclusions() (cycles.ExclusionSet, error) {
	rows, err := db.Query(`SELECT trial, cycle FROM cycle_exclusions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query exclusions: %w", err)
	}
	defer rows.Close()
	var keys []cycles.Key
	for rows.Next() {
		var k cycles.Key
		if err := rows.Scan(&k.Trial, &k.Cycle); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cycles.NewExclusionSet(keys...), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
