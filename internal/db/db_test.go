package db

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/spatiotemporal"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "gait.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestEmbeddedMigrations(t *testing.T) {
	fsys, err := getMigrationsFS()
	require.NoError(t, err)

	latest, err := GetLatestMigrationVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	db := newTestDB(t)
	st, err := db.Status(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), st.Current)
	assert.False(t, st.Dirty)
	assert.Contains(t, st.String(), "up to date")
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)
	fsys, err := getMigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown(fsys))
	v, dirty, err := db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	_, err = db.Exec("SELECT COUNT(*) FROM cycle_exclusions")
	assert.Error(t, err, "table dropped by down migration")

	require.NoError(t, db.MigrateUp(fsys))
	v, _, err = db.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand(&out, []string{"up"}, path))
	assert.Contains(t, out.String(), "All migrations applied")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"status"}, path))
	assert.Contains(t, out.String(), "2")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"force", "1"}, path))
	assert.Contains(t, out.String(), "Forced version 1")

	out.Reset()
	require.NoError(t, RunMigrateCommand(&out, []string{"help"}, path))
	assert.Contains(t, out.String(), "Usage: gait migrate")

	assert.Error(t, RunMigrateCommand(&out, nil, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"sideways"}, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"force"}, path))
	assert.Error(t, RunMigrateCommand(&out, []string{"force", "x"}, path))
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	r := &Run{Version: "v0.1.0", GitSHA: "abc123", Lab: "canonical", InputDir: "/in", OutputDir: "/out"}
	require.NoError(t, db.CreateRun(r))
	require.NotEmpty(t, r.ID)

	finished := r.StartedAt.Add(3 * time.Second)
	require.NoError(t, db.FinishRun(r.ID, finished))
	assert.Error(t, db.FinishRun("no-such-run", finished))

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r.ID, runs[0].ID)
	assert.Equal(t, "canonical", runs[0].Lab)
	require.NotNil(t, runs[0].FinishedAt)
	assert.True(t, runs[0].FinishedAt.Equal(finished))
}

func TestTrialsAndWarnings(t *testing.T) {
	db := newTestDB(t)
	r := &Run{Lab: "canonical"}
	require.NoError(t, db.CreateRun(r))

	first, last := 12, 480
	require.NoError(t, db.RecordTrial(TrialRecord{RunID: r.ID, Trial: "Walk02", Kind: "dynamic", Status: StatusOK, Frames: 469, FirstFrame: &first, LastFrame: &last}))
	require.NoError(t, db.RecordTrial(TrialRecord{RunID: r.ID, Trial: "Walk01", Kind: "dynamic", Status: StatusOK}))
	// re-recording replaces the earlier outcome
	require.NoError(t, db.RecordTrial(TrialRecord{RunID: r.ID, Trial: "Walk01", Kind: "dynamic", Status: StatusFailed, FailureKind: "MissingSignalError", Failure: "no events"}))

	trials, err := db.Trials(r.ID)
	require.NoError(t, err)
	want := []TrialRecord{
		{RunID: r.ID, Trial: "Walk01", Kind: "dynamic", Status: StatusFailed, FailureKind: "MissingSignalError", Failure: "no events"},
		{RunID: r.ID, Trial: "Walk02", Kind: "dynamic", Status: StatusOK, Frames: 469, FirstFrame: &first, LastFrame: &last},
	}
	if diff := cmp.Diff(want, trials); diff != "" {
		t.Errorf("Trials() mismatch (-want +got):\n%s", diff)
	}

	ws := []monitoring.Warning{
		{Trial: "Walk02", Stage: "harmonise", Message: "marker LTOE missing"},
		{Trial: "Walk02", Stage: "attribution", Message: "stride Left_1 invalidated"},
	}
	require.NoError(t, db.RecordWarnings(r.ID, ws))
	require.NoError(t, db.RecordWarnings(r.ID, nil))
	got, err := db.Warnings(r.ID)
	require.NoError(t, err)
	assert.Equal(t, ws, got)

	assert.Error(t, db.RecordTrial(TrialRecord{RunID: "missing", Trial: "x", Kind: "static", Status: StatusOK}), "foreign key enforced")
}

func TestRecordEvents(t *testing.T) {
	db := newTestDB(t)
	r := &Run{}
	require.NoError(t, db.CreateRun(r))

	p := 1
	events, strides := gait.GroupStrides([]gait.Event{
		{Time: 1.0, Side: gait.Left, Kind: gait.FootStrike, Plate: &p},
		{Time: 1.6, Side: gait.Left, Kind: gait.FootOff, Plate: &p},
		{Time: 1.5, Side: gait.Right, Kind: gait.FootStrike},
	})
	strides[0].State = gait.Validated

	require.NoError(t, db.RecordEvents(r.ID, "Walk01", events, strides))
	// recording again replaces rather than duplicates
	require.NoError(t, db.RecordEvents(r.ID, "Walk01", events, strides))

	rows, err := db.Events(r.ID, "Walk01")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Foot Strike", rows[0].Kind)
	assert.Equal(t, "validated", rows[0].State)
	require.NotNil(t, rows[0].Plate)
	assert.Equal(t, 1, *rows[0].Plate)
	assert.Equal(t, "Right", rows[1].Side)
	assert.Nil(t, rows[1].Plate)
	assert.Equal(t, "unassigned", rows[1].State)
	assert.Equal(t, "Foot Off", rows[2].Kind)
}

func TestRecordSpatiotemporal(t *testing.T) {
	db := newTestDB(t)
	r := &Run{}
	require.NoError(t, db.CreateRun(r))

	length, stance := 1.2, 0.6
	recs := []spatiotemporal.Record{
		{Side: gait.Left, Stride: 0, StrideLengthM: &length, StanceS: &stance},
		{Side: gait.Right, Stride: 1, StanceS: &stance},
	}
	require.NoError(t, db.RecordSpatiotemporal(r.ID, "Walk01", recs))

	got, err := db.Spatiotemporal(r.ID, "Walk01")
	require.NoError(t, err)
	if diff := cmp.Diff(recs, got); diff != "" {
		t.Errorf("Spatiotemporal() mismatch (-want +got):\n%s", diff)
	}
}

func TestExclusions(t *testing.T) {
	db := newTestDB(t)

	a := cycles.Key{Trial: "Walk01", Cycle: "Left_0"}
	b := cycles.Key{Trial: "Walk02", Cycle: "Right_3"}
	require.NoError(t, db.AddExclusion(a, "marker swap"))
	require.NoError(t, db.AddExclusion(b, ""))
	require.NoError(t, db.AddExclusion(a, "updated reason"))

	set, err := db.Exclusions()
	require.NoError(t, err)
	assert.Equal(t, []cycles.Key{a, b}, set.Keys())

	require.NoError(t, db.RemoveExclusion(a))
	set, err = db.Exclusions()
	require.NoError(t, err)
	assert.Equal(t, []cycles.Key{b}, set.Keys())
}
