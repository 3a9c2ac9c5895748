package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/fsutil"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/session"
	"github.com/banshee-data/gaitlab/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func writeLab(t *testing.T, dir, name string) {
	t.Helper()
	data, err := json.Marshal(testutil.IdentityMap())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0644))
}

func workspace(t *testing.T) (input, labs string) {
	t.Helper()
	root := t.TempDir()
	input, labs = filepath.Join(root, "S01"), filepath.Join(root, "labs")
	writeLab(t, labs, "canonical")
	fsys := fsutil.OSFileSystem{}
	require.NoError(t, fsys.MkdirAll(input, 0755))
	testutil.WriteBundle(t, fsys, filepath.Join(input, "Walk01.json"), testutil.Walk(testutil.DefaultWalk("Walk01")))
	testutil.WriteBundle(t, fsys, filepath.Join(input, "Static01.json"), testutil.Static("Static01", 150))
	return input, labs
}

func runCLI(args ...string) (int, string, string) {
	var out, errb bytes.Buffer
	code := run(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestRunProcessesSession(t *testing.T) {
	input, labs := workspace(t)
	code, out, stderr := runCLI("-input", input, "-labs", labs, "-report", "-no-solver")
	require.Equal(t, exitOK, code, stderr)

	assert.Contains(t, out, "Static01")
	assert.Contains(t, out, "Walk01")
	assert.Contains(t, out, "2 of 2 trials processed")

	processed := filepath.Join(input, defaultOut)
	for _, name := range []string{"Walk01.trc", "Walk01_grf.mot", "Static01.trc", session.SpatiotemporalFile, session.ReportFile} {
		_, err := os.Stat(filepath.Join(processed, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(processed, fsutil.StagingDir))
	assert.True(t, os.IsNotExist(err))

	// a second run does not pick up its own outputs
	code, out, _ = runCLI("-input", input, "-labs", labs)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "2 of 2 trials processed")
}

func TestRunWithStore(t *testing.T) {
	input, labs := workspace(t)
	dbPath := filepath.Join(t.TempDir(), "gait.db")

	code, _, stderr := runCLI("-input", input, "-labs", labs, "-db", dbPath)
	require.Equal(t, exitOK, code, stderr)

	code, out, stderr := runCLI("exclusions", "-db", dbPath, "-reason", "marker swap", "Walk01:Left:1")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "Walk01:Left:1\n", out)

	code, out, _ = runCLI("exclusions", "Walk01:Left:1", "-remove", "-db", dbPath)
	require.Equal(t, exitOK, code)
	assert.Empty(t, out)

	code, out, _ = runCLI("migrate", "status", "-db", dbPath)
	require.Equal(t, exitOK, code)
	assert.NotEmpty(t, out)
}

func TestRunAllTrialsFail(t *testing.T) {
	root := t.TempDir()
	input, labs := filepath.Join(root, "S02"), filepath.Join(root, "labs")
	writeLab(t, labs, "canonical")
	opt := testutil.DefaultWalk("WalkBad")
	opt.NoEvents = true
	require.NoError(t, os.MkdirAll(input, 0755))
	testutil.WriteBundle(t, fsutil.OSFileSystem{}, filepath.Join(input, "WalkBad.json"), testutil.Walk(opt))

	code, out, _ := runCLI("-input", input, "-labs", labs)
	assert.Equal(t, exitAllFail, code)
	assert.Contains(t, out, "FAILED MissingSignalError")
	assert.Contains(t, out, "0 of 1 trials processed")
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI()
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "-input is required")

	code, out, _ := runCLI("-version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "gait "))

	code, _, _ = runCLI("-exclude", "Walk01-Left-1", "-input", "x")
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI("-help")
	assert.Equal(t, exitOK, code)

	code, _, stderr = runCLI("migrate")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "missing action")
}

func TestRunNoCaptures(t *testing.T) {
	labs := t.TempDir()
	writeLab(t, labs, "canonical")
	code, _, stderr := runCLI("-input", t.TempDir(), "-labs", labs)
	assert.Equal(t, exitAllFail, code)
	assert.Contains(t, stderr, "no capture bundles")
}

func TestLoadLab(t *testing.T) {
	dir := t.TempDir()
	_, err := loadLab(dir, "", nil)
	assert.ErrorContains(t, err, "no lab marker maps")

	writeLab(t, dir, "lab_a")
	lab, err := loadLab(dir, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "lab_a", lab.Name())

	writeLab(t, dir, "lab_b")
	_, err = loadLab(dir, "", nil)
	assert.ErrorContains(t, err, "lab_a, lab_b")

	lab, err = loadLab(dir, "lab_b", nil)
	require.NoError(t, err)
	assert.Equal(t, "lab_b", lab.Name())
}

func TestKeyList(t *testing.T) {
	var k keyList
	require.NoError(t, k.Set("Walk01:Left:2"))
	require.NoError(t, k.Set("Walk_02:Right:0"))
	assert.Error(t, k.Set("Walk01"))
	assert.Equal(t, []cycles.Key{
		{Trial: "Walk01", Cycle: "Left_2"},
		{Trial: "Walk_02", Cycle: "Right_0"},
	}, []cycles.Key(k))
	assert.Equal(t, "Walk01:Left:2,Walk_02:Right:0", k.String())
}

func TestReorder(t *testing.T) {
	assert.Equal(t, []string{"-db", "x.db", "up"}, reorder([]string{"up", "-db", "x.db"}))
	assert.Equal(t, []string{"-remove", "-reason", "swap", "a:Left:1"}, reorder([]string{"a:Left:1", "-remove", "-reason", "swap"}))
}
