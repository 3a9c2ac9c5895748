package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagingCommit(t *testing.T) {
	mfs := NewMemoryFileSystem()
	st, err := NewStaging(mfs, "/out", "Walk01")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", StagingDir, "Walk01"), st.Dir())

	require.NoError(t, st.WriteFile("Walk01.trc", []byte("PathFileType\t4\n")))
	w, err := st.Create("Walk01_grf.mot")
	require.NoError(t, err)
	_, _ = w.Write([]byte("Walk01_grf\n"))
	require.NoError(t, w.Close())
	// rewriting a name does not stage it twice
	require.NoError(t, st.WriteFile("Walk01.trc", []byte("PathFileType\t4\n")))
	assert.Equal(t, []string{"Walk01.trc", "Walk01_grf.mot"}, st.Files())

	assert.False(t, mfs.Exists("/out/Walk01.trc"), "nothing visible before commit")

	paths, err := st.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/Walk01.trc", "/out/Walk01_grf.mot"}, paths)
	data, err := mfs.ReadFile("/out/Walk01_grf.mot")
	require.NoError(t, err)
	assert.Equal(t, "Walk01_grf\n", string(data))
	assert.False(t, mfs.Exists(st.Dir()))

	assert.Error(t, st.WriteFile("late.csv", nil), "closed staging rejects writes")
	_, err = st.Commit()
	assert.Error(t, err)
	assert.NoError(t, st.Rollback())
}

func TestStagingRollback(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStaging(nil, dir, "Walk02")
	require.NoError(t, err)
	require.NoError(t, st.WriteFile("Walk02.trc", []byte("partial")))

	require.NoError(t, st.Rollback())
	fsys := OSFileSystem{}
	assert.False(t, fsys.Exists(filepath.Join(dir, "Walk02.trc")))
	assert.False(t, fsys.Exists(st.Dir()))

	require.NoError(t, Cleanup(nil, dir))
	assert.False(t, fsys.Exists(filepath.Join(dir, StagingDir)))
}

func TestStagingAdopt(t *testing.T) {
	mfs := NewMemoryFileSystem()
	st, err := NewStaging(mfs, "/out", "Walk01")
	require.NoError(t, err)

	assert.Error(t, st.Adopt("Walk01_ik.mot"), "file must exist")
	require.NoError(t, mfs.WriteFile(filepath.Join(st.Dir(), "Walk01_ik.mot"), []byte("ik"), 0644))
	require.NoError(t, mfs.WriteFile(filepath.Join(st.Dir(), "Walk01_ik.setup.xml"), []byte("<x/>"), 0644))
	require.NoError(t, st.Adopt("Walk01_ik.mot"))

	paths, err := st.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/Walk01_ik.mot"}, paths)
	assert.False(t, mfs.Exists("/out/Walk01_ik.setup.xml"), "unadopted files are discarded")
}

func TestStagingRejectsPaths(t *testing.T) {
	st, err := NewStaging(NewMemoryFileSystem(), "/out", "Walk03")
	require.NoError(t, err)
	for _, name := range []string{"", "../escape.csv", "/abs.csv", "sub/dir.csv"} {
		assert.Error(t, st.WriteFile(name, nil), "name %q", name)
	}
}
