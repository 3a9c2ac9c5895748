package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

// Both implementations must behave alike for the operations the pipeline
// relies on.
func implementations(t *testing.T) map[string]struct {
	fs   FileSystem
	root string
} {
	return map[string]struct {
		fs   FileSystem
		root string
	}{
		"os":     {OSFileSystem{}, t.TempDir()},
		"memory": {NewMemoryFileSystem(), "/mem"},
	}
}

func TestFileSystemWriteReadRename(t *testing.T) {
	for name, impl := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			fsys, root := impl.fs, impl.root
			dir := filepath.Join(root, "out")
			if err := fsys.MkdirAll(dir, 0755); err != nil {
				t.Fatalf("MkdirAll failed: %v", err)
			}

			a := filepath.Join(dir, "a.csv")
			if err := fsys.WriteFile(a, []byte("x,y\n"), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			w, err := fsys.Create(filepath.Join(dir, "b.mot"))
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			w.Write([]byte("version=1\n"))
			if err := w.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			info, err := fsys.Stat(filepath.Join(dir, "b.mot"))
			if err != nil {
				t.Fatalf("Stat failed: %v", err)
			}
			if info.Size() != int64(len("version=1\n")) || info.IsDir() {
				t.Errorf("unexpected file info: size=%d dir=%v", info.Size(), info.IsDir())
			}
			if info, err := fsys.Stat(dir); err != nil || !info.IsDir() {
				t.Errorf("expected %s to be a directory (err=%v)", dir, err)
			}

			moved := filepath.Join(dir, "moved.csv")
			if err := fsys.Rename(a, moved); err != nil {
				t.Fatalf("Rename failed: %v", err)
			}
			if fsys.Exists(a) {
				t.Error("expected source to be gone after rename")
			}
			data, err := fsys.ReadFile(moved)
			if err != nil || string(data) != "x,y\n" {
				t.Errorf("ReadFile after rename = %q, %v", data, err)
			}

			if err := fsys.RemoveAll(dir); err != nil {
				t.Fatalf("RemoveAll failed: %v", err)
			}
			if fsys.Exists(dir) || fsys.Exists(moved) {
				t.Error("expected tree to be removed")
			}
			if _, err := fsys.ReadFile(moved); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("expected ErrNotExist, got %v", err)
			}
		})
	}
}

func TestMemoryFileSystemIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	src := []byte("original")
	mfs.WriteFile("/data.txt", src, 0644)
	src[0] = 'X'

	got, _ := mfs.ReadFile("/data.txt")
	if string(got) != "original" {
		t.Errorf("stored data aliased caller slice: %q", got)
	}
	got[0] = 'Y'
	again, _ := mfs.ReadFile("/data.txt")
	if string(again) != "original" {
		t.Errorf("returned data aliased storage: %q", again)
	}
}

func TestMemoryFileSystemImpliedDirs(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/a/b/c.txt", nil, 0644)
	if !mfs.Exists("/a/b") || !mfs.Exists("/a") {
		t.Error("expected parents of a stored file to exist")
	}
	if mfs.Exists("/a/bc") {
		t.Error("prefix match must respect path separators")
	}
	if err := mfs.Rename("/missing", "/x"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if got := mfs.Files(); len(got) != 1 || got[0] != "/a/b/c.txt" {
		t.Errorf("Files() = %v", got)
	}
}
