package fsutil

import (
	"fmt"
	"io"
	"path/filepath"
)

// StagingDir is the directory under an output root that holds uncommitted
// trial outputs.
const StagingDir = ".staging"

// Staging collects one trial's output files away from the output directory.
// Commit moves them into place; Rollback discards them, so a trial that
// fails part way leaves nothing behind.
type Staging struct {
	fs    FileSystem
	dir   string
	final string
	files []string
	done  bool
}

// NewStaging prepares a staging area for trial under outputDir.
func NewStaging(fsys FileSystem, outputDir, trial string) (*Staging, error) {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	dir := filepath.Join(outputDir, StagingDir, trial)
	if err := fsys.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear staging dir: %w", err)
	}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	return &Staging{fs: fsys, dir: dir, final: outputDir}, nil
}

// Dir returns the staging directory.
func (s *Staging) Dir() string { return s.dir }

// Files returns the staged names in write order.
func (s *Staging) Files() []string { return append([]string(nil), s.files...) }

func (s *Staging) track(name string) error {
	if s.done {
		return fmt.Errorf("staging for %s already closed", s.dir)
	}
	if name == "" || filepath.IsAbs(name) || filepath.Base(name) != name {
		return fmt.Errorf("invalid staged file name %q", name)
	}
	for _, f := range s.files {
		if f == name {
			return nil
		}
	}
	s.files = append(s.files, name)
	return nil
}

// WriteFile stages data under name, a bare file name.
func (s *Staging) WriteFile(name string, data []byte) error {
	if err := s.track(name); err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(s.dir, name), data, 0644)
}

// Create opens a staged file for streaming writes.
func (s *Staging) Create(name string) (io.WriteCloser, error) {
	if err := s.track(name); err != nil {
		return nil, err
	}
	return s.fs.Create(filepath.Join(s.dir, name))
}

// Adopt stages a file that another process wrote into Dir.
func (s *Staging) Adopt(name string) error {
	if !s.fs.Exists(filepath.Join(s.dir, name)) {
		return fmt.Errorf("adopt %s: not found in %s", name, s.dir)
	}
	return s.track(name)
}

// Commit moves every staged file into the output directory and returns the
// final paths.
func (s *Staging) Commit() ([]string, error) {
	if s.done {
		return nil, fmt.Errorf("staging for %s already closed", s.dir)
	}
	s.done = true
	if err := s.fs.MkdirAll(s.final, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	out := make([]string, 0, len(s.files))
	for _, name := range s.files {
		dst := filepath.Join(s.final, name)
		if err := s.fs.Rename(filepath.Join(s.dir, name), dst); err != nil {
			return out, fmt.Errorf("failed to commit %s: %w", name, err)
		}
		out = append(out, dst)
	}
	return out, s.fs.RemoveAll(s.dir)
}

// Rollback discards staged files. It is a no-op after Commit.
func (s *Staging) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.fs.RemoveAll(s.dir)
}

// Cleanup removes the staging root and anything left below it.
func Cleanup(fsys FileSystem, outputDir string) error {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return fsys.RemoveAll(filepath.Join(outputDir, StagingDir))
}
