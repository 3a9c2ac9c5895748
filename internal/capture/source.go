package capture

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/gaitlab/internal/fsutil"
	"github.com/banshee-data/gaitlab/internal/security"
)

// Source decodes recordings from storage.
type Source interface {
	Load(path string) (Recording, error)
}

// BundleExt is the extension of exported capture bundles.
const BundleExt = ".json"

// BundleSource reads recordings exported as JSON bundles.
type BundleSource struct {
	FS fsutil.FileSystem
}

// NewBundleSource reads bundles from fs, or from the OS filesystem when fs
// is nil.
func NewBundleSource(fs fsutil.FileSystem) *BundleSource {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &BundleSource{FS: fs}
}

// Load decodes the bundle at path and repairs inconsistent header counts.
// A bundle without a name is named after its file; names are made safe to
// use as output file stems.
func (s *BundleSource) Load(path string) (Recording, error) {
	data, err := s.FS.ReadFile(path)
	if err != nil {
		return Recording{}, fmt.Errorf("read capture: %w", err)
	}
	var r Recording
	if err := json.Unmarshal(data, &r); err != nil {
		return Recording{}, fmt.Errorf("decode capture %s: %w", path, err)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	r.Name = security.TrialName(r.Name)
	r.Repair()
	return r, nil
}
