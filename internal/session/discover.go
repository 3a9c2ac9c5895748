package session

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/gaitlab/internal/capture"
)

// Discover returns the capture bundles below inputDir in lexical order. The
// output directory and hidden directories are skipped, so re-running into a
// nested output directory never picks up its own files.
func Discover(inputDir, outputDir string) ([]string, error) {
	root, err := filepath.Abs(inputDir)
	if err != nil {
		return nil, err
	}
	skip := ""
	if outputDir != "" {
		if skip, err = filepath.Abs(outputDir); err != nil {
			return nil, err
		}
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (path == skip || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), capture.BundleExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover captures in %s: %w", inputDir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
