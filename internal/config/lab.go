package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/markers"
	"github.com/banshee-data/gaitlab/internal/security"
)

// Lab is the immutable per-laboratory configuration handed to every stage:
// the lab's marker protocol and the processing parameters.
type Lab struct {
	name     string
	markers  markers.Map
	pipeline PipelineConfig
}

// NewLab builds a lab from an already parsed marker map. The map is
// validated and both inputs are copied.
func NewLab(name string, m markers.Map, cfg *PipelineConfig) (Lab, error) {
	if err := m.Validate(); err != nil {
		return Lab{}, fmt.Errorf("lab %s: %w", name, err)
	}
	if cfg == nil {
		cfg = EmptyPipelineConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Lab{}, gait.Configurationf("lab %s: %v", name, err)
	}
	return Lab{name: name, markers: copyMap(m), pipeline: *cfg}, nil
}

// LoadLab reads "<dir>/<lab>.json". The lab name must resolve to a file
// inside dir.
func LoadLab(dir, lab string, cfg *PipelineConfig) (Lab, error) {
	path := filepath.Join(dir, lab+".json")
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return Lab{}, gait.Configurationf("lab %q: %v", lab, err)
	}
	cleanPath, err := checkFile(path)
	if err != nil {
		return Lab{}, gait.Configurationf("lab %q: %v", lab, err)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Lab{}, gait.Configurationf("lab %q: %v", lab, err)
	}
	m, err := markers.ParseMap(data)
	if err != nil {
		return Lab{}, fmt.Errorf("lab %q: %w", lab, err)
	}
	return NewLab(lab, m, cfg)
}

// ListLabs returns the names of the marker maps in dir.
func ListLabs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list labs: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			out = append(out, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Name is the lab identifier.
func (l Lab) Name() string { return l.name }

// Markers returns a copy of the lab's marker map.
func (l Lab) Markers() markers.Map { return copyMap(l.markers) }

// Pipeline returns a copy of the processing parameters.
func (l Lab) Pipeline() *PipelineConfig {
	c := l.pipeline
	return &c
}

func copyMap(m markers.Map) markers.Map {
	out := make(markers.Map, len(m))
	for k, v := range m {
		if v != nil {
			s := *v
			v = &s
		}
		out[k] = v
	}
	return out
}
