package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// maxFileSize bounds config and marker-map files.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// PipelineConfig holds the processing parameters. Nil fields fall back to
// the defaults returned by the Get* accessors, so partial files are safe.
type PipelineConfig struct {
	// Signal conditioning
	MarkerRate   *float64 `json:"marker_rate,omitempty"`
	AnalogRate   *float64 `json:"analog_rate,omitempty"`
	MarkerCutoff *float64 `json:"marker_cutoff,omitempty"`
	SolverCutoff *float64 `json:"solver_cutoff,omitempty"`

	// Frame validation
	TrimTolerance      *int     `json:"trim_tolerance,omitempty"`
	IncompleteFraction *float64 `json:"incomplete_fraction,omitempty"`
	DynamicMinFrames   *int     `json:"dynamic_min_frames,omitempty"`

	// Force plates
	ZeroThreshold      *float64 `json:"zero_threshold,omitempty"`
	ContactThreshold   *float64 `json:"contact_threshold,omitempty"`
	InterferenceWindow *float64 `json:"interference_window,omitempty"`

	// Cycles
	CyclePoints *int `json:"cycle_points,omitempty"`

	// Solver
	SolverIDCutoff *float64 `json:"solver_id_cutoff,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields nil.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field set to its
// default.
func DefaultPipelineConfig() *PipelineConfig {
	return EmptyPipelineConfig().Resolved()
}

// Resolved returns a copy with every unset field filled with its default,
// as recorded on a session run.
func (c *PipelineConfig) Resolved() *PipelineConfig {
	return &PipelineConfig{
		MarkerRate:         ptrFloat64(c.GetMarkerRate()),
		AnalogRate:         ptrFloat64(c.GetAnalogRate()),
		MarkerCutoff:       ptrFloat64(c.GetMarkerCutoff()),
		SolverCutoff:       ptrFloat64(c.GetSolverCutoff()),
		TrimTolerance:      ptrInt(c.GetTrimTolerance()),
		IncompleteFraction: ptrFloat64(c.GetIncompleteFraction()),
		DynamicMinFrames:   ptrInt(c.GetDynamicMinFrames()),
		ZeroThreshold:      ptrFloat64(c.GetZeroThreshold()),
		ContactThreshold:   ptrFloat64(c.GetContactThreshold()),
		InterferenceWindow: ptrFloat64(c.GetInterferenceWindow()),
		CyclePoints:        ptrInt(c.GetCyclePoints()),
		SolverIDCutoff:     ptrFloat64(c.GetSolverIDCutoff()),
	}
}

// checkFile validates extension and size of a JSON file.
func checkFile(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return "", fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return "", fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	return cleanPath, nil
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath, err := checkFile(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	positive := map[string]*float64{
		"marker_rate":      c.MarkerRate,
		"analog_rate":      c.AnalogRate,
		"marker_cutoff":    c.MarkerCutoff,
		"solver_cutoff":    c.SolverCutoff,
		"solver_id_cutoff": c.SolverIDCutoff,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}
	// Cut-offs are never adjusted to fit the rate.
	if 2*c.GetMarkerCutoff() >= c.GetMarkerRate() {
		return fmt.Errorf("marker_cutoff %g Hz must be below the Nyquist frequency of %g Hz", c.GetMarkerCutoff(), c.GetMarkerRate()/2)
	}
	if 2*c.GetSolverCutoff() >= c.GetMarkerRate() {
		return fmt.Errorf("solver_cutoff %g Hz must be below the Nyquist frequency of %g Hz", c.GetSolverCutoff(), c.GetMarkerRate()/2)
	}
	if c.TrimTolerance != nil && *c.TrimTolerance < 0 {
		return fmt.Errorf("trim_tolerance must be non-negative, got %d", *c.TrimTolerance)
	}
	if c.IncompleteFraction != nil && (*c.IncompleteFraction <= 0 || *c.IncompleteFraction > 1) {
		return fmt.Errorf("incomplete_fraction must be in (0, 1], got %f", *c.IncompleteFraction)
	}
	if c.DynamicMinFrames != nil && *c.DynamicMinFrames < 0 {
		return fmt.Errorf("dynamic_min_frames must be non-negative, got %d", *c.DynamicMinFrames)
	}
	if c.InterferenceWindow != nil && *c.InterferenceWindow < 0 {
		return fmt.Errorf("interference_window must be non-negative, got %f", *c.InterferenceWindow)
	}
	if c.CyclePoints != nil && *c.CyclePoints < 2 {
		return fmt.Errorf("cycle_points must be at least 2, got %d", *c.CyclePoints)
	}
	return nil
}

// GetMarkerRate returns the marker resampling rate in Hz.
func (c *PipelineConfig) GetMarkerRate() float64 {
	if c.MarkerRate == nil {
		return 100 // default
	}
	return *c.MarkerRate
}

// GetAnalogRate returns the analog resampling rate in Hz.
func (c *PipelineConfig) GetAnalogRate() float64 {
	if c.AnalogRate == nil {
		return 1000 // default
	}
	return *c.AnalogRate
}

// GetMarkerCutoff returns the marker and force low-pass cut-off in Hz.
func (c *PipelineConfig) GetMarkerCutoff() float64 {
	if c.MarkerCutoff == nil {
		return 6 // default
	}
	return *c.MarkerCutoff
}

// GetSolverCutoff returns the low-pass cut-off for solver outputs in Hz.
func (c *PipelineConfig) GetSolverCutoff() float64 {
	if c.SolverCutoff == nil {
		return 8 // default
	}
	return *c.SolverCutoff
}

// GetTrimTolerance returns the number of frames at each end searched for
// incomplete frames.
func (c *PipelineConfig) GetTrimTolerance() int {
	if c.TrimTolerance == nil {
		return 20 // default
	}
	return *c.TrimTolerance
}

// GetIncompleteFraction returns the fraction of incomplete frames at which a
// trial is rejected.
func (c *PipelineConfig) GetIncompleteFraction() float64 {
	if c.IncompleteFraction == nil {
		return 0.9 // default
	}
	return *c.IncompleteFraction
}

// GetDynamicMinFrames returns the frame count a recording must exceed to be
// processed as a walking trial.
func (c *PipelineConfig) GetDynamicMinFrames() int {
	if c.DynamicMinFrames == nil {
		return 100 // default
	}
	return *c.DynamicMinFrames
}

// GetZeroThreshold returns the raw Fz above which plate channels are zeroed.
func (c *PipelineConfig) GetZeroThreshold() float64 {
	if c.ZeroThreshold == nil {
		return -10 // default
	}
	return *c.ZeroThreshold
}

// GetContactThreshold returns the vertical force marking foot contact.
func (c *PipelineConfig) GetContactThreshold() float64 {
	if c.ContactThreshold == nil {
		return 0 // default
	}
	return *c.ContactThreshold
}

// GetInterferenceWindow returns how far, in seconds, a contact may be
// extended past its events.
func (c *PipelineConfig) GetInterferenceWindow() float64 {
	if c.InterferenceWindow == nil {
		return 0.15 // default
	}
	return *c.InterferenceWindow
}

// GetCyclePoints returns the number of samples in a normalised cycle.
func (c *PipelineConfig) GetCyclePoints() int {
	if c.CyclePoints == nil {
		return 101 // default
	}
	return *c.CyclePoints
}

// GetSolverIDCutoff returns the coordinate cut-off passed to inverse
// dynamics.
func (c *PipelineConfig) GetSolverIDCutoff() float64 {
	if c.SolverIDCutoff == nil {
		return 6 // default
	}
	return *c.SolverIDCutoff
}
