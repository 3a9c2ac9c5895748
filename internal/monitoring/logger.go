// Package monitoring holds the diagnostic logger used by the processing
// stages and the per-trial warning collector.
package monitoring

import (
	"fmt"
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warning is a non-fatal finding about a trial: an incomplete frame inside
// the retained range, a stride rejected by plate validation, force
// interference at a stride boundary.
type Warning struct {
	Trial   string `json:"trial"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s [%s] %s", w.Trial, w.Stage, w.Message)
}

// Warnings collects the warnings raised while processing one trial. Every
// warning is also passed to Logf. A nil *Warnings only logs.
type Warnings struct {
	mu    sync.Mutex
	trial string
	items []Warning
}

// NewWarnings starts a collector for the named trial.
func NewWarnings(trial string) *Warnings {
	return &Warnings{trial: trial}
}

// Addf records a warning raised by stage.
func (w *Warnings) Addf(stage, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if w == nil {
		Logf("WARNING: [%s] %s", stage, msg)
		return
	}
	w.mu.Lock()
	w.items = append(w.items, Warning{Trial: w.trial, Stage: stage, Message: msg})
	w.mu.Unlock()
	Logf("WARNING: %s [%s] %s", w.trial, stage, msg)
}

// Items returns a copy of the collected warnings.
func (w *Warnings) Items() []Warning {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Warning(nil), w.items...)
}

// Len returns the number of collected warnings.
func (w *Warnings) Len() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}
