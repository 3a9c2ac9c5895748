package gait

import (
	"errors"
	"fmt"
)

// Fatal error kinds. A trial failing with one of these is abandoned; the
// session carries on with the next trial.
var (
	// ErrConfiguration covers missing or invalid marker maps and required
	// markers absent from the harmonized set.
	ErrConfiguration = errors.New("configuration error")
	// ErrInsufficientData is returned when too many frames have gaps.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMissingSignal is returned for a dynamic trial without analog
	// channels or event metadata.
	ErrMissingSignal = errors.New("missing signal")
)

// TrialError attaches the trial name and failure kind to an error. Kind is
// nil for failures outside the fatal kinds.
type TrialError struct {
	Trial string
	Kind  error
	Err   error
}

// NewTrialError classifies err for trial. An err that already is a
// *TrialError is returned unchanged.
func NewTrialError(trial string, err error) *TrialError {
	var te *TrialError
	if errors.As(err, &te) {
		return te
	}
	return &TrialError{Trial: trial, Kind: KindOf(err), Err: err}
}

func (e *TrialError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("trial %s: %v", e.Trial, e.Kind)
	case e.Kind == nil || errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("trial %s: %v", e.Trial, e.Err)
	}
	return fmt.Sprintf("trial %s: %v: %v", e.Trial, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *TrialError) Unwrap() []error {
	var out []error
	for _, err := range []error{e.Kind, e.Err} {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// Configurationf builds an ErrConfiguration-kind error.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// InsufficientDataf builds an ErrInsufficientData-kind error.
func InsufficientDataf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

// MissingSignalf builds an ErrMissingSignal-kind error.
func MissingSignalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMissingSignal, fmt.Sprintf(format, args...))
}

// KindOf classifies err into one of the fatal kinds, or nil when it is none
// of them.
func KindOf(err error) error {
	for _, k := range []error{ErrConfiguration, ErrInsufficientData, ErrMissingSignal} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is the short label stored with a failed trial.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrConfiguration:
		return "ConfigurationError"
	case ErrInsufficientData:
		return "InsufficientDataError"
	case ErrMissingSignal:
		return "MissingSignalError"
	}
	if err == nil {
		return ""
	}
	return "ProcessingError"
}
