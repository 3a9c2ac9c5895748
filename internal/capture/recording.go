// Package capture reads raw motion-capture recordings and turns them into
// trials: marker trajectories, force-plate analog channels, plate geometry,
// gait events and subject anthropometrics.
package capture

import (
	"fmt"
	"math"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/monitoring"
	"github.com/banshee-data/gaitlab/internal/plates"
)

// MissingResidual marks a marker sample the cameras did not reconstruct.
const MissingResidual = -1

// DynamicMinFrames is the frame count a recording with analog channels must
// exceed to be treated as a walking trial.
const DynamicMinFrames = 100

// Sample is one marker reconstruction: x, y, z in mm and the camera
// residual, MissingResidual for a gap.
type Sample [4]float64

// Valid reports whether the sample was reconstructed.
func (s Sample) Valid() bool { return s[3] != MissingResidual }

// Analog is the analog parameter group and its samples. Channels[k] holds
// every sample of channel Labels[k] for the whole recording.
type Analog struct {
	Labels   []string    `json:"labels"`
	Channels [][]float64 `json:"channels"`
}

// EventGroup mirrors the recording's event parameters. Times are seconds
// from the start of the capture.
type EventGroup struct {
	Used     int       `json:"used"`
	Contexts []string  `json:"contexts"`
	Labels   []string  `json:"labels"`
	Times    []float64 `json:"times"`
}

// ForcePlatforms is the force platform parameter group. Corners holds 12
// coordinates per plate.
type ForcePlatforms struct {
	Used    int         `json:"used"`
	Corners [][]float64 `json:"corners"`
}

// Anthropometrics are the processing parameters stored with the capture.
type Anthropometrics struct {
	HeightMM          float64 `json:"height_mm"`
	MassKG            float64 `json:"body_mass_kg"`
	LeftLegMM         float64 `json:"left_leg_length_mm"`
	RightLegMM        float64 `json:"right_leg_length_mm"`
	LeftKneeWidthMM   float64 `json:"left_knee_width_mm"`
	RightKneeWidthMM  float64 `json:"right_knee_width_mm"`
	LeftAnkleWidthMM  float64 `json:"left_ankle_width_mm"`
	RightAnkleWidthMM float64 `json:"right_ankle_width_mm"`
}

// Recording is one decoded capture.
type Recording struct {
	Name       string          `json:"name"`
	PointRate  float64         `json:"point_rate"`
	AnalogRate float64         `json:"analog_rate"`
	FirstFrame int             `json:"first_frame"`
	Labels     []string        `json:"point_labels"`
	Frames     [][]Sample      `json:"frames"`
	Analog     Analog          `json:"analog"`
	Events     *EventGroup     `json:"events,omitempty"`
	Plates     ForcePlatforms  `json:"force_platform"`
	Subject    Anthropometrics `json:"processing"`
}

// IsDynamic reports whether the recording is a walking trial: analog
// channels are in use and it runs longer than DynamicMinFrames.
func (r Recording) IsDynamic() bool { return r.Kind(DynamicMinFrames) == gait.Dynamic }

// Kind classifies the recording with a configurable frame threshold.
func (r Recording) Kind(minFrames int) gait.TrialKind {
	if len(r.Analog.Labels) > 0 && len(r.Frames) > minFrames {
		return gait.Dynamic
	}
	return gait.Static
}

// Repair reconciles header counts with the data actually present, the way
// exporters that patch the container leave them inconsistent: a first
// frame below one, an event count disagreeing with the event arrays, a
// plate count beyond the stored corners, analog labels without samples.
// It returns a description of each fix.
func (r *Recording) Repair() []string {
	var fixes []string
	if r.FirstFrame < 1 {
		fixes = append(fixes, fmt.Sprintf("first frame %d reset to 1", r.FirstFrame))
		r.FirstFrame = 1
	}
	if e := r.Events; e != nil {
		n := min(len(e.Contexts), len(e.Labels), len(e.Times))
		if e.Used != n {
			fixes = append(fixes, fmt.Sprintf("event count %d reset to %d", e.Used, n))
			e.Used = n
		}
	}
	if r.Plates.Used > len(r.Plates.Corners) {
		fixes = append(fixes, fmt.Sprintf("plate count %d reset to %d", r.Plates.Used, len(r.Plates.Corners)))
		r.Plates.Used = len(r.Plates.Corners)
	}
	if n := len(r.Analog.Channels); len(r.Analog.Labels) > n {
		fixes = append(fixes, fmt.Sprintf("%d analog labels without samples dropped", len(r.Analog.Labels)-n))
		r.Analog.Labels = r.Analog.Labels[:n]
	}
	for _, f := range fixes {
		monitoring.Logf("[capture] %s: %s", r.Name, f)
	}
	return fixes
}

// Markers converts the point data into a marker set. Row i is frame
// FirstFrame+i at time (FirstFrame+i-1)/PointRate.
func (r Recording) Markers() (gait.MarkerSet, error) {
	if r.PointRate <= 0 {
		return gait.MarkerSet{}, gait.Configurationf("%s: point rate %g", r.Name, r.PointRate)
	}
	m := gait.MarkerSet{
		Rate:       r.PointRate,
		FirstFrame: r.FirstFrame,
		Labels:     append([]string(nil), r.Labels...),
		Time:       make([]float64, len(r.Frames)),
		Frames:     make([][]gait.Position, len(r.Frames)),
	}
	for i, f := range r.Frames {
		if len(f) != len(r.Labels) {
			return gait.MarkerSet{}, fmt.Errorf("%s frame %d: %d samples for %d labels", r.Name, r.FirstFrame+i, len(f), len(r.Labels))
		}
		m.Time[i] = float64(r.FirstFrame+i-1) / r.PointRate
		row := make([]gait.Position, len(f))
		for j, s := range f {
			if s.Valid() {
				row[j] = gait.At(s[0], s[1], s[2])
			}
		}
		m.Frames[i] = row
	}
	return m, nil
}

// ForcePlates builds the plates in use.
func (r Recording) ForcePlates() ([]plates.Plate, error) {
	out := make([]plates.Plate, 0, r.Plates.Used)
	for i := 0; i < r.Plates.Used && i < len(r.Plates.Corners); i++ {
		p, err := plates.New(i, r.Plates.Corners[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Window is the analog stretch matching a trimmed marker range.
type Window struct {
	Start, Stop float64
}

// AnalogWindow returns [(first-1)/pointRate, last/pointRate - dt/2) for the
// absolute frame range [first, last], dt being the analog sample period.
func (r Recording) AnalogWindow(first, last int) Window {
	dt := 1 / r.AnalogRate
	return Window{
		Start: float64(first-1) / r.PointRate,
		Stop:  float64(last)/r.PointRate - dt/2,
	}
}

// ExtractAnalog cuts the analog channels to the window of frames
// [first, last]. Sample k of a channel is at time
// (FirstFrame-1)/PointRate + k/AnalogRate.
func (r Recording) ExtractAnalog(first, last int) (gait.AnalogSet, error) {
	if len(r.Analog.Labels) == 0 {
		return gait.AnalogSet{}, gait.MissingSignalf("%s: no analog channels", r.Name)
	}
	if r.AnalogRate <= 0 {
		return gait.AnalogSet{}, gait.MissingSignalf("%s: analog rate %g", r.Name, r.AnalogRate)
	}
	w := r.AnalogWindow(first, last)
	dt := 1 / r.AnalogRate
	origin := float64(r.FirstFrame-1) / r.PointRate

	a := gait.AnalogSet{Rate: r.AnalogRate, Labels: append([]string(nil), r.Analog.Labels...)}
	for k := 0; ; k++ {
		t := w.Start + float64(k)*dt
		if t >= w.Stop {
			break
		}
		a.Time = append(a.Time, t)
	}
	lo := int(math.Round((w.Start - origin) / dt))
	a.Channels = make([][]float64, len(r.Analog.Labels))
	for c := range a.Channels {
		src := r.Analog.Channels[c]
		if lo < 0 || lo+len(a.Time) > len(src) {
			return gait.AnalogSet{}, gait.MissingSignalf("%s: analog channel %s has %d samples, window needs [%d,%d)",
				r.Name, r.Analog.Labels[c], len(src), lo, lo+len(a.Time))
		}
		a.Channels[c] = append([]float64(nil), src[lo:lo+len(a.Time)]...)
	}
	return a, nil
}

// ExtractEvents returns the events strictly inside the analog window of
// frames [first, last].
func (r Recording) ExtractEvents(first, last int) ([]gait.Event, error) {
	e := r.Events
	if e == nil {
		return nil, gait.MissingSignalf("%s: no event parameters", r.Name)
	}
	w := r.AnalogWindow(first, last)
	var out []gait.Event
	for i := 0; i < e.Used; i++ {
		t := e.Times[i]
		if t <= w.Start || t >= w.Stop {
			continue
		}
		side, err := gait.ParseSide(e.Contexts[i])
		if err != nil {
			return nil, fmt.Errorf("%s event %d: %w", r.Name, i, err)
		}
		kind, err := gait.ParseEventKind(e.Labels[i])
		if err != nil {
			return nil, fmt.Errorf("%s event %d: %w", r.Name, i, err)
		}
		out = append(out, gait.Event{Time: t, Side: side, Kind: kind})
	}
	gait.SortEvents(out)
	return out, nil
}

// Trial builds the marker-only trial. Analog channels and events are cut
// later, once the marker range has been trimmed.
func (r Recording) Trial() (gait.Trial, error) {
	m, err := r.Markers()
	if err != nil {
		return gait.Trial{}, err
	}
	return gait.Trial{
		Name:       r.Name,
		Kind:       r.Kind(DynamicMinFrames),
		PointRate:  r.PointRate,
		AnalogRate: r.AnalogRate,
		Markers:    m,
		Subject: gait.Subject{
			HeightMM:          r.Subject.HeightMM,
			MassKG:            r.Subject.MassKG,
			LeftLegMM:         r.Subject.LeftLegMM,
			RightLegMM:        r.Subject.RightLegMM,
			LeftKneeWidthMM:   r.Subject.LeftKneeWidthMM,
			RightKneeWidthMM:  r.Subject.RightKneeWidthMM,
			LeftAnkleWidthMM:  r.Subject.LeftAnkleWidthMM,
			RightAnkleWidthMM: r.Subject.RightAnkleWidthMM,
		},
	}, nil
}
