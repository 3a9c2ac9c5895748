package capture

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitlab/internal/fsutil"
	"github.com/banshee-data/gaitlab/internal/gait"
)

func recording(frames int) Recording {
	r := Recording{
		Name:       "Walk01",
		PointRate:  100,
		AnalogRate: 1000,
		FirstFrame: 1,
		Labels:     []string{"LASI", "RASI"},
		Analog:     Analog{Labels: []string{"Fx1"}, Channels: [][]float64{make([]float64, frames*10)}},
		Events: &EventGroup{
			Used:     3,
			Contexts: []string{"Left", "Right", "Left"},
			Labels:   []string{"Foot Strike", "Foot Off", "Foot Strike"},
			Times:    []float64{0.1, 0.5, 1.95},
		},
		Plates: ForcePlatforms{Used: 1, Corners: [][]float64{{500, 400, 0, 0, 400, 0, 0, 0, 0, 500, 0, 0}}},
	}
	for i := range r.Analog.Channels[0] {
		r.Analog.Channels[0][i] = float64(i)
	}
	for i := 0; i < frames; i++ {
		r.Frames = append(r.Frames, []Sample{{float64(i), 100, 900, 0.5}, {float64(i), -100, 900, 0.4}})
	}
	return r
}

func TestIsDynamic(t *testing.T) {
	assert.True(t, recording(200).IsDynamic())
	assert.False(t, recording(100).IsDynamic(), "needs more than 100 frames")

	static := recording(200)
	static.Analog = Analog{}
	assert.False(t, static.IsDynamic())

	assert.Equal(t, gait.Dynamic, recording(60).Kind(50), "threshold is configurable")
	assert.Equal(t, gait.Static, recording(60).Kind(60))
}

func TestMarkersMapsResidualSentinel(t *testing.T) {
	r := recording(3)
	r.FirstFrame = 11
	r.Frames[1][0] = Sample{0, 0, 0, MissingResidual}

	m, err := r.Markers()
	require.NoError(t, err)
	assert.Equal(t, 11, m.FirstFrame)
	assert.InDelta(t, 0.10, m.Time[0], 1e-12)
	assert.InDelta(t, 0.12, m.Time[2], 1e-12)
	assert.False(t, m.Frames[1][0].Valid)
	assert.True(t, m.Frames[1][1].Valid)

	r.Frames[2] = r.Frames[2][:1]
	_, err = r.Markers()
	assert.Error(t, err)
}

func TestExtractAnalogWindow(t *testing.T) {
	r := recording(200)
	w := r.AnalogWindow(11, 190)
	assert.InDelta(t, 0.1, w.Start, 1e-12)
	assert.InDelta(t, 1.8995, w.Stop, 1e-12)

	a, err := r.ExtractAnalog(11, 190)
	require.NoError(t, err)
	require.Equal(t, 1800, a.Len())
	assert.Equal(t, 100.0, a.Channels[0][0])
	assert.Equal(t, 1899.0, a.Channels[0][1799])
	assert.InDelta(t, 0.1, a.Time[0], 1e-12)

	t.Run("no analog", func(t *testing.T) {
		r := recording(200)
		r.Analog = Analog{}
		_, err := r.ExtractAnalog(1, 200)
		assert.True(t, errors.Is(err, gait.ErrMissingSignal))
	})
}

func TestExtractEventsStrictlyInside(t *testing.T) {
	r := recording(200)
	ev, err := r.ExtractEvents(11, 190)
	require.NoError(t, err)
	require.Len(t, ev, 1, "0.1 sits on the window start and 1.95 past its end")
	assert.Equal(t, 0.5, ev[0].Time)
	assert.Equal(t, gait.Right, ev[0].Side)
	assert.Equal(t, gait.FootOff, ev[0].Kind)

	r.Events = nil
	_, err = r.ExtractEvents(11, 190)
	assert.True(t, errors.Is(err, gait.ErrMissingSignal))
}

func TestRepair(t *testing.T) {
	r := recording(200)
	r.FirstFrame = 0
	r.Events.Used = 7
	r.Plates.Used = 3
	r.Analog.Labels = append(r.Analog.Labels, "Fy1")

	fixes := r.Repair()
	assert.Len(t, fixes, 4)
	assert.Equal(t, 1, r.FirstFrame)
	assert.Equal(t, 3, r.Events.Used)
	assert.Equal(t, 1, r.Plates.Used)
	assert.Equal(t, []string{"Fx1"}, r.Analog.Labels)
	assert.Empty(t, r.Repair(), "repair is idempotent")
}

func TestTrialAndPlates(t *testing.T) {
	r := recording(200)
	r.Subject = Anthropometrics{MassKG: 70, LeftLegMM: 880, RightLegMM: 900}
	tr, err := r.Trial()
	require.NoError(t, err)
	assert.Equal(t, gait.Dynamic, tr.Kind)
	assert.Equal(t, 890.0, tr.Subject.LegLengthMM())
	assert.Equal(t, 200, tr.Markers.Len())

	ps, err := r.ForcePlates()
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Contains(250, 200))
}

func TestBundleSource(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	r := recording(150)
	r.Name = ""
	r.Events.Used = 5
	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, mem.WriteFile("/in/Walk07.json", data, 0o644))

	got, err := NewBundleSource(mem).Load("/in/Walk07.json")
	require.NoError(t, err)
	assert.Equal(t, "Walk07", got.Name)
	assert.Equal(t, 3, got.Events.Used, "loaded bundles are repaired")
	assert.Len(t, got.Frames, 150)

	r.Name = "S01/Walk 08"
	data, err = json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, mem.WriteFile("/in/Walk08.json", data, 0o644))
	got, err = NewBundleSource(mem).Load("/in/Walk08.json")
	require.NoError(t, err)
	assert.Equal(t, "S01_Walk_08", got.Name)

	_, err = NewBundleSource(mem).Load("/in/missing.json")
	assert.Error(t, err)

	require.NoError(t, mem.WriteFile("/in/bad.json", []byte("{"), 0o644))
	_, err = NewBundleSource(mem).Load("/in/bad.json")
	assert.Error(t, err)
}
