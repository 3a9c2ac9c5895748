package plates

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// alignedPlate is a 500 x 400 mm plate at x0 whose axes match the laboratory
// axes once corner order is taken into account.
func alignedPlate(index int, x0 float64) Plate {
	p, _ := New(index, []float64{
		x0 + 500, 400, 0,
		x0, 400, 0,
		x0, 0, 0,
		x0 + 500, 0, 0,
	})
	return p
}

func walkway() []Plate {
	return []Plate{alignedPlate(0, 0), alignedPlate(1, 600), alignedPlate(2, 1200)}
}

func TestNewRejectsShortCorners(t *testing.T) {
	_, err := New(0, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestContainsAndCentroid(t *testing.T) {
	p := alignedPlate(0, 0)
	assert.True(t, p.Contains(250, 200))
	assert.True(t, p.Contains(0, 0), "edges are inside")
	assert.False(t, p.Contains(501, 200))
	assert.False(t, p.Contains(250, -1))
	if diff := cmp.Diff(r3.Vec{X: 250, Y: 200}, p.Centroid()); diff != "" {
		t.Errorf("centroid mismatch (-want +got):\n%s", diff)
	}
}

func TestRotationIdentityForAlignedPlate(t *testing.T) {
	r, err := alignedPlate(0, 0).Rotation()
	require.NoError(t, err)
	assert.True(t, IsIdentity(r), "got %v", r)
}

func TestRotationForTurnedPlate(t *testing.T) {
	// Plate X axis points along global +Y, plate Y along global -X.
	p, err := New(0, []float64{
		0, 500, 0,
		0, 0, 0,
		400, 0, 0,
		400, 500, 0,
	})
	require.NoError(t, err)
	r, err := p.Rotation()
	require.NoError(t, err)

	got := r.MulVec(r3.Vec{X: 1})
	assert.InDelta(t, 0, got.X, 1e-9)
	assert.InDelta(t, 1, got.Y, 1e-9)
	got = r.MulVec(r3.Vec{Y: 1})
	assert.InDelta(t, -1, got.X, 1e-9)
	assert.InDelta(t, 0, got.Y, 1e-9)
	assert.InDelta(t, 1, r.Det(), 1e-9, "proper rotation")
}

func TestAlignRecoversKnownRotation(t *testing.T) {
	rot := r3.NewRotation(math.Pi/5, r3.Vec{Z: 1})
	b := []r3.Vec{{X: 1}, {Y: 1}}
	a := []r3.Vec{rot.Rotate(b[0]), rot.Rotate(b[1])}
	r, err := Align(a, b)
	require.NoError(t, err)
	want := rot.Mat()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, want.At(i, j), r.At(i, j), 1e-9)
		}
	}
}

func TestMeanCentroid(t *testing.T) {
	c := MeanCentroid(walkway())
	assert.InDelta(t, 850, c.X, 1e-9)
	assert.InDelta(t, 200, c.Y, 1e-9)
	assert.Equal(t, r3.Vec{}, MeanCentroid(nil))
}

// footSet places the left heel and toe at fixed positions for 2 s at 100 Hz.
func footSet(heel, toe gait.Position) gait.MarkerSet {
	m := gait.MarkerSet{Rate: 100, FirstFrame: 1, Labels: []string{"LHEE", "LTOE"}}
	for i := 0; i < 200; i++ {
		m.Time = append(m.Time, float64(i)/100)
		m.Frames = append(m.Frames, []gait.Position{heel, toe})
	}
	return m
}

func TestAttribute(t *testing.T) {
	t.Parallel()

	t.Run("heel inside a plate", func(t *testing.T) {
		t.Parallel()
		m := footSet(gait.At(700, 100, 0), gait.At(900, 100, 0))
		out := Attribute(m, []gait.Event{{Time: 0.505, Side: gait.Left, Kind: gait.FootStrike}}, walkway())
		require.Len(t, out, 1)
		assert.Equal(t, 1, out[0].PlateIndex())
	})

	t.Run("heel outside every plate", func(t *testing.T) {
		t.Parallel()
		m := footSet(gait.At(550, 100, 0), gait.At(560, 100, 0))
		out := Attribute(m, []gait.Event{{Time: 0.5, Side: gait.Left, Kind: gait.FootStrike}}, walkway())
		assert.Nil(t, out[0].Plate)
	})

	t.Run("foot off uses the toe", func(t *testing.T) {
		t.Parallel()
		m := footSet(gait.At(1100, 100, 0), gait.At(1300, 100, 0))
		out := Attribute(m, []gait.Event{{Time: 1, Side: gait.Left, Kind: gait.FootOff}}, walkway())
		assert.Equal(t, 2, out[0].PlateIndex())
	})

	t.Run("foot off falls back to the heel", func(t *testing.T) {
		t.Parallel()
		m := footSet(gait.At(100, 100, 0), gait.Missing)
		out := Attribute(m, []gait.Event{{Time: 1, Side: gait.Left, Kind: gait.FootOff}}, walkway())
		assert.Equal(t, 0, out[0].PlateIndex())
	})

	t.Run("event before first frame", func(t *testing.T) {
		t.Parallel()
		m := footSet(gait.At(100, 100, 0), gait.At(100, 100, 0))
		out := Attribute(m, []gait.Event{{Time: -0.1, Side: gait.Left, Kind: gait.FootStrike}}, walkway())
		assert.Nil(t, out[0].Plate)
	})
}

func plated(tm float64, side gait.Side, kind gait.EventKind, plate int) gait.Event {
	return gait.Event{Time: tm, Side: side, Kind: kind, Plate: &plate}
}

func unplated(tm float64, side gait.Side, kind gait.EventKind) gait.Event {
	return gait.Event{Time: tm, Side: side, Kind: kind}
}

func states(strides []gait.Stride) map[string]gait.StrideState {
	out := map[string]gait.StrideState{}
	for _, s := range strides {
		out[s.ID()] = s.State
	}
	return out
}

func TestValidateAlternatingPlates(t *testing.T) {
	events := []gait.Event{
		plated(1.0, gait.Left, gait.FootStrike, 1),
		plated(1.6, gait.Left, gait.FootOff, 1),
		plated(1.5, gait.Right, gait.FootStrike, 2),
		plated(2.1, gait.Right, gait.FootOff, 2),
		plated(2.0, gait.Left, gait.FootStrike, 1),
		plated(2.6, gait.Left, gait.FootOff, 1),
	}
	_, strides, issues := Validate(events)
	assert.Empty(t, issues)
	want := map[string]gait.StrideState{"Left_0": gait.Validated, "Right_0": gait.Validated, "Left_1": gait.Validated}
	if diff := cmp.Diff(want, states(strides)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}

	t.Run("adjacent fourth stride on the same plate", func(t *testing.T) {
		more := append(gait.CloneEvents(events),
			plated(2.5, gait.Right, gait.FootStrike, 1),
			plated(3.1, gait.Right, gait.FootOff, 1),
		)
		out, strides, issues := Validate(more)
		want := map[string]gait.StrideState{
			"Left_0":  gait.Validated,
			"Right_0": gait.Validated,
			"Left_1":  gait.Invalidated,
			"Right_1": gait.Invalidated,
		}
		if diff := cmp.Diff(want, states(strides)); diff != "" {
			t.Errorf("states mismatch (-want +got):\n%s", diff)
		}
		require.Len(t, issues, 2)
		for _, is := range issues {
			assert.Equal(t, RuleContamination, is.Rule)
		}
		for _, e := range out {
			if e.Stride == 1 {
				assert.Nil(t, e.Plate, "event at %g keeps plate", e.Time)
			} else {
				assert.NotNil(t, e.Plate, "event at %g lost plate", e.Time)
			}
		}
		assert.Equal(t, 1, *events[4].Plate, "input not modified")
	})
}

func TestValidateSharedPlateRule(t *testing.T) {
	_, strides, issues := Validate([]gait.Event{
		plated(1.0, gait.Left, gait.FootStrike, 0),
		plated(1.6, gait.Left, gait.FootOff, 1),
		plated(1.5, gait.Right, gait.FootStrike, 2),
		unplated(2.1, gait.Right, gait.FootOff),
		unplated(2.0, gait.Left, gait.FootStrike),
		unplated(2.6, gait.Left, gait.FootOff),
	})
	want := map[string]gait.StrideState{
		"Left_0":  gait.Invalidated,
		"Right_0": gait.Invalidated,
		"Left_1":  gait.Unassigned,
	}
	if diff := cmp.Diff(want, states(strides)); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, issues, 2)
	assert.Equal(t, "Left_0", issues[0].Stride)
	assert.Equal(t, RuleSharedPlate, issues[0].Rule)
	assert.Contains(t, issues[1].String(), "no plate")
	for _, s := range strides {
		assert.Equal(t, -1, s.Plate())
	}
}

func TestValidatePartialStrides(t *testing.T) {
	_, strides, issues := Validate([]gait.Event{
		plated(0.2, gait.Right, gait.FootOff, 0),
		plated(2.0, gait.Left, gait.FootStrike, 1),
	})
	assert.Empty(t, issues)
	require.Len(t, strides, 2)
	for _, s := range strides {
		assert.Equal(t, gait.Validated, s.State, s.ID())
	}
	assert.Equal(t, 0, strides[0].Plate())
	assert.Equal(t, 1, strides[1].Plate())
}

func TestValidateRejectsStrideMissingAnEvent(t *testing.T) {
	t.Run("off dropped before a later strike", func(t *testing.T) {
		out, strides, issues := Validate([]gait.Event{
			plated(0.1, gait.Left, gait.FootStrike, 0),
			plated(0.6, gait.Right, gait.FootStrike, 1),
			plated(1.0, gait.Right, gait.FootOff, 1),
			unplated(1.3, gait.Left, gait.FootStrike),
			unplated(1.9, gait.Left, gait.FootOff),
		})
		want := map[string]gait.StrideState{
			"Left_0":  gait.Invalidated,
			"Right_0": gait.Validated,
			"Left_1":  gait.Unassigned,
		}
		if diff := cmp.Diff(want, states(strides)); diff != "" {
			t.Errorf("states mismatch (-want +got):\n%s", diff)
		}
		require.Len(t, issues, 1)
		assert.Equal(t, "Left_0", issues[0].Stride)
		assert.Equal(t, RuleMissingEvent, issues[0].Rule)
		assert.Nil(t, out[0].Plate)
		assert.Equal(t, -1, strides[0].Plate())
	})

	t.Run("strike dropped after an earlier stride", func(t *testing.T) {
		_, strides, issues := Validate([]gait.Event{
			plated(1.0, gait.Left, gait.FootStrike, 0),
			plated(1.6, gait.Left, gait.FootOff, 0),
			plated(2.6, gait.Left, gait.FootOff, 2),
		})
		want := map[string]gait.StrideState{
			"Left_0": gait.Validated,
			"Left_1": gait.Invalidated,
		}
		if diff := cmp.Diff(want, states(strides)); diff != "" {
			t.Errorf("states mismatch (-want +got):\n%s", diff)
		}
		require.Len(t, issues, 1)
		assert.Equal(t, RuleMissingEvent, issues[0].Rule)
	})
}
