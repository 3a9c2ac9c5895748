package gait

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(t float64, side Side, kind EventKind) Event {
	return Event{Time: t, Side: side, Kind: kind}
}

func TestGroupStrides(t *testing.T) {
	t.Parallel()

	t.Run("pairs strikes with following offs per side", func(t *testing.T) {
		t.Parallel()
		events := []Event{
			ev(1.6, Left, FootOff),
			ev(1.0, Left, FootStrike),
			ev(1.5, Right, FootStrike),
			ev(2.1, Right, FootOff),
			ev(2.2, Left, FootStrike),
		}
		out, strides := GroupStrides(events)

		require.Len(t, out, 5)
		require.Len(t, strides, 3)
		assert.Equal(t, 1.0, out[0].Time, "events are time ordered")

		assert.Equal(t, Left, strides[0].Side)
		assert.Equal(t, 0, strides[0].Number)
		require.True(t, strides[0].Complete())
		assert.Equal(t, 1.6, strides[0].Off.Time)

		assert.Equal(t, Right, strides[1].Side)
		assert.Equal(t, 0, strides[1].Number)
		assert.True(t, strides[1].Complete())

		assert.Equal(t, 1, strides[2].Number)
		assert.NotNil(t, strides[2].Strike)
		assert.Nil(t, strides[2].Off)
	})

	t.Run("leading foot off forms its own stride", func(t *testing.T) {
		t.Parallel()
		out, strides := GroupStrides([]Event{
			ev(0.2, Right, FootOff),
			ev(0.8, Right, FootStrike),
			ev(1.4, Right, FootOff),
		})
		require.Len(t, strides, 2)
		assert.Nil(t, strides[0].Strike)
		assert.Equal(t, 0.2, strides[0].Off.Time)
		assert.Equal(t, 1, strides[1].Number)
		assert.Equal(t, 1, out[2].Stride)
	})

	t.Run("does not alias caller plates", func(t *testing.T) {
		t.Parallel()
		p := 2
		in := []Event{{Time: 1, Side: Left, Kind: FootStrike, Plate: &p}}
		out, _ := GroupStrides(in)
		*out[0].Plate = 5
		assert.Equal(t, 2, p)
	})
}

func TestStridePlateRequiresValidation(t *testing.T) {
	p := 1
	s := Stride{Strike: &Event{Plate: &p}, Off: &Event{Plate: &p}, State: StrikeOffLocated}
	assert.Equal(t, -1, s.Plate())
	s.State = Validated
	assert.Equal(t, 1, s.Plate())
}

func TestTrialErrorKinds(t *testing.T) {
	err := &TrialError{Trial: "Walk01", Kind: ErrInsufficientData, Err: InsufficientDataf("95%% of frames incomplete")}
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "InsufficientDataError", KindName(err))
	assert.Contains(t, err.Error(), "Walk01")

	var te *TrialError
	require.True(t, errors.As(error(err), &te))
	assert.Equal(t, "Walk01", te.Trial)

	assert.Equal(t, "ProcessingError", KindName(errors.New("disk full")))

	classified := NewTrialError("Walk02", MissingSignalf("no events"))
	assert.Equal(t, ErrMissingSignal, classified.Kind)
	assert.Equal(t, "trial Walk02: missing signal: no events", classified.Error())
	assert.Same(t, classified, NewTrialError("other", classified))

	plain := NewTrialError("Walk03", errors.New("disk full"))
	assert.Nil(t, plain.Kind)
	assert.Equal(t, "trial Walk03: disk full", plain.Error())
	assert.Equal(t, "ProcessingError", KindName(plain))
	assert.Equal(t, "", KindName(nil))
}

func TestMarkerSetRowLookup(t *testing.T) {
	m := MarkerSet{Time: []float64{0, 0.01, 0.02, 0.03}}
	assert.Equal(t, 1, m.RowAtOrBefore(0.015))
	assert.Equal(t, 2, m.RowAtOrBefore(0.02))
	assert.Equal(t, -1, m.RowAtOrBefore(-0.5))
	assert.Equal(t, 2, m.RowAtOrAfter(0.015))
	assert.Equal(t, -1, m.RowAtOrAfter(0.5))
}

func TestMidpointSkipsGaps(t *testing.T) {
	m := MarkerSet{
		Time:   []float64{0, 0.01},
		Labels: []string{"LASI", "RASI"},
		Frames: [][]Position{
			{At(0, 100, 900), At(0, -100, 900)},
			{Missing, At(10, -100, 900)},
		},
	}
	mid, err := m.Midpoint("LASI", "RASI")
	require.NoError(t, err)
	assert.True(t, mid[0].Valid)
	assert.Equal(t, 0.0, mid[0].Vec.Y)
	assert.False(t, mid[1].Valid)

	_, err = m.Midpoint("LASI", "SACR")
	assert.Error(t, err)
}
