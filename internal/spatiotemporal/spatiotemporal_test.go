package spatiotemporal

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitlab/internal/gait"
)

var toeOut = 10 * math.Pi / 180

// walk builds 3 s at 100 Hz of a subject walking +X at 1 m/s. Each heel
// jumps forward 1200 mm mid-swing; the right foot is turned out by 10°.
func walk() gait.MarkerSet {
	m := gait.MarkerSet{Rate: 100, FirstFrame: 1, Labels: []string{"LASI", "RASI", "LHEE", "LTOE", "RHEE", "RTOE"}}
	for i := 0; i <= 300; i++ {
		tm := float64(i) / 100
		lx, rx := 0.0, 600.0
		if tm >= 1.0 {
			lx = 1200
		}
		if tm >= 1.5 {
			rx = 1800
		}
		m.Time = append(m.Time, tm)
		m.Frames = append(m.Frames, []gait.Position{
			gait.At(1000*tm, 120, 900),
			gait.At(1000*tm, -120, 900),
			gait.At(lx, 100, 0),
			gait.At(lx+250, 100, 0),
			gait.At(rx, -100, 0),
			gait.At(rx+250*math.Cos(toeOut), -100-250*math.Sin(toeOut), 0),
		})
	}
	return m
}

func walkEvents() []gait.Event {
	ev := func(tm float64, s gait.Side, k gait.EventKind) gait.Event {
		return gait.Event{Time: tm, Side: s, Kind: k}
	}
	out, _ := gait.GroupStrides([]gait.Event{
		ev(0.2, gait.Left, gait.FootStrike),
		ev(0.3, gait.Right, gait.FootOff),
		ev(0.7, gait.Right, gait.FootStrike),
		ev(0.8, gait.Left, gait.FootOff),
		ev(1.2, gait.Left, gait.FootStrike),
		ev(1.3, gait.Right, gait.FootOff),
		ev(1.7, gait.Right, gait.FootStrike),
		ev(1.8, gait.Left, gait.FootOff),
	})
	return out
}

func metric(t *testing.T, s Summary, name string) float64 {
	t.Helper()
	v, ok := s.Get(name)
	require.True(t, ok, "metric %q missing", name)
	return v
}

func TestComputeSummary(t *testing.T) {
	_, s := Compute("Walk01", walk(), walkEvents(), 0)

	assert.InDelta(t, 1.2, metric(t, s, StrideLength), 1e-9)
	assert.InDelta(t, 0.6, metric(t, s, StepLengthLeft), 1e-9)
	assert.InDelta(t, 0.6, metric(t, s, StepLengthRight), 1e-9)
	assert.InDelta(t, 0.2, metric(t, s, StepWidth), 1e-9)
	assert.InDelta(t, 60, metric(t, s, StancePct), 1e-6)
	assert.InDelta(t, 40, metric(t, s, SwingPct), 1e-6)
	assert.InDelta(t, 100*1.5/1.9, metric(t, s, SingleSupportPct), 1e-6)
	assert.InDelta(t, 100*0.4/1.9, metric(t, s, DoubleSupportPct), 1e-6)
	assert.InDelta(t, 1.0, metric(t, s, Speed), 1e-9)
	assert.InDelta(t, 120, metric(t, s, Cadence), 1e-9)
	assert.InDelta(t, 0, metric(t, s, FootProgressionLeft), 1e-9)
	assert.InDelta(t, 10, metric(t, s, FootProgressionRight), 1e-9)

	_, ok := s.Get(StrideLengthNorm)
	assert.False(t, ok, "normalised metrics omitted without leg length")
	_, ok = s.Get(SpeedFroude)
	assert.False(t, ok)
}

func TestComputeLegLengthNormalisation(t *testing.T) {
	_, s := Compute("Walk01", walk(), walkEvents(), 900)
	assert.InDelta(t, 1.2/0.9, metric(t, s, StrideLengthNorm), 1e-9)
	assert.InDelta(t, 1/0.9, metric(t, s, SpeedNorm), 1e-9)
	assert.InDelta(t, 1/math.Sqrt(9.81*0.9), metric(t, s, SpeedFroude), 1e-9)
	assert.Equal(t, 0.9, s.LegLengthM)
}

func TestComputeRecords(t *testing.T) {
	recs, _ := Compute("Walk01", walk(), walkEvents(), 0)
	byID := map[string]Record{}
	for _, r := range recs {
		byID[r.ID()] = r
	}

	left0 := byID["Left_0"]
	require.NotNil(t, left0.StrideLengthM)
	assert.InDelta(t, 1.2, *left0.StrideLengthM, 1e-9)
	require.NotNil(t, left0.StanceS)
	assert.InDelta(t, 0.6, *left0.StanceS, 1e-9)
	require.NotNil(t, left0.FootProgressionDeg)
	assert.Nil(t, left0.StepLengthM, "first strike has no opposite strike before it")

	right1 := byID["Right_1"]
	require.NotNil(t, right1.StepWidthM)
	assert.InDelta(t, 0.2, *right1.StepWidthM, 1e-9)
	require.NotNil(t, right1.FootProgressionDeg)
	assert.InDelta(t, 10, *right1.FootProgressionDeg, 1e-9)
}

func TestStrideLengthFromTwoStrikes(t *testing.T) {
	m := gait.MarkerSet{Rate: 100, FirstFrame: 1, Labels: []string{"LHEE"}}
	for i := 0; i < 200; i++ {
		x := 0.0
		if i >= 100 {
			x = 1200
		}
		m.Time = append(m.Time, float64(i)/100)
		m.Frames = append(m.Frames, []gait.Position{gait.At(x, 0, 0)})
	}
	events, _ := gait.GroupStrides([]gait.Event{
		{Time: 0.5, Side: gait.Left, Kind: gait.FootStrike},
		{Time: 1.5, Side: gait.Left, Kind: gait.FootStrike},
	})
	_, s := Compute("T", m, events, 0)
	assert.InDelta(t, 1.2, metric(t, s, StrideLength), 1e-12)
	_, ok := s.Get(Speed)
	assert.False(t, ok, "no pelvis markers")
}

func TestTableWriteCSV(t *testing.T) {
	a := Summary{Trial: "A"}
	a.set(StrideLength, 1.2)
	b := Summary{Trial: "B"}
	b.set(StrideLength, 1.3)
	b.set(Speed, 1.0)

	var buf bytes.Buffer
	require.NoError(t, Table{Trials: []Summary{a, b}}.WriteCSV(&buf))
	want := ",A,B,Average\n" +
		"Stride Length (m),1.200,1.300,1.250\n" +
		"Gait Speed (m/s),,1.000,1.000\n"
	assert.Equal(t, want, buf.String())
}
