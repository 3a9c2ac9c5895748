package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// gapSet builds n frames at 100 Hz of two markers; rows listed in gaps have
// the second marker missing.
func gapSet(n int, gaps ...int) gait.MarkerSet {
	missing := map[int]bool{}
	for _, g := range gaps {
		missing[g] = true
	}
	set := gait.MarkerSet{Rate: 100, FirstFrame: 1, Labels: []string{"LHEE", "RHEE"}}
	for i := 0; i < n; i++ {
		set.Time = append(set.Time, float64(i)/100)
		row := []gait.Position{gait.At(float64(i), 0, 0), gait.At(float64(i), 1, 0)}
		if missing[i] {
			row[1] = gait.Missing
		}
		set.Frames = append(set.Frames, row)
	}
	return set
}

func TestTrimLeadingAndTrailingGaps(t *testing.T) {
	set := gapSet(300, 0, 1, 2, 3, 4, 297, 298, 299)

	res, err := Trim(set, DefaultTrimTolerance, DefaultIncompleteFraction)
	require.NoError(t, err)

	assert.Equal(t, 8, res.Trimmed)
	assert.Equal(t, 292, res.Markers.Len())
	assert.Equal(t, 6, res.First)
	assert.Equal(t, 297, res.Last)
	assert.Empty(t, res.Incomplete)
	assert.Empty(t, FindIncompleteFrames(res.Markers))
	assert.Equal(t, 0.05, res.Markers.Time[0])
	assert.Equal(t, res.First, res.Markers.FirstFrame)
}

func TestTrimKeepsInteriorGaps(t *testing.T) {
	set := gapSet(300, 10, 150, 151)

	res, err := Trim(set, DefaultTrimTolerance, DefaultIncompleteFraction)
	require.NoError(t, err)

	assert.Equal(t, 11, res.Trimmed)
	assert.Equal(t, []int{151, 152}, res.Incomplete)
	assert.LessOrEqual(t, res.Markers.Len(), set.Len())
	assert.Equal(t, res.Last-res.First+1, res.Markers.Len(), "retained range is contiguous")
}

func TestTrimShortTrialUntouched(t *testing.T) {
	set := gapSet(40, 0, 39)
	res, err := Trim(set, DefaultTrimTolerance, DefaultIncompleteFraction)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Trimmed)
	assert.Equal(t, []int{1, 40}, res.Incomplete)
}

func TestTrimInsufficientData(t *testing.T) {
	gaps := make([]int, 0, 95)
	for i := 0; i < 95; i++ {
		gaps = append(gaps, i)
	}
	_, err := Trim(gapSet(100, gaps...), DefaultTrimTolerance, DefaultIncompleteFraction)
	assert.ErrorIs(t, err, gait.ErrInsufficientData)

	_, err = Trim(gait.MarkerSet{}, DefaultTrimTolerance, DefaultIncompleteFraction)
	assert.ErrorIs(t, err, gait.ErrInsufficientData)
}

func TestTrimDoesNotModifyInput(t *testing.T) {
	set := gapSet(100, 0)
	_, err := Trim(set, 20, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 100, set.Len())
	assert.False(t, set.Frames[0][1].Valid)
}
