package markers

import (
	"sort"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// Trim defaults.
const (
	DefaultTrimTolerance      = 20
	DefaultIncompleteFraction = 0.9
)

// TrimResult describes the retained part of a trial.
type TrimResult struct {
	Markers gait.MarkerSet
	// First and Last are the absolute frame numbers of the retained range,
	// reused to cut the analog stream to the same window.
	First, Last int
	// Trimmed counts frames removed from the two ends.
	Trimmed int
	// Incomplete lists absolute frame numbers inside the retained range that
	// still have gaps. They are reported, not dropped.
	Incomplete []int
}

// FindIncompleteFrames returns, per row, the markers missing from that row.
// Rows without gaps are absent from the map.
func FindIncompleteFrames(set gait.MarkerSet) map[int][]string {
	out := map[int][]string{}
	for i, frame := range set.Frames {
		for j, p := range frame {
			if !p.Valid {
				out[i] = append(out[i], set.Labels[j])
			}
		}
	}
	return out
}

// Trim removes incomplete frames that lie within tolerance frames of either
// end of the trial, together with every frame outside them. It fails with an
// insufficient-data error when at least maxFraction of the frames are
// incomplete. Trials no longer than twice the tolerance are not trimmed.
func Trim(set gait.MarkerSet, tolerance int, maxFraction float64) (TrimResult, error) {
	n := set.Len()
	if n == 0 {
		return TrimResult{}, gait.InsufficientDataf("trial has no frames")
	}
	incomplete := FindIncompleteFrames(set)
	if float64(len(incomplete)) >= maxFraction*float64(n) {
		return TrimResult{}, gait.InsufficientDataf("%d of %d frames are incomplete", len(incomplete), n)
	}

	rows := make([]int, 0, len(incomplete))
	for r := range incomplete {
		rows = append(rows, r)
	}
	sort.Ints(rows)

	start, end := 0, n-1
	if n > 2*tolerance {
		for _, r := range rows {
			if r < tolerance {
				start = r + 1
			}
		}
		for i := len(rows) - 1; i >= 0; i-- {
			if rows[i] > n-1-tolerance {
				end = rows[i] - 1
			}
		}
	}

	res := TrimResult{
		Markers: set.Slice(start, end+1),
		First:   set.FirstFrame + start,
		Last:    set.FirstFrame + end,
		Trimmed: n - (end - start + 1),
	}
	for _, r := range rows {
		if r >= start && r <= end {
			res.Incomplete = append(res.Incomplete, set.FirstFrame+r)
		}
	}
	if res.Trimmed > 0 {
		logf("trim: kept frames %d-%d (%d trimmed)", res.First, res.Last, res.Trimmed)
	}
	return res, nil
}
