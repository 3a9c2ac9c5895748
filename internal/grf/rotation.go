package grf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/plates"
)

// WalkingDirection returns the signed unit laboratory axis (X or Y) along
// which the pelvis travelled the most between the first and last frames
// where both ASIS markers are visible.
func WalkingDirection(m gait.MarkerSet) (r3.Vec, error) {
	mid, err := m.Midpoint("LASI", "RASI")
	if err != nil {
		return r3.Vec{}, err
	}
	first, last := -1, -1
	for i, p := range mid {
		if !p.Valid {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 || first == last {
		return r3.Vec{}, gait.InsufficientDataf("pelvis not visible on two frames")
	}
	d := r3.Sub(mid[last].Vec, mid[first].Vec)
	if math.Abs(d.X) >= math.Abs(d.Y) {
		return r3.Vec{X: sign(d.X)}, nil
	}
	return r3.Vec{Y: sign(d.Y)}, nil
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// GlobalRotation returns the yaw rotation taking the walking direction onto
// +X. Entries are rounded, so the result is an exact signed permutation.
func GlobalRotation(m gait.MarkerSet) (*r3.Mat, error) {
	dir, err := WalkingDirection(m)
	if err != nil {
		return nil, fmt.Errorf("walking direction: %w", err)
	}
	angle := -math.Atan2(dir.Y, dir.X)
	rot := r3.NewRotation(angle, r3.Vec{Z: 1}).Mat()
	out := r3.NewMat(nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, math.Round(rot.At(i, j)))
		}
	}
	return out, nil
}

// RotateMarkers applies rot to every valid marker sample. The identity
// rotation returns an unmodified copy.
func RotateMarkers(m gait.MarkerSet, rot *r3.Mat) gait.MarkerSet {
	out := m.Clone()
	if plates.IsIdentity(rot) {
		return out
	}
	for _, f := range out.Frames {
		for j, p := range f {
			if p.Valid {
				f[j] = gait.Position{Vec: rot.MulVec(p.Vec), Valid: true}
			}
		}
	}
	return out
}

// RotateTable applies rot to every triplet of the table.
func RotateTable(t Table, rot *r3.Mat) Table {
	out := t.Clone()
	if plates.IsIdentity(rot) {
		return out
	}
	for _, s := range gait.Sides {
		for q := Force; q <= Torque; q++ {
			cx := out.Get(Channel{Side: s, Quantity: q, Axis: X})
			cy := out.Get(Channel{Side: s, Quantity: q, Axis: Y})
			cz := out.Get(Channel{Side: s, Quantity: q, Axis: Z})
			for i := range cx {
				v := rot.MulVec(r3.Vec{X: cx[i], Y: cy[i], Z: cz[i]})
				cx[i], cy[i], cz[i] = v.X, v.Y, v.Z
			}
		}
	}
	return out
}
