// Package plates locates gait events on force plates and validates the
// resulting stride-to-plate assignment.
package plates

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plate is one force platform described by its four corners in the global
// laboratory frame (mm). Corner order follows the capture system: corner 0
// to corner 1 runs along the plate's -X axis, corner 0 to corner 3 along its
// -Y axis.
type Plate struct {
	Index   int
	Corners [4]r3.Vec
}

// New builds a plate from a flat list of 12 corner coordinates.
func New(index int, corners []float64) (Plate, error) {
	if len(corners) != 12 {
		return Plate{}, fmt.Errorf("plate %d: need 12 corner coordinates, got %d", index, len(corners))
	}
	p := Plate{Index: index}
	for i := range p.Corners {
		p.Corners[i] = r3.Vec{X: corners[3*i], Y: corners[3*i+1], Z: corners[3*i+2]}
	}
	return p, nil
}

// Bounds returns the axis-aligned box spanned by the corners.
func (p Plate) Bounds() r3.Box {
	b := r3.Box{Min: p.Corners[0], Max: p.Corners[0]}
	for _, c := range p.Corners[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, c.X), Y: math.Min(b.Min.Y, c.Y), Z: math.Min(b.Min.Z, c.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, c.X), Y: math.Max(b.Max.Y, c.Y), Z: math.Max(b.Max.Z, c.Z)}
	}
	return b
}

// Contains reports whether the planar point (x, y) lies inside the plate's
// axis-aligned bounding rectangle, edges included. For a plate rotated
// relative to the laboratory axes the rectangle is larger than the plate, so
// points near its corners can be falsely attributed.
func (p Plate) Contains(x, y float64) bool {
	b := p.Bounds()
	return b.Min.X <= x && x <= b.Max.X && b.Min.Y <= y && y <= b.Max.Y
}

// Centroid returns the mean of the corners.
func (p Plate) Centroid() r3.Vec {
	var c r3.Vec
	for _, v := range p.Corners {
		c = r3.Add(c, v)
	}
	return r3.Scale(0.25, c)
}

// Axes returns the plate's local X and Y unit vectors in the global frame.
func (p Plate) Axes() (x, y r3.Vec, err error) {
	xv := r3.Sub(p.Corners[0], p.Corners[1])
	yv := r3.Sub(p.Corners[0], p.Corners[3])
	if r3.Norm(xv) == 0 || r3.Norm(yv) == 0 {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("plate %d: degenerate corners", p.Index)
	}
	return r3.Unit(xv), r3.Unit(yv), nil
}

// Rotation returns R such that v_global = R·v_local for vectors measured in
// the plate frame. It is the least-squares rotation taking global X and Y
// onto the plate's X and Y axes (Kabsch).
func (p Plate) Rotation() (*r3.Mat, error) {
	px, py, err := p.Axes()
	if err != nil {
		return nil, err
	}
	return Align([]r3.Vec{px, py}, []r3.Vec{{X: 1}, {Y: 1}})
}

// Align returns the proper rotation R minimising Σ|a_i - R·b_i|².
func Align(a, b []r3.Vec) (*r3.Mat, error) {
	if len(a) != len(b) || len(a) == 0 {
		return nil, fmt.Errorf("align: %d target vectors for %d source vectors", len(a), len(b))
	}
	// M = Σ b_i a_iᵀ; with M = U S Vᵀ the optimum is V·diag(1,1,d)·Uᵀ.
	var m r3.Mat
	for i := range a {
		var o r3.Mat
		o.Outer(1, b[i], a[i])
		m.Add(&m, &o)
	}
	var svd mat.SVD
	if ok := svd.Factorize(&m, mat.SVDFull); !ok {
		return nil, fmt.Errorf("align: SVD failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}
	vd := mat.DenseCopyOf(&v)
	for i := 0; i < 3; i++ {
		vd.Set(i, 2, vd.At(i, 2)*d)
	}
	var r mat.Dense
	r.Mul(vd, u.T())

	out := r3.NewMat(nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			// Snap round-off so aligned plates produce an exact identity.
			out.Set(i, j, snap(r.At(i, j)))
		}
	}
	return out, nil
}

func snap(v float64) float64 {
	const eps = 1e-12
	for _, w := range []float64{-1, 0, 1} {
		if math.Abs(v-w) < eps {
			return w
		}
	}
	return v
}

// IsIdentity reports whether m is exactly the identity matrix.
func IsIdentity(m *r3.Mat) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if m.At(i, j) != want {
				return false
			}
		}
	}
	return true
}

// MeanCentroid is the mean of all plate centroids, used as the centre of
// pressure whenever no foot is on a plate.
func MeanCentroid(plates []Plate) r3.Vec {
	if len(plates) == 0 {
		return r3.Vec{}
	}
	var c r3.Vec
	for _, p := range plates {
		c = r3.Add(c, p.Centroid())
	}
	return r3.Scale(1/float64(len(plates)), c)
}
