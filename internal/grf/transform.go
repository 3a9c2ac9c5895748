package grf

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/plates"
)

// Default thresholds in N.
const (
	// DefaultZeroThreshold: raw plate Fz points down, so a loaded plate
	// reads below this value.
	DefaultZeroThreshold = -10.0
	// DefaultContactThreshold applies to the vertical force after rotation
	// into the laboratory frame.
	DefaultContactThreshold = 0.0
)

// Raw holds one plate's six analog channels in plate coordinates.
type Raw struct {
	Plate      int
	Fx, Fy, Fz []float64
	Mx, My, Mz []float64
}

// ExtractRaw reads the six channels of each plate from the analog set. The
// capture system stores them consecutively per plate: Fx Fy Fz Mx My Mz.
func ExtractRaw(a gait.AnalogSet, plateCount int) ([]Raw, error) {
	if plateCount <= 0 {
		return nil, gait.MissingSignalf("no force plates in use")
	}
	if len(a.Channels) < 6*plateCount {
		return nil, gait.MissingSignalf("%d analog channels for %d plates", len(a.Channels), plateCount)
	}
	out := make([]Raw, plateCount)
	for p := range out {
		ch := a.Channels[6*p : 6*p+6]
		out[p] = Raw{
			Plate: p,
			Fx:    append([]float64(nil), ch[0]...),
			Fy:    append([]float64(nil), ch[1]...),
			Fz:    append([]float64(nil), ch[2]...),
			Mx:    append([]float64(nil), ch[3]...),
			My:    append([]float64(nil), ch[4]...),
			Mz:    append([]float64(nil), ch[5]...),
		}
	}
	return out, nil
}

// ZeroNonContact zeroes all six channels wherever Fz is above threshold, so
// that amplifier noise while the foot is in swing does not become a load.
func ZeroNonContact(r Raw, threshold float64) Raw {
	out := Raw{Plate: r.Plate}
	cols := []*[]float64{&out.Fx, &out.Fy, &out.Fz, &out.Mx, &out.My, &out.Mz}
	for k, src := range [][]float64{r.Fx, r.Fy, r.Fz, r.Mx, r.My, r.Mz} {
		*cols[k] = append([]float64(nil), src...)
	}
	for i, fz := range r.Fz {
		if fz > threshold {
			for _, c := range cols {
				(*c)[i] = 0
			}
		}
	}
	return out
}

// Loads is one plate's force, centre of pressure and free moment.
type Loads struct {
	Plate  int
	Force  []r3.Vec
	CoP    []r3.Vec
	Torque []r3.Vec
}

// Len returns the number of samples.
func (l Loads) Len() int { return len(l.Force) }

// DeriveForceAndCouple computes the centre of pressure and the vertical free
// moment of a plate:
//
//	CoPx = -(My + Fx) / Fz
//	CoPy =  (Mx - Fy) / Fz
//	Tz   =  Mz - CoPx·Fy + CoPy·Fx
//
// The centre of pressure is 0 wherever Fz is 0. CoPz, Tx and Ty are 0.
func DeriveForceAndCouple(r Raw) Loads {
	n := len(r.Fz)
	l := Loads{
		Plate:  r.Plate,
		Force:  make([]r3.Vec, n),
		CoP:    make([]r3.Vec, n),
		Torque: make([]r3.Vec, n),
	}
	for i := 0; i < n; i++ {
		fx, fy, fz := r.Fx[i], r.Fy[i], r.Fz[i]
		var copX, copY float64
		if fz != 0 {
			copX = -(r.My[i] + fx) / fz
			copY = (r.Mx[i] - fy) / fz
		}
		l.Force[i] = r3.Vec{X: fx, Y: fy, Z: fz}
		l.CoP[i] = r3.Vec{X: copX, Y: copY}
		l.Torque[i] = r3.Vec{Z: r.Mz[i] - copX*fy + copY*fx}
	}
	return l
}

// RotateToGlobal applies the plate-to-laboratory rotation to every triplet.
func RotateToGlobal(l Loads, rot *r3.Mat) Loads {
	out := Loads{
		Plate:  l.Plate,
		Force:  rotateAll(rot, l.Force),
		CoP:    rotateAll(rot, l.CoP),
		Torque: rotateAll(rot, l.Torque),
	}
	return out
}

func rotateAll(rot *r3.Mat, vs []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(vs))
	for i, v := range vs {
		out[i] = rot.MulVec(v)
	}
	return out
}

// RecentreCoP shifts the planar centre of pressure of each plate by its
// centroid, expressing it in the laboratory frame. It also returns the mean
// centroid over all plates.
func RecentreCoP(loads []Loads, ps []plates.Plate) ([]Loads, r3.Vec) {
	out := make([]Loads, len(loads))
	for i, l := range loads {
		c := ps[i].Centroid()
		cop := make([]r3.Vec, len(l.CoP))
		for k, v := range l.CoP {
			cop[k] = r3.Vec{X: v.X + c.X, Y: v.Y + c.Y, Z: v.Z}
		}
		out[i] = Loads{Plate: l.Plate, Force: l.Force, CoP: cop, Torque: l.Torque}
	}
	return out, plates.MeanCentroid(ps)
}
