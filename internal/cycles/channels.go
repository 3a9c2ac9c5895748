// Package cycles slices trial series into gait cycles, applies the side
// conventions that make left and right directly comparable, and normalises
// each cycle onto a fixed 0-100 % grid.
package cycles

import (
	"fmt"
	"strings"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/grf"
)

// Kind is the family of channels a cycle carries.
type Kind string

const (
	Kinematics Kind = "kinematics"
	Kinetics   Kind = "kinetics"
	GRF        Kind = "grf"
	Torque     Kind = "torque"
)

// Kinds lists every kind in output order.
var Kinds = []Kind{Kinematics, Kinetics, GRF, Torque}

// RequiresValidStride reports whether cycles of this kind need a stride
// whose events share a force plate.
func (k Kind) RequiresValidStride() bool { return k != Kinematics }

var (
	pelvisCoordinates = []string{"pelvis_tilt", "pelvis_list", "pelvis_rotation"}
	legCoordinates    = []string{"hip_flexion", "hip_adduction", "hip_rotation", "knee_angle", "ankle_angle", "subtalar_angle"}
	poweredJoints     = []string{"hip_flexion", "knee_angle", "ankle_angle"}
)

// PoweredJoints lists the coordinates for which joint power is computed.
func PoweredJoints() []string { return append([]string(nil), poweredJoints...) }

// Channels returns the source column names of a kind for one side, in
// output order.
func Channels(kind Kind, side gait.Side) []string {
	sfx := side.Suffix()
	var out []string
	switch kind {
	case Kinematics:
		out = append(out, pelvisCoordinates...)
		for _, c := range legCoordinates {
			out = append(out, c+"_"+sfx)
		}
	case Kinetics:
		for _, c := range legCoordinates {
			out = append(out, fmt.Sprintf("%s_%s_moment", c, sfx))
		}
		for _, c := range poweredJoints {
			out = append(out, fmt.Sprintf("%s_%s_power", c, sfx))
		}
	case GRF, Torque:
		q := grf.Force
		if kind == Torque {
			q = grf.Torque
		}
		for a := grf.X; a <= grf.Z; a++ {
			out = append(out, grf.Channel{Side: side, Quantity: q, Axis: a}.Label())
		}
	}
	return out
}

// Generic strips the side from a column name so both sides share a header:
// hip_flexion_l -> hip_flexion, knee_angle_r_moment -> knee_angle_moment,
// 1_ground_force_vx -> ground_force_vx.
func Generic(name string) string {
	name = strings.TrimPrefix(name, "1_")
	for _, sfx := range []string{"_l", "_r"} {
		if strings.HasSuffix(name, sfx) {
			return strings.TrimSuffix(name, sfx)
		}
		if i := strings.Index(name, sfx+"_"); i >= 0 {
			return name[:i] + name[i+len(sfx):]
		}
	}
	return name
}

// GenericChannels is Channels with the side stripped.
func GenericChannels(kind Kind) []string {
	src := Channels(kind, gait.Left)
	out := make([]string, len(src))
	for i, c := range src {
		out[i] = Generic(c)
	}
	return out
}

// applyConventions rewrites a cycle's data in place so that left and right
// are expressed alike. The offsets are fixed by the laboratory reporting
// conventions and must not be re-derived.
func applyConventions(kind Kind, side gait.Side, labels []string, data [][]float64) {
	col := func(name string) []float64 {
		for i, l := range labels {
			if l == name {
				return data[i]
			}
		}
		return nil
	}
	apply := func(name string, f func(float64) float64) {
		c := col(name)
		for i := range c {
			c[i] = f(c[i])
		}
	}
	neg := func(v float64) float64 { return -v }

	switch kind {
	case Kinematics:
		if side == gait.Left {
			apply("pelvis_rotation", neg)
			apply("hip_adduction_l", neg)
			apply("hip_rotation_l", neg)
			apply("knee_angle_l", neg)
		} else {
			apply("pelvis_list", func(v float64) float64 { return -(v - 180) })
			apply("knee_angle_r", neg)
		}
		apply("pelvis_list", func(v float64) float64 { return v - 90 })
	case Kinetics:
		if side == gait.Right {
			apply("hip_adduction_r_moment", func(v float64) float64 { return -v + 1 })
		}
	case GRF:
		if side == gait.Left {
			apply("ground_force_vy", neg)
		}
	}
}
