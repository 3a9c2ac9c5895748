package osim

import (
	"fmt"

	"github.com/banshee-data/gaitlab/internal/cycles"
	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/signal"
	"github.com/banshee-data/gaitlab/internal/units"
)

// JointPowers adds "<joint>_<side>_power" columns to id: the angular
// velocity of the kinematic coordinate (degrees converted to radians,
// differentiated against ik time) times the joint moment. Both tables must
// share a time base.
func JointPowers(ik gait.Series, id *gait.Series) error {
	if ik.Len() != id.Len() {
		return fmt.Errorf("joint powers: %d kinematic rows, %d kinetic rows", ik.Len(), id.Len())
	}
	for _, joint := range cycles.PoweredJoints() {
		for _, s := range gait.Sides {
			coord := joint + "_" + s.Suffix()
			angle, err := ik.Column(coord)
			if err != nil {
				return fmt.Errorf("joint powers: %w", err)
			}
			moment, err := id.Column(coord + "_moment")
			if err != nil {
				return fmt.Errorf("joint powers: %w", err)
			}
			rad := make([]float64, len(angle))
			for i, v := range angle {
				rad[i] = units.DegToRad(v)
			}
			omega := signal.Gradient(rad, ik.Time)
			power := make([]float64, len(omega))
			for i := range omega {
				power[i] = omega[i] * moment[i]
			}
			id.Set(coord+"_power", power)
		}
	}
	return nil
}

// MassNormalise returns a copy of id with every column divided by body
// mass in kg.
func MassNormalise(id gait.Series, massKG float64) (gait.Series, error) {
	if massKG <= 0 {
		return gait.Series{}, gait.Configurationf("body mass must be positive, got %g", massKG)
	}
	out := id.Clone()
	for _, col := range out.Columns {
		for i := range col {
			col[i] /= massKG
		}
	}
	return out, nil
}
