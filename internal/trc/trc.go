// Package trc writes marker trajectories in the tab-separated track row
// column format read by the musculoskeletal solver.
package trc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/gaitlab/internal/gait"
	"github.com/banshee-data/gaitlab/internal/units"
)

// Units is the length unit written to the header.
const Units = units.MM

// Write serialises m. Rows are numbered from 1; missing samples become
// empty fields.
func Write(w io.Writer, name string, m gait.MarkerSet) error {
	bw := bufio.NewWriter(w)
	rate := strconv.FormatFloat(m.Rate, 'f', 2, 64)
	n := m.Len()

	fmt.Fprintf(bw, "PathFileType\t4\t(X/Y/Z)\t%s\n", name)
	fmt.Fprintf(bw, "DataRate\tCameraRate\tNumFrames\tNumMarkers\tUnits\tOrigDataRate\tOrigDataStartFrame\tOrigNumFrames\n")
	fmt.Fprintf(bw, "%s\t%s\t%d\t%d\t%s\t%s\t%d\t%d\n", rate, rate, n, len(m.Labels), Units, rate, 1, n)

	labels := []string{"Frame#", "Time"}
	axes := []string{"", ""}
	for j, l := range m.Labels {
		labels = append(labels, l, "", "")
		k := strconv.Itoa(j + 1)
		axes = append(axes, "X"+k, "Y"+k, "Z"+k)
	}
	fmt.Fprintf(bw, "%s\n%s\n\n", strings.Join(labels, "\t"), strings.Join(axes, "\t"))

	fields := make([]string, 2+3*len(m.Labels))
	for i := 0; i < n; i++ {
		fields[0] = strconv.Itoa(i + 1)
		fields[1] = strconv.FormatFloat(m.Time[i], 'f', 5, 64)
		for j, p := range m.Frames[i] {
			for k := 0; k < 3; k++ {
				fields[2+3*j+k] = ""
			}
			if !p.Valid {
				continue
			}
			fields[2+3*j] = strconv.FormatFloat(p.Vec.X, 'f', 5, 64)
			fields[3+3*j] = strconv.FormatFloat(p.Vec.Y, 'f', 5, 64)
			fields[4+3*j] = strconv.FormatFloat(p.Vec.Z, 'f', 5, 64)
		}
		if _, err := fmt.Fprintf(bw, "%s\n", strings.Join(fields, "\t")); err != nil {
			return fmt.Errorf("write trc row %d: %w", i+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write trc: %w", err)
	}
	return nil
}
