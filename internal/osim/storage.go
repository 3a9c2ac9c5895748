package osim

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/gaitlab/internal/gait"
)

// ReadStorage parses a solver storage file (.mot or .sto): header lines up
// to "endheader", a label row, then whitespace-separated numeric rows. The
// "time" column becomes the series time; every other column is kept by
// label.
func ReadStorage(r io.Reader) (gait.Series, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	header := false
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "endheader" {
			header = true
			break
		}
	}
	if !header {
		return gait.Series{}, fmt.Errorf("storage: no endheader line")
	}

	var labels []string
	for sc.Scan() {
		if f := strings.Fields(sc.Text()); len(f) > 0 {
			labels = f
			break
		}
	}
	timeCol := -1
	for i, l := range labels {
		if l == "time" {
			timeCol = i
			break
		}
	}
	if timeCol < 0 {
		return gait.Series{}, fmt.Errorf("storage: no time column in %v", labels)
	}

	s := gait.Series{}
	for i, l := range labels {
		if i != timeCol {
			s.Labels = append(s.Labels, l)
			s.Columns = append(s.Columns, nil)
		}
	}
	row := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		row++
		if len(fields) != len(labels) {
			return gait.Series{}, fmt.Errorf("storage row %d: %d fields, want %d", row, len(fields), len(labels))
		}
		k := 0
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return gait.Series{}, fmt.Errorf("storage row %d column %s: %w", row, labels[i], err)
			}
			if i == timeCol {
				s.Time = append(s.Time, v)
				continue
			}
			s.Columns[k] = append(s.Columns[k], v)
			k++
		}
	}
	if err := sc.Err(); err != nil {
		return gait.Series{}, fmt.Errorf("read storage: %w", err)
	}
	return s, nil
}

// ReadStorageFile opens and parses path.
func ReadStorageFile(path string) (gait.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return gait.Series{}, fmt.Errorf("open storage: %w", err)
	}
	defer f.Close()
	s, err := ReadStorage(f)
	if err != nil {
		return gait.Series{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
