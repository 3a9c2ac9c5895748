package grf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteMot serialises t in the solver's external-loads format: a short
// header closed by "endheader" and a blank line, a tab-separated label row,
// then one tab-separated row per sample with six decimals.
func WriteMot(w io.Writer, name string, t Table) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", name)
	fmt.Fprintf(bw, "version=%d\n", SchemaVersion)
	fmt.Fprintf(bw, "nRows=%d\n", t.Len())
	fmt.Fprintf(bw, "nColumns=%d\n", NumColumns)
	fmt.Fprintf(bw, "inDegrees=yes\n")
	fmt.Fprintf(bw, "endheader\n\n")
	fmt.Fprintf(bw, "%s\n", strings.Join(Labels(), "\t"))

	fields := make([]string, NumColumns)
	for i := 0; i < t.Len(); i++ {
		for k, v := range t.Row(i) {
			fields[k] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		if _, err := fmt.Fprintf(bw, "%s\n", strings.Join(fields, "\t")); err != nil {
			return fmt.Errorf("write external loads row %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write external loads: %w", err)
	}
	return nil
}

// ReadMot parses an external-loads file written by WriteMot. Columns are
// bound by label, so files with the two blocks in another order still load.
func ReadMot(r io.Reader) (Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	rows := -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "nRows="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Table{}, fmt.Errorf("external loads header: bad nRows %q", v)
			}
			rows = n
		}
		if line == "endheader" {
			break
		}
	}
	var labels []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			labels = strings.Split(line, "\t")
			break
		}
	}
	if len(labels) != NumColumns {
		return Table{}, fmt.Errorf("external loads: %d columns, want %d", len(labels), NumColumns)
	}
	index := make([]int, len(labels))
	for k, l := range labels {
		l = strings.TrimSpace(l)
		if l == "time" {
			index[k] = -1
			continue
		}
		c, ok := ChannelByLabel(l)
		if !ok {
			return Table{}, fmt.Errorf("external loads: unknown column %q", l)
		}
		index[k] = c.Index()
	}

	var t Table
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != NumColumns {
			return Table{}, fmt.Errorf("external loads row %d: %d fields, want %d", line, len(fields), NumColumns)
		}
		for k, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return Table{}, fmt.Errorf("external loads row %d column %s: %w", line, labels[k], err)
			}
			if index[k] < 0 {
				t.Time = append(t.Time, v)
			} else {
				t.Data[index[k]] = append(t.Data[index[k]], v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Table{}, fmt.Errorf("read external loads: %w", err)
	}
	if rows >= 0 && rows != t.Len() {
		return Table{}, fmt.Errorf("external loads: header says %d rows, found %d", rows, t.Len())
	}
	return t, nil
}
