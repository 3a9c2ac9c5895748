package cycles

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Output file names of the normalised tables.
var FileNames = map[Kind]string{
	Kinematics: "combined_kinematics.csv",
	Kinetics:   "combined_kinetics.csv",
	GRF:        "combined_grf.csv",
	Torque:     "combined_torque.csv",
}

// WriteCSV writes normalised cycles of one kind: a "Frame" header with the
// side-free channel names, then one block of rows per cycle separated by
// blank lines. Left cycles come first. Frame is the integer index of the
// normalised grid, 0 at the opening strike.
func WriteCSV(w io.Writer, kind Kind, cs []Cycle) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	header := append([]string{"Frame"}, GenericChannels(kind)...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", kind, err)
	}
	cw.Flush()
	bw.WriteString("\n\n")

	for _, c := range cs {
		if c.Kind != kind {
			continue
		}
		row := make([]string, len(c.Data)+1)
		for k := 0; k < c.Len(); k++ {
			row[0] = strconv.Itoa(k)
			for i := range c.Data {
				row[i+1] = fmt.Sprintf("%.6f", c.Data[i][k])
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write %s cycle %s: %w", kind, c.ID(), err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("write %s: %w", kind, err)
		}
		bw.WriteString("\n\n")
	}
	return bw.Flush()
}

type cycleRow struct {
	Trial   string  `parquet:"name=trial, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Side    string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Stride  int64   `parquet:"name=stride, type=INT64"`
	Kind    string  `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Channel string  `parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Point   int32   `parquet:"name=point, type=INT32"`
	Percent float64 `parquet:"name=percent, type=DOUBLE"`
	Value   float64 `parquet:"name=value, type=DOUBLE"`
}

// MarshalParquet encodes cycles in long form, one row per channel sample,
// using the side-free channel names.
func MarshalParquet(cs []Cycle) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(cycleRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, c := range cs {
		last := c.Len() - 1
		for i, ch := range c.Channels {
			for k, v := range c.Data[i] {
				pct := 0.0
				if last > 0 {
					pct = 100 * float64(k) / float64(last)
				}
				row := cycleRow{
					Trial:   c.Trial,
					Side:    c.Side.String(),
					Stride:  int64(c.Stride),
					Kind:    string(c.Kind),
					Channel: Generic(ch),
					Point:   int32(k),
					Percent: pct,
					Value:   v,
				}
				if err := pw.Write(row); err != nil {
					_ = pw.WriteStop()
					return nil, err
				}
			}
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
