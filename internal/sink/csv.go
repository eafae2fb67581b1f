package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/danmuck/picoctl/internal/protocol"
)

// CSVSeparator matches the PalmSens export format.
const CSVSeparator = ';'

// CSVSink writes one row per measurement: index, curve, then one
// "Name (unit)" column per variable type. A type reported more than once in
// a package gets one column per occurrence ("Name (unit) #2"). Rows are held
// until the end of each burst so the header covers every type the burst
// produced; a later burst that adds types starts a new header block.
type CSVSink struct {
	w       *csv.Writer
	closer  io.Closer
	columns []csvColumn
	pending []protocol.Measurement
	rows    int
}

type csvColumn struct {
	vt  protocol.VarType
	occ int
}

func (c csvColumn) label() string {
	if c.occ == 0 {
		return c.vt.Label()
	}
	return c.vt.Label() + " #" + strconv.Itoa(c.occ+1)
}

// columnsOf lists the columns a measurement fills, in reading order.
func columnsOf(m protocol.Measurement) []csvColumn {
	seen := make(map[protocol.VarType]int, len(m.Readings))
	cols := make([]csvColumn, 0, len(m.Readings))
	for _, r := range m.Readings {
		cols = append(cols, csvColumn{vt: r.VarType, occ: seen[r.VarType]})
		seen[r.VarType]++
	}
	return cols
}

// NewCSVSink writes to w. If w is an io.Closer, Close closes it.
func NewCSVSink(w io.Writer) *CSVSink {
	cw := csv.NewWriter(w)
	cw.Comma = CSVSeparator
	s := &CSVSink{w: cw}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// CreateCSVFile creates (or truncates) path and returns a sink writing to it.
func CreateCSVFile(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv sink: %w", err)
	}
	return NewCSVSink(f), nil
}

// Rows is the number of data rows written.
func (s *CSVSink) Rows() int {
	return s.rows
}

func (s *CSVSink) HandleMeasurement(_ context.Context, m protocol.Measurement) error {
	s.pending = append(s.pending, m)
	return nil
}

// writePending writes the held rows, extending the header first when they
// carry columns the current header lacks.
func (s *CSVSink) writePending() error {
	if len(s.pending) == 0 {
		return nil
	}
	known := make(map[csvColumn]bool, len(s.columns))
	for _, c := range s.columns {
		known[c] = true
	}
	grown := false
	for _, m := range s.pending {
		for _, c := range columnsOf(m) {
			if !known[c] {
				known[c] = true
				s.columns = append(s.columns, c)
				grown = true
			}
		}
	}
	if grown {
		header := make([]string, 0, 2+len(s.columns))
		header = append(header, "Index", "Curve")
		for _, c := range s.columns {
			header = append(header, c.label())
		}
		if err := s.w.Write(header); err != nil {
			return fmt.Errorf("csv sink: %w", err)
		}
	}

	pos := make(map[csvColumn]int, len(s.columns))
	for i, c := range s.columns {
		pos[c] = 2 + i
	}
	for _, m := range s.pending {
		row := make([]string, 2+len(s.columns))
		row[0] = strconv.Itoa(m.Index)
		row[1] = strconv.Itoa(m.Curve)
		for i, c := range columnsOf(m) {
			row[pos[c]] = formatValue(m.Readings[i].Value)
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("csv sink: %w", err)
		}
		s.rows++
	}
	s.pending = s.pending[:0]
	return nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// HandleSummary writes and flushes the burst's rows.
func (s *CSVSink) HandleSummary(context.Context, protocol.Summary) error {
	return s.flush()
}

func (s *CSVSink) flush() error {
	if err := s.writePending(); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	err := s.flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("csv sink: %w", cerr)
		}
	}
	return err
}
