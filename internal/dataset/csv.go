package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// WriteCSV writes f with a header row. Missing numeric values are written as
// empty cells.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.order); err != nil {
		return err
	}
	record := make([]string, len(f.order))
	for i := 0; i < f.rows; i++ {
		for j, name := range f.order {
			if col, ok := f.numeric[name]; ok {
				record[j] = formatFloat(col[i])
			} else {
				record[j] = f.text[name][i]
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a CSV with a header row. A column is numeric when every
// non-empty cell parses as a float (an all-empty column is numeric too);
// empty numeric cells become NaN.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cells := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		for j := range header {
			cells[j] = append(cells[j], rec[j])
		}
	}

	rows := 0
	if len(cells) > 0 {
		rows = len(cells[0])
	}
	f := NewFrame(rows)
	for j, name := range header {
		if values, ok := parseNumeric(cells[j]); ok {
			_ = f.SetFloat(name, values)
		} else {
			_ = f.SetText(name, cells[j])
		}
	}
	return f, nil
}

func parseNumeric(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
