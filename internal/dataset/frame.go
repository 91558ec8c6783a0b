// Package dataset holds the tabular form of enriched records: a column
// store with numeric and text columns, its CSV codec, temporal features and
// the per-plant-type feature lists.
package dataset

import (
	"fmt"
	"math"

	"capfactor/internal/types"
)

// Frame is a column-oriented table. Numeric columns use NaN for missing
// values; text columns use "".
type Frame struct {
	order   []string
	numeric map[string][]float64
	text    map[string][]string
	rows    int
}

// NewFrame returns an empty frame with the given row count.
func NewFrame(rows int) *Frame {
	return &Frame{
		numeric: make(map[string][]float64),
		text:    make(map[string][]string),
		rows:    rows,
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.order...)
}

// Has reports whether the frame has a column of either kind.
func (f *Frame) Has(name string) bool {
	_, n := f.numeric[name]
	_, t := f.text[name]
	return n || t
}

// IsNumeric reports whether name is a numeric column.
func (f *Frame) IsNumeric(name string) bool {
	_, ok := f.numeric[name]
	return ok
}

// Float returns the numeric column name, or nil.
func (f *Frame) Float(name string) []float64 { return f.numeric[name] }

// Text returns the text column name, or nil.
func (f *Frame) Text(name string) []string { return f.text[name] }

// SetFloat adds or replaces a numeric column.
func (f *Frame) SetFloat(name string, values []float64) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.rows)
	}
	f.track(name)
	delete(f.text, name)
	f.numeric[name] = values
	return nil
}

// SetText adds or replaces a text column.
func (f *Frame) SetText(name string, values []string) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %s has %d values, frame has %d rows", name, len(values), f.rows)
	}
	f.track(name)
	delete(f.numeric, name)
	f.text[name] = values
	return nil
}

func (f *Frame) track(name string) {
	if !f.Has(name) {
		f.order = append(f.order, name)
	}
}

// Require returns a config_feature_mismatch error naming every column that
// is missing or not numeric.
func (f *Frame) Require(frame string, columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !f.IsNumeric(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeConfigFeatureMismatch,
		fmt.Sprintf("%s frame is missing numeric columns %v", frame, missing),
		nil,
		map[string]any{"frame": frame, "missing": missing, "available": f.Columns()},
	)
}

// FillMissing replaces NaN with zero in every numeric column and returns
// the number of cells filled.
func (f *Frame) FillMissing() int {
	filled := 0
	for _, name := range f.order {
		col, ok := f.numeric[name]
		if !ok {
			continue
		}
		for i, v := range col {
			if math.IsNaN(v) {
				col[i] = 0
				filled++
			}
		}
	}
	return filled
}

// Matrix returns the row-major values of columns. Columns must be numeric.
func (f *Frame) Matrix(columns []string) [][]float64 {
	out := make([][]float64, f.rows)
	for i := range out {
		row := make([]float64, len(columns))
		for j, c := range columns {
			row[j] = f.numeric[c][i]
		}
		out[i] = row
	}
	return out
}

