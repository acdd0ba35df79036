package transform

import (
	"encoding/json"

	"github.com/sells-group/traffic-cli/internal/model"
)

// NumericColumns returns the columns whose non-missing values are all JSON
// numbers. A column with no non-missing values is not numeric.
func NumericColumns(t *model.Table) []string {
	var out []string
	for _, col := range t.Columns() {
		seen := false
		numeric := true
		for i := range t.Len() {
			v, ok := t.Value(i, col)
			if !ok {
				continue
			}
			seen = true
			if _, isNum := AsNumber(v); !isNum {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, col)
		}
	}
	return out
}

// FilterNonNegative keeps only the rows in which every numeric column holds a
// value >= 0. A missing value in a numeric column drops the row. Non-numeric
// columns are never inspected, so a string such as "-5" cannot drop a row.
// Returns a new table; the input is not modified.
func FilterNonNegative(t *model.Table) *model.Table {
	cols := NumericColumns(t)
	keep := make([]int, 0, t.Len())
	for i := range t.Len() {
		if rowNonNegative(t, i, cols) {
			keep = append(keep, i)
		}
	}
	return t.Clone().Select(keep)
}

func rowNonNegative(t *model.Table, i int, cols []string) bool {
	for _, col := range cols {
		v, ok := t.Value(i, col)
		if !ok {
			return false
		}
		f, _ := AsNumber(v)
		if f < 0 {
			return false
		}
	}
	return true
}

// AsNumber returns v as a float64 when it is a numeric JSON value. Strings
// are not numbers here, even if they look like one.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
