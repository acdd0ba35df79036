// Package transform implements the cleaning and filtering stages applied to a
// fetched traffic table before it is persisted.
package transform

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/model"
)

// MissingReport maps column name to the number of missing values found
// before forward-filling. Columns with no missing values are omitted.
type MissingReport map[string]int

// Total returns the number of missing cells across all columns.
func (m MissingReport) Total() int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// CountMissing counts missing values per column. A key that is absent from a
// record counts as missing, same as an explicit null.
func CountMissing(t *model.Table) MissingReport {
	report := make(MissingReport)
	for _, col := range t.Columns() {
		n := 0
		for i := range t.Len() {
			if _, ok := t.Value(i, col); !ok {
				n++
			}
		}
		if n > 0 {
			report[col] = n
		}
	}
	return report
}

// Clean forward-fills missing values column by column in row order and
// replaces structured values (objects, arrays) with their JSON text. Values
// before a column's first non-missing entry stay missing. The input table is
// not modified.
func Clean(t *model.Table) (*model.Table, MissingReport) {
	log := zap.L().With(zap.String("stage", "clean"))

	report := CountMissing(t)
	log.Info("checked for missing values",
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns())),
		zap.Int("missing_total", report.Total()),
	)
	for col, n := range report {
		log.Info("missing values", zap.String("column", col), zap.Int("count", n))
	}

	out := t.Clone()
	for _, col := range out.Columns() {
		var last any
		for i := range out.Len() {
			row := out.Row(i)
			v, ok := out.Value(i, col)
			if !ok {
				if last != nil {
					row[col] = last
				}
				continue
			}
			if s, structured := stringify(v); structured {
				v = s
				row[col] = s
			}
			last = v
		}
	}

	return out, report
}

// stringify converts a structured value to its textual form. The second
// return value is false for scalars, which are left untouched.
func stringify(v any) (string, bool) {
	switch v.(type) {
	case map[string]any, []any, model.Record:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v), true
		}
		return string(b), true
	default:
		return "", false
	}
}
