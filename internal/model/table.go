// Package model defines the in-memory record and table types shared by every
// pipeline stage.
package model

import "slices"

// Record is one traffic tracker observation keyed by column name. Values are
// whatever the JSON payload carried: string, float64, bool, map[string]any,
// []any or nil.
type Record map[string]any

// Table is an ordered sequence of records with a column set discovered from
// the records themselves. Row identity is positional.
type Table struct {
	columns []string
	seen    map[string]bool
	rows    []Record
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{seen: make(map[string]bool)}
}

// NewTableFromRecords creates a table holding recs in order.
func NewTableFromRecords(recs []Record) *Table {
	t := NewTable()
	t.Append(recs...)
	return t
}

// Append adds records to the end of the table, extending the column set with
// any keys not seen before (in first-appearance order).
func (t *Table) Append(recs ...Record) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	for _, r := range recs {
		if r == nil {
			r = Record{}
		}
		for _, k := range sortedKeys(r) {
			if !t.seen[k] {
				t.seen[k] = true
				t.columns = append(t.columns, k)
			}
		}
		t.rows = append(t.rows, r)
	}
}

// AddColumn registers a column without adding rows. Used when the column set
// is known up front, e.g. when reading a table back from a store.
func (t *Table) AddColumn(name string) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if !t.seen[name] {
		t.seen[name] = true
		t.columns = append(t.columns, name)
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t.Len() == 0 }

// Columns returns a copy of the column names.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the column was seen in any record.
func (t *Table) HasColumn(name string) bool {
	return t != nil && t.seen[name]
}

// Row returns the record at position i. The returned record must not be
// modified; use Clone for a mutable copy.
func (t *Table) Row(i int) Record {
	return t.rows[i]
}

// Rows returns the records in order. The slice must not be modified.
func (t *Table) Rows() []Record {
	if t == nil {
		return nil
	}
	return t.rows
}

// Value returns the value of col in row i and whether it is present and non-nil.
func (t *Table) Value(i int, col string) (any, bool) {
	v, ok := t.rows[i][col]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Clone returns a deep-enough copy: the row maps are copied, the values are shared.
func (t *Table) Clone() *Table {
	out := NewTable()
	for _, c := range t.Columns() {
		out.AddColumn(c)
	}
	out.rows = make([]Record, len(t.Rows()))
	for i, r := range t.Rows() {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.rows[i] = cp
	}
	return out
}

// Select returns a new table with the rows at the given positions, in the
// order given. The column set is preserved.
func (t *Table) Select(idx []int) *Table {
	out := NewTable()
	for _, c := range t.Columns() {
		out.AddColumn(c)
	}
	out.rows = make([]Record, 0, len(idx))
	for _, i := range idx {
		out.rows = append(out.rows, t.rows[i])
	}
	return out
}

// IsMissing reports whether v counts as a missing value.
func IsMissing(v any) bool {
	return v == nil
}

// sortedKeys returns the record's keys in lexical order. JSON objects decode
// into maps, so payload key order is not recoverable; sorting keeps the
// column order stable across runs.
func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
