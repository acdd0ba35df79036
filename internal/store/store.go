// Package store persists traffic tables to a relational database. Every write
// replaces the target table: the previous contents are dropped and the table
// is recreated with column types inferred from the data being written.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/traffic-cli/internal/model"
)

// Default database and table names.
const (
	DefaultSQLitePath = "traffic_data.db"
	DefaultTable      = "traffic_table"
)

// Store defines the persistence interface for traffic tables.
type Store interface {
	// ReplaceTable drops name if it exists, recreates it from t's columns and
	// inserts every row. Returns the number of rows written.
	ReplaceTable(ctx context.Context, name string, t *model.Table) (int64, error)

	// ReadTable returns up to limit rows of name starting at offset.
	ReadTable(ctx context.Context, name string, limit, offset int) (*model.Table, error)

	Close() error
}

// Open returns a Store for the configured driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite", "":
		if databaseURL == "" {
			databaseURL = DefaultSQLitePath
		}
		return NewSQLite(databaseURL), nil
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: sqlite, postgres)", driver)
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableName rejects names that are not plain SQL identifiers.
func ValidateTableName(name string) error {
	if !identRe.MatchString(name) {
		return eris.Errorf("store: invalid table name %q", name)
	}
	return nil
}

// ColumnType is the storage type inferred for a column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
	TypeBoolean
)

func (c ColumnType) String() string {
	switch c {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// Column is a named, typed column of the table being written.
type Column struct {
	Name string
	Type ColumnType
}

// InferSchema picks a storage type per column from its non-missing values:
// all booleans become boolean, all whole numbers integer, all numbers real,
// and anything else text. Columns with no values are text.
func InferSchema(t *model.Table) []Column {
	cols := t.Columns()
	out := make([]Column, len(cols))
	for i, name := range cols {
		out[i] = Column{Name: name, Type: inferColumn(t, name)}
	}
	return out
}

func inferColumn(t *model.Table, col string) ColumnType {
	seen, allBool, allNum, allInt := false, true, true, true
	for i := range t.Len() {
		v, ok := t.Value(i, col)
		if !ok {
			continue
		}
		seen = true
		switch n := v.(type) {
		case bool:
			allNum, allInt = false, false
		case float64:
			allBool = false
			if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
				allInt = false
			}
		case int, int64:
			allBool = false
		default:
			return TypeText
		}
	}
	switch {
	case !seen:
		return TypeText
	case allBool:
		return TypeBoolean
	case allNum && allInt:
		return TypeInteger
	case allNum:
		return TypeReal
	default:
		return TypeText
	}
}

// cellValue converts v to the Go value bound for a column of type ct.
func cellValue(v any, ct ColumnType) any {
	if v == nil {
		return nil
	}
	switch ct {
	case TypeInteger:
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int:
			return int64(n)
		}
		return v
	case TypeReal, TypeBoolean:
		return v
	default:
		return textValue(v)
	}
}

func textValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case map[string]any, []any, model.Record:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	default:
		return fmt.Sprint(s)
	}
}

// rowValues returns the values of row i in schema order.
func rowValues(t *model.Table, i int, schema []Column) []any {
	vals := make([]any, len(schema))
	for j, c := range schema {
		v, _ := t.Value(i, c.Name)
		vals[j] = cellValue(v, c.Type)
	}
	return vals
}

func columnNames(schema []Column) []string {
	out := make([]string, len(schema))
	for i, c := range schema {
		out[i] = c.Name
	}
	return out
}

// quoteIdent double-quotes an identifier for SQLite and PostgreSQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(name string, schema []Column, typeName func(ColumnType) string) string {
	defs := make([]string, len(schema))
	for i, c := range schema {
		defs[i] = quoteIdent(c.Name) + " " + typeName(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
}

// normalize converts driver values read back from a store into the value
// kinds used by model.Record.
func normalize(v any) any {
	switch n := v.(type) {
	case []byte:
		return string(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
