package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/traffic-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It holds no open
// connection: each call opens the database file, does its work and closes it.
type SQLiteStore struct {
	dsn string
}

// NewSQLite returns a store for the database file at dsn.
func NewSQLite(dsn string) *SQLiteStore {
	return &SQLiteStore{dsn: dsn}
}

func (s *SQLiteStore) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: set busy_timeout")
	}
	return db, nil
}

func sqliteType(c ColumnType) string {
	switch c {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// ReplaceTable writes t to name inside a single transaction, replacing any
// existing table of that name.
func (s *SQLiteStore) ReplaceTable(ctx context.Context, name string, t *model.Table) (n int64, err error) {
	log := zap.L().With(zap.String("db", s.dsn), zap.String("table", name))
	defer func() {
		if err != nil {
			log.Error("database error", zap.Error(err))
		}
	}()

	if err := ValidateTableName(name); err != nil {
		return 0, err
	}
	schema := InferSchema(t)
	if len(schema) == 0 {
		return 0, eris.Errorf("sqlite: table %s has no columns", name)
	}

	db, err := s.open()
	if err != nil {
		return 0, err
	}
	defer db.Close() //nolint:errcheck

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: drop %s", name)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(name, schema, sqliteType)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: create %s", name)
	}

	cols := make([]string, len(schema))
	marks := make([]string, len(schema))
	for i, c := range schema {
		cols[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", "))

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range t.Len() {
		if _, err := stmt.ExecContext(ctx, rowValues(t, i, schema)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert row %d", i)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}

	log.Info("data stored", zap.Int64("rows", n), zap.Int("columns", len(schema)))
	return n, nil
}

// ReadTable returns a page of rows from name in rowid order.
func (s *SQLiteStore) ReadTable(ctx context.Context, name string, limit, offset int) (*model.Table, error) {
	if err := ValidateTableName(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s ORDER BY rowid LIMIT ? OFFSET ?", quoteIdent(name)),
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read %s", name)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: columns")
	}

	out := model.NewTable()
	for _, c := range cols {
		out.AddColumn(c)
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			rec[c] = normalize(vals[i])
		}
		out.Append(rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: read iterate")
}

// Close is a no-op; connections never outlive a call.
func (s *SQLiteStore) Close() error { return nil }
