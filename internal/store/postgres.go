package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/db"
	"github.com/sells-group/traffic-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func postgresType(c ColumnType) string {
	switch c {
	case TypeInteger:
		return "BIGINT"
	case TypeReal:
		return "DOUBLE PRECISION"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// ReplaceTable drops and recreates name, then loads t with COPY, all in one
// transaction.
func (s *PostgresStore) ReplaceTable(ctx context.Context, name string, t *model.Table) (int64, error) {
	if err := ValidateTableName(name); err != nil {
		return 0, err
	}
	schema := InferSchema(t)
	if len(schema) == 0 {
		return 0, eris.Errorf("postgres: table %s has no columns", name)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}

	fail := func(err error) (int64, error) {
		_ = tx.Rollback(ctx)
		zap.L().Error("database error", zap.String("table", name), zap.Error(err))
		return 0, err
	}

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fail(eris.Wrapf(err, "postgres: drop %s", name))
	}
	if _, err := tx.Exec(ctx, createTableSQL(name, schema, postgresType)); err != nil {
		return fail(eris.Wrapf(err, "postgres: create %s", name))
	}

	rows := make([][]any, t.Len())
	for i := range rows {
		rows[i] = rowValues(t, i, schema)
	}
	n, err := db.CopyFrom(ctx, tx, name, columnNames(schema), rows)
	if err != nil {
		return fail(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(eris.Wrap(err, "postgres: commit"))
	}

	zap.L().Info("data stored",
		zap.String("table", name),
		zap.Int64("rows", n),
		zap.Int("columns", len(schema)),
	)
	return n, nil
}

// ReadTable returns a page of rows from name.
func (s *PostgresStore) ReadTable(ctx context.Context, name string, limit, offset int) (*model.Table, error) {
	if err := ValidateTableName(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT $1 OFFSET $2", quoteIdent(name)),
		limit, offset,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read %s", name)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	out := model.NewTable()
	for i, f := range fields {
		cols[i] = f.Name
		out.AddColumn(f.Name)
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			if i < len(vals) {
				rec[c] = normalize(vals[i])
			}
		}
		out.Append(rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: read iterate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
