// Package postgres implements a Postgres storage.Repository using pgx v5. The
// target table is recreated and filled with COPY inside one transaction, so
// readers see either the previous export or the new one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ordersetl/internal/ddl"
	"ordersetl/internal/storage"
	"ordersetl/internal/table"
)

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config
}

// NewRepository opens a pgxpool for cfg.DSN.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, nil
}

// Close implements storage.Repository.
func (r *Repository) Close() { r.pool.Close() }

// Replace implements storage.Repository.
func (r *Repository) Replace(ctx context.Context, name string, cols []table.Column, rows [][]any) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	n, err := replace(ctx, tx, r.cfg, name, cols, rows)
	if err != nil {
		_ = tx.Rollback(ctx)
		return n, pgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return n, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

// execCopier is the part of pgx.Tx used by replace.
type execCopier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func replace(ctx context.Context, tx execCopier, cfg storage.Config, name string, cols []table.Column, rows [][]any) (int64, error) {
	d := Dialect{}
	create, err := ddl.BuildCreateTableSQL(storage.TableDef(d, name, cols))
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+storage.QuoteFQN(d, name)); err != nil {
		return 0, fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}

	ident := pgx.Identifier(strings.Split(name, "."))
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	copyFn := func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		return tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(batch))
	}
	return storage.LoadBatches(ctx, cfg.Log(), names, rows, cfg.EffectiveBatchSize(), copyFn)
}

// pgError surfaces the server detail of a failed statement.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("postgres: %s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("postgres: %w", err)
}

// Dialect is the Postgres storage.Dialect.
type Dialect struct{}

func (Dialect) QuoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func (Dialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (Dialect) MapType(k table.Kind) string {
	switch k {
	case table.Float:
		return "DOUBLE PRECISION"
	case table.Int:
		return "BIGINT"
	case table.Bool:
		return "BOOLEAN"
	case table.Time:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// Value passes cells through; pgx encodes every table kind natively.
func (Dialect) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := NewRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
