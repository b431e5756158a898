// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc.org/sqlite driver. Rows are inserted
// with a prepared statement inside the same transaction as the DDL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ordersetl/internal/storage"
	"ordersetl/internal/table"
)

// Open opens a SQLite database. An in-memory DSN is pinned to a single
// connection, since every new connection would see a fresh empty database.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// New wraps an open database.
func New(db *sql.DB, cfg storage.Config) *Repository {
	return &Repository{db: db, cfg: cfg}
}

// NewRepository opens cfg.DSN and pings it with a short timeout.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return New(db, cfg), nil
}

// Replace implements storage.Repository.
func (r *Repository) Replace(ctx context.Context, name string, cols []table.Column, rows [][]any) (int64, error) {
	n, err := storage.ReplaceSQL(ctx, r.db, Dialect{}, r.cfg, name, cols, rows)
	if err != nil {
		return n, fmt.Errorf("sqlite: %w", err)
	}
	return n, nil
}

// DB exposes the underlying handle for read-back queries.
func (r *Repository) DB() *sql.DB { return r.db }

// Close implements storage.Repository.
func (r *Repository) Close() { _ = r.db.Close() }

// Dialect is the SQLite storage.Dialect.
type Dialect struct{}

func (Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Dialect) Placeholder(int) string { return "?" }

// MapType uses SQLite affinities; booleans are 0/1 integers and timestamps
// are RFC 3339 text in UTC.
func (Dialect) MapType(k table.Kind) string {
	switch k {
	case table.Float:
		return "REAL"
	case table.Int, table.Bool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (Dialect) Value(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return v
}

var _ storage.Repository = (*Repository)(nil)
