// Package mysql provides a MySQL-backed storage.Repository using
// github.com/go-sql-driver/mysql. MySQL commits DDL implicitly, so the
// drop/create is not atomic with the inserts; the inserts themselves run in
// one transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"ordersetl/internal/storage"
	"ordersetl/internal/table"
)

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// NewRepository parses cfg.DSN, forces parseTime and UTC, and pings.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, nil
}

// Close implements storage.Repository.
func (r *Repository) Close() { _ = r.db.Close() }

// Replace implements storage.Repository.
func (r *Repository) Replace(ctx context.Context, name string, cols []table.Column, rows [][]any) (int64, error) {
	n, err := storage.ReplaceSQL(ctx, r.db, Dialect{}, r.cfg, name, cols, rows)
	if err != nil {
		return n, fmt.Errorf("mysql: %w", err)
	}
	return n, nil
}

// Dialect is the MySQL storage.Dialect.
type Dialect struct{}

func (Dialect) QuoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) MapType(k table.Kind) string {
	switch k {
	case table.Float:
		return "DOUBLE"
	case table.Int:
		return "BIGINT"
	case table.Bool:
		return "BOOLEAN"
	case table.Time:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

// Value converts timestamps to UTC; DATETIME has no zone.
func (Dialect) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

var _ storage.Repository = (*Repository)(nil)
