// Package mssql implements a Microsoft SQL Server storage.Repository using
// the go-mssqldb bulk copy API. The table is recreated and bulk-loaded inside
// one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"ordersetl/internal/storage"
	"ordersetl/internal/table"
)

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg storage.Config
}

// NewRepository validates the DSN, opens the pool and pings.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, nil
}

// Close implements storage.Repository.
func (r *Repository) Close() { _ = r.db.Close() }

// Replace implements storage.Repository.
func (r *Repository) Replace(ctx context.Context, name string, cols []table.Column, rows [][]any) (int64, error) {
	d := Dialect{}
	n, err := storage.ReplaceSQLWith(ctx, r.db, d, r.cfg, name, cols, rows, func(tx *sql.Tx) storage.CopyFn {
		return bulkCopyFn(tx, d, name)
	})
	if err != nil {
		return n, fmt.Errorf("mssql: %w", err)
	}
	return n, nil
}

// bulkCopyFn streams one batch through mssql.CopyIn.
func bulkCopyFn(tx *sql.Tx, d Dialect, name string) storage.CopyFn {
	return func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(name, mssql.BulkOptions{}, columns...))
		if err != nil {
			return 0, fmt.Errorf("prepare bulk: %w", err)
		}
		args := make([]any, len(columns))
		for i, row := range rows {
			for j, v := range row {
				args[j] = d.Value(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				_ = stmt.Close()
				return 0, fmt.Errorf("bulk row %d: %w", i, err)
			}
		}
		res, err := stmt.ExecContext(ctx)
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return 0, fmt.Errorf("bulk finalize: %w", err)
		}
		return res.RowsAffected()
	}
}

// Dialect is the SQL Server storage.Dialect.
type Dialect struct{}

func (Dialect) QuoteIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

func (Dialect) Placeholder(i int) string { return fmt.Sprintf("@p%d", i) }

func (Dialect) MapType(k table.Kind) string {
	switch k {
	case table.Float:
		return "FLOAT"
	case table.Int:
		return "BIGINT"
	case table.Bool:
		return "BIT"
	case table.Time:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// Value converts timestamps to UTC; DATETIME2 has no zone.
func (Dialect) Value(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := NewRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
