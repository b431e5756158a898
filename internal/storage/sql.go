package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ordersetl/internal/ddl"
	"ordersetl/internal/table"
)

// Dialect captures what differs between database/sql backends.
type Dialect interface {
	// QuoteIdent quotes one identifier segment.
	QuoteIdent(name string) string
	// Placeholder returns the bind marker for the 1-based parameter i.
	Placeholder(i int) string
	// MapType returns the column type for a table kind.
	MapType(k table.Kind) string
	// Value converts a cell into a driver argument.
	Value(v any) any
}

// QuoteFQN quotes every dotted segment of name.
func QuoteFQN(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// TableDef builds the DDL model for cols with quoted names and mapped types.
// Every column is nullable.
func TableDef(d Dialect, name string, cols []table.Column) ddl.TableDef {
	def := ddl.TableDef{FQN: QuoteFQN(d, name)}
	for _, c := range cols {
		def.Columns = append(def.Columns, ddl.ColumnDef{
			Name:     d.QuoteIdent(c.Name),
			SQLType:  d.MapType(c.Kind),
			Nullable: true,
		})
	}
	return def
}

// RecreateTable drops name if it exists and creates it from cols.
func RecreateTable(ctx context.Context, tx *sql.Tx, d Dialect, name string, cols []table.Column) error {
	create, err := ddl.BuildCreateTableSQL(TableDef(d, name, cols))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteFQN(d, name)); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// InsertCopyFn returns a CopyFn that runs one prepared INSERT per row inside
// tx.
func InsertCopyFn(tx *sql.Tx, d Dialect, name string) CopyFn {
	return func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		quoted := make([]string, len(columns))
		marks := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = d.QuoteIdent(c)
			marks[i] = d.Placeholder(i + 1)
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s)",
			QuoteFQN(d, name), strings.Join(quoted, ", "), strings.Join(marks, ", "),
		))
		if err != nil {
			return 0, fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		var inserted int64
		args := make([]any, len(columns))
		for _, row := range rows {
			if len(row) != len(columns) {
				return inserted, fmt.Errorf("row length %d != columns length %d", len(row), len(columns))
			}
			for i, v := range row {
				args[i] = d.Value(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return inserted, fmt.Errorf("insert: %w", err)
			}
			inserted++
		}
		return inserted, nil
	}
}

// ReplaceSQL implements Repository.Replace for database/sql backends with
// row-at-a-time inserts.
func ReplaceSQL(ctx context.Context, db *sql.DB, d Dialect, cfg Config, name string, cols []table.Column, rows [][]any) (int64, error) {
	return ReplaceSQLWith(ctx, db, d, cfg, name, cols, rows, func(tx *sql.Tx) CopyFn {
		return InsertCopyFn(tx, d, name)
	})
}

// ReplaceSQLWith is ReplaceSQL with a backend-specific bulk copy.
func ReplaceSQLWith(
	ctx context.Context,
	db *sql.DB,
	d Dialect,
	cfg Config,
	name string,
	cols []table.Column,
	rows [][]any,
	copyFor func(*sql.Tx) CopyFn,
) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if err := RecreateTable(ctx, tx, d, name, cols); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	n, err := LoadBatches(ctx, cfg.Log(), names, rows, cfg.EffectiveBatchSize(), copyFor(tx))
	if err != nil {
		_ = tx.Rollback()
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
