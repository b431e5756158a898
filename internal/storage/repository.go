// Package storage exports finished tables into a SQL database. Backends
// register a Factory for their kind at init time; importing
// ordersetl/internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"ordersetl/internal/table"
)

// DefaultBatchSize is the number of rows handed to a backend per copy call.
const DefaultBatchSize = 5000

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// Logger receives per-batch progress. Nil means zap.NewNop().
	Logger *zap.Logger
}

// EffectiveBatchSize returns BatchSize or DefaultBatchSize.
func (c Config) EffectiveBatchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// Log returns Logger or a no-op logger.
func (c Config) Log() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// Repository is an open connection to one export target.
type Repository interface {
	// Replace drops the named table if it exists, recreates it with cols and
	// inserts rows (aligned to cols) as one unit of work where the backend
	// supports transactional DDL.
	Replace(ctx context.Context, name string, cols []table.Column, rows [][]any) (int64, error)
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind, replacing any previous
// factory for the same kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Export replaces the table name in repo with the contents of t.
func Export(ctx context.Context, repo Repository, name string, t *table.Table) (int64, error) {
	rows := make([][]any, t.Len())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	n, err := repo.Replace(ctx, name, t.Columns(), rows)
	if err != nil {
		return n, fmt.Errorf("export %s: %w", name, err)
	}
	return n, nil
}
