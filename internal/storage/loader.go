package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches splits rows into batches of batchSize and calls copyFn for each.
// It returns the total number of rows reported by copyFn and the first error
// encountered. Cancellation is checked between batches.
func LoadBatches(
	ctx context.Context,
	log *zap.Logger,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total   int64
		batches int
		start   = time.Now()
	)
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Warn("copy failed", zap.Int64("inserted", n), zap.Int64("total", total), zap.Error(err))
			return total, err
		}
		batches++
		log.Debug("batch copied",
			zap.Int("batch", batches),
			zap.Int64("inserted", n),
			zap.Int64("total", total),
			zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)),
		)
	}
	return total, nil
}
