// Package datasource defines where raw input bytes come from.
package datasource

import (
	"context"
	"errors"
	"io"
)

// ErrMissing marks a source that does not exist. Callers test for it with
// errors.Is; the wrapped filesystem error stays reachable as well.
var ErrMissing = errors.New("source missing")

// Source opens a raw input for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the source in errors and logs (e.g. a file path).
	Name() string
}
