// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"ordersetl/internal/datasource"
)

// Local is a filesystem data source bound to one path.
type Local struct{ path string }

// NewLocal returns a Local data source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the path.
func (l *Local) Name() string { return l.path }

// Open opens the configured path for reading.
//
// A canceled context short-circuits without touching the filesystem. A path
// that does not exist, or names a directory, yields an error matching both
// datasource.ErrMissing and the underlying fs error under errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", datasource.ErrMissing, err)
		}
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", datasource.ErrMissing, l.path)
	}
	return f, nil
}
