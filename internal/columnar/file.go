package columnar

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"ordersetl/internal/table"
)

// rowGroupSize caps the rows per Parquet row group.
const rowGroupSize = 64 * 1024

// Write encodes t as Parquet (snappy) into w.
func Write(w io.Writer, t *table.Table) error {
	rec, err := ToRecord(t)
	if err != nil {
		return err
	}
	defer rec.Release()

	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(Pool),
	)
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(tbl, w, rowGroupSize, props, arrProps); err != nil {
		return fmt.Errorf("columnar: write parquet: %w", err)
	}
	return nil
}

// Staged is a fully written artifact that has not been moved to its final
// path yet.
type Staged struct {
	Path  string
	Tmp   string
	Rows  int
	Bytes int64
}

// Stage writes t to a temporary file next to path. Nothing is visible at
// path until Commit.
func Stage(path string, t *table.Table) (*Staged, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("columnar: mkdir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("columnar: create temp: %w", err)
	}
	s := &Staged{Path: path, Tmp: f.Name(), Rows: t.Len()}

	// The parquet writer closes sinks that implement io.Closer; hide Close so
	// the file can still be synced.
	werr := Write(struct{ io.Writer }{f}, t)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(s.Tmp)
		return nil, werr
	}

	fi, err := os.Stat(s.Tmp)
	if err != nil {
		_ = os.Remove(s.Tmp)
		return nil, err
	}
	s.Bytes = fi.Size()
	return s, nil
}

// Commit renames the staged file onto its final path, replacing any
// previous artifact.
func (s *Staged) Commit() error {
	if err := os.Rename(s.Tmp, s.Path); err != nil {
		return fmt.Errorf("columnar: commit %s: %w", s.Path, err)
	}
	return nil
}

// Discard removes the staged file. It is safe to call after Commit.
func (s *Staged) Discard() {
	_ = os.Remove(s.Tmp)
}

// WriteFile stages and commits t at path.
func WriteFile(path string, t *table.Table) error {
	s, err := Stage(path, t)
	if err != nil {
		return err
	}
	return s.Commit()
}

// ReadFile decodes a Parquet file written by WriteFile.
func ReadFile(ctx context.Context, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(Pool), pqarrow.ArrowReadProperties{}, Pool)
	if err != nil {
		return nil, fmt.Errorf("columnar: read %s: %w", path, err)
	}
	defer tbl.Release()
	return FromTable(tbl)
}
