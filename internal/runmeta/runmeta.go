// Package runmeta writes the per-run audit document that accompanies the
// processed artifacts.
package runmeta

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// Stats are the data-quality counters of one run. They are flattened into
// the top level of the document.
type Stats struct {
	RowsInOrdersRaw  int `json:"rows_in_orders_raw"`
	RowsInUsersRaw   int `json:"rows_in_users_raw"`
	RowsOutAnalytics int `json:"rows_out_analytics"`

	// MissingCreatedAtAfterParse counts analytics rows whose created_at is
	// missing after parsing, whether it was blank or unparseable.
	MissingCreatedAtAfterParse int `json:"missing_created_at_after_parse"`
	UnparseableCreatedAt       int `json:"unparseable_created_at"`

	// JoinMatchRate is the share of analytics rows with a non-missing
	// JoinMatchColumn. It is nil when that column is absent.
	JoinMatchRate   *float64 `json:"join_match_rate"`
	JoinMatchColumn string   `json:"join_match_column"`

	OrdersOutliers       int `json:"orders_outliers"`
	UnmappedStatusValues int `json:"unmapped_status_values"`
}

// Artifact describes one written output file.
type Artifact struct {
	Rows  int    `json:"rows"`
	Bytes int64  `json:"bytes"`
	XXH3  string `json:"xxh3"`
}

// Document is the JSON shape of _run_meta.json.
type Document struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Stats

	Inputs    map[string]string   `json:"inputs"`
	Outputs   map[string]string   `json:"outputs"`
	Artifacts map[string]Artifact `json:"artifacts,omitempty"`
	Config    map[string]string   `json:"config"`
}

// NewRunID returns a random identifier for a run.
func NewRunID() string { return uuid.NewString() }

// Write stores doc at path as two-space indented JSON. The file is written to
// a temporary name first and renamed, so a reader never sees a partial
// document.
func Write(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("runmeta: encode: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("runmeta: mkdir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("runmeta: create temp: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("runmeta: write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("runmeta: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("runmeta: rename: %w", err)
	}
	return nil
}

// Read loads a document written by Write.
func Read(path string) (Document, error) {
	var doc Document
	b, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("runmeta: decode %s: %w", path, err)
	}
	return doc, nil
}

// Checksum returns the XXH3-64 digest of the file at path as 16 hex digits.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("runmeta: checksum %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// FormatRate renders a match rate for log lines; nil prints as "n/a".
func FormatRate(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*r, 'f', 4, 64)
}
