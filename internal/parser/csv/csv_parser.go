// Package csv reads delimited text into an all-string table.Table. Header
// cells are normalized to snake_case column names, empty cells become
// missing values, and every row must have as many fields as the header.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"ordersetl/internal/datasource"
	"ordersetl/internal/table"
)

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value before
	// the empty-to-missing conversion.
	TrimSpace bool

	// HeaderMap maps source header names to canonical keys (e.g., localization
	// to snake_case). Unmapped headers are lowercased with spaces replaced by
	// underscores.
	HeaderMap map[string]string
}

// MalformedError reports input that encoding/csv could not parse or whose
// header is unusable.
type MalformedError struct {
	Source string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("csv: malformed input %s: %v", e.Source, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads the whole input. A header row is required; an input with a
// header and no body yields a zero-row table.
func (p *Parser) Parse(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.ReuseRecord = true

	h, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MalformedError{Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &MalformedError{Err: err}
	}
	headers := normalizeHeaders(h, p.opt)

	cols := make([]table.Column, len(headers))
	seen := make(map[string]struct{}, len(headers))
	for i, name := range headers {
		if name == "" {
			return nil, &MalformedError{Err: fmt.Errorf("header cell %d is empty", i+1)}
		}
		if _, dup := seen[name]; dup {
			return nil, &MalformedError{Err: fmt.Errorf("duplicate header %q", name)}
		}
		seen[name] = struct{}{}
		cols[i] = table.Column{Name: name, Kind: table.String}
	}

	var rows [][]any
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// FieldsPerRecord defaults to the header width, so ragged rows
			// surface here as csv.ErrFieldCount.
			return nil, &MalformedError{Err: err}
		}
		row := make([]any, len(rec))
		for i, val := range rec {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			row[i] = emptyToNil(val)
		}
		rows = append(rows, row)
	}
	return table.New(cols, rows)
}

// ReadFile opens src and parses it. Open errors are returned as-is so callers
// can match datasource.ErrMissing; parse errors carry the source name.
func ReadFile(ctx context.Context, src datasource.Source, opt Options) (*table.Table, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err := NewParser(opt).Parse(rc)
	var me *MalformedError
	if errors.As(err, &me) {
		me.Source = src.Name()
	}
	return t, err
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders produces canonical header keys using HeaderMap (when
// provided) and simple normalization (lowercase, spaces to underscores). It
// also strips a UTF-8 BOM from the first cell if present.
func normalizeHeaders(h []string, opt Options) []string {
	h = StripHeaderBOM(append([]string(nil), h...))
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if opt.HeaderMap != nil {
			if m, ok := opt.HeaderMap[c]; ok {
				res[i] = m
				continue
			}
		}
		res[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
	}
	return res
}
