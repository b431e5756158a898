package builtin

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"ordersetl/internal/table"
)

// NormalizeText lowercases and trims every string value. Input is first
// folded with Unicode NFKC so that compatibility forms (no-break spaces,
// full-width letters) collapse to their plain equivalents before trimming.
// Missing values pass through as missing.
func NormalizeText(values []any) []any {
	lower := cases.Lower(language.Und)
	out := make([]any, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			out[i] = v
			continue
		}
		out[i] = lower.String(strings.TrimSpace(norm.NFKC.String(s)))
	}
	return out
}

// NormalizeTextColumn writes NormalizeText(src) into dst. When dst equals
// src the column is replaced in place.
func NormalizeTextColumn(t *table.Table, src, dst string) (*table.Table, error) {
	c, ok := t.Column(src)
	if !ok {
		return nil, fmt.Errorf("normalize: unknown column %q", src)
	}
	if c.Kind != table.String {
		return nil, fmt.Errorf("normalize: column %q is %s, want string", src, c.Kind)
	}
	return t.WithColumn(table.Column{Name: dst, Kind: table.String}, NormalizeText(t.Values(src)))
}
