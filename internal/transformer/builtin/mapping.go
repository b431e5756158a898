package builtin

import (
	"fmt"

	"ordersetl/internal/table"
)

// StatusMap folds raw order statuses onto the canonical set.
var StatusMap = map[string]string{
	"paid":     "paid",
	"refund":   "refund",
	"refunded": "refund",
	"returned": "refund",
}

// ApplyMapping replaces each string value found in mapping with its canonical
// form. Values without an entry are kept unchanged: an unknown category is
// still information, and dropping or nulling it would hide new upstream
// values instead of surfacing them. Missing values stay missing.
func ApplyMapping(values []any, mapping map[string]string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			out[i] = v
			continue
		}
		if m, ok := mapping[s]; ok {
			out[i] = m
			continue
		}
		out[i] = s
	}
	return out
}

// Unmapped counts non-missing string values that have no entry in mapping.
func Unmapped(values []any, mapping map[string]string) int {
	n := 0
	for _, v := range values {
		if s, ok := v.(string); ok {
			if _, hit := mapping[s]; !hit {
				n++
			}
		}
	}
	return n
}

// ApplyMappingColumn writes ApplyMapping(src) into dst.
func ApplyMappingColumn(t *table.Table, src, dst string, mapping map[string]string) (*table.Table, error) {
	c, ok := t.Column(src)
	if !ok {
		return nil, fmt.Errorf("mapping: unknown column %q", src)
	}
	if c.Kind != table.String {
		return nil, fmt.Errorf("mapping: column %q is %s, want string", src, c.Kind)
	}
	return t.WithColumn(table.Column{Name: dst, Kind: table.String}, ApplyMapping(t.Values(src), mapping))
}
