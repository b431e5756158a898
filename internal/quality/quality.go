// Package quality holds the fail-fast checks that run against raw inputs
// before any transformation. Every check is read-only; a failure means the
// run must stop before anything is written.
package quality

import "ordersetl/internal/table"

// RequireColumns fails with *SchemaError when any expected column is absent.
// Row count is irrelevant; an empty table with the right columns passes.
func RequireColumns(t *table.Table, expected []string) error {
	var missing []string
	for _, c := range expected {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// AssertNonEmpty fails with *EmptyInputError when t has no rows.
func AssertNonEmpty(t *table.Table, label string) error {
	if t.Len() == 0 {
		return &EmptyInputError{Label: label}
	}
	return nil
}

// AssertUniqueKey fails with *KeyViolationError when any value of key
// appears more than once. Missing cells compare equal to each other, so two
// rows with a null key are a violation.
func AssertUniqueKey(t *table.Table, key string) error {
	if !t.Has(key) {
		return &SchemaError{Missing: []string{key}}
	}

	vals := t.Values(key)
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[table.Key(v)]++
	}

	var (
		dups     []any
		dupRows  int
		reported = map[string]struct{}{}
	)
	for _, v := range vals {
		k := table.Key(v)
		n := counts[k]
		if n < 2 {
			continue
		}
		if _, ok := reported[k]; ok {
			continue
		}
		reported[k] = struct{}{}
		dups = append(dups, v)
		dupRows += n
	}
	if len(dups) > 0 {
		return &KeyViolationError{Column: key, Duplicates: dups, Rows: dupRows}
	}
	return nil
}
