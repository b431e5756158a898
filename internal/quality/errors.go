package quality

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns absent from a table.
type SchemaError struct {
	// Table is an optional label for the offending table.
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("schema: %s is missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schema: missing required columns: %s", strings.Join(e.Missing, ", "))
}

// EmptyInputError reports a table with zero rows.
type EmptyInputError struct {
	Label string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input: %s has no rows", e.Label)
}

// KeyViolationError reports repeated values in a column that must be unique.
type KeyViolationError struct {
	Column string
	// Duplicates holds each repeated value once, in first-seen order.
	Duplicates []any
	// Rows is the total number of rows that share a repeated value.
	Rows int
}

func (e *KeyViolationError) Error() string {
	const show = 5
	vals := make([]string, 0, show)
	for i, v := range e.Duplicates {
		if i == show {
			vals = append(vals, "...")
			break
		}
		if v == nil {
			vals = append(vals, "<null>")
			continue
		}
		vals = append(vals, fmt.Sprintf("%v", v))
	}
	return fmt.Sprintf("key violation: %s has %d duplicated value(s) across %d rows: %s",
		e.Column, len(e.Duplicates), e.Rows, strings.Join(vals, ", "))
}
