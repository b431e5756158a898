package builtin

import (
	"ordersetl/internal/quality"
	"ordersetl/internal/table"
)

// MissingSuffix is appended to a column name to form its missing-flag column.
const MissingSuffix = "_missing"

// AddMissingFlags adds a boolean "{col}_missing" column for every named
// column, true where the value is missing. The source columns are left as
// they are, so a legitimate zero stays distinguishable from an absent value.
func AddMissingFlags(t *table.Table, cols []string) (*table.Table, error) {
	if err := quality.RequireColumns(t, cols); err != nil {
		return nil, err
	}
	out := t
	for _, c := range cols {
		vals := t.Values(c)
		flags := make([]any, len(vals))
		for i, v := range vals {
			flags[i] = v == nil
		}
		var err error
		out, err = out.WithColumn(table.Column{Name: c + MissingSuffix, Kind: table.Bool}, flags)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
