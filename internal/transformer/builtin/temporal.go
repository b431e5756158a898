package builtin

import (
	"fmt"
	"strings"
	"time"

	"ordersetl/internal/table"
)

// DatetimeLayouts are tried in order when parsing timestamp strings. Layouts
// without a zone are read as UTC.
var DatetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses s with the first matching layout from DatetimeLayouts.
// Timestamps are truncated to microseconds, the precision of the columnar
// artifacts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DatetimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Truncate(time.Microsecond), true
		}
	}
	return time.Time{}, false
}

// ParseDatetime converts col to a timestamp column. With utc set every value
// is converted to UTC. Values that do not parse become missing; the second
// return value counts them (cells that were present before and are missing
// after). It only fails when the column is absent or has a non-text,
// non-timestamp kind.
func ParseDatetime(t *table.Table, col string, utc bool) (*table.Table, int, error) {
	c, ok := t.Column(col)
	if !ok {
		return nil, 0, fmt.Errorf("parse datetime: unknown column %q", col)
	}
	if c.Kind != table.String && c.Kind != table.Time {
		return nil, 0, fmt.Errorf("parse datetime: column %q is %s", col, c.Kind)
	}

	vals := t.Values(col)
	failed := 0
	for i, v := range vals {
		var (
			ts time.Time
			ok bool
		)
		switch x := v.(type) {
		case nil:
			continue
		case time.Time:
			ts, ok = x, true
		case string:
			ts, ok = ParseTime(x)
		}
		if !ok {
			vals[i] = nil
			failed++
			continue
		}
		if utc {
			ts = ts.UTC()
		}
		vals[i] = ts
	}

	out, err := t.WithColumn(table.Column{Name: col, Kind: table.Time}, vals)
	if err != nil {
		return nil, 0, err
	}
	return out, failed, nil
}

// TimePartSuffixes are the columns AddTimeParts derives, in order.
var TimePartSuffixes = []string{"_date", "_year", "_month", "_day", "_hour", "_dow"}

// AddTimeParts derives calendar columns from the timestamp column col:
// {col}_date (YYYY-MM-DD), {col}_year, {col}_month, {col}_day, {col}_hour,
// and {col}_dow (English weekday name). Each derived cell is missing where
// the timestamp is missing.
func AddTimeParts(t *table.Table, col string) (*table.Table, error) {
	c, ok := t.Column(col)
	if !ok {
		return nil, fmt.Errorf("time parts: unknown column %q", col)
	}
	if c.Kind != table.Time {
		return nil, fmt.Errorf("time parts: column %q is %s, want timestamp", col, c.Kind)
	}

	src := t.Values(col)
	n := len(src)
	var (
		date  = make([]any, n)
		year  = make([]any, n)
		month = make([]any, n)
		day   = make([]any, n)
		hour  = make([]any, n)
		dow   = make([]any, n)
	)
	for i, v := range src {
		ts, ok := v.(time.Time)
		if !ok {
			continue
		}
		date[i] = ts.Format("2006-01-02")
		year[i] = int64(ts.Year())
		month[i] = int64(ts.Month())
		day[i] = int64(ts.Day())
		hour[i] = int64(ts.Hour())
		dow[i] = ts.Weekday().String()
	}

	parts := []struct {
		suffix string
		kind   table.Kind
		vals   []any
	}{
		{"_date", table.String, date},
		{"_year", table.Int, year},
		{"_month", table.Int, month},
		{"_day", table.Int, day},
		{"_hour", table.Int, hour},
		{"_dow", table.String, dow},
	}
	out := t
	for _, p := range parts {
		var err error
		out, err = out.WithColumn(table.Column{Name: col + p.suffix, Kind: p.kind}, p.vals)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
