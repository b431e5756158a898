// Package builtin contains the table transformations used by the pipeline:
// schema enforcement, missing-value flags, text normalization, categorical
// mapping, timestamp parsing, and outlier handling.
//
// Every function takes a *table.Table and returns a new one; inputs are never
// modified. Per-value problems (an amount that is not a number, a timestamp
// that does not parse) turn into missing cells instead of errors. Only
// structural problems, such as a column the schema requires but the table
// lacks, are returned as errors.
package builtin

import (
	"math"
	"strconv"
	"strings"

	"ordersetl/internal/quality"
	"ordersetl/internal/table"
)

// Schema is a static, ordered list of columns and their target kinds.
type Schema []table.Column

// Names returns the schema's column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// OrdersSchema is the fixed layout of the orders table after enforcement.
// created_at stays a string here; ParseDatetime converts it later so that
// its failures are counted separately.
var OrdersSchema = Schema{
	{Name: "order_id", Kind: table.String},
	{Name: "user_id", Kind: table.String},
	{Name: "amount", Kind: table.Float},
	{Name: "quantity", Kind: table.Int},
	{Name: "created_at", Kind: table.String},
	{Name: "status", Kind: table.String},
}

// UsersSchema is the fixed layout of the users table after enforcement.
var UsersSchema = Schema{
	{Name: "user_id", Kind: table.String},
	{Name: "country", Kind: table.String},
	{Name: "signup_date", Kind: table.String},
}

// EnforceSchema returns a table with exactly the schema's columns, in schema
// order, each coerced to its target kind. Values that cannot be coerced
// become missing. Columns not named by the schema are dropped.
func EnforceSchema(t *table.Table, s Schema) (*table.Table, error) {
	if err := quality.RequireColumns(t, s.Names()); err != nil {
		return nil, err
	}

	out, err := t.Select(s.Names()...)
	if err != nil {
		return nil, err
	}
	for _, c := range s {
		src, _ := out.Column(c.Name)
		vals := out.Values(c.Name)
		for i, v := range vals {
			vals[i] = Coerce(v, src.Kind, c.Kind)
		}
		out, err = out.WithColumn(c, vals)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Coerce converts v from kind `from` to kind `to`. It returns nil when v is
// nil or cannot be represented in the target kind. Text cells are trimmed,
// and blank text becomes nil.
func Coerce(v any, from, to table.Kind) any {
	if v == nil {
		return nil
	}
	if from == to {
		if from == table.String {
			if s := strings.TrimSpace(v.(string)); s != "" {
				return s
			}
			return nil
		}
		return v
	}

	switch to {
	case table.String:
		return toString(v)
	case table.Float:
		return toFloat(v)
	case table.Int:
		return toInt(v)
	case table.Bool:
		return toBool(v)
	}
	// Timestamps go through ParseDatetime, which knows the accepted layouts.
	return nil
}

func toString(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return nil
}

func toFloat(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return nil
		}
		return x
	case int64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	}
	return nil
}

func toInt(v any) any {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil
		}
		return int64(x)
	case string:
		s := strings.TrimSpace(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		// "2.0" is a valid quantity; "2.5" is not.
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toInt(f)
		}
	}
	return nil
}

func toBool(v any) any {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b
		}
	case int64:
		return x != 0
	}
	return nil
}
