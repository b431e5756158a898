// Package table implements the in-memory record table that flows between the
// pipeline stages.
//
// A Table is an ordered set of typed columns holding the same number of rows.
// Cells are nil (missing) or a Go value matching the column Kind:
//
//	String -> string
//	Float  -> float64
//	Int    -> int64
//	Bool   -> bool
//	Time   -> time.Time
//
// Tables are immutable. Every method that "changes" a table returns a new one
// and leaves the receiver untouched; column slices are shared between tables
// because nothing ever writes into them after construction.
package table

import (
	"fmt"
	"time"
)

// Kind is the logical type of a column.
type Kind int

const (
	String Kind = iota
	Float
	Int
	Bool
	Time
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Time:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column describes one column of a Table.
type Column struct {
	Name string
	Kind Kind
}

// Record is a single row keyed by column name. It is the convenient form for
// building fixtures and for row-wise inspection; the table itself stores
// columns.
type Record map[string]any

// Table is an immutable, column-oriented record table.
type Table struct {
	cols  []Column
	data  [][]any
	index map[string]int
	n     int
}

// New builds a table from column definitions and row-major cells. Every row
// must have exactly len(cols) cells and every non-nil cell must match its
// column kind.
func New(cols []Column, rows [][]any) (*Table, error) {
	data := make([][]any, len(cols))
	for j := range cols {
		data[j] = make([]any, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("table: row %d has %d cells, want %d", i, len(row), len(cols))
		}
		for j, v := range row {
			data[j][i] = v
		}
	}
	return fromColumns(cols, data, len(rows))
}

// FromRecords builds a table from map-shaped rows. Keys absent from a record
// become nil cells; keys not named in cols are ignored.
func FromRecords(cols []Column, recs []Record) (*Table, error) {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = rec[c.Name]
		}
		rows[i] = row
	}
	return New(cols, rows)
}

// MustNew is New for fixtures; it panics on error.
func MustNew(cols []Column, rows [][]any) *Table {
	t, err := New(cols, rows)
	if err != nil {
		panic(err)
	}
	return t
}

func fromColumns(cols []Column, data [][]any, n int) (*Table, error) {
	index := make(map[string]int, len(cols))
	for j, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("table: column %d has an empty name", j)
		}
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", c.Name)
		}
		index[c.Name] = j
		if len(data[j]) != n {
			return nil, fmt.Errorf("table: column %q has %d values, want %d", c.Name, len(data[j]), n)
		}
		for i, v := range data[j] {
			if !Conforms(c.Kind, v) {
				return nil, fmt.Errorf("table: column %q row %d: %T is not a %s", c.Name, i, v, c.Kind)
			}
		}
	}
	return &Table{
		cols:  append([]Column(nil), cols...),
		data:  data,
		index: index,
		n:     n,
	}, nil
}

// Conforms reports whether v may be stored in a column of kind k.
func Conforms(k Kind, v any) bool {
	if v == nil {
		return true
	}
	switch k {
	case String:
		_, ok := v.(string)
		return ok
	case Float:
		_, ok := v.(float64)
		return ok
	case Int:
		_, ok := v.(int64)
		return ok
	case Bool:
		_, ok := v.(bool)
		return ok
	case Time:
		_, ok := v.(time.Time)
		return ok
	}
	return false
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.n }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Columns returns a copy of the column definitions in order.
func (t *Table) Columns() []Column { return append([]Column(nil), t.cols...) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Name
	}
	return out
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the definition of the named column.
func (t *Table) Column(name string) (Column, bool) {
	j, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[j], true
}

// Values returns a copy of the named column's cells, or nil if the column
// does not exist.
func (t *Table) Values(name string) []any {
	j, ok := t.index[name]
	if !ok {
		return nil
	}
	return append([]any(nil), t.data[j]...)
}

// Value returns a single cell. It panics if the row is out of range and
// returns nil for an unknown column.
func (t *Table) Value(row int, name string) any {
	if row < 0 || row >= t.n {
		panic(fmt.Sprintf("table: row %d out of range [0,%d)", row, t.n))
	}
	j, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.data[j][row]
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []any {
	out := make([]any, len(t.cols))
	for j := range t.cols {
		out[j] = t.data[j][i]
	}
	return out
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) Record {
	rec := make(Record, len(t.cols))
	for j, c := range t.cols {
		rec[c.Name] = t.data[j][i]
	}
	return rec
}

// Records returns all rows keyed by column name.
func (t *Table) Records() []Record {
	out := make([]Record, t.n)
	for i := range out {
		out[i] = t.Record(i)
	}
	return out
}

// NullCount returns the number of nil cells in the named column. An unknown
// column counts as entirely missing.
func (t *Table) NullCount(name string) int {
	j, ok := t.index[name]
	if !ok {
		return t.n
	}
	nulls := 0
	for _, v := range t.data[j] {
		if v == nil {
			nulls++
		}
	}
	return nulls
}

// WithColumn returns a table with the given column set to values. An existing
// column of the same name is replaced in place (keeping its position and
// adopting the new kind); otherwise the column is appended.
func (t *Table) WithColumn(col Column, values []any) (*Table, error) {
	if len(values) != t.n {
		return nil, fmt.Errorf("table: column %q has %d values, want %d", col.Name, len(values), t.n)
	}
	vals := append([]any(nil), values...)

	cols := append([]Column(nil), t.cols...)
	data := append([][]any(nil), t.data...)
	if j, ok := t.index[col.Name]; ok {
		cols[j] = col
		data[j] = vals
	} else {
		cols = append(cols, col)
		data = append(data, vals)
	}
	return fromColumns(cols, data, t.n)
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]struct{}, len(names))
	for _, n := range names {
		skip[n] = struct{}{}
	}
	cols := make([]Column, 0, len(t.cols))
	data := make([][]any, 0, len(t.cols))
	for j, c := range t.cols {
		if _, ok := skip[c.Name]; ok {
			continue
		}
		cols = append(cols, c)
		data = append(data, t.data[j])
	}
	out, err := fromColumns(cols, data, t.n)
	if err != nil {
		// Dropping columns from a valid table cannot produce an invalid one.
		panic(err)
	}
	return out
}

// Select returns a table with exactly the named columns in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	data := make([][]any, 0, len(names))
	for _, n := range names {
		j, ok := t.index[n]
		if !ok {
			return nil, fmt.Errorf("table: unknown column %q", n)
		}
		cols = append(cols, t.cols[j])
		data = append(data, t.data[j])
	}
	return fromColumns(cols, data, t.n)
}

// Take returns a table holding the rows at the given indexes, in that order.
// An index of -1 yields a row of nil cells.
func (t *Table) Take(idx []int) *Table {
	data := make([][]any, len(t.cols))
	for j := range t.cols {
		col := make([]any, len(idx))
		for i, r := range idx {
			if r >= 0 {
				col[i] = t.data[j][r]
			}
		}
		data[j] = col
	}
	out, err := fromColumns(t.cols, data, len(idx))
	if err != nil {
		panic(err)
	}
	return out
}

// Concat returns a table with the columns of t followed by the columns of
// other. Both tables must have the same number of rows and no shared column
// names.
func (t *Table) Concat(other *Table) (*Table, error) {
	if other.n != t.n {
		return nil, fmt.Errorf("table: concat of %d rows with %d rows", t.n, other.n)
	}
	cols := append(append([]Column(nil), t.cols...), other.cols...)
	data := append(append([][]any(nil), t.data...), other.data...)
	return fromColumns(cols, data, t.n)
}

// Rename returns a table with column from renamed to to.
func (t *Table) Rename(from, to string) (*Table, error) {
	j, ok := t.index[from]
	if !ok {
		return nil, fmt.Errorf("table: unknown column %q", from)
	}
	cols := append([]Column(nil), t.cols...)
	cols[j].Name = to
	return fromColumns(cols, t.data, t.n)
}
