// Package columnar persists table.Table values as Parquet files through the
// Apache Arrow Go implementation.
//
// Column kinds map one-to-one onto Arrow types; timestamps are stored with
// microsecond precision in UTC. The Arrow schema is embedded in the file so
// a round trip restores the exact kinds.
package columnar

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"ordersetl/internal/table"
)

// Pool is the allocator used for every Arrow buffer built by this package.
var Pool memory.Allocator = memory.NewGoAllocator()

// TimestampType is the Arrow type used for table.Time columns.
var TimestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// ArrowType returns the Arrow type for a column kind.
func ArrowType(k table.Kind) (arrow.DataType, error) {
	switch k {
	case table.String:
		return arrow.BinaryTypes.String, nil
	case table.Float:
		return arrow.PrimitiveTypes.Float64, nil
	case table.Int:
		return arrow.PrimitiveTypes.Int64, nil
	case table.Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case table.Time:
		return TimestampType, nil
	}
	return nil, fmt.Errorf("columnar: no arrow type for %s", k)
}

// Schema derives the Arrow schema of t. Every field is nullable.
func Schema(t *table.Table) (*arrow.Schema, error) {
	cols := t.Columns()
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		dt, err := ArrowType(c.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

// ToRecord converts t into a single Arrow record. The caller must Release it.
func ToRecord(t *table.Table) (arrow.Record, error) {
	schema, err := Schema(t)
	if err != nil {
		return nil, err
	}
	cols := t.Columns()
	arrs := make([]arrow.Array, 0, len(cols))
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()
	for _, c := range cols {
		a, err := buildArray(c, t.Values(c.Name))
		if err != nil {
			return nil, err
		}
		arrs = append(arrs, a)
	}
	return array.NewRecord(schema, arrs, int64(t.Len())), nil
}

func buildArray(c table.Column, vals []any) (arrow.Array, error) {
	switch c.Kind {
	case table.String:
		b := array.NewStringBuilder(Pool)
		defer b.Release()
		for _, v := range vals {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(string))
		}
		return b.NewArray(), nil
	case table.Float:
		b := array.NewFloat64Builder(Pool)
		defer b.Release()
		for _, v := range vals {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(float64))
		}
		return b.NewArray(), nil
	case table.Int:
		b := array.NewInt64Builder(Pool)
		defer b.Release()
		for _, v := range vals {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(int64))
		}
		return b.NewArray(), nil
	case table.Bool:
		b := array.NewBooleanBuilder(Pool)
		defer b.Release()
		for _, v := range vals {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(v.(bool))
		}
		return b.NewArray(), nil
	case table.Time:
		b := array.NewTimestampBuilder(Pool, TimestampType)
		defer b.Release()
		for _, v := range vals {
			if v == nil {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
		}
		return b.NewArray(), nil
	}
	return nil, fmt.Errorf("columnar: column %q: unsupported kind %s", c.Name, c.Kind)
}

// FromTable converts an Arrow table back into a table.Table.
func FromTable(tbl arrow.Table) (*table.Table, error) {
	n := int(tbl.NumRows())
	schema := tbl.Schema()
	out, err := table.New(nil, make([][]any, n))
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(tbl.NumCols()); i++ {
		f := schema.Field(i)
		kind, err := kindOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		vals := make([]any, 0, n)
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			vals = appendValues(vals, chunk)
		}
		if out, err = out.WithColumn(table.Column{Name: f.Name, Kind: kind}, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func kindOf(dt arrow.DataType) (table.Kind, error) {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return table.String, nil
	case arrow.FLOAT64, arrow.FLOAT32:
		return table.Float, nil
	case arrow.INT64, arrow.INT32, arrow.INT16, arrow.INT8:
		return table.Int, nil
	case arrow.BOOL:
		return table.Bool, nil
	case arrow.TIMESTAMP:
		return table.Time, nil
	}
	return 0, fmt.Errorf("columnar: unsupported arrow type %s", dt)
}

func appendValues(dst []any, a arrow.Array) []any {
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) {
			dst = append(dst, nil)
			continue
		}
		switch arr := a.(type) {
		case *array.String:
			dst = append(dst, arr.Value(i))
		case *array.LargeString:
			dst = append(dst, arr.Value(i))
		case *array.Float64:
			dst = append(dst, arr.Value(i))
		case *array.Float32:
			dst = append(dst, float64(arr.Value(i)))
		case *array.Int64:
			dst = append(dst, arr.Value(i))
		case *array.Int32:
			dst = append(dst, int64(arr.Value(i)))
		case *array.Int16:
			dst = append(dst, int64(arr.Value(i)))
		case *array.Int8:
			dst = append(dst, int64(arr.Value(i)))
		case *array.Boolean:
			dst = append(dst, arr.Value(i))
		case *array.Timestamp:
			unit := arr.DataType().(*arrow.TimestampType).Unit
			dst = append(dst, arr.Value(i).ToTime(unit).UTC())
		default:
			dst = append(dst, nil)
		}
	}
	return dst
}
