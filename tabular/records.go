package tabular

import (
	"fmt"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/filter"
)

// StringSchema returns a schema with one nullable string field per column.
func StringSchema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// InferSchema derives an Arrow schema from the stored values of each column.
// Empty values are ignored. A column holding only integers becomes Int64,
// integers mixed with floats become Float64, only booleans become Boolean,
// anything else (including a column with no values) becomes String.
func InferSchema(columns []string, rows []dataset.Row) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{Name: name, Type: inferColumnType(name, rows), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func inferColumnType(col string, rows []dataset.Row) arrow.DataType {
	var ints, floats, bools, others int
	for _, r := range rows {
		switch v := r.Get(col).(type) {
		case nil:
		case string:
			if v != "" {
				others++
			}
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
			ints++
		case uint64:
			if v > math.MaxInt64 {
				floats++
			} else {
				ints++
			}
		case float32, float64:
			floats++
		case bool:
			bools++
		default:
			others++
		}
	}

	switch {
	case others > 0:
		return arrow.BinaryTypes.String
	case bools > 0 && ints+floats == 0:
		return arrow.FixedWidthTypes.Boolean
	case bools > 0:
		return arrow.BinaryTypes.String
	case floats > 0:
		return arrow.PrimitiveTypes.Float64
	case ints > 0:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.BinaryTypes.String
	}
}

// BuildRecord converts rows into a single record following schema.
// Empty values become nulls in typed columns and empty strings in string
// columns. Caller MUST call Release() on the result.
func BuildRecord(alloc memory.Allocator, schema *arrow.Schema, rows []dataset.Row) (arrow.Record, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}

	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	for i, field := range schema.Fields() {
		if err := appendColumn(builder.Field(i), field.Name, rows); err != nil {
			return nil, fmt.Errorf("column %q: %w", field.Name, err)
		}
	}

	return builder.NewRecord(), nil
}

func appendColumn(b array.Builder, col string, rows []dataset.Row) error {
	switch fb := b.(type) {
	case *array.StringBuilder:
		for _, r := range rows {
			fb.Append(filter.Stringify(r.Get(col)))
		}
	case *array.Int64Builder:
		for _, r := range rows {
			v := r.Get(col)
			if isEmpty(v) {
				fb.AppendNull()
				continue
			}
			n, err := toInt64(v)
			if err != nil {
				return err
			}
			fb.Append(n)
		}
	case *array.Float64Builder:
		for _, r := range rows {
			v := r.Get(col)
			if isEmpty(v) {
				fb.AppendNull()
				continue
			}
			f, ok := filter.TryParseNumber(v)
			if !ok {
				return fmt.Errorf("value %v is not numeric", v)
			}
			fb.Append(f)
		}
	case *array.BooleanBuilder:
		for _, r := range rows {
			v := r.Get(col)
			if isEmpty(v) {
				fb.AppendNull()
				continue
			}
			bv, ok := v.(bool)
			if !ok {
				return fmt.Errorf("value %v is not boolean", v)
			}
			fb.Append(bv)
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("value %v is not an integer", v)
	}
}
