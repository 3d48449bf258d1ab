package tabular

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/hugr-lab/glimpsy/dataset"
)

const timestampLayout = "2006-01-02 15:04:05.999999999"

// DecodeParquet reads a whole Parquet file.
// Columns keep the file schema order; nested and exotic types are rendered
// through their Arrow text form.
func DecodeParquet(ctx context.Context, r io.Reader, opts *Options) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}

	mem := opts.allocator()
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data),
		parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	columns := uniqueColumns(fieldNames(schema))
	numRows := int(tbl.NumRows())

	rows := make([]dataset.Row, numRows)
	for i := range rows {
		rows[i] = make(dataset.Row, len(columns))
	}

	for ci, name := range columns {
		offset := 0
		for _, chunk := range tbl.Column(ci).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				rows[offset+i][name] = scalarAt(chunk, i)
			}
			offset += chunk.Len()
		}
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// scalarAt converts one Arrow value to a row scalar.
// finiteOrText keeps NaN and infinities as their text form since JSON cannot
// encode them as numbers.
func finiteOrText(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

func scalarAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return ""
	}

	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		v := a.Value(i)
		if v <= math.MaxInt64 {
			return int64(v)
		}
		return v
	case *array.Float32:
		// Shortest 32-bit text keeps 0.1f from reading as 0.10000000149011612.
		f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(a.Value(i)), 'g', -1, 32), 64)
		return finiteOrText(f)
	case *array.Float64:
		return finiteOrText(a.Value(i))
	case *array.Boolean:
		return a.Value(i)
	case *array.String:
		return strings.Clone(a.Value(i))
	case *array.LargeString:
		return strings.Clone(a.Value(i))
	case *array.Binary:
		return string(a.Value(i))
	case *array.Date32:
		return a.Value(i).ToTime().Format("2006-01-02")
	case *array.Date64:
		return a.Value(i).ToTime().Format("2006-01-02")
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC().Format(timestampLayout)
	case *array.Dictionary:
		return scalarAt(a.Dictionary(), a.GetValueIndex(i))
	default:
		return arr.ValueStr(i)
	}
}
