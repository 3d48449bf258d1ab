package tabular

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/hugr-lab/glimpsy/dataset"
)

// WriteCSV renders rows as CSV with a header line in column order.
// Every value is written in its string form; missing values are empty.
func WriteCSV(w io.Writer, columns []string, rows []dataset.Row, opts *Options) error {
	schema := StringSchema(columns)

	rec, err := BuildRecord(opts.allocator(), schema, rows)
	if err != nil {
		return err
	}
	defer rec.Release()

	cw := csv.NewWriter(w, schema, csv.WithHeader(true), csv.WithNullWriter(""))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return cw.Error()
}
