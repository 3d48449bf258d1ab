package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/hugr-lab/glimpsy/dataset"
)

// naValues are cell texts read as missing.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// columnType is the inferred type of a CSV column, ordered from narrowest.
type columnType int

const (
	typeInt columnType = iota
	typeFloat
	typeBool
	typeString
)

// DecodeCSV reads a CSV file with a header row.
//
// Column types are inferred from every value of the column: all integers
// give int64, all numbers give float64, all true/false give bool, anything
// else keeps the text. Short rows are padded with missing values.
func DecodeCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	columns := uniqueColumns(header)

	var records [][]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(rec) > len(columns) {
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrMalformed, line, len(rec), len(columns))
		}
		records = append(records, rec)
	}

	types := make([]columnType, len(columns))
	for i := range columns {
		types[i] = inferCSVColumn(records, i)
	}

	rows := make([]dataset.Row, len(records))
	for ri, rec := range records {
		row := make(dataset.Row, len(columns))
		for ci, col := range columns {
			cell := ""
			if ci < len(rec) {
				cell = rec[ci]
			}
			row[col] = convertCell(cell, types[ci])
		}
		rows[ri] = row
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// uniqueColumns names blank headers "Unnamed: i" and suffixes repeats with ".n".
func uniqueColumns(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	repeats := make(map[string]int)
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for seen[name] {
			repeats[base]++
			name = base + "." + strconv.Itoa(repeats[base])
		}
		seen[name] = true
		columns[i] = name
	}
	return columns
}

func isNA(cell string) bool {
	_, ok := naValues[cell]
	return ok
}

func inferCSVColumn(records [][]string, col int) columnType {
	t := typeInt
	present := false
	for _, rec := range records {
		if col >= len(rec) || isNA(rec[col]) {
			continue
		}
		present = true
		cell := strings.TrimSpace(rec[col])
		for t != typeString && !fits(cell, t) {
			t++
		}
		if t == typeString {
			return typeString
		}
	}
	if !present {
		return typeString
	}
	return t
}

func fits(cell string, t columnType) bool {
	switch t {
	case typeInt:
		_, err := strconv.ParseInt(cell, 10, 64)
		return err == nil
	case typeFloat:
		// hex floats and underscores are Go syntax, not CSV numbers
		if strings.ContainsAny(cell, "xX_") {
			return false
		}
		_, err := strconv.ParseFloat(cell, 64)
		return err == nil
	case typeBool:
		_, ok := parseBool(cell)
		return ok
	default:
		return true
	}
}

func parseBool(cell string) (bool, bool) {
	switch cell {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	default:
		return false, false
	}
}

func convertCell(cell string, t columnType) any {
	if isNA(cell) {
		return ""
	}
	trimmed := strings.TrimSpace(cell)
	switch t {
	case typeInt:
		n, _ := strconv.ParseInt(trimmed, 10, 64)
		return n
	case typeFloat:
		f, _ := strconv.ParseFloat(trimmed, 64)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			// JSON has no encoding for non-finite numbers
			return trimmed
		}
		return f
	case typeBool:
		b, _ := parseBool(trimmed)
		return b
	default:
		return cell
	}
}
