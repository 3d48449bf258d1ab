// Package tabular decodes uploaded CSV and Parquet files into dataset rows
// and renders rows back out as CSV or Arrow records.
//
// Decoded values are normalized to the scalar set the filter engine works
// with: int64, float64, bool or string. Missing values become "".
package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/glimpsy/dataset"
)

var (
	// ErrUnsupportedFileType indicates a file extension other than csv or parquet.
	ErrUnsupportedFileType = errors.New("file type not allowed, only CSV and Parquet files are supported")

	// ErrMalformed indicates the file content could not be decoded.
	ErrMalformed = errors.New("malformed tabular file")
)

// Table is a decoded file: ordered columns and rows keyed by column name.
type Table struct {
	Columns []string
	Rows    []dataset.Row
}

// Options configures decoding.
type Options struct {
	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator
}

func (o *Options) allocator() memory.Allocator {
	if o == nil || o.Allocator == nil {
		return memory.DefaultAllocator
	}
	return o.Allocator
}

// FileTypeFromName returns the file type for a file name by its extension.
// The comparison is case-insensitive.
func FileTypeFromName(name string) (dataset.FileType, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	ft := dataset.FileType(ext)
	if !ft.Valid() {
		return "", ErrUnsupportedFileType
	}
	return ft, nil
}

// Decode reads a whole file of the given type.
func Decode(ctx context.Context, ft dataset.FileType, r io.Reader, opts *Options) (*Table, error) {
	switch ft {
	case dataset.FileTypeCSV:
		return DecodeCSV(r)
	case dataset.FileTypeParquet:
		return DecodeParquet(ctx, r, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ft)
	}
}
