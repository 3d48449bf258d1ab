// Package dataset defines the persisted shape of uploaded tabular datasets
// and the Store interface the rest of the application reads them through.
//
// A dataset is an ordered column list plus a sequence of rows. Rows are
// schema-less: each one maps a column name to a scalar value (string,
// number, bool or empty). Storage backends live in sub-packages
// (see dataset/sqlstore).
package dataset

import (
	"context"
	"errors"
	"time"
)

// FileType identifies the format of the uploaded source file.
type FileType string

const (
	FileTypeCSV     FileType = "csv"
	FileTypeParquet FileType = "parquet"
)

// Valid reports whether t is one of the accepted upload formats.
func (t FileType) Valid() bool {
	return t == FileTypeCSV || t == FileTypeParquet
}

// Row is one record of a dataset. Absent keys read as the empty string.
type Row map[string]any

// Get returns the value stored for column, or "" when the row has no such key.
func (r Row) Get(column string) any {
	v, ok := r[column]
	if !ok {
		return ""
	}
	return v
}

// Dataset is the metadata persisted for one uploaded file.
type Dataset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	FileType    FileType  `json:"file_type"`
	Columns     []string  `json:"columns"`
	RowCount    int       `json:"row_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the list view of a dataset.
type Summary struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	FileType    FileType  `json:"file_type"`
	RowCount    int       `json:"row_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comparison pairs two datasets for side-by-side exploration.
type Comparison struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Dataset1ID   int64     `json:"dataset1_id"`
	Dataset2ID   int64     `json:"dataset2_id"`
	Dataset1Name string    `json:"dataset1_name,omitempty"`
	Dataset2Name string    `json:"dataset2_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists datasets, their rows and comparisons.
// Implementations MUST be goroutine-safe.
type Store interface {
	// Create persists metadata and rows in one transaction and returns the new id.
	// d.RowCount is set from len(rows).
	Create(ctx context.Context, d *Dataset, rows []Row) (int64, error)

	// Get returns metadata and rows in insertion order.
	// Returns ErrNotFound if the dataset does not exist.
	Get(ctx context.Context, id int64) (*Dataset, []Row, error)

	// Dataset returns metadata only.
	// Returns ErrNotFound if the dataset does not exist.
	Dataset(ctx context.Context, id int64) (*Dataset, error)

	// Delete removes the dataset, its rows and every comparison referencing it.
	// Returns ErrNotFound if the dataset does not exist.
	Delete(ctx context.Context, id int64) error

	// List returns all datasets, newest first.
	// Returns empty slice (not nil) if there are none.
	List(ctx context.Context) ([]Summary, error)

	// CreateComparison persists a comparison of two existing, distinct datasets.
	// Returns ErrNotFound if either dataset is missing.
	CreateComparison(ctx context.Context, c *Comparison) (int64, error)

	// Comparison returns a comparison by id.
	// Returns ErrComparisonNotFound if it does not exist.
	Comparison(ctx context.Context, id int64) (*Comparison, error)

	// ListComparisons returns all comparisons with both dataset names, newest first.
	ListComparisons(ctx context.Context) ([]Comparison, error)

	// Close releases the underlying resources.
	Close() error
}

var (
	// ErrNotFound indicates the requested dataset does not exist.
	ErrNotFound = errors.New("dataset not found")

	// ErrComparisonNotFound indicates the requested comparison does not exist.
	ErrComparisonNotFound = errors.New("portfolio comparison not found")

	// ErrInvalid indicates the caller supplied inconsistent input.
	ErrInvalid = errors.New("invalid dataset input")
)
