// Package sqlstore implements dataset.Store on database/sql.
//
// SQLite (github.com/mattn/go-sqlite3) is the default driver; DuckDB
// (github.com/duckdb/duckdb-go/v2) is selected with Driver: "duckdb".
// Each row is kept as one opaque record produced by dataset.Codec.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/internal/serialize"
)

// Config configures a Store.
type Config struct {
	// Driver is the database/sql driver name, DriverSQLite or DriverDuckDB.
	// OPTIONAL: defaults to DriverSQLite.
	Driver string

	// DSN is the data source name passed to sql.Open.
	// REQUIRED. Use ":memory:" for an in-memory SQLite database or ""
	// for an in-memory DuckDB database.
	DSN string

	// Codec serializes row records.
	// OPTIONAL: an uncompressed codec is created and owned by the store if nil.
	Codec *dataset.Codec

	// Logger for store events.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Store is a dataset.Store over a SQL database. It is safe for concurrent use.
type Store struct {
	db       *sql.DB
	dialect  dialect
	codec    *dataset.Codec
	ownCodec bool
	logger   *slog.Logger
}

var _ dataset.Store = (*Store)(nil)

// Open connects to the database and creates the schema if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if d.driver == DriverSQLite && cfg.DSN == "" {
		return nil, errors.New("sqlstore: DSN is required for sqlite3")
	}

	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to open %s: %w", d.driver, err)
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:      db,
		dialect: d,
		codec:   cfg.Codec,
		logger:  cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.codec == nil {
		s.codec, err = dataset.NewCodec(serialize.CompressionNone)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.ownCodec = true
	}

	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Debug("dataset store opened", "driver", d.driver, "compression", s.codec.Compression().String())
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database and releases an owned codec.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.ownCodec {
		if cerr := s.codec.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Create persists metadata and rows in one transaction.
// On success d.ID, d.RowCount and the timestamps are filled in.
func (s *Store) Create(ctx context.Context, d *dataset.Dataset, rows []dataset.Row) (int64, error) {
	if d == nil || d.Name == "" {
		return 0, fmt.Errorf("%w: dataset name is required", dataset.ErrInvalid)
	}
	if !d.FileType.Valid() {
		return 0, fmt.Errorf("%w: file type %q", dataset.ErrInvalid, d.FileType)
	}

	columns := d.Columns
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to encode columns: %w", err)
	}

	records := make([][]byte, len(rows))
	for i, r := range rows {
		if records[i], err = s.codec.Encode(r); err != nil {
			return 0, fmt.Errorf("sqlstore: failed to encode row %d: %w", i, err)
		}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, insertDataset,
		d.Name, d.Description, d.Filename, d.FilePath, string(d.FileType),
		string(columnsJSON), len(rows), now, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to prepare row insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, id, i, rec); err != nil {
			return 0, fmt.Errorf("sqlstore: failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: failed to commit dataset: %w", err)
	}

	d.ID = id
	d.Columns = columns
	d.RowCount = len(rows)
	d.CreatedAt = now
	d.UpdatedAt = now

	s.logger.Debug("dataset created", "id", id, "name", d.Name, "rows", len(rows))
	return id, nil
}

// Dataset returns metadata only.
func (s *Store) Dataset(ctx context.Context, id int64) (*dataset.Dataset, error) {
	var (
		d           dataset.Dataset
		fileType    string
		columnsJSON string
	)
	err := s.db.QueryRowContext(ctx, selectDataset, id).Scan(
		&d.ID, &d.Name, &d.Description, &d.Filename, &d.FilePath, &fileType,
		&columnsJSON, &d.RowCount, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", dataset.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to load dataset %d: %w", id, err)
	}

	d.FileType = dataset.FileType(fileType)
	if err := json.Unmarshal([]byte(columnsJSON), &d.Columns); err != nil {
		return nil, fmt.Errorf("sqlstore: dataset %d has invalid columns: %w", id, err)
	}
	if d.Columns == nil {
		d.Columns = []string{}
	}
	return &d, nil
}

// Get returns metadata and rows in insertion order.
func (s *Store) Get(ctx context.Context, id int64) (*dataset.Dataset, []dataset.Row, error) {
	d, err := s.Dataset(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rs, err := s.db.QueryContext(ctx, selectRows, id)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: failed to query rows of %d: %w", id, err)
	}
	defer rs.Close()

	rows := make([]dataset.Row, 0, d.RowCount)
	for rs.Next() {
		var rec []byte
		if err := rs.Scan(&rec); err != nil {
			return nil, nil, fmt.Errorf("sqlstore: failed to scan row: %w", err)
		}
		r, err := s.codec.Decode(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlstore: dataset %d row %d: %w", id, len(rows), err)
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqlstore: failed to read rows of %d: %w", id, err)
	}

	return d, rows, nil
}

// Delete removes the dataset, its rows and the comparisons referencing it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireDataset(ctx, tx, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, deleteRows, id); err != nil {
		return fmt.Errorf("sqlstore: failed to delete rows of %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, deleteComparisons, id, id); err != nil {
		return fmt.Errorf("sqlstore: failed to delete comparisons of %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, deleteDataset, id); err != nil {
		return fmt.Errorf("sqlstore: failed to delete dataset %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: failed to commit delete: %w", err)
	}

	s.logger.Debug("dataset deleted", "id", id)
	return nil
}

func requireDataset(ctx context.Context, tx *sql.Tx, id int64) error {
	var n int
	if err := tx.QueryRowContext(ctx, datasetExists, id).Scan(&n); err != nil {
		return fmt.Errorf("sqlstore: failed to look up dataset %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", dataset.ErrNotFound, id)
	}
	return nil
}

// List returns all datasets, newest first.
func (s *Store) List(ctx context.Context) ([]dataset.Summary, error) {
	rs, err := s.db.QueryContext(ctx, selectSummaries)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to list datasets: %w", err)
	}
	defer rs.Close()

	out := []dataset.Summary{}
	for rs.Next() {
		var (
			sum      dataset.Summary
			fileType string
		)
		if err := rs.Scan(&sum.ID, &sum.Name, &sum.Description, &fileType, &sum.RowCount, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: failed to scan dataset: %w", err)
		}
		sum.FileType = dataset.FileType(fileType)
		out = append(out, sum)
	}
	return out, rs.Err()
}

// CreateComparison persists a comparison of two existing, distinct datasets.
// An empty name defaults to "Comparison <timestamp>".
func (s *Store) CreateComparison(ctx context.Context, c *dataset.Comparison) (int64, error) {
	if c == nil || c.Dataset1ID == 0 || c.Dataset2ID == 0 {
		return 0, fmt.Errorf("%w: both dataset ids are required", dataset.ErrInvalid)
	}
	if c.Dataset1ID == c.Dataset2ID {
		return 0, fmt.Errorf("%w: comparison needs two different datasets", dataset.ErrInvalid)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if c.Name == "" {
		c.Name = "Comparison " + now.Format("2006-01-02 15:04:05")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireDataset(ctx, tx, c.Dataset1ID); err != nil {
		return 0, err
	}
	if err := requireDataset(ctx, tx, c.Dataset2ID); err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRowContext(ctx, insertComparison, c.Name, c.Dataset1ID, c.Dataset2ID, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("sqlstore: failed to insert comparison: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: failed to commit comparison: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	s.logger.Debug("comparison created", "id", id, "dataset1", c.Dataset1ID, "dataset2", c.Dataset2ID)
	return id, nil
}

// Comparison returns a comparison by id, with both dataset names.
func (s *Store) Comparison(ctx context.Context, id int64) (*dataset.Comparison, error) {
	row := s.db.QueryRowContext(ctx, selectComparisons+` WHERE pc.id = ?`, id)
	c, err := scanComparison(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", dataset.ErrComparisonNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to load comparison %d: %w", id, err)
	}
	return c, nil
}

// ListComparisons returns all comparisons, newest first.
func (s *Store) ListComparisons(ctx context.Context) ([]dataset.Comparison, error) {
	rs, err := s.db.QueryContext(ctx, selectComparisons+` ORDER BY pc.created_at DESC, pc.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: failed to list comparisons: %w", err)
	}
	defer rs.Close()

	out := []dataset.Comparison{}
	for rs.Next() {
		c, err := scanComparison(rs)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: failed to scan comparison: %w", err)
		}
		out = append(out, *c)
	}
	return out, rs.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComparison(sc scanner) (*dataset.Comparison, error) {
	var (
		c            dataset.Comparison
		name1, name2 sql.NullString
	)
	if err := sc.Scan(&c.ID, &c.Name, &c.Dataset1ID, &c.Dataset2ID, &c.CreatedAt, &name1, &name2); err != nil {
		return nil, err
	}
	c.Dataset1Name = name1.String
	c.Dataset2Name = name2.String
	return &c, nil
}
