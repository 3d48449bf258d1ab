package sqlstore

import "fmt"

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// dialect holds the DDL that differs between drivers. Queries are shared:
// both drivers accept ? placeholders and INSERT ... RETURNING.
type dialect struct {
	driver string
	schema []string
	// singleConn serializes all access through one connection.
	singleConn bool
}

var sqliteDialect = dialect{
	driver:     DriverSQLite,
	singleConn: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_type TEXT NOT NULL,
			column_names TEXT NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_rows (
			dataset_id INTEGER NOT NULL,
			row_index INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (dataset_id, row_index)
		)`,
		`CREATE TABLE IF NOT EXISTS portfolio_comparisons (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			dataset1_id INTEGER NOT NULL,
			dataset2_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	},
}

var duckdbDialect = dialect{
	driver: DriverDuckDB,
	schema: []string{
		`CREATE SEQUENCE IF NOT EXISTS datasets_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS datasets (
			id BIGINT PRIMARY KEY DEFAULT nextval('datasets_id_seq'),
			name VARCHAR NOT NULL,
			description VARCHAR NOT NULL DEFAULT '',
			filename VARCHAR NOT NULL,
			file_path VARCHAR NOT NULL,
			file_type VARCHAR NOT NULL,
			column_names VARCHAR NOT NULL,
			row_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dataset_rows (
			dataset_id BIGINT NOT NULL,
			row_index BIGINT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (dataset_id, row_index)
		)`,
		`CREATE SEQUENCE IF NOT EXISTS portfolio_comparisons_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS portfolio_comparisons (
			id BIGINT PRIMARY KEY DEFAULT nextval('portfolio_comparisons_id_seq'),
			name VARCHAR NOT NULL,
			dataset1_id BIGINT NOT NULL,
			dataset2_id BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	},
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", DriverSQLite:
		return sqliteDialect, nil
	case DriverDuckDB:
		return duckdbDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q", driver)
	}
}

const (
	insertDataset = `INSERT INTO datasets
		(name, description, filename, file_path, file_type, column_names, row_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

	insertRow = `INSERT INTO dataset_rows (dataset_id, row_index, data) VALUES (?, ?, ?)`

	selectDataset = `SELECT id, name, description, filename, file_path, file_type, column_names,
		row_count, created_at, updated_at FROM datasets WHERE id = ?`

	selectRows = `SELECT data FROM dataset_rows WHERE dataset_id = ? ORDER BY row_index`

	selectSummaries = `SELECT id, name, description, file_type, row_count, created_at
		FROM datasets ORDER BY created_at DESC, id DESC`

	datasetExists = `SELECT COUNT(*) FROM datasets WHERE id = ?`

	deleteRows        = `DELETE FROM dataset_rows WHERE dataset_id = ?`
	deleteComparisons = `DELETE FROM portfolio_comparisons WHERE dataset1_id = ? OR dataset2_id = ?`
	deleteDataset     = `DELETE FROM datasets WHERE id = ?`

	insertComparison = `INSERT INTO portfolio_comparisons (name, dataset1_id, dataset2_id, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`

	selectComparisons = `SELECT pc.id, pc.name, pc.dataset1_id, pc.dataset2_id, pc.created_at,
		d1.name, d2.name
		FROM portfolio_comparisons pc
		LEFT JOIN datasets d1 ON pc.dataset1_id = d1.id
		LEFT JOIN datasets d2 ON pc.dataset2_id = d2.id`
)
