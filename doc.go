// Package glimpsy is a data exploration server: users upload CSV or Parquet
// datasets, the server keeps them as row records, and clients read back
// subsets through a schema-agnostic filter expression.
//
// The same store is exposed two ways:
//   - a REST API (package api) for uploads, filtering, CSV export and
//     portfolio comparisons
//   - an Arrow Flight service (package flight) streaming filtered datasets
//     as Arrow record batches
//
// # Quick Start
//
//	cfg, err := glimpsy.LoadConfig("glimpsy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := glimpsy.New(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Filters
//
// A filter is a JSON object mapping column names to values:
//
//	{"status": ["active", "pending"], "price": {"min": 10}, "start_date": "2024-01-01"}
//
// Lists test membership, {"min","max"} objects test an inclusive numeric
// range, scalars test case-insensitive equality, and the reserved keys
// start_date and end_date bound every date-like column. See package filter.
//
// # Storage
//
// Datasets live in SQLite (default) or DuckDB; original upload files live in
// a local directory, MinIO or S3. See Config.
package glimpsy
