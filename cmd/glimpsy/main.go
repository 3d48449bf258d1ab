// Command glimpsy runs the Glimpsy data exploration server.
//
// Usage:
//
//	glimpsy -config glimpsy.yaml
//	glimpsy -http :5000 -flight :50051 -db glimpsy.db -uploads ./uploads
//
// Flags override values read from the configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hugr-lab/glimpsy"
)

var (
	configPath  string
	httpAddr    string
	flightAddr  string
	noFlight    bool
	dbDriver    string
	dbDSN       string
	compression string
	uploadsDir  string
	storage     string
	logLevel    string
	logFormat   string
)

func cmdlineError(msg string) {
	fmt.Fprintf(os.Stderr, "%s\n\n", msg)
	flag.Usage()
	os.Exit(2)
}

func main() {
	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.StringVar(&httpAddr, "http", "", "REST API listen address (default :5000)")
	flag.StringVar(&flightAddr, "flight", "", "Arrow Flight listen address (default :50051)")
	flag.BoolVar(&noFlight, "no-flight", false, "disable the Arrow Flight service")
	flag.StringVar(&dbDriver, "driver", "", "database driver: sqlite3 or duckdb")
	flag.StringVar(&dbDSN, "db", "", "database DSN (default glimpsy.db)")
	flag.StringVar(&compression, "compression", "", "row record compression: none, zstd or lz4")
	flag.StringVar(&uploadsDir, "uploads", "", "local upload directory (default uploads)")
	flag.StringVar(&storage, "storage", "", "upload storage backend: local, memory, minio or s3")
	flag.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	flag.StringVar(&logFormat, "log-format", "", "log format: text or json")
	flag.Parse()

	if flag.NArg() > 0 {
		cmdlineError(fmt.Sprintf("Unexpected arguments: %v", flag.Args()))
	}

	cfg := &glimpsy.Config{}
	if configPath != "" {
		var err error
		cfg, err = glimpsy.LoadConfig(configPath)
		if err != nil {
			cmdlineError(fmt.Sprintf("Cannot load config '%s': %s", configPath, err))
		}
	}
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		cmdlineError(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *glimpsy.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.HTTP.Address, httpAddr)
	set(&cfg.Flight.Address, flightAddr)
	set(&cfg.Database.Driver, dbDriver)
	set(&cfg.Database.DSN, dbDSN)
	set(&cfg.Database.Compression, compression)
	set(&cfg.Storage.Dir, uploadsDir)
	set(&cfg.Storage.Backend, storage)
	set(&cfg.Log.Level, logLevel)
	set(&cfg.Log.Format, logFormat)
	if noFlight {
		cfg.Flight.Disabled = true
	}
}

func run(ctx context.Context, cfg glimpsy.Config) error {
	srv, err := glimpsy.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Run(ctx)
}
