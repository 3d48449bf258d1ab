package glimpsy

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.yaml.in/yaml/v3"

	"github.com/hugr-lab/glimpsy/dataset/sqlstore"
	"github.com/hugr-lab/glimpsy/internal/serialize"
)

// Storage backends for upload files.
const (
	StorageLocal  = "local"
	StorageMemory = "memory"
	StorageMinIO  = "minio"
	StorageS3     = "s3"
)

// Config contains configuration for a Glimpsy server.
// Every field is OPTIONAL; zero values are replaced by the defaults below.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Flight   FlightConfig   `yaml:"flight"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`

	// Logger for internal logging.
	// OPTIONAL: built from Log if nil.
	Logger *slog.Logger `yaml:"-"`

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator `yaml:"-"`
}

// HTTPConfig configures the REST API listener.
type HTTPConfig struct {
	// Address to listen on. Default ":5000".
	Address string `yaml:"address"`

	// MaxUploadBytes caps upload request bodies. Default 10 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the limiter bucket size. Default max(1, RateLimit).
	RateBurst int `yaml:"rate_burst"`

	// ShutdownTimeout bounds graceful shutdown. Default 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// FlightConfig configures the Arrow Flight listener.
type FlightConfig struct {
	// Disabled turns the Flight service off.
	Disabled bool `yaml:"disabled"`

	// Address to listen on. Default ":50051".
	Address string `yaml:"address"`

	// PublicAddress is advertised in FlightEndpoint locations.
	// OPTIONAL: endpoints carry no location if empty.
	PublicAddress string `yaml:"public_address"`

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	MaxMessageSize int `yaml:"max_message_size"`

	// BatchSize is the number of rows per streamed record batch.
	BatchSize int `yaml:"batch_size"`
}

// DatabaseConfig configures the dataset store.
type DatabaseConfig struct {
	// Driver is "sqlite3" (default) or "duckdb".
	Driver string `yaml:"driver"`

	// DSN is the data source name. Default "glimpsy.db".
	DSN string `yaml:"dsn"`

	// Compression of stored row records: "none" (default), "zstd" or "lz4".
	Compression string `yaml:"compression"`
}

// StorageConfig configures where original upload files are kept.
type StorageConfig struct {
	// Backend is "local" (default), "memory", "minio" or "s3".
	Backend string `yaml:"backend"`

	// Dir is the local upload directory. Default "uploads".
	Dir string `yaml:"dir"`

	// Endpoint of the object store. REQUIRED for minio, OPTIONAL for s3.
	Endpoint string `yaml:"endpoint"`

	// AccessKey and SecretKey are static credentials. REQUIRED for minio;
	// s3 falls back to the default AWS credential chain.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// UseSSL selects https for minio.
	UseSSL bool `yaml:"use_ssl"`

	// Region of the bucket (s3).
	Region string `yaml:"region"`

	// Bucket name. REQUIRED for minio and s3.
	Bucket string `yaml:"bucket"`

	// Prefix prepended to object keys. Default "uploads/".
	Prefix string `yaml:"prefix"`

	// UsePathStyle forces path-style S3 addressing.
	UsePathStyle bool `yaml:"use_path_style"`
}

// AuthConfig configures bearer token authentication.
type AuthConfig struct {
	// Tokens maps accepted bearer tokens to identities.
	// OPTIONAL: if empty, no authentication (all requests allowed).
	Tokens map[string]string `yaml:"tokens"`
}

// LogConfig configures the default logger.
type LogConfig struct {
	// Level is "debug", "info" (default), "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
}

// ErrInvalidConfig indicates Config validation failed.
var ErrInvalidConfig = errors.New("invalid server config")

// LoadConfig reads a YAML configuration file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration. Empty input yields a zero Config.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// withDefaults returns a copy of cfg with zero values replaced by defaults.
func (cfg Config) withDefaults() Config {
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = ":5000"
	}
	if cfg.HTTP.MaxUploadBytes == 0 {
		cfg.HTTP.MaxUploadBytes = 10 << 20
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Flight.Address == "" {
		cfg.Flight.Address = ":50051"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = sqlstore.DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == sqlstore.DriverSQLite {
		cfg.Database.DSN = "glimpsy.db"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageLocal
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "uploads"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "uploads/"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.DefaultAllocator
	}
	return cfg
}

// Validate checks the configuration after defaults are applied.
func (cfg Config) Validate() error {
	c := cfg.withDefaults()

	var errs []error
	if c.HTTP.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("http.max_upload_bytes must not be negative"))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("http.rate_limit must not be negative"))
	}
	if c.HTTP.RateBurst < 0 {
		errs = append(errs, errors.New("http.rate_burst must not be negative"))
	}
	if c.Flight.MaxMessageSize < 0 || c.Flight.BatchSize < 0 {
		errs = append(errs, errors.New("flight sizes must not be negative"))
	}
	switch c.Database.Driver {
	case sqlstore.DriverSQLite, sqlstore.DriverDuckDB:
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if _, err := serialize.ParseCompression(c.Database.Compression); err != nil {
		errs = append(errs, fmt.Errorf("database.compression: %v", err))
	}
	switch c.Storage.Backend {
	case StorageLocal, StorageMemory:
	case StorageMinIO:
		if c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required for minio"))
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			errs = append(errs, errors.New("storage.access_key and storage.secret_key are required for minio"))
		}
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for minio"))
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
