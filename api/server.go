// Package api implements the Glimpsy REST API on gorilla/mux.
//
// Routes:
//
//	GET    /                                 API info
//	GET    /api/health                       health check
//	GET    /api/datasets                     dataset summaries
//	POST   /api/datasets                     multipart upload
//	GET    /api/datasets/{id}                metadata and rows
//	DELETE /api/datasets/{id}                delete dataset and upload file
//	POST   /api/datasets/{id}/filter         filtered rows
//	GET    /api/datasets/{id}/export         filtered rows as CSV
//	GET    /api/portfolio-comparisons        comparisons
//	POST   /api/portfolio-comparisons        create comparison
//	GET    /api/portfolio-comparisons/{id}   comparison with both datasets
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/hugr-lab/glimpsy/auth"
	"github.com/hugr-lab/glimpsy/blob"
	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/internal/recovery"
	"github.com/hugr-lab/glimpsy/tabular"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// DefaultMaxUploadBytes caps the size of an upload request body.
const DefaultMaxUploadBytes int64 = 10 << 20

// ErrInvalidConfig is returned by New for incomplete configuration.
var ErrInvalidConfig = errors.New("api: invalid configuration")

// Config configures the HTTP API.
type Config struct {
	// Store holds datasets and comparisons.
	// REQUIRED.
	Store dataset.Store

	// Blobs holds the original upload files.
	// REQUIRED.
	Blobs blob.Store

	// Authenticator validates bearer tokens.
	// OPTIONAL: if nil, the API is open.
	Authenticator auth.Authenticator

	// Logger for request and error logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger

	// MaxUploadBytes caps upload request bodies.
	// OPTIONAL: defaults to DefaultMaxUploadBytes.
	MaxUploadBytes int64

	// RateLimit is the sustained request rate per second across all clients.
	// OPTIONAL: zero disables rate limiting.
	RateLimit float64

	// RateBurst is the limiter bucket size.
	// OPTIONAL: defaults to max(1, RateLimit).
	RateBurst int

	// Tabular configures file decoding.
	// OPTIONAL.
	Tabular *tabular.Options
}

// Server serves the REST API. It implements http.Handler.
type Server struct {
	store     dataset.Store
	blobs     blob.Store
	logger    *slog.Logger
	maxUpload int64
	tabular   *tabular.Options

	handler http.Handler
}

// New builds the router and middleware chain.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: Store is required", ErrInvalidConfig)
	}
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("%w: Blobs is required", ErrInvalidConfig)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("%w: RateLimit must not be negative", ErrInvalidConfig)
	}

	s := &Server{
		store:     cfg.Store,
		blobs:     cfg.Blobs,
		logger:    cfg.Logger,
		maxUpload: cfg.MaxUploadBytes,
		tabular:   cfg.Tabular,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	chain := Chain(
		recovery.Middleware(s.logger),
		RequestLogger(s.logger),
		CORS,
		RateLimit(limiter),
		auth.Middleware(cfg.Authenticator, "/", "/api/health"),
	)
	s.handler = chain(s.routes())
	return s, nil
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	apiRoute := router.PathPrefix("/api").Subrouter()
	apiRoute.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	apiRoute.HandleFunc("/datasets", s.handleListDatasets).Methods(http.MethodGet)
	apiRoute.HandleFunc("/datasets", s.handleUpload).Methods(http.MethodPost)
	apiRoute.HandleFunc("/datasets/{id:[0-9]+}", s.handleGetDataset).Methods(http.MethodGet)
	apiRoute.HandleFunc("/datasets/{id:[0-9]+}", s.handleDeleteDataset).Methods(http.MethodDelete)
	apiRoute.HandleFunc("/datasets/{id:[0-9]+}/filter", s.handleFilter).Methods(http.MethodPost)
	apiRoute.HandleFunc("/datasets/{id:[0-9]+}/export", s.handleExport).Methods(http.MethodGet)

	apiRoute.HandleFunc("/portfolio-comparisons", s.handleListComparisons).Methods(http.MethodGet)
	apiRoute.HandleFunc("/portfolio-comparisons", s.handleCreateComparison).Methods(http.MethodPost)
	apiRoute.HandleFunc("/portfolio-comparisons/{id:[0-9]+}", s.handleGetComparison).Methods(http.MethodGet)

	return router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
