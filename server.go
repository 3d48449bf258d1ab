package glimpsy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hugr-lab/glimpsy/api"
	"github.com/hugr-lab/glimpsy/auth"
	"github.com/hugr-lab/glimpsy/blob"
	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/flight"
	"github.com/hugr-lab/glimpsy/internal/recovery"
	"github.com/hugr-lab/glimpsy/tabular"
)

// Server runs the REST API and the Arrow Flight service over one dataset
// store.
type Server struct {
	cfg    Config
	logger *slog.Logger

	store dataset.Store
	codec *dataset.Codec
	blobs blob.Store

	httpServer *http.Server
	grpcServer *grpc.Server
}

// New validates cfg, opens storage and builds both services.
// Does NOT start listening; call Run or Serve.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	store, codec, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  store,
		codec:  codec,
	}

	s.blobs, err = openBlobs(ctx, cfg.Storage, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open upload storage: %w", err)
	}

	authenticator := Authenticator(cfg)

	handler, err := api.New(api.Config{
		Store:          store,
		Blobs:          s.blobs,
		Authenticator:  authenticator,
		Logger:         logger,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		RateLimit:      cfg.HTTP.RateLimit,
		RateBurst:      cfg.HTTP.RateBurst,
		Tabular:        &tabular.Options{Allocator: cfg.Allocator},
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !cfg.Flight.Disabled {
		s.grpcServer = grpc.NewServer(ServerOptions(cfg, authenticator, logger)...)
		fs := flight.NewServer(store, cfg.Allocator, logger, cfg.Flight.PublicAddress).
			WithBatchSize(cfg.Flight.BatchSize)
		flight.RegisterFlightServer(s.grpcServer, fs)
	}

	logger.Info("Glimpsy server configured",
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Backend,
		"has_auth", authenticator != nil,
		"flight", !cfg.Flight.Disabled,
	)
	return s, nil
}

// Authenticator returns the authenticator for the configured tokens, or
// nil when authentication is disabled.
func Authenticator(cfg Config) auth.Authenticator {
	if len(cfg.Auth.Tokens) == 0 {
		return nil
	}
	return auth.StaticTokens(cfg.Auth.Tokens)
}

// ServerOptions returns gRPC server options with panic recovery, request
// metadata and authentication interceptors.
func ServerOptions(cfg Config, authenticator auth.Authenticator, logger *slog.Logger) []grpc.ServerOption {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(logger),
			flight.UnaryServerInterceptor(),
			auth.UnaryServerInterceptor(authenticator),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(logger),
			flight.StreamServerInterceptor(),
			auth.StreamServerInterceptor(authenticator),
		),
	}

	if cfg.Flight.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(cfg.Flight.MaxMessageSize),
			grpc.MaxSendMsgSize(cfg.Flight.MaxMessageSize),
		)
	}
	return opts
}

// Handler returns the REST API handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured addresses and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Address, err)
	}

	var flightLis net.Listener
	if s.grpcServer != nil {
		flightLis, err = net.Listen("tcp", s.cfg.Flight.Address)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.Flight.Address, err)
		}
	}

	return s.Serve(ctx, httpLis, flightLis)
}

// Serve serves HTTP on httpLis and Flight on flightLis until ctx is
// cancelled or either server fails, then shuts both down. flightLis may be
// nil when Flight is disabled. Returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, httpLis, flightLis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP API listening", "address", httpLis.Addr().String())
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.grpcServer != nil && flightLis != nil {
		g.Go(func() error {
			s.logger.Info("Arrow Flight listening", "address", flightLis.Addr().String())
			if err := s.grpcServer.Serve(flightLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("flight server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if s.grpcServer != nil {
			stopped := make(chan struct{})
			go func() {
				s.grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-shutdownCtx.Done():
				s.grpcServer.Stop()
			}
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the dataset store and its codec.
func (s *Server) Close() error {
	return errors.Join(s.store.Close(), s.codec.Close())
}
