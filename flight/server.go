// Package flight serves Glimpsy datasets over Arrow Flight.
//
// Every dataset is a flight addressed by the PATH descriptor
// ["datasets", "<id>"]. A CMD descriptor carrying a JSON filter request
// ({"dataset_id": N, "filters": {...}}) addresses a filtered view of it.
// DoGet streams the selected rows as Arrow record batches whose column
// types are inferred from the stored values.
package flight

import (
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/glimpsy/dataset"
)

// DefaultBatchSize is the number of rows per streamed record batch.
const DefaultBatchSize = 4096

// Server implements the Flight service handlers.
// Embeds BaseFlightServer so unimplemented RPCs report Unimplemented.
type Server struct {
	flight.BaseFlightServer

	store     dataset.Store
	allocator memory.Allocator
	logger    *slog.Logger
	address   string // public address for FlightEndpoint locations
	batchSize int
}

// NewServer creates a new Flight server over the given dataset store.
// The address parameter specifies the server's public address for
// FlightEndpoint locations; it may be empty.
func NewServer(store dataset.Store, allocator memory.Allocator, logger *slog.Logger, address string) *Server {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     store,
		allocator: allocator,
		logger:    logger,
		address:   address,
		batchSize: DefaultBatchSize,
	}
}

// WithBatchSize sets the number of rows per record batch. Non-positive
// values keep the default.
func (s *Server) WithBatchSize(n int) *Server {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// RegisterFlightServer registers the Flight service on the provided gRPC server.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}
