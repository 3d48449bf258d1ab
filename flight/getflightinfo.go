package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/flight"
)

// GetFlightInfo returns schema, ticket and filtered row count for a dataset.
//
// The descriptor is either PATH ["datasets", "<id>"] (all rows) or CMD with
// a JSON filter request {"dataset_id": N, "filters": {...}}.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ctx = EnrichContextMetadata(ctx)

	s.logger.Debug("GetFlightInfo called",
		"type", desc.GetType(),
		"trace_id", TraceIDFromContext(ctx),
	)

	td, err := resolveDescriptor(desc)
	if err != nil {
		return nil, toStatus(err)
	}

	q, err := s.run(ctx, td)
	if err != nil {
		s.logger.Debug("GetFlightInfo failed", "dataset_id", td.DatasetID, "error", err)
		return nil, toStatus(err)
	}

	info, err := s.flightInfo(desc, q)
	if err != nil {
		s.logger.Error("Failed to build flight info", "dataset_id", td.DatasetID, "error", err)
		return nil, toStatus(err)
	}

	s.logger.Debug("GetFlightInfo successful",
		"dataset_id", td.DatasetID,
		"num_fields", q.schema.NumFields(),
		"rows", len(q.rows),
		"original_rows", q.total,
	)
	return info, nil
}

// GetSchema returns the Arrow schema of the dataset named by the descriptor.
func (s *Server) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	ctx = EnrichContextMetadata(ctx)

	td, err := resolveDescriptor(desc)
	if err != nil {
		return nil, toStatus(err)
	}
	q, err := s.run(ctx, td)
	if err != nil {
		return nil, toStatus(err)
	}
	return &flight.SchemaResult{Schema: flight.SerializeSchema(q.schema, s.allocator)}, nil
}
