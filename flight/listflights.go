package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ListFlights sends one FlightInfo per stored dataset, newest first.
// Each carries the PATH descriptor ["datasets", "<id>"], the inferred
// schema and an unfiltered ticket. Criteria are ignored.
func (s *Server) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("ListFlights called", "trace_id", TraceIDFromContext(ctx))

	summaries, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list datasets", "error", err)
		return status.Errorf(codes.Internal, "failed to list datasets: %v", err)
	}

	for _, sum := range summaries {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}

		q, err := s.run(ctx, &TicketData{DatasetID: sum.ID})
		if err != nil {
			// deleted since List
			if status.Code(toStatus(err)) == codes.NotFound {
				continue
			}
			s.logger.Error("Failed to load dataset", "dataset_id", sum.ID, "error", err)
			return toStatus(err)
		}

		desc := &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: DatasetPath(sum.ID)}
		info, err := s.flightInfo(desc, q)
		if err != nil {
			return toStatus(err)
		}
		if err := stream.Send(info); err != nil {
			s.logger.Error("Failed to send FlightInfo", "dataset_id", sum.ID, "error", err)
			return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
		}
	}

	s.logger.Debug("ListFlights completed", "datasets", len(summaries))
	return nil
}
