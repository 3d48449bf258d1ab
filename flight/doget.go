package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/glimpsy/tabular"
)

// DoGet streams the rows selected by a ticket as Arrow record batches.
//
// The handler:
//  1. Decodes the ticket (dataset id and JSON filters)
//  2. Loads the dataset and applies the filters
//  3. Streams the selected rows in batches of batchSize rows
//  4. Respects context cancellation between batches
//
// A selection with no rows still sends the schema.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoGet called", "ticket_size", len(ticket.GetTicket()), "trace_id", TraceIDFromContext(ctx))

	td, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return toStatus(err)
	}

	q, err := s.run(ctx, td)
	if err != nil {
		s.logger.Debug("DoGet failed", "dataset_id", td.DatasetID, "error", err)
		return toStatus(err)
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(q.schema), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	batchCount := 0
	for start := 0; start < len(q.rows); start += s.batchSize {
		select {
		case <-ctx.Done():
			s.logger.Debug("DoGet cancelled by client",
				"dataset_id", td.DatasetID,
				"batches_sent", batchCount,
			)
			return status.Error(codes.Canceled, "request cancelled")
		default:
		}

		end := min(start+s.batchSize, len(q.rows))
		record, err := tabular.BuildRecord(s.allocator, q.schema, q.rows[start:end])
		if err != nil {
			s.logger.Error("Failed to build record batch", "dataset_id", td.DatasetID, "error", err)
			return status.Errorf(codes.Internal, "failed to build batch %d: %v", batchCount+1, err)
		}

		err = writer.Write(record)
		record.Release()
		if err != nil {
			s.logger.Error("Failed to write record batch",
				"dataset_id", td.DatasetID,
				"batch", batchCount+1,
				"error", err,
			)
			return status.Errorf(codes.Internal, "failed to write batch %d: %v", batchCount+1, err)
		}
		batchCount++
	}

	s.logger.Debug("DoGet completed successfully",
		"dataset_id", td.DatasetID,
		"batches_sent", batchCount,
		"total_rows", len(q.rows),
		"original_rows", q.total,
	)
	return nil
}
