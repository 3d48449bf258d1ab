package flight

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"

	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/filter"
	"github.com/hugr-lab/glimpsy/tabular"
)

// query is a resolved ticket: the dataset, the selected rows and the
// schema they are streamed with.
type query struct {
	ticket  *TicketData
	dataset *dataset.Dataset
	rows    []dataset.Row
	total   int
	schema  *arrow.Schema
}

// resolveDescriptor turns a PATH or CMD descriptor into a ticket.
func resolveDescriptor(desc *flight.FlightDescriptor) (*TicketData, error) {
	switch desc.GetType() {
	case flight.DescriptorPATH:
		return parsePath(desc.GetPath())
	case flight.DescriptorCMD:
		return parseCommand(desc.GetCmd())
	default:
		return nil, ErrInvalidDescriptor
	}
}

// run loads the dataset named by the ticket and applies its filters.
// The schema is inferred from all stored rows so that it does not depend
// on the filter.
func (s *Server) run(ctx context.Context, td *TicketData) (*query, error) {
	spec, err := td.Spec()
	if err != nil {
		return nil, err
	}

	d, rows, err := s.store.Get(ctx, td.DatasetID)
	if err != nil {
		return nil, err
	}

	return &query{
		ticket:  td,
		dataset: d,
		rows:    filter.Apply(rows, spec, d.Columns),
		total:   len(rows),
		schema:  tabular.InferSchema(d.Columns, rows),
	}, nil
}

// flightInfo describes a resolved query.
func (s *Server) flightInfo(desc *flight.FlightDescriptor, q *query) (*flight.FlightInfo, error) {
	ticket, err := EncodeTicket(q.ticket.DatasetID, q.ticket.Filters)
	if err != nil {
		return nil, err
	}

	endpoint := &flight.FlightEndpoint{Ticket: &flight.Ticket{Ticket: ticket}}
	if s.address != "" {
		endpoint.Location = []*flight.Location{{Uri: "grpc://" + s.address}}
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(q.schema, s.allocator),
		FlightDescriptor: desc,
		Endpoint:         []*flight.FlightEndpoint{endpoint},
		TotalRecords:     int64(len(q.rows)),
		TotalBytes:       -1,
	}, nil
}
