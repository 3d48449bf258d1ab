package flight

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hugr-lab/glimpsy/filter"
	"github.com/hugr-lab/glimpsy/internal/msgpack"
)

// TicketData is the decoded content of a Flight ticket.
// Filters holds the JSON filter object verbatim so that key order survives.
type TicketData struct {
	DatasetID int64  `msgpack:"dataset_id"`
	Filters   []byte `msgpack:"filters,omitempty"`
}

// Spec parses the ticket filters.
func (td *TicketData) Spec() (*filter.Spec, error) {
	return filter.Parse(td.Filters)
}

// EncodeTicket creates an opaque MessagePack ticket for a dataset and an
// optional JSON filter object.
func EncodeTicket(datasetID int64, filters []byte) ([]byte, error) {
	if datasetID <= 0 {
		return nil, fmt.Errorf("%w: dataset id must be positive", ErrInvalidTicket)
	}
	if _, err := filter.Parse(filters); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	data, err := msgpack.Encode(TicketData{DatasetID: datasetID, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return data, nil
}

// DecodeTicket parses an opaque ticket.
func DecodeTicket(ticket []byte) (*TicketData, error) {
	if len(ticket) == 0 {
		return nil, fmt.Errorf("%w: ticket cannot be empty", ErrInvalidTicket)
	}

	var td TicketData
	if err := msgpack.Decode(ticket, &td); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if td.DatasetID <= 0 {
		return nil, fmt.Errorf("%w: dataset id must be positive", ErrInvalidTicket)
	}
	if _, err := td.Spec(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	return &td, nil
}

// DatasetPath returns the PATH descriptor elements for a dataset.
func DatasetPath(id int64) []string {
	return []string{"datasets", strconv.FormatInt(id, 10)}
}

// command is the JSON body of a CMD descriptor.
type command struct {
	DatasetID int64           `json:"dataset_id"`
	Filters   json.RawMessage `json:"filters"`
}

// EncodeCommand builds a CMD descriptor body for a filtered dataset.
func EncodeCommand(datasetID int64, filters []byte) ([]byte, error) {
	cmd := command{DatasetID: datasetID}
	if len(bytes.TrimSpace(filters)) > 0 {
		cmd.Filters = filters
	}
	return json.Marshal(cmd)
}

// parsePath resolves a PATH descriptor to a ticket.
func parsePath(path []string) (*TicketData, error) {
	if len(path) != 2 || path[0] != "datasets" {
		return nil, fmt.Errorf("%w: path must be [\"datasets\", \"<id>\"]", ErrInvalidDescriptor)
	}
	id, err := strconv.ParseInt(path[1], 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid dataset id %q", ErrInvalidDescriptor, path[1])
	}
	return &TicketData{DatasetID: id}, nil
}

// parseCommand resolves a CMD descriptor to a ticket.
func parseCommand(cmd []byte) (*TicketData, error) {
	var c command
	if err := json.Unmarshal(cmd, &c); err != nil {
		return nil, fmt.Errorf("%w: command must be a JSON filter request: %v", ErrInvalidDescriptor, err)
	}
	if c.DatasetID <= 0 {
		return nil, fmt.Errorf("%w: dataset_id is required", ErrInvalidDescriptor)
	}

	td := &TicketData{DatasetID: c.DatasetID}
	if len(c.Filters) > 0 && !bytes.Equal(bytes.TrimSpace(c.Filters), []byte("null")) {
		td.Filters = []byte(c.Filters)
	}
	if _, err := td.Spec(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	return td, nil
}
