package flight

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/glimpsy/dataset"
)

var (
	// ErrInvalidDescriptor is returned for descriptors that do not name a dataset.
	ErrInvalidDescriptor = errors.New("invalid flight descriptor")

	// ErrInvalidTicket is returned for tickets that cannot be decoded.
	ErrInvalidTicket = errors.New("invalid ticket")
)

// toStatus converts a handler error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidDescriptor), errors.Is(err, ErrInvalidTicket):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
