package flight

import (
	"context"

	"google.golang.org/grpc"
)

// UnaryServerInterceptor enriches the request context with Glimpsy
// metadata headers.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(EnrichContextMetadata(ctx), req)
	}
}

// StreamServerInterceptor enriches the stream context with Glimpsy
// metadata headers.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &wrappedServerStream{
			ServerStream: ss,
			ctx:          EnrichContextMetadata(ss.Context()),
		})
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
