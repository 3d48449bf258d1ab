package recovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecoverToError(t *testing.T) {
	logger := discardLogger()

	err := RecoverToError(logger, "op", func() error { panic("boom") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
	if !strings.Contains(err.Error(), "op panicked: boom") {
		t.Errorf("unexpected message: %v", err)
	}

	want := errors.New("plain")
	if err := RecoverToError(logger, "op", func() error { return want }); err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestRecoverToValue(t *testing.T) {
	v, err := RecoverToValue(discardLogger(), "op", func() (int, error) {
		var m map[string]int
		m["x"] = 1
		return 1, nil
	})
	if err == nil || v != 0 {
		t.Fatalf("RecoverToValue = %d, %v", v, err)
	}

	v, err = RecoverToValue(discardLogger(), "op", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("RecoverToValue = %d, %v", v, err)
	}
}

func TestRecover(t *testing.T) {
	ran := false
	Recover(nil, "cleanup", func() {
		ran = true
		panic("ignored")
	})
	if !ran {
		t.Error("function did not run")
	}
}

func TestUnaryServerInterceptor(t *testing.T) {
	interceptor := UnaryServerInterceptor(discardLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/arrow.flight.protocol.FlightService/GetFlightInfo"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("bad handler")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	resp, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
}

func TestStreamServerInterceptor(t *testing.T) {
	interceptor := StreamServerInterceptor(discardLogger())
	err := interceptor(nil, nil, &grpc.StreamServerInfo{FullMethod: "/DoGet"}, func(srv any, ss grpc.ServerStream) error {
		panic("stream")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}

func TestMiddleware(t *testing.T) {
	h := Middleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"internal server error"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
