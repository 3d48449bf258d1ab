package flight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/glimpsy/auth"
	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/dataset/sqlstore"
	"github.com/hugr-lab/glimpsy/internal/recovery"
)

type testServer struct {
	grpcServer *grpc.Server
	client     flight.Client
	store      *sqlstore.Store
	address    string
}

func newTestServer(t *testing.T, authenticator auth.Authenticator, batchSize int) *testServer {
	t.Helper()

	store, err := sqlstore.Open(context.Background(), sqlstore.Config{
		DSN: filepath.Join(t.TempDir(), "glimpsy.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(logger),
			UnaryServerInterceptor(),
			auth.UnaryServerInterceptor(authenticator),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(logger),
			StreamServerInterceptor(),
			auth.StreamServerInterceptor(authenticator),
		),
	)
	srv := NewServer(store, memory.DefaultAllocator, logger, lis.Addr().String()).WithBatchSize(batchSize)
	RegisterFlightServer(grpcServer, srv)

	go func() {
		_ = grpcServer.Serve(lis)
	}()

	client, err := flight.NewClientWithMiddleware(lis.Addr().String(), nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ts := &testServer{grpcServer: grpcServer, client: client, store: store, address: lis.Addr().String()}
	t.Cleanup(func() {
		client.Close()
		grpcServer.Stop()
		store.Close()
	})
	return ts
}

func (ts *testServer) createDataset(t *testing.T, name string, columns []string, rows []dataset.Row) int64 {
	t.Helper()
	id, err := ts.store.Create(context.Background(), &dataset.Dataset{
		Name:     name,
		Filename: name + ".csv",
		FilePath: name + ".csv",
		FileType: dataset.FileTypeCSV,
		Columns:  columns,
	}, rows)
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}
	return id
}

func salesRows() []dataset.Row {
	return []dataset.Row{
		{"status": "Active", "price": int64(10), "created_date": "2024-01-05"},
		{"status": "Closed", "price": int64(50), "created_date": "2024-02-01"},
		{"status": "active", "price": "", "created_date": "2024-03-10"},
		{"status": "Pending", "price": int64(200), "created_date": "2024-04-20"},
	}
}

var salesColumns = []string{"status", "price", "created_date"}

func readAll(t *testing.T, ctx context.Context, client flight.Client, ticket *flight.Ticket) (*arrow.Schema, []arrow.Record) {
	t.Helper()

	stream, err := client.DoGet(ctx, ticket)
	if err != nil {
		t.Fatalf("DoGet failed: %v", err)
	}
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		t.Fatalf("Failed to create record reader: %v", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("Reader error: %v", err)
	}
	t.Cleanup(func() {
		for _, r := range records {
			r.Release()
		}
	})
	return reader.Schema(), records
}

func totalRows(records []arrow.Record) int64 {
	var n int64
	for _, r := range records {
		n += r.NumRows()
	}
	return n
}

func TestGetFlightInfoPath(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	id := ts.createDataset(t, "sales", salesColumns, salesRows())

	info, err := ts.client.GetFlightInfo(context.Background(), &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: DatasetPath(id),
	})
	if err != nil {
		t.Fatalf("GetFlightInfo failed: %v", err)
	}

	if info.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d, want 4", info.TotalRecords)
	}
	if len(info.Endpoint) != 1 {
		t.Fatalf("expected 1 endpoint, got %d", len(info.Endpoint))
	}
	if loc := info.Endpoint[0].Location; len(loc) != 1 || loc[0].Uri != "grpc://"+ts.address {
		t.Errorf("unexpected endpoint location %v", loc)
	}

	schema, err := flight.DeserializeSchema(info.Schema, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("DeserializeSchema failed: %v", err)
	}
	want := []struct {
		name string
		typ  arrow.DataType
	}{
		{"status", arrow.BinaryTypes.String},
		{"price", arrow.PrimitiveTypes.Int64},
		{"created_date", arrow.BinaryTypes.String},
	}
	if schema.NumFields() != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), schema.NumFields())
	}
	for i, w := range want {
		f := schema.Field(i)
		if f.Name != w.name || !arrow.TypeEqual(f.Type, w.typ) {
			t.Errorf("field %d = %s %s, want %s %s", i, f.Name, f.Type, w.name, w.typ)
		}
	}
}

func TestGetFlightInfoCommand(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	id := ts.createDataset(t, "sales", salesColumns, salesRows())

	cmd, err := EncodeCommand(id, []byte(`{"status":["active","pending"],"price":{"min":20}}`))
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}
	info, err := ts.client.GetFlightInfo(context.Background(), &flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  cmd,
	})
	if err != nil {
		t.Fatalf("GetFlightInfo failed: %v", err)
	}
	if info.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", info.TotalRecords)
	}

	schema, records := readAll(t, context.Background(), ts.client, info.Endpoint[0].Ticket)
	if schema.NumFields() != 3 {
		t.Fatalf("expected 3 fields, got %d", schema.NumFields())
	}
	if totalRows(records) != 1 {
		t.Fatalf("expected 1 row, got %d", totalRows(records))
	}
	statusCol := records[0].Column(0).(*array.String)
	priceCol := records[0].Column(1).(*array.Int64)
	if statusCol.Value(0) != "Pending" || priceCol.Value(0) != 200 {
		t.Errorf("unexpected row: %s %d", statusCol.Value(0), priceCol.Value(0))
	}
}

func TestGetFlightInfoErrors(t *testing.T) {
	ts := newTestServer(t, nil, 0)

	tests := []struct {
		name string
		desc *flight.FlightDescriptor
		code codes.Code
	}{
		{"bad path", &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"tables", "x"}}, codes.InvalidArgument},
		{"bad command", &flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: []byte("SELECT 1")}, codes.InvalidArgument},
		{"bad filters", &flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: []byte(`{"dataset_id":1,"filters":[]}`)}, codes.InvalidArgument},
		{"unknown dataset", &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: DatasetPath(99)}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.client.GetFlightInfo(context.Background(), tt.desc)
			if status.Code(err) != tt.code {
				t.Errorf("code = %v, want %v (err %v)", status.Code(err), tt.code, err)
			}
		})
	}
}

func TestGetSchema(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	id := ts.createDataset(t, "flags", []string{"name", "enabled"}, []dataset.Row{
		{"name": "a", "enabled": true},
		{"name": "b", "enabled": false},
	})

	res, err := ts.client.GetSchema(context.Background(), &flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: DatasetPath(id),
	})
	if err != nil {
		t.Fatalf("GetSchema failed: %v", err)
	}
	schema, err := flight.DeserializeSchema(res.Schema, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("DeserializeSchema failed: %v", err)
	}
	if !arrow.TypeEqual(schema.Field(1).Type, arrow.FixedWidthTypes.Boolean) {
		t.Errorf("enabled type = %s, want bool", schema.Field(1).Type)
	}
}

func TestDoGetBatches(t *testing.T) {
	ts := newTestServer(t, nil, 3)

	rows := make([]dataset.Row, 10)
	for i := range rows {
		rows[i] = dataset.Row{"n": int64(i), "label": "row"}
	}
	id := ts.createDataset(t, "numbers", []string{"n", "label"}, rows)

	ticket, err := EncodeTicket(id, nil)
	if err != nil {
		t.Fatalf("EncodeTicket failed: %v", err)
	}
	_, records := readAll(t, context.Background(), ts.client, &flight.Ticket{Ticket: ticket})

	if len(records) != 4 {
		t.Errorf("expected 4 batches, got %d", len(records))
	}
	if totalRows(records) != 10 {
		t.Fatalf("expected 10 rows, got %d", totalRows(records))
	}

	// order preserved across batches
	var next int64
	for _, rec := range records {
		col := rec.Column(0).(*array.Int64)
		for i := 0; i < col.Len(); i++ {
			if col.Value(i) != next {
				t.Fatalf("row %d has n=%d", next, col.Value(i))
			}
			next++
		}
	}
}

func TestDoGetEmptySelection(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	id := ts.createDataset(t, "sales", salesColumns, salesRows())

	ticket, err := EncodeTicket(id, []byte(`{"status":"nobody"}`))
	if err != nil {
		t.Fatalf("EncodeTicket failed: %v", err)
	}
	schema, records := readAll(t, context.Background(), ts.client, &flight.Ticket{Ticket: ticket})
	if schema.NumFields() != 3 {
		t.Errorf("expected schema with 3 fields, got %d", schema.NumFields())
	}
	if totalRows(records) != 0 {
		t.Errorf("expected no rows, got %d", totalRows(records))
	}
}

func TestDoGetNullsInTypedColumns(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	id := ts.createDataset(t, "sales", salesColumns, salesRows())

	ticket, _ := EncodeTicket(id, nil)
	_, records := readAll(t, context.Background(), ts.client, &flight.Ticket{Ticket: ticket})
	if totalRows(records) != 4 {
		t.Fatalf("expected 4 rows, got %d", totalRows(records))
	}
	price := records[0].Column(1).(*array.Int64)
	if !price.IsNull(2) {
		t.Errorf("expected empty price to be null")
	}
}

func TestDoGetInvalidTicket(t *testing.T) {
	ts := newTestServer(t, nil, 0)

	stream, err := ts.client.DoGet(context.Background(), &flight.Ticket{Ticket: []byte("garbage")})
	if err == nil {
		_, err = stream.Recv()
	}
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument (err %v)", status.Code(err), err)
	}

	ticket, _ := EncodeTicket(99, nil)
	stream, err = ts.client.DoGet(context.Background(), &flight.Ticket{Ticket: ticket})
	if err == nil {
		_, err = stream.Recv()
	}
	if status.Code(err) != codes.NotFound {
		t.Errorf("code = %v, want NotFound (err %v)", status.Code(err), err)
	}
}

func TestListFlights(t *testing.T) {
	ts := newTestServer(t, nil, 0)
	first := ts.createDataset(t, "first", salesColumns, salesRows())
	second := ts.createDataset(t, "second", []string{"a"}, []dataset.Row{{"a": "x"}})

	stream, err := ts.client.ListFlights(context.Background(), &flight.Criteria{})
	if err != nil {
		t.Fatalf("ListFlights failed: %v", err)
	}

	seen := map[string]int64{}
	for {
		info, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		path := info.FlightDescriptor.GetPath()
		if len(path) != 2 || path[0] != "datasets" {
			t.Fatalf("unexpected descriptor path %v", path)
		}
		seen[path[1]] = info.TotalRecords
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 flights, got %d", len(seen))
	}
	if seen[DatasetPath(first)[1]] != 4 || seen[DatasetPath(second)[1]] != 1 {
		t.Errorf("unexpected record counts %v", seen)
	}
}

func TestAuthInterceptors(t *testing.T) {
	ts := newTestServer(t, auth.StaticTokens(map[string]string{"secret": "analyst"}), 0)
	id := ts.createDataset(t, "sales", salesColumns, salesRows())
	desc := &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: DatasetPath(id)}

	_, err := ts.client.GetFlightInfo(context.Background(), desc)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		"authorization", "Bearer secret",
		HeaderTraceID, "trace-1",
	)
	info, err := ts.client.GetFlightInfo(ctx, desc)
	if err != nil {
		t.Fatalf("GetFlightInfo with token failed: %v", err)
	}

	_, records := readAll(t, ctx, ts.client, info.Endpoint[0].Ticket)
	if totalRows(records) != 4 {
		t.Errorf("expected 4 rows, got %d", totalRows(records))
	}
}

func TestEnrichContextMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		HeaderTraceID, "trace-1",
		HeaderSessionID, "session-1",
	))
	ctx = EnrichContextMetadata(ctx)
	if TraceIDFromContext(ctx) != "trace-1" || SessionIDFromContext(ctx) != "session-1" {
		t.Errorf("unexpected metadata %+v", MetaFromContext(ctx))
	}
	if EnrichContextMetadata(ctx) != ctx {
		t.Error("enriched context should be returned unchanged")
	}
	if TraceIDFromContext(context.Background()) != "" {
		t.Error("expected empty trace id")
	}
}
