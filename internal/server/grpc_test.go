package server

import (
	"context"
	"encoding/base64"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestConn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	svc, _ := newTestService(t)
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(svc, quietLogger())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPCExtract(t *testing.T) {
	client := NewExtractionClient(newTestConn(t))
	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDMetadataKey, "req-grpc-1")

	var header metadata.MD
	out, err := client.Extract(ctx, mustStruct(t, map[string]any{"text": batteryList, "filename": "sermat.txt"}), grpc.Header(&header))
	require.NoError(t, err)

	f := out.GetFields()
	assert.Equal(t, "ok", f["status"].GetStringValue())
	assert.Equal(t, "req-grpc-1", f["request_id"].GetStringValue())
	assert.Equal(t, []string{"req-grpc-1"}, header.Get(requestIDMetadataKey))
	records := f["records"].GetListValue().GetValues()
	require.Len(t, records, 2)
	assert.Equal(t, "12-45", records[0].GetStructValue().GetFields()["code"].GetStringValue())
	assert.Equal(t, 66791.0, records[0].GetStructValue().GetFields()["price"].GetNumberValue())
}

func TestGRPCExtractStatusMapping(t *testing.T) {
	client := NewExtractionClient(newTestConn(t))

	_, err := client.Extract(context.Background(), mustStruct(t, map[string]any{"text": "corto"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := client.Extract(context.Background(), mustStruct(t, map[string]any{"text": strings.Repeat("texto sin precios ", 10)}))
	require.NoError(t, err)
	assert.Equal(t, "failed", out.GetFields()["status"].GetStringValue())

	_, err = client.Extract(context.Background(), mustStruct(t, map[string]any{"xlsx_base64": "%%%"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Extract(context.Background(), mustStruct(t, map[string]any{
		"xlsx_base64": base64.StdEncoding.EncodeToString([]byte("not a workbook")),
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCGetRun(t *testing.T) {
	conn := newTestConn(t)
	client := NewExtractionClient(conn)

	out, err := client.Extract(context.Background(), mustStruct(t, map[string]any{"text": batteryList}))
	require.NoError(t, err)
	require.Equal(t, "ok", out.GetFields()["status"].GetStringValue())

	_, err = client.GetRun(context.Background(), mustStruct(t, map[string]any{"id": "bad"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = client.GetRun(context.Background(), mustStruct(t, map[string]any{"id": "  "}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "id")
	_, err = client.GetRun(context.Background(), mustStruct(t, map[string]any{"id": "6f1c1f3e-3d6b-4b7e-9f59-1b2f6c1d2e3f"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	hc := healthpb.NewHealthClient(newTestConn(t))
	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ExtractionServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
