package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/services/extraction"
)

// ExtractionServiceName is the fully qualified gRPC service name.
const ExtractionServiceName = "pricelist.v1.Extraction"

const requestIDMetadataKey = "x-request-id"

// ExtractionServer is the server API for pricelist.v1.Extraction. Messages are
// google.protobuf.Struct so no generated stubs are needed.
//
// Extract accepts {text, filename} or {xlsx_base64, filename, sheet} and answers with the
// extraction result. GetRun accepts {id}.
type ExtractionServer interface {
	Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ExtractionServiceName + "/Extract"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).Extract(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExtractionServer).GetRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ExtractionServiceName + "/GetRun"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ExtractionServer).GetRun(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ExtractionServiceDesc is the grpc.ServiceDesc for pricelist.v1.Extraction.
var ExtractionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExtractionServiceName,
	HandlerType: (*ExtractionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
		{MethodName: "GetRun", Handler: getRunHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricelist/v1/extraction.proto",
}

func RegisterExtractionServer(s grpc.ServiceRegistrar, srv ExtractionServer) {
	s.RegisterService(&ExtractionServiceDesc, srv)
}

// ExtractionClient is the matching client.
type ExtractionClient struct {
	cc grpc.ClientConnInterface
}

func NewExtractionClient(cc grpc.ClientConnInterface) *ExtractionClient {
	return &ExtractionClient{cc: cc}
}

func (c *ExtractionClient) Extract(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ExtractionServiceName+"/Extract", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExtractionClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ExtractionServiceName+"/GetRun", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractionService implements ExtractionServer over the extraction service.
type ExtractionService struct {
	svc    *extraction.Service
	logger *slog.Logger
}

func NewExtractionService(svc *extraction.Service, logger *slog.Logger) *ExtractionService {
	return &ExtractionService{svc: svc, logger: logger}
}

func (s *ExtractionService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	filename := fields["filename"].GetStringValue()

	var res any
	if b64 := strings.TrimSpace(fields["xlsx_base64"].GetStringValue()); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("xlsx_base64 is not valid base64: %v", err)
		}
		r := s.svc.ExtractWorkbook(ctx, extraction.WorkbookRequest{
			Body:     bytes.NewReader(data),
			Filename: filename,
			Sheet:    fields["sheet"].GetStringValue(),
		})
		if r.Status == constants.StatusInvalidInput {
			return nil, common.InvalidArgumentError(r.Error)
		}
		res = r
	} else {
		r := s.svc.ExtractText(ctx, extraction.TextRequest{
			Text:     fields["text"].GetStringValue(),
			Filename: filename,
		})
		if r.Status == constants.StatusInvalidInput {
			return nil, common.InvalidArgumentError(r.Error)
		}
		res = r
	}
	return toStruct(res)
}

func (s *ExtractionService) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(in.GetFields()["id"].GetStringValue())
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", id, common.Required)); err != nil {
		return nil, err
	}
	run, err := s.svc.GetRun(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(run)
}

// toStruct converts through the JSON tags so gRPC and HTTP answer with the same shape.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// GRPCServer bundles the extraction service with health and reflection.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewGRPCServer(svc *extraction.Service, logger *slog.Logger, opts ...grpc.ServerOption) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(requestIDInterceptor(logger)))
	srv := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ExtractionServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)

	RegisterExtractionServer(srv, NewExtractionService(svc, logger))
	return &GRPCServer{srv: srv, health: hs, logger: logger}
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info("grpc serving", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

func (s *GRPCServer) GracefulStop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

// requestIDInterceptor reads x-request-id from metadata and logs each call.
func requestIDInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDMetadataKey); len(v) > 0 && strings.TrimSpace(v[0]) != "" {
				ctx = common.WithRequestID(ctx, strings.TrimSpace(v[0]))
			}
		}
		ctx, rid := common.EnsureRequestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, rid))

		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"req_id", rid,
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
