// Package otlp exposes the OTLP/gRPC ingest plane. It implements the
// standard collector Export services for traces, metrics and logs and routes
// every request to an organization before handing the records to the
// telemetry service.
package otlp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// uploadedBy marks records that arrived over the gRPC transport.
const uploadedBy = "otlp-grpc"

// orgSubdomainPrefix is the per-tenant subdomain convention, e.g.
// org-abc123.ingest.example.com.
const orgSubdomainPrefix = "org-"

// Server backs the three OTLP collector Export services. Each signal is
// registered through a thin wrapper because the generated service interfaces
// all name their RPC Export.
type Server struct {
	logger    *slog.Logger
	verifier  *auth.Verifier
	orgs      repository.OrganizationRepository
	telemetry *service.TelemetryService
}

type traceService struct {
	coltracepb.UnimplementedTraceServiceServer
	s *Server
}

type metricsService struct {
	colmetricspb.UnimplementedMetricsServiceServer
	s *Server
}

type logsService struct {
	collogspb.UnimplementedLogsServiceServer
	s *Server
}

func (t *traceService) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	return t.s.ExportTraces(ctx, req)
}

func (m *metricsService) Export(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	return m.s.ExportMetrics(ctx, req)
}

func (l *logsService) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	return l.s.ExportLogs(ctx, req)
}

// NewServer creates the OTLP ingest server.
func NewServer(logger *slog.Logger, verifier *auth.Verifier, orgs repository.OrganizationRepository, telemetry *service.TelemetryService) *Server {
	return &Server{
		logger:    logger.With("component", "otlp"),
		verifier:  verifier,
		orgs:      orgs,
		telemetry: telemetry,
	}
}

// Register attaches the Export services to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	coltracepb.RegisterTraceServiceServer(gs, &traceService{s: s})
	colmetricspb.RegisterMetricsServiceServer(gs, &metricsService{s: s})
	collogspb.RegisterLogsServiceServer(gs, &logsService{s: s})
}

// ListenAndServe runs a gRPC server on the given port until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on %d: %w", port, err)
	}
	gs := grpc.NewServer()
	s.Register(gs)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	s.logger.Info("otlp grpc listening", "port", port)
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("otlp grpc serve: %w", err)
	}
	return nil
}

// ExportTraces ingests a trace batch.
func (s *Server) ExportTraces(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	orgID, err := s.resolveOrg(ctx)
	if err != nil {
		return nil, err
	}

	var inputs []service.TraceInput
	for _, rs := range req.GetResourceSpans() {
		input, err := traceInput(rs)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "failed to encode resource spans: %v", err)
		}
		inputs = append(inputs, input)
	}
	if len(inputs) == 0 {
		return &coltracepb.ExportTraceServiceResponse{}, nil
	}

	if _, err := s.telemetry.IngestTraces(ctx, orgID, uploadedBy, inputs); err != nil {
		return nil, ingestStatus(err)
	}
	return &coltracepb.ExportTraceServiceResponse{}, nil
}

// ExportMetrics is wired as the MetricsService Export RPC.
func (s *Server) ExportMetrics(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) (*colmetricspb.ExportMetricsServiceResponse, error) {
	orgID, err := s.resolveOrg(ctx)
	if err != nil {
		return nil, err
	}

	var inputs []service.MetricInput
	for _, rm := range req.GetResourceMetrics() {
		for _, sm := range rm.GetScopeMetrics() {
			for _, metric := range sm.GetMetrics() {
				input, err := metricInput(metric)
				if err != nil {
					return nil, status.Errorf(codes.InvalidArgument, "failed to encode metric: %v", err)
				}
				inputs = append(inputs, input)
			}
		}
	}
	if len(inputs) == 0 {
		return &colmetricspb.ExportMetricsServiceResponse{}, nil
	}

	if _, err := s.telemetry.IngestMetrics(ctx, orgID, uploadedBy, inputs); err != nil {
		return nil, ingestStatus(err)
	}
	return &colmetricspb.ExportMetricsServiceResponse{}, nil
}

// ExportLogs is wired as the LogsService Export RPC.
func (s *Server) ExportLogs(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	orgID, err := s.resolveOrg(ctx)
	if err != nil {
		return nil, err
	}

	var inputs []service.LogInput
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, record := range sl.GetLogRecords() {
				input, err := logInput(record)
				if err != nil {
					return nil, status.Errorf(codes.InvalidArgument, "failed to encode log record: %v", err)
				}
				inputs = append(inputs, input)
			}
		}
	}
	if len(inputs) == 0 {
		return &collogspb.ExportLogsServiceResponse{}, nil
	}

	if _, err := s.telemetry.IngestLogs(ctx, orgID, uploadedBy, inputs); err != nil {
		return nil, ingestStatus(err)
	}
	return &collogspb.ExportLogsServiceResponse{}, nil
}

// resolveOrg maps a request to an organization: Bearer token first, then the
// organization-id metadata header, then the org-<id> subdomain in the
// :authority. Anything unresolvable is UNAUTHENTICATED.
func (s *Server) resolveOrg(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	if vals := md.Get("authorization"); len(vals) > 0 {
		credential := strings.TrimPrefix(vals[0], "Bearer ")
		identity, err := s.verifier.Verify(ctx, credential)
		if err == nil && identity.TokenOrgID != "" {
			return identity.TokenOrgID, nil
		}
		if err != nil {
			s.logger.Debug("otlp bearer rejected", "error", err)
		}
	}

	if vals := md.Get("organization-id"); len(vals) > 0 && vals[0] != "" {
		return s.checkOrg(ctx, vals[0])
	}

	if vals := md.Get(":authority"); len(vals) > 0 {
		host, _, _ := strings.Cut(vals[0], ":")
		sub, _, _ := strings.Cut(host, ".")
		if id, ok := strings.CutPrefix(sub, orgSubdomainPrefix); ok && id != "" {
			return s.checkOrg(ctx, id)
		}
	}

	return "", status.Error(codes.Unauthenticated, "no resolvable organization")
}

func (s *Server) checkOrg(ctx context.Context, id string) (string, error) {
	if _, err := s.orgs.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", status.Error(codes.Unauthenticated, "unknown organization")
		}
		return "", status.Errorf(codes.Internal, "failed to resolve organization: %v", err)
	}
	return id, nil
}

// ingestStatus maps service errors to gRPC codes.
func ingestStatus(err error) error {
	if service.IsCreditError(err) {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Errorf(codes.Internal, "ingest failed: %v", err)
}

// traceInput flattens one ResourceSpans into a stored trace record. The
// trace id and span count come from the contained spans; the full protobuf
// is preserved as the payload.
func traceInput(rs *tracepb.ResourceSpans) (service.TraceInput, error) {
	payload, err := protojson.Marshal(rs)
	if err != nil {
		return service.TraceInput{}, err
	}

	input := service.TraceInput{Payload: payload}
	for _, ss := range rs.GetScopeSpans() {
		input.SpanCount += len(ss.GetSpans())
		if input.TraceID == "" && len(ss.GetSpans()) > 0 {
			input.TraceID = hex.EncodeToString(ss.GetSpans()[0].GetTraceId())
		}
	}
	return input, nil
}

func metricInput(metric *metricspb.Metric) (service.MetricInput, error) {
	payload, err := protojson.Marshal(metric)
	if err != nil {
		return service.MetricInput{}, err
	}
	return service.MetricInput{Name: metric.GetName(), Payload: payload}, nil
}

func logInput(record *logspb.LogRecord) (service.LogInput, error) {
	payload, err := protojson.Marshal(record)
	if err != nil {
		return service.LogInput{}, err
	}
	return service.LogInput{
		Severity: service.LogSeverityInput{Number: int(record.GetSeverityNumber())},
		Body:     record.GetBody().GetStringValue(),
		Payload:  payload,
	}, nil
}
