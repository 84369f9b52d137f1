package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// TelemetryService ingests and lists traces, metrics and logs. Both the HTTP
// and the OTLP gRPC transports land here.
type TelemetryService struct {
	logger  *slog.Logger
	repos   *repository.Repositories
	credits *CreditService
	tags    *TagService
}

// NewTelemetryService creates a new telemetry service.
func NewTelemetryService(logger *slog.Logger, repos *repository.Repositories, credits *CreditService, tags *TagService) *TelemetryService {
	return &TelemetryService{logger: logger, repos: repos, credits: credits, tags: tags}
}

// TraceInput is one trace payload to ingest.
type TraceInput struct {
	TraceID   string
	SpanCount int
	Payload   json.RawMessage
	TagIDs    []string
	Metadata  map[string]string
}

// IngestTraces charges and persists a batch of traces.
func (s *TelemetryService) IngestTraces(ctx context.Context, orgID, uploadedBy string, inputs []TraceInput) ([]string, error) {
	if err := s.chargeRecords(ctx, orgID, uploadedBy, models.OpTelemetryTrace, len(inputs)); err != nil {
		return nil, err
	}
	var ids []string
	for _, in := range inputs {
		if err := s.tags.ValidateTagIDs(ctx, orgID, in.TagIDs); err != nil {
			return nil, err
		}
		trace := &models.TelemetryTrace{
			ID:             models.NewID(),
			OrganizationID: orgID,
			TraceID:        in.TraceID,
			SpanCount:      in.SpanCount,
			Payload:        in.Payload,
			UploadDate:     time.Now().UTC(),
			UploadedBy:     uploadedBy,
			TagIDs:         in.TagIDs,
			Metadata:       in.Metadata,
		}
		if err := s.repos.Telemetry.CreateTrace(ctx, trace); err != nil {
			return nil, err
		}
		ids = append(ids, trace.ID)
	}
	return ids, nil
}

// MetricInput is one metric payload to ingest.
type MetricInput struct {
	Name     string
	Payload  json.RawMessage
	TagIDs   []string
	Metadata map[string]string
}

// IngestMetrics charges and persists a batch of metrics.
func (s *TelemetryService) IngestMetrics(ctx context.Context, orgID, uploadedBy string, inputs []MetricInput) ([]string, error) {
	if err := s.chargeRecords(ctx, orgID, uploadedBy, models.OpTelemetryMetric, len(inputs)); err != nil {
		return nil, err
	}
	var ids []string
	for _, in := range inputs {
		if err := s.tags.ValidateTagIDs(ctx, orgID, in.TagIDs); err != nil {
			return nil, err
		}
		metric := &models.TelemetryMetric{
			ID:             models.NewID(),
			OrganizationID: orgID,
			Name:           in.Name,
			Payload:        in.Payload,
			UploadDate:     time.Now().UTC(),
			UploadedBy:     uploadedBy,
			TagIDs:         in.TagIDs,
			Metadata:       in.Metadata,
		}
		if err := s.repos.Telemetry.CreateMetric(ctx, metric); err != nil {
			return nil, err
		}
		ids = append(ids, metric.ID)
	}
	return ids, nil
}

// LogInput is one log record to ingest.
type LogInput struct {
	Severity LogSeverityInput
	Body     string
	Payload  json.RawMessage
	TagIDs   []string
	Metadata map[string]string
}

// LogSeverityInput carries either a named severity or an OTLP
// severity_number; the number wins when both are set.
type LogSeverityInput struct {
	Name   models.LogSeverity
	Number int
}

func (in LogSeverityInput) resolve() models.LogSeverity {
	if in.Number > 0 {
		return models.SeverityFromNumber(in.Number)
	}
	if in.Name != "" {
		return in.Name
	}
	return models.SeverityInfo
}

// IngestLogs charges and persists a batch of log records.
func (s *TelemetryService) IngestLogs(ctx context.Context, orgID, uploadedBy string, inputs []LogInput) ([]string, error) {
	if err := s.chargeRecords(ctx, orgID, uploadedBy, models.OpTelemetryLog, len(inputs)); err != nil {
		return nil, err
	}
	var ids []string
	for _, in := range inputs {
		if err := s.tags.ValidateTagIDs(ctx, orgID, in.TagIDs); err != nil {
			return nil, err
		}
		log := &models.TelemetryLog{
			ID:             models.NewID(),
			OrganizationID: orgID,
			Severity:       in.Severity.resolve(),
			Body:           in.Body,
			Payload:        in.Payload,
			UploadDate:     time.Now().UTC(),
			UploadedBy:     uploadedBy,
			TagIDs:         in.TagIDs,
			Metadata:       in.Metadata,
		}
		if err := s.repos.Telemetry.CreateLog(ctx, log); err != nil {
			return nil, err
		}
		ids = append(ids, log.ID)
	}
	return ids, nil
}

// ListTraces returns ingested traces, newest first.
func (s *TelemetryService) ListTraces(ctx context.Context, orgID string, filter repository.TelemetryListFilter, skip, limit int) ([]*models.TelemetryTrace, int, error) {
	return s.repos.Telemetry.ListTraces(ctx, orgID, filter, skip, clampLimit(limit))
}

// ListMetrics returns ingested metrics, newest first.
func (s *TelemetryService) ListMetrics(ctx context.Context, orgID string, filter repository.TelemetryListFilter, skip, limit int) ([]*models.TelemetryMetric, int, error) {
	return s.repos.Telemetry.ListMetrics(ctx, orgID, filter, skip, clampLimit(limit))
}

// ListLogs returns ingested log records, newest first.
func (s *TelemetryService) ListLogs(ctx context.Context, orgID string, filter repository.TelemetryListFilter, skip, limit int) ([]*models.TelemetryLog, int, error) {
	return s.repos.Telemetry.ListLogs(ctx, orgID, filter, skip, clampLimit(limit))
}

// chargeRecords checks and debits 1 SPU per record before persistence.
func (s *TelemetryService) chargeRecords(ctx context.Context, orgID, source string, op models.UsageOperation, count int) error {
	if count == 0 {
		return validationErrorf("empty batch")
	}
	cost := SPUCostTelemetryRecord * float64(count)
	if err := s.credits.CheckSPU(ctx, orgID, cost); err != nil {
		return err
	}
	if err := s.credits.RecordSPU(ctx, orgID, cost, op, source); err != nil {
		return fmt.Errorf("failed to record telemetry usage: %w", err)
	}
	return nil
}
