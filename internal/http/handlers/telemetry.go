package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// IngestOutput is the shared ingest response: the ids of the stored records.
type IngestOutput struct {
	Body struct {
		IDs []string `json:"ids"`
	}
}

// IngestTracesInput is the body of POST /orgs/{org}/telemetry/traces.
type IngestTracesInput struct {
	OrgPath
	Body struct {
		Traces []struct {
			TraceID   string            `json:"trace_id,omitempty"`
			SpanCount int               `json:"span_count,omitempty"`
			Payload   json.RawMessage   `json:"payload"`
			TagIDs    []string          `json:"tag_ids,omitempty"`
			Metadata  map[string]string `json:"metadata,omitempty"`
		} `json:"traces"`
	}
}

// IngestTraces stores a trace batch, charging one SPU per record.
func (h *Handlers) IngestTraces(ctx context.Context, input *IngestTracesInput) (*IngestOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	inputs := make([]service.TraceInput, 0, len(input.Body.Traces))
	for _, t := range input.Body.Traces {
		inputs = append(inputs, service.TraceInput{
			TraceID:   t.TraceID,
			SpanCount: t.SpanCount,
			Payload:   t.Payload,
			TagIDs:    t.TagIDs,
			Metadata:  t.Metadata,
		})
	}
	ids, err := h.services.Telemetry.IngestTraces(ctx, input.Org, id.UserID, inputs)
	if err != nil {
		return nil, mapError(err)
	}
	out := &IngestOutput{}
	out.Body.IDs = ids
	return out, nil
}

// IngestMetricsInput is the body of POST /orgs/{org}/telemetry/metrics.
type IngestMetricsInput struct {
	OrgPath
	Body struct {
		Metrics []struct {
			Name     string            `json:"name"`
			Payload  json.RawMessage   `json:"payload"`
			TagIDs   []string          `json:"tag_ids,omitempty"`
			Metadata map[string]string `json:"metadata,omitempty"`
		} `json:"metrics"`
	}
}

// IngestMetrics stores a metric batch, charging one SPU per record.
func (h *Handlers) IngestMetrics(ctx context.Context, input *IngestMetricsInput) (*IngestOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	inputs := make([]service.MetricInput, 0, len(input.Body.Metrics))
	for _, m := range input.Body.Metrics {
		inputs = append(inputs, service.MetricInput{
			Name:     m.Name,
			Payload:  m.Payload,
			TagIDs:   m.TagIDs,
			Metadata: m.Metadata,
		})
	}
	ids, err := h.services.Telemetry.IngestMetrics(ctx, input.Org, id.UserID, inputs)
	if err != nil {
		return nil, mapError(err)
	}
	out := &IngestOutput{}
	out.Body.IDs = ids
	return out, nil
}

// IngestLogsInput is the body of POST /orgs/{org}/telemetry/logs.
type IngestLogsInput struct {
	OrgPath
	Body struct {
		Logs []struct {
			Severity       string            `json:"severity,omitempty" doc:"Named severity (TRACE..FATAL)"`
			SeverityNumber int               `json:"severity_number,omitempty" doc:"OTLP severity number 1-24; wins over the name"`
			Body           string            `json:"body"`
			Payload        json.RawMessage   `json:"payload,omitempty"`
			TagIDs         []string          `json:"tag_ids,omitempty"`
			Metadata       map[string]string `json:"metadata,omitempty"`
		} `json:"logs"`
	}
}

// IngestLogs stores a log batch, charging one SPU per record.
func (h *Handlers) IngestLogs(ctx context.Context, input *IngestLogsInput) (*IngestOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	inputs := make([]service.LogInput, 0, len(input.Body.Logs))
	for _, l := range input.Body.Logs {
		inputs = append(inputs, service.LogInput{
			Severity: service.LogSeverityInput{
				Name:   models.LogSeverity(l.Severity),
				Number: l.SeverityNumber,
			},
			Body:     l.Body,
			Payload:  l.Payload,
			TagIDs:   l.TagIDs,
			Metadata: l.Metadata,
		})
	}
	ids, err := h.services.Telemetry.IngestLogs(ctx, input.Org, id.UserID, inputs)
	if err != nil {
		return nil, mapError(err)
	}
	out := &IngestOutput{}
	out.Body.IDs = ids
	return out, nil
}

// TelemetryListInput is the shared telemetry list query. Timestamps are
// ISO-8601 and interpreted as UTC.
type TelemetryListInput struct {
	OrgPath
	Pagination
	TagIDs     []string `query:"tag_ids"`
	Start      string   `query:"start" doc:"RFC 3339 lower bound"`
	End        string   `query:"end" doc:"RFC 3339 upper bound"`
	Severity   string   `query:"severity" doc:"Logs only"`
	NameSearch string   `query:"name_search" doc:"Metrics only"`
}

func (in *TelemetryListInput) filter() (repository.TelemetryListFilter, error) {
	filter := repository.TelemetryListFilter{
		TagIDs:     in.TagIDs,
		Severity:   in.Severity,
		NameSearch: in.NameSearch,
	}
	if in.Start != "" {
		t, err := time.Parse(time.RFC3339, in.Start)
		if err != nil {
			return filter, huma.Error422UnprocessableEntity("invalid start timestamp")
		}
		t = t.UTC()
		filter.Start = &t
	}
	if in.End != "" {
		t, err := time.Parse(time.RFC3339, in.End)
		if err != nil {
			return filter, huma.Error422UnprocessableEntity("invalid end timestamp")
		}
		t = t.UTC()
		filter.End = &t
	}
	return filter, nil
}

// ListTracesOutput is a page of traces.
type ListTracesOutput struct {
	Body struct {
		Traces []*models.TelemetryTrace `json:"traces"`
		Total  int                      `json:"total"`
	}
}

// ListTraces lists ingested traces.
func (h *Handlers) ListTraces(ctx context.Context, input *TelemetryListInput) (*ListTracesOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	filter, err := input.filter()
	if err != nil {
		return nil, err
	}
	traces, total, err := h.services.Telemetry.ListTraces(ctx, input.Org, filter, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListTracesOutput{}
	out.Body.Traces = traces
	out.Body.Total = total
	return out, nil
}

// ListMetricsOutput is a page of metrics.
type ListMetricsOutput struct {
	Body struct {
		Metrics []*models.TelemetryMetric `json:"metrics"`
		Total   int                       `json:"total"`
	}
}

// ListMetrics lists ingested metrics.
func (h *Handlers) ListMetrics(ctx context.Context, input *TelemetryListInput) (*ListMetricsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	filter, err := input.filter()
	if err != nil {
		return nil, err
	}
	metrics, total, err := h.services.Telemetry.ListMetrics(ctx, input.Org, filter, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListMetricsOutput{}
	out.Body.Metrics = metrics
	out.Body.Total = total
	return out, nil
}

// ListLogsOutput is a page of log records.
type ListLogsOutput struct {
	Body struct {
		Logs  []*models.TelemetryLog `json:"logs"`
		Total int                    `json:"total"`
	}
}

// ListLogs lists ingested log records.
func (h *Handlers) ListLogs(ctx context.Context, input *TelemetryListInput) (*ListLogsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	filter, err := input.filter()
	if err != nil {
		return nil, err
	}
	logs, total, err := h.services.Telemetry.ListLogs(ctx, input.Org, filter, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListLogsOutput{}
	out.Body.Logs = logs
	out.Body.Total = total
	return out, nil
}
