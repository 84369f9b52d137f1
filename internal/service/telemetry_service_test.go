package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

func setupTelemetryService(t *testing.T) (*TelemetryService, *repository.Repositories, *TagService) {
	t.Helper()
	repos := setupTestRepos(t)
	credits := NewCreditService(testLogger(), repos.Payments)
	tags := NewTagService(testLogger(), repos)
	return NewTelemetryService(testLogger(), repos, credits, tags), repos, tags
}

func TestTelemetryService_IngestChargesPerRecord(t *testing.T) {
	svc, repos, _ := setupTelemetryService(t)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 10)

	ids, err := svc.IngestTraces(ctx, orgID, "sdk", []TraceInput{
		{TraceID: "t1", SpanCount: 4, Payload: json.RawMessage(`{}`)},
		{TraceID: "t2", SpanCount: 1, Payload: json.RawMessage(`{}`)},
		{TraceID: "t3", SpanCount: 2, Payload: json.RawMessage(`{}`)},
	})
	if err != nil {
		t.Fatalf("IngestTraces() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ingested %d traces, want 3", len(ids))
	}

	customer, err := repos.Payments.GetCustomer(ctx, orgID)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if customer.GrantedCreditsUsed != 3 {
		t.Errorf("GrantedCreditsUsed = %v, want 3", customer.GrantedCreditsUsed)
	}

	traces, total, err := svc.ListTraces(ctx, orgID, repository.TelemetryListFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListTraces() error = %v", err)
	}
	if total != 3 || len(traces) != 3 {
		t.Errorf("stored traces = %d (total %d), want 3", len(traces), total)
	}
}

func TestTelemetryService_IngestRejectsWhenExhausted(t *testing.T) {
	svc, repos, _ := setupTelemetryService(t)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 2)

	// The batch is charged as a whole before anything is stored.
	_, err := svc.IngestMetrics(ctx, orgID, "sdk", []MetricInput{
		{Name: "m1", Payload: json.RawMessage(`{}`)},
		{Name: "m2", Payload: json.RawMessage(`{}`)},
		{Name: "m3", Payload: json.RawMessage(`{}`)},
	})
	if !IsCreditError(err) {
		t.Fatalf("expected credit error, got %v", err)
	}

	_, total, err := svc.ListMetrics(ctx, orgID, repository.TelemetryListFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListMetrics() error = %v", err)
	}
	if total != 0 {
		t.Errorf("metrics stored despite rejection: %d", total)
	}
}

func TestTelemetryService_IngestLogsSeverity(t *testing.T) {
	svc, repos, _ := setupTelemetryService(t)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 10)

	// severity_number wins over the name; 17 is the ERROR range in OTLP.
	_, err := svc.IngestLogs(ctx, orgID, "sdk", []LogInput{
		{Severity: LogSeverityInput{Name: models.SeverityDebug, Number: 17}, Body: "boom"},
		{Severity: LogSeverityInput{Name: models.SeverityWarn}, Body: "careful"},
		{Body: "plain"},
	})
	if err != nil {
		t.Fatalf("IngestLogs() error = %v", err)
	}

	logs, _, err := svc.ListLogs(ctx, orgID, repository.TelemetryListFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	bySeverity := map[models.LogSeverity]int{}
	for _, l := range logs {
		bySeverity[l.Severity]++
	}
	if bySeverity[models.SeverityError] != 1 || bySeverity[models.SeverityWarn] != 1 || bySeverity[models.SeverityInfo] != 1 {
		t.Errorf("severities = %v", bySeverity)
	}
}

func TestTelemetryService_IngestValidatesTags(t *testing.T) {
	svc, repos, tags := setupTelemetryService(t)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 10)

	_, err := svc.IngestTraces(ctx, orgID, "sdk", []TraceInput{
		{TraceID: "t1", Payload: json.RawMessage(`{}`), TagIDs: []string{"missing"}},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown tag, got %v", err)
	}

	tag, err := tags.Create(ctx, orgID, models.NewID(), "prod", "#4CAF50", "")
	if err != nil {
		t.Fatalf("tag Create() error = %v", err)
	}
	_, err = svc.IngestTraces(ctx, orgID, "sdk", []TraceInput{
		{TraceID: "t1", Payload: json.RawMessage(`{}`), TagIDs: []string{tag.ID}},
	})
	if err != nil {
		t.Fatalf("IngestTraces(valid tag) error = %v", err)
	}

	traces, _, err := svc.ListTraces(ctx, orgID,
		repository.TelemetryListFilter{TagIDs: []string{tag.ID}}, 0, 10)
	if err != nil {
		t.Fatalf("ListTraces(filter) error = %v", err)
	}
	if len(traces) != 1 {
		t.Errorf("filtered traces = %d, want 1", len(traces))
	}
}
