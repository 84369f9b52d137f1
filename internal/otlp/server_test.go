package otlp

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/database/migrations"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

func setupServer(t *testing.T) (*Server, *repository.Repositories, string) {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	user := &models.User{
		ID: models.NewID(), Email: "otlp@example.com", Name: "OTLP",
		Role: models.RoleUser, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := repos.User.Create(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	org := &models.Organization{
		ID: models.NewID(), Name: "Acme", Type: models.OrgTypeTeam,
		Members:   []models.OrganizationMember{{UserID: user.ID, Role: models.RoleAdmin}},
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := repos.Organization.Create(ctx, org); err != nil {
		t.Fatalf("failed to create org: %v", err)
	}
	err = repos.Payments.UpsertCustomer(ctx, &models.PaymentsCustomer{
		OrganizationID: org.ID, GrantedCredits: 100, UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	verifier := auth.NewVerifier("test-secret", repos)
	credits := service.NewCreditService(logger, repos.Payments)
	tags := service.NewTagService(logger, repos)
	telemetry := service.NewTelemetryService(logger, repos, credits, tags)
	return NewServer(logger, verifier, repos.Organization, telemetry), repos, org.ID
}

func withMetadata(kv ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
}

func logsRequest(body string, severityNumber int) *collogspb.ExportLogsServiceRequest {
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			ScopeLogs: []*logspb.ScopeLogs{{
				LogRecords: []*logspb.LogRecord{{
					Body:           &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: body}},
					SeverityNumber: logspb.SeverityNumber(severityNumber),
				}},
			}},
		}},
	}
}

func TestServer_ExportLogsWithOrgHeader(t *testing.T) {
	srv, repos, orgID := setupServer(t)

	ctx := withMetadata("organization-id", orgID)
	if _, err := srv.ExportLogs(ctx, logsRequest("hello", 17)); err != nil {
		t.Fatalf("ExportLogs() error = %v", err)
	}

	logs, total, err := repos.Telemetry.ListLogs(context.Background(), orgID, repository.TelemetryListFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("stored logs = %d, want 1", total)
	}
	record := logs[0]
	if record.Body != "hello" {
		t.Errorf("Body = %q, want hello", record.Body)
	}
	if record.Severity != models.SeverityError {
		t.Errorf("Severity = %s, want ERROR (number 17)", record.Severity)
	}
	if record.UploadedBy != "otlp-grpc" {
		t.Errorf("UploadedBy = %q", record.UploadedBy)
	}
}

func TestServer_ExportLogsViaBearerToken(t *testing.T) {
	srv, repos, orgID := setupServer(t)
	ctx := context.Background()

	raw, err := auth.GenerateToken(auth.OrgTokenPrefix)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	org, err := repos.Organization.GetByID(ctx, orgID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	err = repos.AccessToken.Create(ctx, &models.AccessToken{
		ID:             models.NewID(),
		UserID:         org.Members[0].UserID,
		OrganizationID: &orgID,
		Name:           "ingest",
		TokenHash:      auth.HashToken(raw),
		TokenPrefix:    auth.DisplayPrefix(raw),
		CreatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("token Create() error = %v", err)
	}

	mdCtx := withMetadata("authorization", "Bearer "+raw)
	if _, err := srv.ExportLogs(mdCtx, logsRequest("via token", 9)); err != nil {
		t.Fatalf("ExportLogs() error = %v", err)
	}

	logs, _, err := repos.Telemetry.ListLogs(ctx, orgID, repository.TelemetryListFilter{}, 0, 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("ListLogs() = %d, %v", len(logs), err)
	}
	if logs[0].Severity != models.SeverityInfo {
		t.Errorf("Severity = %s, want INFO", logs[0].Severity)
	}
}

func TestServer_ExportLogsViaSubdomain(t *testing.T) {
	srv, repos, orgID := setupServer(t)

	ctx := withMetadata(":authority", "org-"+orgID+".ingest.example.com:4317")
	if _, err := srv.ExportLogs(ctx, logsRequest("via subdomain", 5)); err != nil {
		t.Fatalf("ExportLogs() error = %v", err)
	}

	_, total, err := repos.Telemetry.ListLogs(context.Background(), orgID, repository.TelemetryListFilter{}, 0, 10)
	if err != nil || total != 1 {
		t.Errorf("ListLogs() = %d, %v", total, err)
	}
}

func TestServer_RejectsUnresolvableOrg(t *testing.T) {
	srv, _, _ := setupServer(t)

	cases := []context.Context{
		context.Background(),
		withMetadata("organization-id", "nonexistent"),
		withMetadata(":authority", "api.example.com"),
	}
	for i, ctx := range cases {
		_, err := srv.ExportLogs(ctx, logsRequest("x", 9))
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("case %d: code = %v, want Unauthenticated", i, status.Code(err))
		}
	}
}

func TestServer_ExportTraces(t *testing.T) {
	srv, repos, orgID := setupServer(t)

	traceID := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	req := &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: []*tracepb.Span{
					{TraceId: traceID, Name: "GET /"},
					{TraceId: traceID, Name: "db.query"},
				},
			}},
		}},
	}
	ctx := withMetadata("organization-id", orgID)
	if _, err := srv.ExportTraces(ctx, req); err != nil {
		t.Fatalf("ExportTraces() error = %v", err)
	}

	traces, _, err := repos.Telemetry.ListTraces(context.Background(), orgID, repository.TelemetryListFilter{}, 0, 10)
	if err != nil || len(traces) != 1 {
		t.Fatalf("ListTraces() = %d, %v", len(traces), err)
	}
	if traces[0].SpanCount != 2 {
		t.Errorf("SpanCount = %d, want 2", traces[0].SpanCount)
	}
	if traces[0].TraceID != "0102030405060708090a0b0c0d0e0f10" {
		t.Errorf("TraceID = %s", traces[0].TraceID)
	}
}

func TestServer_CreditExhaustion(t *testing.T) {
	srv, repos, orgID := setupServer(t)
	ctx := context.Background()

	// Drain the balance.
	err := repos.Payments.UpsertCustomer(ctx, &models.PaymentsCustomer{
		OrganizationID: orgID, GrantedCredits: 0, UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertCustomer() error = %v", err)
	}

	_, err = srv.ExportLogs(withMetadata("organization-id", orgID), logsRequest("x", 9))
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("code = %v, want ResourceExhausted", status.Code(err))
	}
}
