package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

func TestClaudeService_IngestLogsDeduplicates(t *testing.T) {
	repos := setupTestRepos(t)
	credits := NewCreditService(testLogger(), repos.Payments)
	svc := NewClaudeService(testLogger(), repos, credits)
	ctx := context.Background()
	orgID := models.NewID()
	userID := models.NewID()

	grantCredits(t, repos, orgID, 100)

	entry := func(uuid string) ClaudeLogEntry {
		return ClaudeLogEntry{EntryUUID: uuid, Payload: json.RawMessage(`{"u":"` + uuid + `"}`)}
	}
	session := models.NewID()

	inserted, err := svc.IngestLogs(ctx, orgID, userID, session,
		[]ClaudeLogEntry{entry("u1"), entry("u2"), entry("u3")})
	if err != nil {
		t.Fatalf("IngestLogs() error = %v", err)
	}
	if inserted != 3 {
		t.Errorf("inserted = %d, want 3", inserted)
	}

	// An overlapping resend inserts only the tail after the last known entry.
	inserted, err = svc.IngestLogs(ctx, orgID, userID, session,
		[]ClaudeLogEntry{entry("u2"), entry("u3"), entry("u4"), entry("u5")})
	if err != nil {
		t.Fatalf("IngestLogs(overlap) error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	// A fully known batch inserts nothing.
	inserted, err = svc.IngestLogs(ctx, orgID, userID, session,
		[]ClaudeLogEntry{entry("u4"), entry("u5")})
	if err != nil {
		t.Fatalf("IngestLogs(known) error = %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}

	logs, total, err := svc.ListLogs(ctx, orgID, 0, 10)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	if total != 5 || len(logs) != 5 {
		t.Errorf("stored logs = %d (total %d), want 5", len(logs), total)
	}
}

func TestClaudeService_IngestLogsCharges(t *testing.T) {
	repos := setupTestRepos(t)
	credits := NewCreditService(testLogger(), repos.Payments)
	svc := NewClaudeService(testLogger(), repos, credits)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 100)

	_, err := svc.IngestLogs(ctx, orgID, "cli", models.NewID(),
		[]ClaudeLogEntry{{EntryUUID: "u1", Payload: json.RawMessage(`{}`)}})
	if err != nil {
		t.Fatalf("IngestLogs() error = %v", err)
	}
	_, err = svc.IngestHook(ctx, orgID, "cli", "PostToolUse", "", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("IngestHook() error = %v", err)
	}

	customer, err := repos.Payments.GetCustomer(ctx, orgID)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	// 1 SPU per log batch plus 0.1 per hook.
	if customer.GrantedCreditsUsed != 1.1 {
		t.Errorf("GrantedCreditsUsed = %v, want 1.1", customer.GrantedCreditsUsed)
	}
}

func TestClaudeService_IngestRejectsWithoutCredits(t *testing.T) {
	repos := setupTestRepos(t)
	credits := NewCreditService(testLogger(), repos.Payments)
	svc := NewClaudeService(testLogger(), repos, credits)
	ctx := context.Background()
	orgID := models.NewID()

	_, err := svc.IngestLogs(ctx, orgID, "cli", models.NewID(),
		[]ClaudeLogEntry{{EntryUUID: "u1", Payload: json.RawMessage(`{}`)}})
	if !IsCreditError(err) {
		t.Errorf("expected credit error, got %v", err)
	}
}
