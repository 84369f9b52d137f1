package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

func TestCreditService_CheckSPU(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewCreditService(testLogger(), repos.Payments)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 50)

	if err := svc.CheckSPU(ctx, orgID, 50); err != nil {
		t.Errorf("CheckSPU(50) error = %v, want nil", err)
	}

	err := svc.CheckSPU(ctx, orgID, 51)
	var ce *SPUCreditError
	if !errors.As(err, &ce) {
		t.Fatalf("CheckSPU(51) error = %v, want SPUCreditError", err)
	}
	if ce.Required != 51 || ce.Available != 50 {
		t.Errorf("SPUCreditError = %+v, want required 51 available 50", ce)
	}
}

func TestCreditService_CheckSPUNoCustomer(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewCreditService(testLogger(), repos.Payments)

	err := svc.CheckSPU(context.Background(), models.NewID(), 1)
	var ce *SPUCreditError
	if !errors.As(err, &ce) {
		t.Fatalf("expected SPUCreditError for unknown org, got %v", err)
	}
	if ce.Available != 0 {
		t.Errorf("Available = %v, want 0", ce.Available)
	}
}

func TestCreditService_RecordSPU(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewCreditService(testLogger(), repos.Payments)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 10)

	if err := svc.RecordSPU(ctx, orgID, 4, models.OpOCR, "worker-1"); err != nil {
		t.Fatalf("RecordSPU() error = %v", err)
	}

	customer, err := repos.Payments.GetCustomer(ctx, orgID)
	if err != nil {
		t.Fatalf("GetCustomer() error = %v", err)
	}
	if customer.GrantedCreditsUsed != 4 {
		t.Errorf("GrantedCreditsUsed = %v, want 4", customer.GrantedCreditsUsed)
	}

	if err := svc.RecordSPU(ctx, orgID, 1, "bogus", "worker-1"); err == nil {
		t.Error("expected error for unknown operation")
	}
}

func TestCreditService_UsageRangeTimezones(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewCreditService(testLogger(), repos.Payments)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 1000)

	insert := func(ts time.Time, spus float64) {
		t.Helper()
		err := repos.Payments.Debit(ctx, &models.UsageRecord{
			ID:             models.NewULID(),
			OrganizationID: orgID,
			SPUs:           spus,
			Operation:      models.OpLLM,
			Source:         "test",
			Timestamp:      ts,
		})
		if err != nil {
			t.Fatalf("failed to insert usage record: %v", err)
		}
	}
	insert(time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC), 100)
	insert(time.Date(2025, 1, 16, 1, 0, 0, 0, time.UTC), 200)

	start := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)

	report, err := svc.UsageRange(ctx, orgID, start, end, false, "UTC")
	if err != nil {
		t.Fatalf("UsageRange(UTC) error = %v", err)
	}
	if len(report.DataPoints) != 2 {
		t.Fatalf("UTC data points = %d, want 2", len(report.DataPoints))
	}
	if report.DataPoints[0].Date != "2025-01-15" || report.DataPoints[0].SPUs != 100 {
		t.Errorf("first point = %+v", report.DataPoints[0])
	}
	if report.DataPoints[1].Date != "2025-01-16" || report.DataPoints[1].SPUs != 200 {
		t.Errorf("second point = %+v", report.DataPoints[1])
	}
	if report.TotalSPUs != 300 {
		t.Errorf("TotalSPUs = %v, want 300", report.TotalSPUs)
	}

	report, err = svc.UsageRange(ctx, orgID, start, end, false, "America/Los_Angeles")
	if err != nil {
		t.Fatalf("UsageRange(LA) error = %v", err)
	}
	if len(report.DataPoints) != 1 {
		t.Fatalf("LA data points = %d, want 1", len(report.DataPoints))
	}
	if report.DataPoints[0].Date != "2025-01-15" || report.DataPoints[0].SPUs != 300 {
		t.Errorf("LA point = %+v", report.DataPoints[0])
	}

	if _, err := svc.UsageRange(ctx, orgID, start, end, false, "Not/AZone"); err == nil {
		t.Error("expected error for invalid timezone")
	}
}

func TestCreditService_UsageRangePerOperation(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewCreditService(testLogger(), repos.Payments)
	ctx := context.Background()
	orgID := models.NewID()

	grantCredits(t, repos, orgID, 1000)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, rec := range []struct {
		op   models.UsageOperation
		spus float64
	}{
		{models.OpOCR, 3},
		{models.OpLLM, 5},
		{models.OpLLM, 2},
	} {
		err := repos.Payments.Debit(ctx, &models.UsageRecord{
			ID:             models.NewULID(),
			OrganizationID: orgID,
			SPUs:           rec.spus,
			Operation:      rec.op,
			Source:         "test",
			Timestamp:      ts,
		})
		if err != nil {
			t.Fatalf("failed to insert usage record: %v", err)
		}
	}

	report, err := svc.UsageRange(ctx, orgID,
		ts.Add(-time.Hour), ts.Add(time.Hour), true, "UTC")
	if err != nil {
		t.Fatalf("UsageRange() error = %v", err)
	}
	if len(report.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2 (llm, ocr)", len(report.DataPoints))
	}
	// Sorted by date then operation: llm before ocr.
	if report.DataPoints[0].Operation != models.OpLLM || report.DataPoints[0].SPUs != 7 {
		t.Errorf("llm point = %+v", report.DataPoints[0])
	}
	if report.DataPoints[1].Operation != models.OpOCR || report.DataPoints[1].SPUs != 3 {
		t.Errorf("ocr point = %+v", report.DataPoints[1])
	}
}

func TestCostFunctions(t *testing.T) {
	if got := OCRCost(3); got != 3 {
		t.Errorf("OCRCost(3) = %v, want 3", got)
	}
	if got := OCRCost(0); got != 1 {
		t.Errorf("OCRCost(0) = %v, want 1", got)
	}
	if got := LLMCost(0.025); got != 3 {
		t.Errorf("LLMCost(0.025) = %v, want 3", got)
	}
	if got := LLMCost(0.0001); got != 1 {
		t.Errorf("LLMCost(0.0001) = %v, want 1", got)
	}
}
