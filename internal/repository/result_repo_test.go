package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

func newTestResult(orgID, docID, promptRevID, promptID string, version int) *models.LLMResult {
	now := time.Now()
	return &models.LLMResult{
		ID:               models.NewID(),
		OrganizationID:   orgID,
		DocumentID:       docID,
		PromptRevID:      promptRevID,
		PromptID:         promptID,
		PromptVersion:    version,
		LLMResult:        []byte(`{"total":"42.00"}`),
		UpdatedLLMResult: []byte(`{"total":"42.00"}`),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestResultRepository_UpsertReplacesAndResets(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	result := newTestResult("org_1", "doc_1", "rev_1", "prompt_1", 1)
	if err := repos.Result.Upsert(ctx, result); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Mark edited and verified.
	if err := repos.Result.UpdateUserEdit(ctx, "org_1", "doc_1", "rev_1",
		[]byte(`{"total":"43.00"}`), true, true); err != nil {
		t.Fatalf("UpdateUserEdit() error = %v", err)
	}

	got, err := repos.Result.Get(ctx, "org_1", "doc_1", "rev_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.IsEdited || !got.IsVerified {
		t.Error("expected edited and verified flags set")
	}

	// A rerun overwrites the row and clears the flags.
	rerun := newTestResult("org_1", "doc_1", "rev_1", "prompt_1", 1)
	rerun.LLMResult = []byte(`{"total":"44.00"}`)
	rerun.UpdatedLLMResult = []byte(`{"total":"44.00"}`)
	if err := repos.Result.Upsert(ctx, rerun); err != nil {
		t.Fatalf("Upsert() rerun error = %v", err)
	}

	got, err = repos.Result.Get(ctx, "org_1", "doc_1", "rev_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.IsEdited || got.IsVerified {
		t.Error("expected rerun to reset edit flags")
	}
	if string(got.LLMResult) != `{"total":"44.00"}` {
		t.Errorf("LLMResult = %s, want rerun value", got.LLMResult)
	}
}

func TestResultRepository_GetLatestForPrompt(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	v1 := newTestResult("org_1", "doc_1", "rev_v1", "prompt_1", 1)
	v2 := newTestResult("org_1", "doc_1", "rev_v2", "prompt_1", 2)
	for _, res := range []*models.LLMResult{v1, v2} {
		if err := repos.Result.Upsert(ctx, res); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	got, err := repos.Result.GetLatestForPrompt(ctx, "org_1", "doc_1", "prompt_1")
	if err != nil {
		t.Fatalf("GetLatestForPrompt() error = %v", err)
	}
	if got.PromptRevID != "rev_v2" {
		t.Errorf("PromptRevID = %s, want rev_v2 (highest version)", got.PromptRevID)
	}

	_, err = repos.Result.GetLatestForPrompt(ctx, "org_1", "doc_1", "prompt_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResultRepository_DeleteByDocument(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	for _, revID := range []string{"rev_a", "rev_b"} {
		if err := repos.Result.Upsert(ctx, newTestResult("org_1", "doc_1", revID, "prompt_1", 1)); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if err := repos.Result.Upsert(ctx, newTestResult("org_1", "doc_2", "rev_a", "prompt_1", 1)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repos.Result.DeleteByDocument(ctx, "org_1", "doc_1"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}

	results, err := repos.Result.ListByDocument(ctx, "org_1", "doc_1")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}

	// Other document untouched.
	results, err = repos.Result.ListByDocument(ctx, "org_1", "doc_2")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}
}
