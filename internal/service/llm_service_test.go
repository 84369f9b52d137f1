package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/crypto"
	"github.com/docrouter-ai/docrouter-api/internal/llm"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

func setupLLMService(t *testing.T) (*LLMService, *repository.Repositories, *crypto.Encryptor) {
	t.Helper()
	repos := setupTestRepos(t)
	encryptor, err := crypto.NewEncryptor(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	registry := llm.NewRegistry(testLogger(), repos.LLMProvider, encryptor,
		map[string]string{"anthropic": "sk-test"}, nil)
	credits := NewCreditService(testLogger(), repos.Payments)
	return NewLLMService(testLogger(), repos, registry, credits, encryptor), repos, encryptor
}

func seedResult(t *testing.T, repos *repository.Repositories, orgID, docID, revID, promptID string, version int) {
	t.Helper()
	err := repos.Result.Upsert(context.Background(), &models.LLMResult{
		ID:             models.NewID(),
		OrganizationID: orgID,
		DocumentID:     docID,
		PromptRevID:    revID,
		PromptID:       promptID,
		PromptVersion:  version,
		LLMResult:      []byte(`{"total": 10}`),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("result Upsert() error = %v", err)
	}
}

func TestLLMService_GetResultFallback(t *testing.T) {
	svc, repos, _ := setupLLMService(t)
	ctx := context.Background()
	orgID := models.NewID()
	userID := models.NewID()
	docID := models.NewID()

	tags := NewTagService(testLogger(), repos)
	prompts := NewPromptService(testLogger(), repos, tags)
	r1, err := prompts.Create(ctx, orgID, userID, PromptInput{Name: "P", Content: "A"})
	if err != nil {
		t.Fatalf("prompt Create() error = %v", err)
	}
	r2, err := prompts.Update(ctx, orgID, userID, r1.PromptID, PromptInput{Name: "P", Content: "B"})
	if err != nil {
		t.Fatalf("prompt Update() error = %v", err)
	}

	seedResult(t, repos, orgID, docID, r1.RevID, r1.PromptID, r1.PromptVersion)

	// The exact revision has no result yet.
	if _, err := svc.GetResult(ctx, orgID, docID, r2.RevID, false); !errIsNotFound(err) {
		t.Fatalf("GetResult(exact) = %v, want not found", err)
	}

	// With fallback, the older revision's result of the same prompt is used.
	result, err := svc.GetResult(ctx, orgID, docID, r2.RevID, true)
	if err != nil {
		t.Fatalf("GetResult(fallback) error = %v", err)
	}
	if result.PromptRevID != r1.RevID {
		t.Errorf("fallback returned revision %s, want %s", result.PromptRevID, r1.RevID)
	}
}

func TestLLMService_UpdateResultEditTracking(t *testing.T) {
	svc, repos, _ := setupLLMService(t)
	ctx := context.Background()
	orgID := models.NewID()
	docID := models.NewID()

	seedResult(t, repos, orgID, docID, models.DefaultPromptRevID, models.DefaultPromptRevID, 1)

	// A structurally identical payload is not an edit.
	result, err := svc.UpdateResult(ctx, orgID, docID, models.DefaultPromptRevID,
		json.RawMessage(`{"total":10}`), true)
	if err != nil {
		t.Fatalf("UpdateResult() error = %v", err)
	}
	if result.IsEdited {
		t.Error("identical payload marked as edited")
	}
	if !result.IsVerified {
		t.Error("IsVerified not set")
	}

	// A changed value is.
	result, err = svc.UpdateResult(ctx, orgID, docID, models.DefaultPromptRevID,
		json.RawMessage(`{"total": 12}`), false)
	if err != nil {
		t.Fatalf("UpdateResult(changed) error = %v", err)
	}
	if !result.IsEdited {
		t.Error("changed payload not marked as edited")
	}
	if !jsonEqual(result.UpdatedLLMResult, json.RawMessage(`{"total": 12}`)) {
		t.Errorf("UpdatedLLMResult = %s", result.UpdatedLLMResult)
	}
	// The original extraction is preserved.
	if !jsonEqual(result.LLMResult, json.RawMessage(`{"total": 10}`)) {
		t.Errorf("LLMResult = %s", result.LLMResult)
	}
}

func TestLLMService_RunValidations(t *testing.T) {
	svc, repos, _ := setupLLMService(t)
	ctx := context.Background()
	orgID := models.NewID()

	// Unknown document.
	if _, err := svc.Run(ctx, orgID, models.NewID(), "", false, 0); !errIsNotFound(err) {
		t.Errorf("Run(unknown doc) = %v, want not found", err)
	}

	blobs := NewMemoryBlobStore()
	tags := NewTagService(testLogger(), repos)
	docs := NewDocumentService(testLogger(), repos, blobs, tags)
	out, err := docs.Upload(ctx, orgID, models.NewID(), []DocumentUpload{{
		Name: "a.pdf", Content: "data:application/pdf;base64,JVBERi0xLjQK",
	}})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	doc := out[0]

	// Unknown prompt revision.
	if _, err := svc.Run(ctx, orgID, doc.ID, "missing-rev", false, 0); !errIsNotFound(err) {
		t.Errorf("Run(unknown rev) = %v, want not found", err)
	}

	// No credits yet: the advisory check rejects before queueing.
	if _, err := svc.Run(ctx, orgID, doc.ID, "", false, 0); !IsCreditError(err) {
		t.Errorf("Run(no credits) = %v, want credit error", err)
	}

	grantCredits(t, repos, orgID, 10)

	// Zero wait: nil result with nil error means the job was queued.
	result, err := svc.Run(ctx, orgID, doc.ID, "", false, 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != nil {
		t.Errorf("Run() = %+v, want nil (queued)", result)
	}
	msg, err := repos.Queue.Lease(ctx, models.QueueLLM, "w1", time.Minute)
	if err != nil || msg == nil {
		t.Fatalf("Lease() = %v, %v, want a queued LLM job", msg, err)
	}

	// Without force, an existing result is returned instead of re-queueing.
	seedResult(t, repos, orgID, doc.ID, models.DefaultPromptRevID, models.DefaultPromptRevID, 1)
	result, err = svc.Run(ctx, orgID, doc.ID, "", false, 0)
	if err != nil || result == nil {
		t.Fatalf("Run(existing) = %v, %v, want the stored result", result, err)
	}
}

func TestLLMService_UpdateProviderEncryptsKey(t *testing.T) {
	svc, repos, encryptor := setupLLMService(t)
	ctx := context.Background()

	row, err := svc.UpdateProvider(ctx, "openai", true, "sk-secret", "", nil)
	if err != nil {
		t.Fatalf("UpdateProvider() error = %v", err)
	}
	if row.APIKeyEncrypted == "sk-secret" {
		t.Error("api key stored in clear")
	}
	decrypted, err := encryptor.Decrypt(row.APIKeyEncrypted)
	if err != nil || decrypted != "sk-secret" {
		t.Errorf("Decrypt() = %q, %v", decrypted, err)
	}

	// An empty key on update leaves the stored one untouched.
	row, err = svc.UpdateProvider(ctx, "openai", false, "", "https://proxy.local/v1", nil)
	if err != nil {
		t.Fatalf("UpdateProvider(update) error = %v", err)
	}
	if row.Enabled || row.BaseURL != "https://proxy.local/v1" {
		t.Errorf("row = %+v", row)
	}
	decrypted, err = encryptor.Decrypt(row.APIKeyEncrypted)
	if err != nil || decrypted != "sk-secret" {
		t.Errorf("stored key changed: %q, %v", decrypted, err)
	}

	stored, err := repos.LLMProvider.Get(ctx, "openai")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.BaseURL != "https://proxy.local/v1" {
		t.Errorf("persisted BaseURL = %s", stored.BaseURL)
	}
}
