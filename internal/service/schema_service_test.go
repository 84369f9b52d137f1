package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

const invoiceSchema = `{
	"type": "object",
	"properties": {
		"invoice_number": {"type": "string"},
		"total_amount": {"type": "number"},
		"vendor": {"type": "object", "properties": {"name": {"type": "string"}}}
	},
	"required": ["invoice_number", "total_amount"],
	"additionalProperties": false
}`

func TestSchemaService_Versioning(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewSchemaService(testLogger(), repos)
	ctx := context.Background()
	orgID := models.NewID()
	userID := models.NewID()

	rev1, err := svc.Create(ctx, orgID, userID, "Invoice", json.RawMessage(invoiceSchema))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rev1.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", rev1.SchemaVersion)
	}

	// A payload change allocates version 2 with a new revid.
	changed := json.RawMessage(`{"type": "object", "properties": {"invoice_number": {"type": "string"}}}`)
	rev2, err := svc.Update(ctx, orgID, userID, rev1.SchemaID, "", changed)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if rev2.SchemaVersion != 2 {
		t.Errorf("SchemaVersion = %d, want 2", rev2.SchemaVersion)
	}
	if rev2.RevID == rev1.RevID {
		t.Error("payload change must allocate a new revision id")
	}

	// A name-only change keeps revid and version.
	rev3, err := svc.Update(ctx, orgID, userID, rev1.SchemaID, "Invoice v2", changed)
	if err != nil {
		t.Fatalf("Update(rename) error = %v", err)
	}
	if rev3.RevID != rev2.RevID || rev3.SchemaVersion != 2 {
		t.Errorf("rename changed revision: revid %s version %d", rev3.RevID, rev3.SchemaVersion)
	}
	if rev3.Name != "Invoice v2" {
		t.Errorf("Name = %s, want Invoice v2", rev3.Name)
	}

	// Round trip: the stored response_format is structurally identical.
	got, err := svc.Get(ctx, orgID, rev1.RevID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !jsonEqual(got.ResponseFormat, json.RawMessage(invoiceSchema)) {
		t.Error("response_format did not round-trip")
	}
}

func TestSchemaService_CreateRejectsInvalidSchema(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewSchemaService(testLogger(), repos)

	_, err := svc.Create(context.Background(), models.NewID(), models.NewID(),
		"Bad", json.RawMessage(`{"type": "not-a-type"}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestSchemaService_DeleteGuard(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewSchemaService(testLogger(), repos)
	tags := NewTagService(testLogger(), repos)
	prompts := NewPromptService(testLogger(), repos, tags)
	ctx := context.Background()
	orgID := models.NewID()
	userID := models.NewID()

	rev, err := svc.Create(ctx, orgID, userID, "Invoice", json.RawMessage(invoiceSchema))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err = prompts.Create(ctx, orgID, userID, PromptInput{
		Name:     "Invoice Prompt",
		Content:  "Extract the invoice fields.",
		SchemaID: rev.SchemaID,
	})
	if err != nil {
		t.Fatalf("prompt Create() error = %v", err)
	}

	err = svc.Delete(ctx, orgID, rev.SchemaID)
	var re *ReferencedError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReferencedError, got %v", err)
	}

	// After removing the prompt, delete succeeds and revisions are gone.
	promptRev, _, err := prompts.List(ctx, orgID, "", nil, "", 0, 10)
	if err != nil || len(promptRev) != 1 {
		t.Fatalf("prompt List() = %v, %v", promptRev, err)
	}
	if err := prompts.Delete(ctx, orgID, promptRev[0].PromptID); err != nil {
		t.Fatalf("prompt Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, orgID, rev.SchemaID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, orgID, rev.RevID); !errIsNotFound(err) {
		t.Errorf("expected revision gone after delete, got %v", err)
	}
}

func TestSchemaService_ValidateDataStrict(t *testing.T) {
	repos := setupTestRepos(t)
	svc := NewSchemaService(testLogger(), repos)
	ctx := context.Background()
	orgID := models.NewID()

	rev, err := svc.Create(ctx, orgID, models.NewID(), "Invoice", json.RawMessage(invoiceSchema))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	violations, err := svc.ValidateData(ctx, orgID, rev.RevID,
		json.RawMessage(`{"invoice_number": "INV-1", "total_amount": 42.5}`))
	if err != nil {
		t.Fatalf("ValidateData() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("violations = %v, want none", violations)
	}

	// additionalProperties:false rejects extra fields.
	violations, err = svc.ValidateData(ctx, orgID, rev.RevID,
		json.RawMessage(`{"invoice_number": "INV-1", "total_amount": 1, "extra": true}`))
	if err != nil {
		t.Fatalf("ValidateData() error = %v", err)
	}
	if len(violations) == 0 {
		t.Error("expected violation for additional property")
	}
}
