package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

func setupDocumentService(t *testing.T) (*DocumentService, *repository.Repositories, *MemoryBlobStore) {
	t.Helper()
	repos := setupTestRepos(t)
	blobs := NewMemoryBlobStore()
	tags := NewTagService(testLogger(), repos)
	return NewDocumentService(testLogger(), repos, blobs, tags), repos, blobs
}

func TestDocumentService_UploadRoundTrip(t *testing.T) {
	svc, repos, _ := setupDocumentService(t)
	ctx := context.Background()
	orgID := models.NewID()
	userID := models.NewID()

	pdf := []byte("%PDF-1.4\nhello")
	docs, err := svc.Upload(ctx, orgID, userID, []DocumentUpload{{
		Name:     "invoice.pdf",
		Content:  "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
		Metadata: map[string]string{"source": "test"},
	}})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("uploaded %d docs, want 1", len(docs))
	}
	doc := docs[0]
	if doc.State != models.DocStateUploaded {
		t.Errorf("State = %s, want uploaded", doc.State)
	}

	// The original bytes round-trip through the blob store.
	got, content, err := svc.GetContent(ctx, orgID, doc.ID)
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if !bytes.Equal(content, pdf) {
		t.Error("content did not round-trip")
	}
	if got.UserFileName != "invoice.pdf" {
		t.Errorf("UserFileName = %s", got.UserFileName)
	}

	// Upload enqueued exactly one OCR job for the document.
	msg, err := repos.Queue.Lease(ctx, models.QueueOCR, "w1", time.Minute)
	if err != nil || msg == nil {
		t.Fatalf("Lease() = %v, %v, want a message", msg, err)
	}
	var payload models.OCRJobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.DocumentID != doc.ID || payload.OrganizationID != orgID {
		t.Errorf("payload = %+v", payload)
	}
}

func TestDocumentService_UploadRejectsUnknownTag(t *testing.T) {
	svc, _, _ := setupDocumentService(t)

	_, err := svc.Upload(context.Background(), models.NewID(), models.NewID(), []DocumentUpload{{
		Name:    "a.pdf",
		Content: base64.StdEncoding.EncodeToString([]byte("x")),
		TagIDs:  []string{"nonexistent"},
	}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestDocumentService_DeleteCascades(t *testing.T) {
	svc, repos, blobs := setupDocumentService(t)
	ctx := context.Background()
	orgID := models.NewID()
	userID := models.NewID()

	docs, err := svc.Upload(ctx, orgID, userID, []DocumentUpload{{
		Name:    "a.pdf",
		Content: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
	}})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	doc := docs[0]

	// Simulate pipeline artifacts and results.
	_ = blobs.Put(ctx, OCRTextBlobName(doc.ID), []byte("text"), nil)
	_ = blobs.Put(ctx, PageImageBlobName(doc.ID, 1), []byte{1}, nil)
	err = repos.Result.Upsert(ctx, &models.LLMResult{
		ID:             models.NewID(),
		OrganizationID: orgID,
		DocumentID:     doc.ID,
		PromptRevID:    models.DefaultPromptRevID,
		PromptID:       models.DefaultPromptRevID,
		PromptVersion:  1,
		LLMResult:      []byte(`{}`),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("result Upsert() error = %v", err)
	}

	if err := svc.Delete(ctx, orgID, doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := svc.Get(ctx, orgID, doc.ID); !errIsNotFound(err) {
		t.Errorf("expected document gone, got %v", err)
	}
	if names, _ := blobs.ListByPrefix(ctx, doc.ID+"."); len(names) != 0 {
		t.Errorf("blobs remaining after delete: %v", names)
	}
	if results, _ := repos.Result.ListByDocument(ctx, orgID, doc.ID); len(results) != 0 {
		t.Errorf("results remaining after delete: %d", len(results))
	}
}

func TestDocumentService_OCRTextPages(t *testing.T) {
	svc, repos, blobs := setupDocumentService(t)
	ctx := context.Background()
	orgID := models.NewID()

	docs, err := svc.Upload(ctx, orgID, models.NewID(), []DocumentUpload{{
		Name:    "a.pdf",
		Content: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
	}})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	doc := docs[0]

	// Text retrieval is refused before OCR completion.
	if _, err := svc.OCRText(ctx, orgID, doc.ID, 0); err == nil {
		t.Error("expected error before OCR completion")
	}

	_ = blobs.Put(ctx, OCRTextBlobName(doc.ID), []byte("one\ftwo"), nil)
	_ = blobs.Put(ctx, OCRPageTextBlobName(doc.ID, 1), []byte("one"), nil)
	_ = blobs.Put(ctx, OCRPageTextBlobName(doc.ID, 2), []byte("two"), nil)
	if err := repos.Document.SetOCRMetadata(ctx, orgID, doc.ID, 2, time.Now()); err != nil {
		t.Fatalf("SetOCRMetadata() error = %v", err)
	}
	if err := repos.Document.SetState(ctx, orgID, doc.ID, models.DocStateOCRCompleted); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	all, err := svc.OCRText(ctx, orgID, doc.ID, 0)
	if err != nil {
		t.Fatalf("OCRText(all) error = %v", err)
	}
	p1, _ := svc.OCRText(ctx, orgID, doc.ID, 1)
	p2, _ := svc.OCRText(ctx, orgID, doc.ID, 2)
	if all != p1+"\f"+p2 {
		t.Errorf("whole text %q != pages joined %q", all, p1+"\f"+p2)
	}

	if _, err := svc.OCRText(ctx, orgID, doc.ID, 3); err == nil {
		t.Error("expected error for out-of-range page")
	}

	meta, err := svc.GetOCRMetadata(ctx, orgID, doc.ID)
	if err != nil {
		t.Fatalf("GetOCRMetadata() error = %v", err)
	}
	if meta.NPages != 2 {
		t.Errorf("NPages = %d, want 2", meta.NPages)
	}
}

func TestDecodeDataURL(t *testing.T) {
	data, ct, err := DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")))
	if err != nil {
		t.Fatalf("DecodeDataURL() error = %v", err)
	}
	if ct != "image/png" || string(data) != "png" {
		t.Errorf("got %q %q", ct, data)
	}

	data, ct, err = DecodeDataURL(base64.StdEncoding.EncodeToString([]byte("raw")))
	if err != nil {
		t.Fatalf("DecodeDataURL(plain) error = %v", err)
	}
	if ct != "" || string(data) != "raw" {
		t.Errorf("got %q %q", ct, data)
	}

	if _, _, err := DecodeDataURL("data:nope"); err == nil {
		t.Error("expected error for malformed data URL")
	}
}
