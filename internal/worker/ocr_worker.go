package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/ocr"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

const (
	// creditBackoff is the requeue delay when an organization is out of
	// credits. Long enough that a stuck org does not hot-loop the queue.
	creditBackoff = time.Minute

	// maxTransientBackoff caps the exponential nack delay.
	maxTransientBackoff = 16 * time.Second
)

// OCRWorker processes messages on the ocr queue: it runs the uploaded blob
// through the OCR provider, persists the page artifacts, charges SPUs and
// chains the default LLM extraction.
type OCRWorker struct {
	logger      *slog.Logger
	repos       *repository.Repositories
	blobs       service.BlobStore
	provider    ocr.Provider
	credits     *service.CreditService
	maxAttempts int
}

// NewOCRWorker creates a new OCR job handler.
func NewOCRWorker(logger *slog.Logger, repos *repository.Repositories, blobs service.BlobStore, provider ocr.Provider, credits *service.CreditService, maxAttempts int) *OCRWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OCRWorker{
		logger:      logger.With("component", "ocr-worker"),
		repos:       repos,
		blobs:       blobs,
		provider:    provider,
		credits:     credits,
		maxAttempts: maxAttempts,
	}
}

// Process handles one leased ocr message end to end, including ack/nack.
func (w *OCRWorker) Process(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.OCRJobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		// Poison message: nothing will ever be able to parse it.
		w.logger.Error("dropping malformed ocr payload", "msg_id", msg.ID, "error", err)
		return w.repos.Queue.Ack(ctx, msg.ID)
	}
	orgID, docID := payload.OrganizationID, payload.DocumentID
	logger := w.logger.With("document_id", docID, "organization_id", orgID)

	doc, err := w.repos.Document.GetByID(ctx, orgID, docID)
	if errors.Is(err, repository.ErrNotFound) {
		// Deleted while queued.
		return w.repos.Queue.Ack(ctx, msg.ID)
	}
	if err != nil {
		return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
	}

	if doc.State.OCRComplete() && !payload.Force {
		return w.repos.Queue.Ack(ctx, msg.ID)
	}

	// Advisory credit check with the one-page minimum. The real cost is
	// charged after the page count is known.
	if err := w.credits.CheckSPU(ctx, orgID, service.OCRCost(1)); err != nil {
		if service.IsCreditError(err) {
			logger.Warn("ocr deferred, insufficient credits")
			_ = w.repos.Document.SetMetadataKey(ctx, orgID, docID, "error", "insufficient credits for OCR")
			return w.repos.Queue.Nack(ctx, msg.ID, creditBackoff)
		}
		return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
	}

	if err := w.repos.Document.SetState(ctx, orgID, docID, models.DocStateOCRProcessing); err != nil {
		return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
	}

	content, _, err := w.blobs.Get(ctx, doc.BlobName)
	if err != nil {
		return w.fail(ctx, msg, orgID, docID, fmt.Errorf("failed to read original blob: %w", err))
	}

	result, err := w.runOCR(ctx, doc, content)
	if err != nil {
		if errors.Is(err, ocr.ErrTransient) && msg.Attempts+1 < w.maxAttempts {
			logger.Warn("transient ocr failure, requeueing", "attempts", msg.Attempts, "error", err)
			return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
		}
		return w.fail(ctx, msg, orgID, docID, err)
	}

	if err := w.persistArtifacts(ctx, docID, result); err != nil {
		return w.fail(ctx, msg, orgID, docID, err)
	}
	if err := w.repos.Document.SetOCRMetadata(ctx, orgID, docID, result.NPages, time.Now().UTC()); err != nil {
		return w.fail(ctx, msg, orgID, docID, err)
	}
	if err := w.repos.Document.SetState(ctx, orgID, docID, models.DocStateOCRCompleted); err != nil {
		return w.fail(ctx, msg, orgID, docID, err)
	}

	if err := w.credits.RecordSPU(ctx, orgID, service.OCRCost(result.NPages), models.OpOCR, "ocr-worker"); err != nil {
		logger.Error("failed to record ocr usage", "error", err)
	}

	// Chain the default extraction, which fans out to tagged prompts.
	llmPayload, _ := json.Marshal(models.LLMJobPayload{
		DocumentID:     docID,
		OrganizationID: orgID,
		PromptRevID:    models.DefaultPromptRevID,
		Force:          payload.Force,
	})
	if _, err := w.repos.Queue.Enqueue(ctx, models.QueueLLM, llmPayload); err != nil {
		logger.Error("failed to enqueue llm job", "error", err)
		return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
	}

	logger.Info("ocr completed", "n_pages", result.NPages)
	return w.repos.Queue.Ack(ctx, msg.ID)
}

// runOCR sends the blob to the provider, short-circuiting for plain-text
// formats that need no OCR pass.
func (w *OCRWorker) runOCR(ctx context.Context, doc *models.Document, content []byte) (*ocr.Result, error) {
	if ocr.IsPreText(doc.UserFileName) {
		return &ocr.Result{NPages: 1, PageTexts: []string{string(content)}}, nil
	}
	return w.provider.Process(ctx, doc.UserFileName, content)
}

func (w *OCRWorker) persistArtifacts(ctx context.Context, docID string, result *ocr.Result) error {
	if len(result.Blocks) > 0 {
		if err := w.blobs.Put(ctx, service.OCRBlocksBlobName(docID), result.Blocks, nil); err != nil {
			return fmt.Errorf("failed to store ocr blocks: %w", err)
		}
	}
	if err := w.blobs.Put(ctx, service.OCRTextBlobName(docID), []byte(result.Text()), nil); err != nil {
		return fmt.Errorf("failed to store ocr text: %w", err)
	}
	for i, text := range result.PageTexts {
		if err := w.blobs.Put(ctx, service.OCRPageTextBlobName(docID, i+1), []byte(text), nil); err != nil {
			return fmt.Errorf("failed to store page %d text: %w", i+1, err)
		}
	}
	for i, img := range result.PageImages {
		if len(img) == 0 {
			continue
		}
		if err := w.blobs.Put(ctx, service.PageImageBlobName(docID, i+1), img, nil); err != nil {
			return fmt.Errorf("failed to store page %d image: %w", i+1, err)
		}
	}
	return nil
}

// fail marks the document terminally failed and acks the message.
func (w *OCRWorker) fail(ctx context.Context, msg *models.QueueMessage, orgID, docID string, cause error) error {
	w.logger.Error("ocr failed", "document_id", docID, "error", cause)
	_ = w.repos.Document.SetMetadataKey(ctx, orgID, docID, "error", cause.Error())
	_ = w.repos.Document.SetState(ctx, orgID, docID, models.DocStateOCRFailed)
	return w.repos.Queue.Ack(ctx, msg.ID)
}

// transientBackoff returns the exponential requeue delay for a retry:
// 1s, 2s, 4s, 8s, then capped.
func transientBackoff(attempts int) time.Duration {
	d := time.Second << attempts
	if d > maxTransientBackoff || d <= 0 {
		return maxTransientBackoff
	}
	return d
}
