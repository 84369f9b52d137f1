package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/llm"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

const (
	// ocrPendingBackoff is the requeue delay while the OCR stage is still
	// running for the document.
	ocrPendingBackoff = 2 * time.Second

	// generateAttempts is how many times a single job invocation retries the
	// provider before nacking the message.
	generateAttempts = 3

	// maxVisionPages bounds how many page images are attached to a request.
	maxVisionPages = 20

	// extractionTemperature keeps structured extraction near-deterministic.
	extractionTemperature = 0.1
)

// ModelResolver maps a model id to a usable provider. *llm.Registry is the
// production implementation.
type ModelResolver interface {
	Resolve(ctx context.Context, model string) (llm.Provider, llm.ModelSpec, error)
}

// LLMWorker processes messages on the llm queue: it resolves the prompt
// revision, builds a schema-bound extraction request from the OCR artifacts
// and stores the result. A job for the literal default revision additionally
// fans out one job per prompt matching the document's tags.
type LLMWorker struct {
	logger       *slog.Logger
	repos        *repository.Repositories
	blobs        service.BlobStore
	registry     ModelResolver
	credits      *service.CreditService
	defaultModel string
	maxAttempts  int
}

// NewLLMWorker creates a new LLM job handler.
func NewLLMWorker(logger *slog.Logger, repos *repository.Repositories, blobs service.BlobStore, registry ModelResolver, credits *service.CreditService, defaultModel string, maxAttempts int) *LLMWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &LLMWorker{
		logger:       logger.With("component", "llm-worker"),
		repos:        repos,
		blobs:        blobs,
		registry:     registry,
		credits:      credits,
		defaultModel: defaultModel,
		maxAttempts:  maxAttempts,
	}
}

// Process handles one leased llm message end to end, including ack/nack.
func (w *LLMWorker) Process(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.LLMJobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		w.logger.Error("dropping malformed llm payload", "msg_id", msg.ID, "error", err)
		return w.repos.Queue.Ack(ctx, msg.ID)
	}
	orgID, docID := payload.OrganizationID, payload.DocumentID
	logger := w.logger.With("document_id", docID, "prompt_revid", payload.PromptRevID)

	doc, err := w.repos.Document.GetByID(ctx, orgID, docID)
	if errors.Is(err, repository.ErrNotFound) {
		return w.repos.Queue.Ack(ctx, msg.ID)
	}
	if err != nil {
		return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
	}

	switch {
	case doc.State == models.DocStateOCRFailed:
		// No OCR artifacts will ever exist; drop the job.
		return w.repos.Queue.Ack(ctx, msg.ID)
	case !doc.State.OCRComplete():
		return w.repos.Queue.Nack(ctx, msg.ID, ocrPendingBackoff)
	}

	if payload.PromptRevID == models.DefaultPromptRevID {
		if err := w.fanOut(ctx, doc, payload); err != nil {
			logger.Error("failed to fan out tagged prompts", "error", err)
			return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
		}
	}

	rev, err := w.resolveRevision(ctx, orgID, payload.PromptRevID)
	if errors.Is(err, repository.ErrNotFound) {
		// Prompt revision deleted while queued.
		return w.repos.Queue.Ack(ctx, msg.ID)
	}
	if err != nil {
		return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
	}

	if !payload.Force {
		if _, err := w.repos.Result.Get(ctx, orgID, docID, rev.RevID); err == nil {
			return w.repos.Queue.Ack(ctx, msg.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
		}
	}

	if err := w.credits.CheckSPU(ctx, orgID, 1); err != nil {
		if service.IsCreditError(err) {
			logger.Warn("extraction deferred, insufficient credits")
			_ = w.repos.Document.SetMetadataKey(ctx, orgID, docID, "error", "insufficient credits for extraction")
			return w.repos.Queue.Nack(ctx, msg.ID, creditBackoff)
		}
		return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
	}

	_ = w.repos.Document.SetState(ctx, orgID, docID, models.DocStateLLMProcessing)

	req, spec, provider, err := w.buildRequest(ctx, doc, rev)
	if err != nil {
		return w.fail(ctx, msg, orgID, docID, err)
	}

	result, err := w.generate(ctx, provider, req)
	if err != nil {
		if llm.IsRetryable(err) && msg.Attempts+1 < w.maxAttempts {
			logger.Warn("transient llm failure, requeueing", "attempts", msg.Attempts, "error", err)
			return w.repos.Queue.Nack(ctx, msg.ID, transientBackoff(msg.Attempts))
		}
		return w.fail(ctx, msg, orgID, docID, err)
	}

	extraction := extractJSON(result.Content)
	now := time.Now().UTC()
	err = w.repos.Result.Upsert(ctx, &models.LLMResult{
		ID:               models.NewID(),
		OrganizationID:   orgID,
		DocumentID:       docID,
		PromptRevID:      rev.RevID,
		PromptID:         rev.PromptID,
		PromptVersion:    rev.PromptVersion,
		LLMResult:        extraction,
		UpdatedLLMResult: extraction,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return w.fail(ctx, msg, orgID, docID, fmt.Errorf("failed to store result: %w", err))
	}

	usd := spec.Cost(result.InputTokens, result.OutputTokens)
	if err := w.credits.RecordSPU(ctx, orgID, service.LLMCost(usd), models.OpLLM, "llm-worker"); err != nil {
		logger.Error("failed to record llm usage", "error", err)
	}

	_ = w.repos.Document.SetState(ctx, orgID, docID, models.DocStateLLMCompleted)

	logger.Info("extraction completed",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens)
	return w.repos.Queue.Ack(ctx, msg.ID)
}

// fanOut enqueues one concrete job per latest prompt revision whose tags
// intersect the document's. The default job itself continues to run the
// implicit default prompt.
func (w *LLMWorker) fanOut(ctx context.Context, doc *models.Document, payload models.LLMJobPayload) error {
	if len(doc.TagIDs) == 0 {
		return nil
	}
	revs, err := w.repos.Prompt.ListLatestByTags(ctx, doc.OrganizationID, doc.TagIDs)
	if err != nil {
		return err
	}
	for _, rev := range revs {
		sub, _ := json.Marshal(models.LLMJobPayload{
			DocumentID:     doc.ID,
			OrganizationID: doc.OrganizationID,
			PromptRevID:    rev.RevID,
			Force:          payload.Force,
		})
		if _, err := w.repos.Queue.Enqueue(ctx, models.QueueLLM, sub); err != nil {
			return err
		}
	}
	return nil
}

func (w *LLMWorker) resolveRevision(ctx context.Context, orgID, revID string) (*models.PromptRevision, error) {
	if revID == models.DefaultPromptRevID {
		return models.DefaultPromptRevision(w.defaultModel), nil
	}
	return w.repos.Prompt.GetRevision(ctx, orgID, revID)
}

// buildRequest assembles the extraction request: prompt content as the
// system message, OCR text as the user message, page images attached when
// the model supports vision, and the pinned schema as the response format.
func (w *LLMWorker) buildRequest(ctx context.Context, doc *models.Document, rev *models.PromptRevision) (llm.Request, llm.ModelSpec, llm.Provider, error) {
	model := rev.Model
	if model == "" {
		model = w.defaultModel
	}
	provider, spec, err := w.registry.Resolve(ctx, model)
	if err != nil {
		return llm.Request{}, llm.ModelSpec{}, nil, fmt.Errorf("failed to resolve model %s: %w", model, err)
	}

	text, _, err := w.blobs.Get(ctx, service.OCRTextBlobName(doc.ID))
	if err != nil {
		return llm.Request{}, llm.ModelSpec{}, nil, fmt.Errorf("failed to read ocr text: %w", err)
	}

	req := llm.Request{
		Model:  model,
		System: rev.Content,
		Messages: []llm.Message{
			{Role: "user", Content: string(text)},
		},
		Temperature: extractionTemperature,
		MaxTokens:   spec.MaxOutputTokens,
	}

	if rev.SchemaID != "" {
		srev, err := w.repos.Schema.GetRevisionByVersion(ctx, doc.OrganizationID, rev.SchemaID, rev.SchemaVersion)
		if err != nil {
			return llm.Request{}, llm.ModelSpec{}, nil, fmt.Errorf("failed to load schema %s v%d: %w", rev.SchemaID, rev.SchemaVersion, err)
		}
		req.ResponseFormat = srev.ResponseFormat
	}

	if spec.SupportsVision {
		for page := 1; page <= doc.NPages && page <= maxVisionPages; page++ {
			img, _, err := w.blobs.Get(ctx, service.PageImageBlobName(doc.ID, page))
			if err != nil {
				// Pre-text documents have no page images.
				break
			}
			req.Images = append(req.Images, llm.Image{MediaType: "image/png", Data: img})
		}
	}
	return req, spec, provider, nil
}

// generate calls the provider with bounded in-process retries and jittered
// backoff before giving the message back to the queue.
func (w *LLMWorker) generate(ctx context.Context, provider llm.Provider, req llm.Request) (*llm.Result, error) {
	var lastErr error
	for attempt := 0; attempt < generateAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			delay += time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err := provider.Generate(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (w *LLMWorker) fail(ctx context.Context, msg *models.QueueMessage, orgID, docID string, cause error) error {
	w.logger.Error("extraction failed", "document_id", docID, "error", cause)
	_ = w.repos.Document.SetMetadataKey(ctx, orgID, docID, "error", cause.Error())
	_ = w.repos.Document.SetState(ctx, orgID, docID, models.DocStateLLMFailed)
	return w.repos.Queue.Ack(ctx, msg.ID)
}

// extractJSON pulls the JSON object out of a completion, tolerating code
// fences and prose around it. Unparseable output is wrapped so the raw text
// is never lost.
func extractJSON(content string) json.RawMessage {
	trimmed := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	trimmed = strings.TrimSpace(trimmed)

	if start := strings.IndexAny(trimmed, "{["); start >= 0 {
		candidate := trimmed[start:]
		if end := strings.LastIndexAny(candidate, "}]"); end >= 0 {
			candidate = candidate[:end+1]
		}
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate)
		}
	}

	wrapped, _ := json.Marshal(map[string]string{"raw": content})
	return wrapped
}
