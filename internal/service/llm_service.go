package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/crypto"
	"github.com/docrouter-ai/docrouter-api/internal/llm"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// runPollInterval is how often the synchronous run path checks for a result.
const runPollInterval = 500 * time.Millisecond

// LLMService manages extraction runs, results and the admin chat surface.
type LLMService struct {
	logger    *slog.Logger
	repos     *repository.Repositories
	registry  *llm.Registry
	credits   *CreditService
	encryptor *crypto.Encryptor
}

// NewLLMService creates a new LLM service.
func NewLLMService(logger *slog.Logger, repos *repository.Repositories, registry *llm.Registry, credits *CreditService, encryptor *crypto.Encryptor) *LLMService {
	return &LLMService{
		logger:    logger,
		repos:     repos,
		registry:  registry,
		credits:   credits,
		encryptor: encryptor,
	}
}

// Run enqueues an extraction for (document, prompt revision) and waits,
// bounded by maxWait, for the result row to appear. A nil result with a nil
// error means the job is still queued (the API returns 202-style).
func (s *LLMService) Run(ctx context.Context, orgID, documentID, promptRevID string, force bool, maxWait time.Duration) (*models.LLMResult, error) {
	doc, err := s.repos.Document.GetByID(ctx, orgID, documentID)
	if err != nil {
		return nil, err
	}
	if promptRevID == "" {
		promptRevID = models.DefaultPromptRevID
	}
	if promptRevID != models.DefaultPromptRevID {
		if _, err := s.repos.Prompt.GetRevision(ctx, orgID, promptRevID); err != nil {
			return nil, err
		}
	}

	// Advisory pre-check so the API can surface 402 before queueing.
	if err := s.credits.CheckSPU(ctx, orgID, 1); err != nil {
		return nil, err
	}

	if !force {
		if existing, err := s.repos.Result.Get(ctx, orgID, documentID, promptRevID); err == nil {
			return existing, nil
		} else if !errIsNotFound(err) {
			return nil, err
		}
	}

	payload, _ := json.Marshal(models.LLMJobPayload{
		DocumentID:     doc.ID,
		OrganizationID: orgID,
		PromptRevID:    promptRevID,
		Force:          force,
	})
	if _, err := s.repos.Queue.Enqueue(ctx, models.QueueLLM, payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue LLM job: %w", err)
	}

	if maxWait <= 0 {
		return nil, nil
	}
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-ticker.C:
			result, err := s.repos.Result.Get(ctx, orgID, documentID, promptRevID)
			if err == nil {
				return result, nil
			}
			if !errIsNotFound(err) {
				return nil, err
			}
		}
	}
}

// GetResult returns the result for (document, prompt revision). With
// fallback, a missing exact revision falls back to the most recent result of
// the same logical prompt.
func (s *LLMService) GetResult(ctx context.Context, orgID, documentID, promptRevID string, fallback bool) (*models.LLMResult, error) {
	result, err := s.repos.Result.Get(ctx, orgID, documentID, promptRevID)
	if err == nil || !errIsNotFound(err) || !fallback {
		return result, err
	}

	// Resolve the logical prompt id behind the revision for the fallback scan.
	promptID := promptRevID
	if promptRevID != models.DefaultPromptRevID {
		rev, rerr := s.repos.Prompt.GetRevision(ctx, orgID, promptRevID)
		if rerr != nil {
			return nil, rerr
		}
		promptID = rev.PromptID
	}
	return s.repos.Result.GetLatestForPrompt(ctx, orgID, documentID, promptID)
}

// UpdateResult records a user edit. is_edited is set when the updated value
// differs from the original extraction.
func (s *LLMService) UpdateResult(ctx context.Context, orgID, documentID, promptRevID string, updated json.RawMessage, isVerified bool) (*models.LLMResult, error) {
	result, err := s.repos.Result.Get(ctx, orgID, documentID, promptRevID)
	if err != nil {
		return nil, err
	}
	isEdited := !jsonEqual(updated, result.LLMResult)
	if err := s.repos.Result.UpdateUserEdit(ctx, orgID, documentID, promptRevID, updated, isEdited, isVerified); err != nil {
		return nil, err
	}
	return s.repos.Result.Get(ctx, orgID, documentID, promptRevID)
}

// DeleteResult removes the result for one (document, prompt revision).
func (s *LLMService) DeleteResult(ctx context.Context, orgID, documentID, promptRevID string) error {
	return s.repos.Result.Delete(ctx, orgID, documentID, promptRevID)
}

// ResultBundle is the download payload: every result for a document with
// prompt metadata inlined.
type ResultBundle struct {
	DocumentID string              `json:"document_id"`
	Results    []ResultBundleEntry `json:"results"`
}

// ResultBundleEntry is one result with its prompt context.
type ResultBundleEntry struct {
	PromptRevID   string          `json:"prompt_revid"`
	PromptID      string          `json:"prompt_id"`
	PromptVersion int             `json:"prompt_version"`
	PromptName    string          `json:"prompt_name,omitempty"`
	LLMResult     json.RawMessage `json:"llm_result"`
	UpdatedResult json.RawMessage `json:"updated_llm_result"`
	IsEdited      bool            `json:"is_edited"`
	IsVerified    bool            `json:"is_verified"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Download assembles the result bundle for a document.
func (s *LLMService) Download(ctx context.Context, orgID, documentID string) (*ResultBundle, error) {
	if _, err := s.repos.Document.GetByID(ctx, orgID, documentID); err != nil {
		return nil, err
	}
	results, err := s.repos.Result.ListByDocument(ctx, orgID, documentID)
	if err != nil {
		return nil, err
	}

	bundle := &ResultBundle{DocumentID: documentID, Results: []ResultBundleEntry{}}
	for _, r := range results {
		entry := ResultBundleEntry{
			PromptRevID:   r.PromptRevID,
			PromptID:      r.PromptID,
			PromptVersion: r.PromptVersion,
			LLMResult:     r.LLMResult,
			UpdatedResult: r.UpdatedLLMResult,
			IsEdited:      r.IsEdited,
			IsVerified:    r.IsVerified,
			UpdatedAt:     r.UpdatedAt,
		}
		if r.PromptRevID == models.DefaultPromptRevID {
			entry.PromptName = "Default Prompt"
		} else if rev, err := s.repos.Prompt.GetRevision(ctx, orgID, r.PromptRevID); err == nil {
			entry.PromptName = rev.Name
		}
		bundle.Results = append(bundle.Results, entry)
	}
	return bundle, nil
}

// ChatRequest is an ad-hoc chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []llm.Message
	Temperature float64
	MaxTokens   int
}

// Chat forwards a chat request to the model's provider.
func (s *LLMService) Chat(ctx context.Context, req ChatRequest) (*llm.Result, error) {
	provider, _, err := s.registry.Resolve(ctx, req.Model)
	if err != nil {
		return nil, err
	}
	return provider.Generate(ctx, llm.Request{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// ChatStream forwards a chat request and streams deltas through fn.
func (s *LLMService) ChatStream(ctx context.Context, req ChatRequest, fn llm.StreamFunc) (*llm.Result, error) {
	provider, _, err := s.registry.Resolve(ctx, req.Model)
	if err != nil {
		return nil, err
	}
	return provider.Stream(ctx, llm.Request{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, fn)
}

// Models lists the models currently usable.
func (s *LLMService) Models(ctx context.Context) ([]llm.ModelSpec, error) {
	return s.registry.Models(ctx)
}

// ListProviders returns the configured providers without key material.
func (s *LLMService) ListProviders(ctx context.Context) ([]*models.LLMProvider, error) {
	return s.repos.LLMProvider.List(ctx)
}

// UpdateProvider upserts a provider row. A non-empty apiKey is encrypted at
// rest; an empty one leaves the stored key untouched.
func (s *LLMService) UpdateProvider(ctx context.Context, name string, enabled bool, apiKey, baseURL string, enabledModels []string) (*models.LLMProvider, error) {
	if name == "" {
		return nil, validationErrorf("provider name must not be empty")
	}

	row, err := s.repos.LLMProvider.Get(ctx, name)
	if err != nil && !errIsNotFound(err) {
		return nil, err
	}
	if row == nil {
		row = &models.LLMProvider{Name: name}
	}

	row.Enabled = enabled
	row.BaseURL = baseURL
	row.EnabledModels = enabledModels
	row.UpdatedAt = time.Now().UTC()
	if apiKey != "" {
		encrypted, err := s.encryptor.Encrypt(apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt provider key: %w", err)
		}
		row.APIKeyEncrypted = encrypted
	}

	if err := s.repos.LLMProvider.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// ValidateModel rejects models outside the enabled union.
func (s *LLMService) ValidateModel(ctx context.Context, model string) error {
	_, _, err := s.registry.Resolve(ctx, model)
	if errors.Is(err, llm.ErrModelNotFound) || errors.Is(err, llm.ErrProviderDisabled) || errors.Is(err, llm.ErrNoAPIKey) {
		return validationErrorf("model %s is not available: %v", model, err)
	}
	return err
}
