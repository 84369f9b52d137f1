package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// maxRunWait bounds how long the synchronous run endpoint blocks.
const maxRunWait = 30 * time.Second

// RunLLMInput is the body of POST /orgs/{org}/llm/run/{doc}.
type RunLLMInput struct {
	OrgPath
	Doc         string `path:"doc"`
	PromptRevID string `query:"prompt_revid" doc:"Prompt revision to run; defaults to the implicit default prompt"`
	Force       bool   `query:"force" doc:"Re-run even when a result already exists"`
	Wait        int    `query:"wait" minimum:"0" maximum:"30" doc:"Seconds to wait for completion; 0 returns immediately"`
}

// RunLLMOutput reports either the completed result or that the job was
// queued.
type RunLLMOutput struct {
	Body struct {
		Status string            `json:"status" enum:"completed,queued"`
		Result *models.LLMResult `json:"result,omitempty"`
	}
}

// RunLLM queues an extraction and optionally waits for it. When the wait
// budget expires the job stays queued and status reports "queued".
func (h *Handlers) RunLLM(ctx context.Context, input *RunLLMInput) (*RunLLMOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	revID := input.PromptRevID
	if revID == "" {
		revID = models.DefaultPromptRevID
	}
	wait := time.Duration(input.Wait) * time.Second
	if wait > maxRunWait {
		wait = maxRunWait
	}
	result, err := h.services.LLM.Run(ctx, input.Org, input.Doc, revID, input.Force, wait)
	if err != nil {
		return nil, mapError(err)
	}
	out := &RunLLMOutput{}
	if result != nil {
		out.Body.Status = "completed"
		out.Body.Result = result
	} else {
		out.Body.Status = "queued"
	}
	return out, nil
}

// GetLLMResultInput identifies one extraction result.
type GetLLMResultInput struct {
	OrgPath
	Doc         string `path:"doc"`
	PromptRevID string `query:"prompt_revid" doc:"Defaults to the implicit default prompt"`
	Fallback    bool   `query:"fallback" doc:"Fall back to the latest earlier revision of the same prompt"`
}

// LLMResultOutput wraps a single extraction result.
type LLMResultOutput struct {
	Body *models.LLMResult
}

// GetLLMResult returns the extraction result for one (document, prompt
// revision) pair.
func (h *Handlers) GetLLMResult(ctx context.Context, input *GetLLMResultInput) (*LLMResultOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	revID := input.PromptRevID
	if revID == "" {
		revID = models.DefaultPromptRevID
	}
	result, err := h.services.LLM.GetResult(ctx, input.Org, input.Doc, revID, input.Fallback)
	if err != nil {
		return nil, mapError(err)
	}
	return &LLMResultOutput{Body: result}, nil
}

// UpdateLLMResultInput is the body of PUT /orgs/{org}/llm/result/{doc}.
type UpdateLLMResultInput struct {
	OrgPath
	Doc  string `path:"doc"`
	Body struct {
		PromptRevID      string          `json:"prompt_revid,omitempty" doc:"Defaults to the implicit default prompt"`
		UpdatedLLMResult json.RawMessage `json:"updated_llm_result"`
		IsVerified       bool            `json:"is_verified"`
	}
}

// UpdateLLMResult stores a human edit of an extraction. The original LLM
// output is preserved; is_edited reflects a structural comparison.
func (h *Handlers) UpdateLLMResult(ctx context.Context, input *UpdateLLMResultInput) (*LLMResultOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	revID := input.Body.PromptRevID
	if revID == "" {
		revID = models.DefaultPromptRevID
	}
	result, err := h.services.LLM.UpdateResult(ctx, input.Org, input.Doc, revID, input.Body.UpdatedLLMResult, input.Body.IsVerified)
	if err != nil {
		return nil, mapError(err)
	}
	return &LLMResultOutput{Body: result}, nil
}

// DeleteLLMResultInput identifies the result to delete.
type DeleteLLMResultInput struct {
	OrgPath
	Doc         string `path:"doc"`
	PromptRevID string `query:"prompt_revid" doc:"Defaults to the implicit default prompt"`
}

// DeleteLLMResult removes one extraction result.
func (h *Handlers) DeleteLLMResult(ctx context.Context, input *DeleteLLMResultInput) (*struct{}, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	revID := input.PromptRevID
	if revID == "" {
		revID = models.DefaultPromptRevID
	}
	if err := h.services.LLM.DeleteResult(ctx, input.Org, input.Doc, revID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

// DownloadLLMResultsInput identifies the document.
type DownloadLLMResultsInput struct {
	OrgPath
	Doc string `path:"doc"`
}

// DownloadLLMResultsOutput is the full extraction bundle for a document.
type DownloadLLMResultsOutput struct {
	Body *service.ResultBundle
}

// DownloadLLMResults returns every extraction result for a document with its
// prompt context.
func (h *Handlers) DownloadLLMResults(ctx context.Context, input *DownloadLLMResultsInput) (*DownloadLLMResultsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	bundle, err := h.services.LLM.Download(ctx, input.Org, input.Doc)
	if err != nil {
		return nil, mapError(err)
	}
	return &DownloadLLMResultsOutput{Body: bundle}, nil
}
