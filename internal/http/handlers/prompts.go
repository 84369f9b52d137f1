package handlers

import (
	"context"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// PromptOutput wraps a single prompt revision.
type PromptOutput struct {
	Body *models.PromptRevision
}

// PromptBody is the shared prompt write payload.
type PromptBody struct {
	Name          string   `json:"name"`
	Content       string   `json:"content"`
	Model         string   `json:"model,omitempty"`
	TagIDs        []string `json:"tag_ids,omitempty"`
	SchemaID      string   `json:"schema_id,omitempty"`
	SchemaVersion int      `json:"schema_version,omitempty" doc:"0 pins the latest schema version at write time"`
}

func (b PromptBody) input() service.PromptInput {
	return service.PromptInput{
		Name:          b.Name,
		Content:       b.Content,
		Model:         b.Model,
		TagIDs:        b.TagIDs,
		SchemaID:      b.SchemaID,
		SchemaVersion: b.SchemaVersion,
	}
}

// CreatePromptInput is the body of POST /orgs/{org}/prompts.
type CreatePromptInput struct {
	OrgPath
	Body PromptBody
}

// CreatePrompt creates a prompt revision.
func (h *Handlers) CreatePrompt(ctx context.Context, input *CreatePromptInput) (*PromptOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Prompt.Create(ctx, input.Org, id.UserID, input.Body.input())
	if err != nil {
		return nil, mapError(err)
	}
	return &PromptOutput{Body: rev}, nil
}

// UpdatePromptInput is the body of PUT /orgs/{org}/prompts/{prompt_id}.
type UpdatePromptInput struct {
	OrgPath
	PromptID string `path:"prompt_id"`
	Body     PromptBody
}

// UpdatePrompt updates a prompt. Content, model, tag or schema changes
// allocate the next version; a pure rename keeps the current revision.
func (h *Handlers) UpdatePrompt(ctx context.Context, input *UpdatePromptInput) (*PromptOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Prompt.Update(ctx, input.Org, id.UserID, input.PromptID, input.Body.input())
	if err != nil {
		return nil, mapError(err)
	}
	return &PromptOutput{Body: rev}, nil
}

// GetPromptInput identifies one prompt revision.
type GetPromptInput struct {
	OrgPath
	RevID string `path:"revid" doc:"Prompt revision ID, or the literal \"default\""`
}

// GetPrompt returns one prompt revision. The literal "default" resolves the
// implicit default prompt.
func (h *Handlers) GetPrompt(ctx context.Context, input *GetPromptInput) (*PromptOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Prompt.Get(ctx, input.Org, input.RevID)
	if err != nil {
		return nil, mapError(err)
	}
	return &PromptOutput{Body: rev}, nil
}

// ListPromptsInput filters the prompt listing.
type ListPromptsInput struct {
	OrgPath
	Pagination
	NameSearch string   `query:"name_search"`
	TagIDs     []string `query:"tag_ids"`
	DocumentID string   `query:"document_id" doc:"Only prompts whose tags intersect this document's"`
}

// ListPromptsOutput is a page of latest prompt revisions.
type ListPromptsOutput struct {
	Body struct {
		Prompts []*models.PromptRevision `json:"prompts"`
		Total   int                      `json:"total"`
	}
}

// ListPrompts lists the latest revision of each prompt.
func (h *Handlers) ListPrompts(ctx context.Context, input *ListPromptsInput) (*ListPromptsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	revs, total, err := h.services.Prompt.List(ctx, input.Org, input.NameSearch, input.TagIDs, input.DocumentID, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListPromptsOutput{}
	out.Body.Prompts = revs
	out.Body.Total = total
	return out, nil
}

// DeletePromptInput identifies the prompt to delete.
type DeletePromptInput struct {
	OrgPath
	PromptID string `path:"prompt_id"`
}

// DeletePrompt removes a prompt and all its revisions.
func (h *Handlers) DeletePrompt(ctx context.Context, input *DeletePromptInput) (*struct{}, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	if err := h.services.Prompt.Delete(ctx, input.Org, input.PromptID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}
