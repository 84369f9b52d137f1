package handlers

import (
	"context"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// TagOutput wraps a single tag.
type TagOutput struct {
	Body *models.Tag
}

// CreateTagInput is the body of POST /orgs/{org}/tags.
type CreateTagInput struct {
	OrgPath
	Body struct {
		Name        string `json:"name"`
		Color       string `json:"color,omitempty"`
		Description string `json:"description,omitempty"`
	}
}

// CreateTag creates a tag. Names are unique per org, case-insensitively.
func (h *Handlers) CreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	tag, err := h.services.Tag.Create(ctx, input.Org, id.UserID, input.Body.Name, input.Body.Color, input.Body.Description)
	if err != nil {
		return nil, mapError(err)
	}
	return &TagOutput{Body: tag}, nil
}

// GetTagInput identifies one tag.
type GetTagInput struct {
	OrgPath
	ID string `path:"id"`
}

// GetTag returns one tag.
func (h *Handlers) GetTag(ctx context.Context, input *GetTagInput) (*TagOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	tag, err := h.services.Tag.Get(ctx, input.Org, input.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return &TagOutput{Body: tag}, nil
}

// ListTagsInput carries tag list paging.
type ListTagsInput struct {
	OrgPath
	Pagination
}

// ListTagsOutput is a page of tags.
type ListTagsOutput struct {
	Body struct {
		Tags  []*models.Tag `json:"tags"`
		Total int           `json:"total"`
	}
}

// ListTags lists an organization's tags.
func (h *Handlers) ListTags(ctx context.Context, input *ListTagsInput) (*ListTagsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	tags, total, err := h.services.Tag.List(ctx, input.Org, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListTagsOutput{}
	out.Body.Tags = tags
	out.Body.Total = total
	return out, nil
}

// UpdateTagInput is the body of PUT /orgs/{org}/tags/{id}.
type UpdateTagInput struct {
	OrgPath
	ID   string `path:"id"`
	Body struct {
		Name        string `json:"name,omitempty"`
		Color       string `json:"color,omitempty"`
		Description string `json:"description,omitempty"`
	}
}

// UpdateTag updates a tag's name, color or description.
func (h *Handlers) UpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	tag, err := h.services.Tag.Update(ctx, input.Org, input.ID, input.Body.Name, input.Body.Color, input.Body.Description)
	if err != nil {
		return nil, mapError(err)
	}
	return &TagOutput{Body: tag}, nil
}

// DeleteTagInput identifies the tag to delete.
type DeleteTagInput struct {
	OrgPath
	ID string `path:"id"`
}

// DeleteTag removes a tag. Deletion is refused while documents, prompts or
// forms still reference it.
func (h *Handlers) DeleteTag(ctx context.Context, input *DeleteTagInput) (*struct{}, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	if err := h.services.Tag.Delete(ctx, input.Org, input.ID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}
