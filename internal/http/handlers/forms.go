package handlers

import (
	"context"
	"encoding/json"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// FormOutput wraps a single form revision.
type FormOutput struct {
	Body *models.FormRevision
}

// CreateFormInput is the body of POST /orgs/{org}/forms.
type CreateFormInput struct {
	OrgPath
	Body struct {
		Name           string                    `json:"name"`
		ResponseFormat models.FormResponseFormat `json:"response_format"`
		TagIDs         []string                  `json:"tag_ids,omitempty"`
	}
}

// CreateForm creates a form revision.
func (h *Handlers) CreateForm(ctx context.Context, input *CreateFormInput) (*FormOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Form.Create(ctx, input.Org, id.UserID, input.Body.Name, input.Body.ResponseFormat, input.Body.TagIDs)
	if err != nil {
		return nil, mapError(err)
	}
	return &FormOutput{Body: rev}, nil
}

// UpdateFormInput is the body of PUT /orgs/{org}/forms/{form_id}.
type UpdateFormInput struct {
	OrgPath
	FormID string `path:"form_id"`
	Body   struct {
		Name           string                    `json:"name,omitempty"`
		ResponseFormat models.FormResponseFormat `json:"response_format"`
		TagIDs         []string                  `json:"tag_ids,omitempty"`
	}
}

// UpdateForm updates a form. Definition or tag changes allocate the next
// version; a pure rename keeps the current revision.
func (h *Handlers) UpdateForm(ctx context.Context, input *UpdateFormInput) (*FormOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Form.Update(ctx, input.Org, id.UserID, input.FormID, input.Body.Name, input.Body.ResponseFormat, input.Body.TagIDs)
	if err != nil {
		return nil, mapError(err)
	}
	return &FormOutput{Body: rev}, nil
}

// GetFormInput identifies one form revision.
type GetFormInput struct {
	OrgPath
	RevID string `path:"revid" doc:"Form revision ID"`
}

// GetForm returns one form revision.
func (h *Handlers) GetForm(ctx context.Context, input *GetFormInput) (*FormOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	rev, err := h.services.Form.Get(ctx, input.Org, input.RevID)
	if err != nil {
		return nil, mapError(err)
	}
	return &FormOutput{Body: rev}, nil
}

// ListFormsInput filters the form listing.
type ListFormsInput struct {
	OrgPath
	Pagination
	NameSearch string   `query:"name_search"`
	TagIDs     []string `query:"tag_ids"`
}

// ListFormsOutput is a page of latest form revisions.
type ListFormsOutput struct {
	Body struct {
		Forms []*models.FormRevision `json:"forms"`
		Total int                    `json:"total"`
	}
}

// ListForms lists the latest revision of each form.
func (h *Handlers) ListForms(ctx context.Context, input *ListFormsInput) (*ListFormsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	revs, total, err := h.services.Form.List(ctx, input.Org, input.NameSearch, input.TagIDs, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListFormsOutput{}
	out.Body.Forms = revs
	out.Body.Total = total
	return out, nil
}

// DeleteFormInput identifies the form to delete.
type DeleteFormInput struct {
	OrgPath
	FormID string `path:"form_id"`
}

// DeleteForm removes a form and all its revisions and submissions.
func (h *Handlers) DeleteForm(ctx context.Context, input *DeleteFormInput) (*struct{}, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	if err := h.services.Form.Delete(ctx, input.Org, input.FormID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

// SubmitFormInput is the body of PUT /orgs/{org}/forms/{revid}/submissions/{doc}.
type SubmitFormInput struct {
	OrgPath
	RevID string `path:"revid"`
	Doc   string `path:"doc"`
	Body  struct {
		Data json.RawMessage `json:"data"`
	}
}

// FormSubmissionOutput wraps a single submission.
type FormSubmissionOutput struct {
	Body *models.FormSubmission
}

// SubmitForm upserts the submission for one (document, form revision) pair.
func (h *Handlers) SubmitForm(ctx context.Context, input *SubmitFormInput) (*FormSubmissionOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	sub, err := h.services.Form.SubmitForm(ctx, input.Org, id.UserID, input.Doc, input.RevID, input.Body.Data)
	if err != nil {
		return nil, mapError(err)
	}
	return &FormSubmissionOutput{Body: sub}, nil
}

// GetFormSubmissionInput identifies one submission.
type GetFormSubmissionInput struct {
	OrgPath
	RevID string `path:"revid"`
	Doc   string `path:"doc"`
}

// GetFormSubmission returns the submission for one (document, form revision)
// pair.
func (h *Handlers) GetFormSubmission(ctx context.Context, input *GetFormSubmissionInput) (*FormSubmissionOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	sub, err := h.services.Form.GetSubmission(ctx, input.Org, input.Doc, input.RevID)
	if err != nil {
		return nil, mapError(err)
	}
	return &FormSubmissionOutput{Body: sub}, nil
}

// ListFormSubmissionsInput identifies the document.
type ListFormSubmissionsInput struct {
	OrgPath
	Doc string `path:"doc"`
}

// ListFormSubmissionsOutput is all submissions for a document.
type ListFormSubmissionsOutput struct {
	Body struct {
		Submissions []*models.FormSubmission `json:"submissions"`
	}
}

// ListFormSubmissions lists all form submissions for a document.
func (h *Handlers) ListFormSubmissions(ctx context.Context, input *ListFormSubmissionsInput) (*ListFormSubmissionsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	subs, err := h.services.Form.ListSubmissions(ctx, input.Org, input.Doc)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListFormSubmissionsOutput{}
	out.Body.Submissions = subs
	return out, nil
}

// DeleteFormSubmissionInput identifies the submission to delete.
type DeleteFormSubmissionInput struct {
	OrgPath
	RevID string `path:"revid"`
	Doc   string `path:"doc"`
}

// DeleteFormSubmission removes one submission.
func (h *Handlers) DeleteFormSubmission(ctx context.Context, input *DeleteFormSubmissionInput) (*struct{}, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	if err := h.services.Form.DeleteSubmission(ctx, input.Org, input.Doc, input.RevID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}
