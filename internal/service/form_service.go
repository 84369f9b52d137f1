package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// FormService manages revisioned form definitions and their submissions.
type FormService struct {
	logger *slog.Logger
	repos  *repository.Repositories
	tags   *TagService
}

// NewFormService creates a new form service.
func NewFormService(logger *slog.Logger, repos *repository.Repositories, tags *TagService) *FormService {
	return &FormService{logger: logger, repos: repos, tags: tags}
}

// Create stores a form revision, reusing the logical id when the name
// already exists in the org.
func (s *FormService) Create(ctx context.Context, orgID, userID, name string, responseFormat models.FormResponseFormat, tagIDs []string) (*models.FormRevision, error) {
	if len(responseFormat.JSONFormio) == 0 {
		return nil, validationErrorf("response_format.json_formio must not be empty")
	}
	if err := s.tags.ValidateTagIDs(ctx, orgID, tagIDs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	parent := &models.Form{
		ID:             models.NewID(),
		OrganizationID: orgID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rev := &models.FormRevision{
		RevID:          models.NewID(),
		ResponseFormat: responseFormat,
		TagIDs:         tagIDs,
		CreatedAt:      now,
		CreatedBy:      userID,
	}
	if err := s.repos.Form.CreateRevision(ctx, parent, rev); err != nil {
		return nil, err
	}
	return s.repos.Form.GetRevision(ctx, orgID, rev.RevID)
}

// Update applies the revisioning rule: name-only changes rename the parent,
// everything else allocates the next version.
func (s *FormService) Update(ctx context.Context, orgID, userID, formID, name string, responseFormat models.FormResponseFormat, tagIDs []string) (*models.FormRevision, error) {
	parent, err := s.repos.Form.GetParent(ctx, orgID, formID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repos.Form.GetLatestRevision(ctx, orgID, formID)
	if err != nil {
		return nil, err
	}
	if err := s.tags.ValidateTagIDs(ctx, orgID, tagIDs); err != nil {
		return nil, err
	}

	nameChanged := name != "" && name != parent.Name
	payloadChanged := !sameIDSet(tagIDs, latest.TagIDs) ||
		(len(responseFormat.JSONFormio) > 0 && !jsonEqual(responseFormat.JSONFormio, latest.ResponseFormat.JSONFormio)) ||
		!jsonEqual(emptyToNull(responseFormat.JSONFormioMapping), emptyToNull(latest.ResponseFormat.JSONFormioMapping))

	if nameChanged && !payloadChanged {
		if err := s.repos.Form.RenameParent(ctx, orgID, formID, name); err != nil {
			return nil, err
		}
		return s.repos.Form.GetLatestRevision(ctx, orgID, formID)
	}
	if !payloadChanged {
		return latest, nil
	}

	if nameChanged {
		if err := s.repos.Form.RenameParent(ctx, orgID, formID, name); err != nil {
			return nil, err
		}
		parent.Name = name
	}
	if len(responseFormat.JSONFormio) == 0 {
		responseFormat.JSONFormio = latest.ResponseFormat.JSONFormio
	}

	rev := &models.FormRevision{
		RevID:          models.NewID(),
		ResponseFormat: responseFormat,
		TagIDs:         tagIDs,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      userID,
	}
	if err := s.repos.Form.CreateRevision(ctx, parent, rev); err != nil {
		return nil, err
	}
	return s.repos.Form.GetRevision(ctx, orgID, rev.RevID)
}

// Get returns one form revision by revision id.
func (s *FormService) Get(ctx context.Context, orgID, revID string) (*models.FormRevision, error) {
	return s.repos.Form.GetRevision(ctx, orgID, revID)
}

// List returns the latest revision per logical form.
func (s *FormService) List(ctx context.Context, orgID, nameSearch string, tagIDs []string, skip, limit int) ([]*models.FormRevision, int, error) {
	filter := repository.RevisionListFilter{NameSearch: nameSearch, TagIDs: tagIDs}
	return s.repos.Form.ListLatest(ctx, orgID, filter, skip, clampLimit(limit))
}

// Delete removes a logical form and all its revisions.
func (s *FormService) Delete(ctx context.Context, orgID, formID string) error {
	if _, err := s.repos.Form.GetParent(ctx, orgID, formID); err != nil {
		return err
	}
	return s.repos.Form.Delete(ctx, orgID, formID)
}

// SubmitForm upserts the submission keyed by (document, form revision, org).
func (s *FormService) SubmitForm(ctx context.Context, orgID, userID, documentID, formRevID string, data json.RawMessage) (*models.FormSubmission, error) {
	if _, err := s.repos.Document.GetByID(ctx, orgID, documentID); err != nil {
		return nil, err
	}
	if _, err := s.repos.Form.GetRevision(ctx, orgID, formRevID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &models.FormSubmission{
		ID:             models.NewID(),
		OrganizationID: orgID,
		DocumentID:     documentID,
		FormRevID:      formRevID,
		SubmissionData: data,
		SubmittedBy:    userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repos.Submission.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	return s.repos.Submission.Get(ctx, orgID, documentID, formRevID)
}

// GetSubmission returns the submission for one (document, form revision).
func (s *FormService) GetSubmission(ctx context.Context, orgID, documentID, formRevID string) (*models.FormSubmission, error) {
	return s.repos.Submission.Get(ctx, orgID, documentID, formRevID)
}

// ListSubmissions returns all submissions for a document.
func (s *FormService) ListSubmissions(ctx context.Context, orgID, documentID string) ([]*models.FormSubmission, error) {
	return s.repos.Submission.ListByDocument(ctx, orgID, documentID)
}

// DeleteSubmission removes one submission.
func (s *FormService) DeleteSubmission(ctx context.Context, orgID, documentID, formRevID string) error {
	return s.repos.Submission.Delete(ctx, orgID, documentID, formRevID)
}

// emptyToNull maps an absent raw JSON value to the literal null so that
// structural comparison treats "missing" and "null" alike.
func emptyToNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
