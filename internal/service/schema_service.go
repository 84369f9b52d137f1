package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// SchemaService manages revisioned JSON schemas.
type SchemaService struct {
	logger *slog.Logger
	repos  *repository.Repositories
}

// NewSchemaService creates a new schema service.
func NewSchemaService(logger *slog.Logger, repos *repository.Repositories) *SchemaService {
	return &SchemaService{logger: logger, repos: repos}
}

// Create stores a schema revision. If a schema with the same name already
// exists in the org (case-insensitive) a new revision of it is created,
// otherwise a new logical schema is allocated at version 1.
func (s *SchemaService) Create(ctx context.Context, orgID, userID, name string, responseFormat json.RawMessage) (*models.SchemaRevision, error) {
	if err := CheckJSONSchema(responseFormat); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	parent := &models.Schema{
		ID:             models.NewID(),
		OrganizationID: orgID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rev := &models.SchemaRevision{
		RevID:          models.NewID(),
		ResponseFormat: responseFormat,
		CreatedAt:      now,
		CreatedBy:      userID,
	}
	if err := s.repos.Schema.CreateRevision(ctx, parent, rev); err != nil {
		return nil, err
	}
	return s.repos.Schema.GetRevision(ctx, orgID, rev.RevID)
}

// Update applies the generic revisioning rule: a change that only touches
// the name mutates the parent without a new revision; any payload change
// allocates the next version.
func (s *SchemaService) Update(ctx context.Context, orgID, userID, schemaID, name string, responseFormat json.RawMessage) (*models.SchemaRevision, error) {
	parent, err := s.repos.Schema.GetParent(ctx, orgID, schemaID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repos.Schema.GetLatestRevision(ctx, orgID, schemaID)
	if err != nil {
		return nil, err
	}

	nameChanged := name != "" && name != parent.Name
	payloadChanged := len(responseFormat) > 0 && !jsonEqual(responseFormat, latest.ResponseFormat)

	if nameChanged && !payloadChanged {
		if err := s.repos.Schema.RenameParent(ctx, orgID, schemaID, name); err != nil {
			return nil, err
		}
		return s.repos.Schema.GetLatestRevision(ctx, orgID, schemaID)
	}
	if !payloadChanged {
		return latest, nil
	}

	if err := CheckJSONSchema(responseFormat); err != nil {
		return nil, err
	}
	if nameChanged {
		if err := s.repos.Schema.RenameParent(ctx, orgID, schemaID, name); err != nil {
			return nil, err
		}
		parent.Name = name
	}

	rev := &models.SchemaRevision{
		RevID:          models.NewID(),
		ResponseFormat: responseFormat,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      userID,
	}
	if err := s.repos.Schema.CreateRevision(ctx, parent, rev); err != nil {
		return nil, err
	}
	return s.repos.Schema.GetRevision(ctx, orgID, rev.RevID)
}

// Get returns one schema revision by revision id.
func (s *SchemaService) Get(ctx context.Context, orgID, revID string) (*models.SchemaRevision, error) {
	return s.repos.Schema.GetRevision(ctx, orgID, revID)
}

// GetLatest returns the latest revision of a logical schema.
func (s *SchemaService) GetLatest(ctx context.Context, orgID, schemaID string) (*models.SchemaRevision, error) {
	return s.repos.Schema.GetLatestRevision(ctx, orgID, schemaID)
}

// List returns the latest revision per logical schema.
func (s *SchemaService) List(ctx context.Context, orgID, nameSearch string, skip, limit int) ([]*models.SchemaRevision, int, error) {
	filter := repository.RevisionListFilter{NameSearch: nameSearch}
	return s.repos.Schema.ListLatest(ctx, orgID, filter, skip, clampLimit(limit))
}

// Delete removes a logical schema and all its revisions. Refused while any
// prompt revision references it.
func (s *SchemaService) Delete(ctx context.Context, orgID, schemaID string) error {
	if _, err := s.repos.Schema.GetParent(ctx, orgID, schemaID); err != nil {
		return err
	}
	n, err := s.repos.Prompt.CountBySchema(ctx, orgID, schemaID)
	if err != nil {
		return fmt.Errorf("failed to count prompt references: %w", err)
	}
	if n > 0 {
		return &ReferencedError{
			Entity:    "schema",
			ID:        schemaID,
			Referrers: []string{fmt.Sprintf("%d prompt revision(s)", n)},
		}
	}
	return s.repos.Schema.Delete(ctx, orgID, schemaID)
}

// ValidateData validates a JSON document against a stored schema revision.
// Returns the per-field violation messages, empty when valid.
func (s *SchemaService) ValidateData(ctx context.Context, orgID, revID string, data json.RawMessage) ([]string, error) {
	rev, err := s.repos.Schema.GetRevision(ctx, orgID, revID)
	if err != nil {
		return nil, err
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(rev.ResponseFormat),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, validationErrorf("validation failed: %v", err)
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

// CheckJSONSchema verifies that raw compiles as a JSON Schema.
func CheckJSONSchema(raw json.RawMessage) error {
	if len(raw) == 0 {
		return validationErrorf("response_format must not be empty")
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw)); err != nil {
		return validationErrorf("invalid JSON schema: %v", err)
	}
	return nil
}

// jsonEqual compares two JSON values structurally, ignoring formatting.
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b))
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// errIsNotFound is a readability helper for fallback paths.
func errIsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
