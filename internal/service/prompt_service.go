package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// PromptService manages revisioned extraction prompts.
type PromptService struct {
	logger *slog.Logger
	repos  *repository.Repositories
	tags   *TagService
}

// NewPromptService creates a new prompt service.
func NewPromptService(logger *slog.Logger, repos *repository.Repositories, tags *TagService) *PromptService {
	return &PromptService{logger: logger, repos: repos, tags: tags}
}

// PromptInput is the client-supplied content of a prompt revision.
type PromptInput struct {
	Name          string
	Content       string
	Model         string
	TagIDs        []string
	SchemaID      string
	SchemaVersion int
}

// Create stores a prompt revision, reusing the logical id when the name
// already exists in the org.
func (s *PromptService) Create(ctx context.Context, orgID, userID string, in PromptInput) (*models.PromptRevision, error) {
	if in.Content == "" {
		return nil, validationErrorf("prompt content must not be empty")
	}
	if err := s.tags.ValidateTagIDs(ctx, orgID, in.TagIDs); err != nil {
		return nil, err
	}
	schemaID, schemaVersion, err := s.resolveSchema(ctx, orgID, in.SchemaID, in.SchemaVersion)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	parent := &models.Prompt{
		ID:             models.NewID(),
		OrganizationID: orgID,
		Name:           in.Name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rev := &models.PromptRevision{
		RevID:         models.NewID(),
		Content:       in.Content,
		Model:         in.Model,
		TagIDs:        in.TagIDs,
		SchemaID:      schemaID,
		SchemaVersion: schemaVersion,
		CreatedAt:     now,
		CreatedBy:     userID,
	}
	if err := s.repos.Prompt.CreateRevision(ctx, parent, rev); err != nil {
		return nil, err
	}
	return s.repos.Prompt.GetRevision(ctx, orgID, rev.RevID)
}

// Update applies the revisioning rule: name-only changes rename the parent,
// everything else allocates the next version.
func (s *PromptService) Update(ctx context.Context, orgID, userID, promptID string, in PromptInput) (*models.PromptRevision, error) {
	parent, err := s.repos.Prompt.GetParent(ctx, orgID, promptID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repos.Prompt.GetLatestRevision(ctx, orgID, promptID)
	if err != nil {
		return nil, err
	}

	if err := s.tags.ValidateTagIDs(ctx, orgID, in.TagIDs); err != nil {
		return nil, err
	}
	schemaID, schemaVersion, err := s.resolveSchema(ctx, orgID, in.SchemaID, in.SchemaVersion)
	if err != nil {
		return nil, err
	}

	nameChanged := in.Name != "" && in.Name != parent.Name
	payloadChanged := in.Content != latest.Content ||
		in.Model != latest.Model ||
		!sameIDSet(in.TagIDs, latest.TagIDs) ||
		schemaID != latest.SchemaID ||
		schemaVersion != latest.SchemaVersion

	if nameChanged && !payloadChanged {
		if err := s.repos.Prompt.RenameParent(ctx, orgID, promptID, in.Name); err != nil {
			return nil, err
		}
		return s.repos.Prompt.GetLatestRevision(ctx, orgID, promptID)
	}
	if !payloadChanged {
		return latest, nil
	}

	if nameChanged {
		if err := s.repos.Prompt.RenameParent(ctx, orgID, promptID, in.Name); err != nil {
			return nil, err
		}
		parent.Name = in.Name
	}

	rev := &models.PromptRevision{
		RevID:         models.NewID(),
		Content:       in.Content,
		Model:         in.Model,
		TagIDs:        in.TagIDs,
		SchemaID:      schemaID,
		SchemaVersion: schemaVersion,
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     userID,
	}
	if err := s.repos.Prompt.CreateRevision(ctx, parent, rev); err != nil {
		return nil, err
	}
	return s.repos.Prompt.GetRevision(ctx, orgID, rev.RevID)
}

// Get returns one prompt revision by revision id. The literal "default"
// resolves to the implicit default prompt.
func (s *PromptService) Get(ctx context.Context, orgID, revID string) (*models.PromptRevision, error) {
	if revID == models.DefaultPromptRevID {
		return models.DefaultPromptRevision(""), nil
	}
	return s.repos.Prompt.GetRevision(ctx, orgID, revID)
}

// List returns the latest revision per logical prompt. When documentID is
// given the listing is restricted to prompts whose tags intersect the
// document's; an untagged document yields only the implicit default prompt.
func (s *PromptService) List(ctx context.Context, orgID, nameSearch string, tagIDs []string, documentID string, skip, limit int) ([]*models.PromptRevision, int, error) {
	if documentID != "" {
		doc, err := s.repos.Document.GetByID(ctx, orgID, documentID)
		if err != nil {
			return nil, 0, err
		}
		defaultPrompt := models.DefaultPromptRevision("")
		if len(doc.TagIDs) == 0 {
			return []*models.PromptRevision{defaultPrompt}, 1, nil
		}
		revs, err := s.repos.Prompt.ListLatestByTags(ctx, orgID, doc.TagIDs)
		if err != nil {
			return nil, 0, err
		}
		revs = append([]*models.PromptRevision{defaultPrompt}, revs...)
		return revs, len(revs), nil
	}

	filter := repository.RevisionListFilter{NameSearch: nameSearch, TagIDs: tagIDs}
	return s.repos.Prompt.ListLatest(ctx, orgID, filter, skip, clampLimit(limit))
}

// Delete removes a logical prompt and all its revisions, along with nothing
// else: results keyed by its revisions stay retrievable by revid.
func (s *PromptService) Delete(ctx context.Context, orgID, promptID string) error {
	if _, err := s.repos.Prompt.GetParent(ctx, orgID, promptID); err != nil {
		return err
	}
	return s.repos.Prompt.Delete(ctx, orgID, promptID)
}

// resolveSchema implements validate_and_resolve_schema: a schema id without
// a version pins the latest version at write time; an explicit pair is
// checked for existence.
func (s *PromptService) resolveSchema(ctx context.Context, orgID, schemaID string, schemaVersion int) (string, int, error) {
	if schemaID == "" {
		if schemaVersion != 0 {
			return "", 0, validationErrorf("schema_version given without schema_id")
		}
		return "", 0, nil
	}
	if schemaVersion == 0 {
		latest, err := s.repos.Schema.GetLatestRevision(ctx, orgID, schemaID)
		if errIsNotFound(err) {
			return "", 0, validationErrorf("unknown schema id %s", schemaID)
		}
		if err != nil {
			return "", 0, fmt.Errorf("failed to resolve schema: %w", err)
		}
		return schemaID, latest.SchemaVersion, nil
	}
	if _, err := s.repos.Schema.GetRevisionByVersion(ctx, orgID, schemaID, schemaVersion); err != nil {
		if errIsNotFound(err) {
			return "", 0, validationErrorf("unknown schema version %d for schema %s", schemaVersion, schemaID)
		}
		return "", 0, fmt.Errorf("failed to resolve schema: %w", err)
	}
	return schemaID, schemaVersion, nil
}

// sameIDSet compares two id slices as sets.
func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := slices.Clone(a)
	sb := slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)
	return slices.Equal(sa, sb)
}
