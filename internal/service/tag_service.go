package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// TagService manages org-scoped tags and their reference guards.
type TagService struct {
	logger *slog.Logger
	repos  *repository.Repositories
}

// NewTagService creates a new tag service.
func NewTagService(logger *slog.Logger, repos *repository.Repositories) *TagService {
	return &TagService{logger: logger, repos: repos}
}

// Create adds a tag. Names are unique per org, case-insensitive.
func (s *TagService) Create(ctx context.Context, orgID, userID, name, color, description string) (*models.Tag, error) {
	if name == "" {
		return nil, validationErrorf("tag name must not be empty")
	}
	now := time.Now().UTC()
	tag := &models.Tag{
		ID:             models.NewID(),
		OrganizationID: orgID,
		Name:           name,
		Color:          color,
		Description:    description,
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repos.Tag.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Get returns one tag.
func (s *TagService) Get(ctx context.Context, orgID, id string) (*models.Tag, error) {
	return s.repos.Tag.GetByID(ctx, orgID, id)
}

// List returns tags ordered by name.
func (s *TagService) List(ctx context.Context, orgID string, skip, limit int) ([]*models.Tag, int, error) {
	return s.repos.Tag.List(ctx, orgID, skip, clampLimit(limit))
}

// Update modifies a tag's name, color or description.
func (s *TagService) Update(ctx context.Context, orgID, id, name, color, description string) (*models.Tag, error) {
	tag, err := s.repos.Tag.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		tag.Name = name
	}
	tag.Color = color
	tag.Description = description
	tag.UpdatedAt = time.Now().UTC()
	if err := s.repos.Tag.Update(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Delete removes a tag. Refused while any document, prompt, form or
// telemetry record references it.
func (s *TagService) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.repos.Tag.GetByID(ctx, orgID, id); err != nil {
		return err
	}

	var referrers []string
	if n, err := s.repos.Document.CountByTag(ctx, orgID, id); err != nil {
		return fmt.Errorf("failed to count document references: %w", err)
	} else if n > 0 {
		referrers = append(referrers, fmt.Sprintf("%d document(s)", n))
	}
	if n, err := s.repos.Prompt.CountByTag(ctx, orgID, id); err != nil {
		return fmt.Errorf("failed to count prompt references: %w", err)
	} else if n > 0 {
		referrers = append(referrers, fmt.Sprintf("%d prompt(s)", n))
	}
	if n, err := s.repos.Form.CountByTag(ctx, orgID, id); err != nil {
		return fmt.Errorf("failed to count form references: %w", err)
	} else if n > 0 {
		referrers = append(referrers, fmt.Sprintf("%d form(s)", n))
	}
	if n, err := s.repos.Telemetry.CountByTag(ctx, orgID, id); err != nil {
		return fmt.Errorf("failed to count telemetry references: %w", err)
	} else if n > 0 {
		referrers = append(referrers, fmt.Sprintf("%d telemetry record(s)", n))
	}
	if len(referrers) > 0 {
		return &ReferencedError{Entity: "tag", ID: id, Referrers: referrers}
	}

	return s.repos.Tag.Delete(ctx, orgID, id)
}

// ValidateTagIDs checks that every id names a tag in the org.
func (s *TagService) ValidateTagIDs(ctx context.Context, orgID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	tags, err := s.repos.Tag.GetByIDs(ctx, orgID, tagIDs)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	known := make(map[string]bool, len(tags))
	for _, t := range tags {
		known[t.ID] = true
	}
	for _, id := range tagIDs {
		if !known[id] {
			return validationErrorf("unknown tag id %s", id)
		}
	}
	return nil
}

// clampLimit bounds page sizes at 100 and defaults zero to 10.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}
