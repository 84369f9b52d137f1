package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

func newTestTag(orgID, name string) *models.Tag {
	now := time.Now()
	return &models.Tag{
		ID:             models.NewID(),
		OrganizationID: orgID,
		Name:           name,
		Color:          "#3366ff",
		CreatedBy:      "user_test",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestTagRepository_CreateDuplicateName(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	if err := repos.Tag.Create(ctx, newTestTag("org_1", "Finance")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Case-insensitive collision within the org.
	err := repos.Tag.Create(ctx, newTestTag("org_1", "FINANCE"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}

	// Same name in another org is fine.
	if err := repos.Tag.Create(ctx, newTestTag("org_2", "Finance")); err != nil {
		t.Errorf("cross-org Create() error = %v", err)
	}
}

func TestTagRepository_GetByIDs(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	a := newTestTag("org_1", "A")
	b := newTestTag("org_1", "B")
	other := newTestTag("org_2", "C")
	for _, tag := range []*models.Tag{a, b, other} {
		if err := repos.Tag.Create(ctx, tag); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tags, err := repos.Tag.GetByIDs(ctx, "org_1", []string{a.ID, b.ID, other.ID})
	if err != nil {
		t.Fatalf("GetByIDs() error = %v", err)
	}
	// The other org's tag must be filtered out.
	if len(tags) != 2 {
		t.Errorf("len(tags) = %d, want 2", len(tags))
	}

	tags, err = repos.Tag.GetByIDs(ctx, "org_1", nil)
	if err != nil {
		t.Fatalf("GetByIDs(nil) error = %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("len(tags) = %d, want 0 for empty input", len(tags))
	}
}

func TestTagRepository_UpdateAndDelete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	tag := newTestTag("org_1", "Draft")
	if err := repos.Tag.Create(ctx, tag); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tag.Name = "Final"
	tag.Color = "#00ff00"
	if err := repos.Tag.Update(ctx, tag); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repos.Tag.GetByID(ctx, "org_1", tag.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Final" || got.Color != "#00ff00" {
		t.Errorf("got %s/%s, want Final/#00ff00", got.Name, got.Color)
	}

	if err := repos.Tag.Delete(ctx, "org_1", tag.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repos.Tag.GetByID(ctx, "org_1", tag.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repos.Tag.Delete(ctx, "org_1", tag.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for double delete, got %v", err)
	}
}
