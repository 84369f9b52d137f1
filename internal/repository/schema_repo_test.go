package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

func createTestSchemaRevision(t *testing.T, repos *Repositories, orgID, name string) *models.SchemaRevision {
	t.Helper()
	parent := &models.Schema{
		ID:             models.NewID(),
		OrganizationID: orgID,
		Name:           name,
	}
	rev := &models.SchemaRevision{
		RevID:          models.NewID(),
		ResponseFormat: []byte(`{"type":"json_schema"}`),
		CreatedAt:      time.Now(),
		CreatedBy:      "user_test",
	}
	if err := repos.Schema.CreateRevision(context.Background(), parent, rev); err != nil {
		t.Fatalf("CreateRevision() error = %v", err)
	}
	rev.Name = name
	rev.OrganizationID = orgID
	return rev
}

func TestSchemaRepository_VersionAllocation(t *testing.T) {
	repos := setupTestRepos(t)

	rev1 := createTestSchemaRevision(t, repos, "org_1", "Invoice")
	if rev1.SchemaVersion != 1 {
		t.Errorf("first SchemaVersion = %d, want 1", rev1.SchemaVersion)
	}

	// Same name reuses the parent and bumps the version.
	rev2 := createTestSchemaRevision(t, repos, "org_1", "Invoice")
	if rev2.SchemaVersion != 2 {
		t.Errorf("second SchemaVersion = %d, want 2", rev2.SchemaVersion)
	}
	if rev2.SchemaID != rev1.SchemaID {
		t.Errorf("SchemaID = %s, want shared parent %s", rev2.SchemaID, rev1.SchemaID)
	}
	if rev2.RevID == rev1.RevID {
		t.Error("revisions must have distinct rev ids")
	}

	// Case-insensitive name match also reuses the parent.
	rev3 := createTestSchemaRevision(t, repos, "org_1", "INVOICE")
	if rev3.SchemaID != rev1.SchemaID {
		t.Errorf("case-insensitive SchemaID = %s, want %s", rev3.SchemaID, rev1.SchemaID)
	}
	if rev3.SchemaVersion != 3 {
		t.Errorf("third SchemaVersion = %d, want 3", rev3.SchemaVersion)
	}
}

func TestSchemaRepository_GetLatestRevision(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	rev1 := createTestSchemaRevision(t, repos, "org_1", "Invoice")
	rev2 := createTestSchemaRevision(t, repos, "org_1", "Invoice")

	latest, err := repos.Schema.GetLatestRevision(ctx, "org_1", rev1.SchemaID)
	if err != nil {
		t.Fatalf("GetLatestRevision() error = %v", err)
	}
	if latest.RevID != rev2.RevID {
		t.Errorf("latest RevID = %s, want %s", latest.RevID, rev2.RevID)
	}

	byVersion, err := repos.Schema.GetRevisionByVersion(ctx, "org_1", rev1.SchemaID, 1)
	if err != nil {
		t.Fatalf("GetRevisionByVersion() error = %v", err)
	}
	if byVersion.RevID != rev1.RevID {
		t.Errorf("version 1 RevID = %s, want %s", byVersion.RevID, rev1.RevID)
	}
}

func TestSchemaRepository_ListLatest(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestSchemaRevision(t, repos, "org_1", "Invoice")
	createTestSchemaRevision(t, repos, "org_1", "Invoice")
	createTestSchemaRevision(t, repos, "org_1", "Receipt")
	createTestSchemaRevision(t, repos, "org_2", "Other")

	revs, total, err := repos.Schema.ListLatest(ctx, "org_1", RevisionListFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListLatest() error = %v", err)
	}
	if total != 2 || len(revs) != 2 {
		t.Fatalf("total = %d len = %d, want 2 latest revisions", total, len(revs))
	}
	// One latest row per logical schema, ordered by name.
	if revs[0].Name != "Invoice" || revs[0].SchemaVersion != 2 {
		t.Errorf("revs[0] = %s v%d, want Invoice v2", revs[0].Name, revs[0].SchemaVersion)
	}
	if revs[1].Name != "Receipt" || revs[1].SchemaVersion != 1 {
		t.Errorf("revs[1] = %s v%d, want Receipt v1", revs[1].Name, revs[1].SchemaVersion)
	}
}

func TestSchemaRepository_RenameParent(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	rev := createTestSchemaRevision(t, repos, "org_1", "Invoice")
	createTestSchemaRevision(t, repos, "org_1", "Receipt")

	if err := repos.Schema.RenameParent(ctx, "org_1", rev.SchemaID, "Bill"); err != nil {
		t.Fatalf("RenameParent() error = %v", err)
	}
	got, err := repos.Schema.GetRevision(ctx, "org_1", rev.RevID)
	if err != nil {
		t.Fatalf("GetRevision() error = %v", err)
	}
	// Rename does not create a new revision.
	if got.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1 after rename", got.SchemaVersion)
	}
	if got.Name != "Bill" {
		t.Errorf("Name = %s, want Bill", got.Name)
	}

	// Collision with another schema's name.
	err = repos.Schema.RenameParent(ctx, "org_1", rev.SchemaID, "Receipt")
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestSchemaRepository_Delete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	rev := createTestSchemaRevision(t, repos, "org_1", "Invoice")
	createTestSchemaRevision(t, repos, "org_1", "Invoice")

	if err := repos.Schema.Delete(ctx, "org_1", rev.SchemaID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repos.Schema.GetParent(ctx, "org_1", rev.SchemaID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted parent, got %v", err)
	}
	if _, err := repos.Schema.GetRevision(ctx, "org_1", rev.RevID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted revision, got %v", err)
	}
}
