package repository

import (
	"context"
	"testing"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

func createTestPromptRevision(t *testing.T, repos *Repositories, orgID, name string, tagIDs []string) *models.PromptRevision {
	t.Helper()
	parent := &models.Prompt{
		ID:             models.NewID(),
		OrganizationID: orgID,
		Name:           name,
	}
	rev := &models.PromptRevision{
		RevID:          models.NewID(),
		Content:        "Extract the total amount.",
		Model:          "claude-3-5-sonnet-latest",
		TagIDs:         tagIDs,
		OrganizationID: orgID,
		CreatedAt:      time.Now(),
		CreatedBy:      "user_test",
	}
	if err := repos.Prompt.CreateRevision(context.Background(), parent, rev); err != nil {
		t.Fatalf("CreateRevision() error = %v", err)
	}
	rev.Name = name
	return rev
}

func TestPromptRepository_VersionAllocation(t *testing.T) {
	repos := setupTestRepos(t)

	rev1 := createTestPromptRevision(t, repos, "org_1", "Totals", nil)
	rev2 := createTestPromptRevision(t, repos, "org_1", "Totals", nil)

	if rev1.PromptVersion != 1 || rev2.PromptVersion != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", rev1.PromptVersion, rev2.PromptVersion)
	}
	if rev1.PromptID != rev2.PromptID {
		t.Errorf("PromptID mismatch: %s vs %s", rev1.PromptID, rev2.PromptID)
	}
}

func TestPromptRepository_SchemaBinding(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	schemaRev := createTestSchemaRevision(t, repos, "org_1", "Invoice")

	parent := &models.Prompt{
		ID:             models.NewID(),
		OrganizationID: "org_1",
		Name:           "Invoice Extraction",
	}
	rev := &models.PromptRevision{
		RevID:          models.NewID(),
		Content:        "Extract fields.",
		SchemaID:       schemaRev.SchemaID,
		SchemaVersion:  schemaRev.SchemaVersion,
		OrganizationID: "org_1",
		CreatedAt:      time.Now(),
		CreatedBy:      "user_test",
	}
	if err := repos.Prompt.CreateRevision(ctx, parent, rev); err != nil {
		t.Fatalf("CreateRevision() error = %v", err)
	}

	got, err := repos.Prompt.GetRevision(ctx, "org_1", rev.RevID)
	if err != nil {
		t.Fatalf("GetRevision() error = %v", err)
	}
	if got.SchemaID != schemaRev.SchemaID {
		t.Errorf("SchemaID = %s, want %s", got.SchemaID, schemaRev.SchemaID)
	}
	if got.SchemaVersion != schemaRev.SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", got.SchemaVersion, schemaRev.SchemaVersion)
	}

	count, err := repos.Prompt.CountBySchema(ctx, "org_1", schemaRev.SchemaID)
	if err != nil {
		t.Fatalf("CountBySchema() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountBySchema = %d, want 1", count)
	}
}

func TestPromptRepository_ListLatestByTags(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	// Two revisions of a tagged prompt; only the latest should surface.
	createTestPromptRevision(t, repos, "org_1", "Tagged", []string{"tag_a"})
	rev2 := createTestPromptRevision(t, repos, "org_1", "Tagged", []string{"tag_a"})
	createTestPromptRevision(t, repos, "org_1", "Untagged", nil)
	createTestPromptRevision(t, repos, "org_1", "OtherTag", []string{"tag_b"})

	revs, err := repos.Prompt.ListLatestByTags(ctx, "org_1", []string{"tag_a"})
	if err != nil {
		t.Fatalf("ListLatestByTags() error = %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("len(revs) = %d, want 1", len(revs))
	}
	if revs[0].RevID != rev2.RevID {
		t.Errorf("RevID = %s, want latest %s", revs[0].RevID, rev2.RevID)
	}

	// Empty tag set matches nothing.
	revs, err = repos.Prompt.ListLatestByTags(ctx, "org_1", nil)
	if err != nil {
		t.Fatalf("ListLatestByTags(nil) error = %v", err)
	}
	if len(revs) != 0 {
		t.Errorf("len(revs) = %d, want 0 for empty tag set", len(revs))
	}
}

func TestPromptRepository_ListLatest_Filter(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestPromptRevision(t, repos, "org_1", "Invoice Totals", nil)
	createTestPromptRevision(t, repos, "org_1", "Receipt Items", []string{"tag_x"})

	revs, total, err := repos.Prompt.ListLatest(ctx, "org_1", RevisionListFilter{NameSearch: "invoice"}, 0, 10)
	if err != nil {
		t.Fatalf("ListLatest() error = %v", err)
	}
	if total != 1 || revs[0].Name != "Invoice Totals" {
		t.Errorf("name filter total = %d, want 1", total)
	}

	_, total, err = repos.Prompt.ListLatest(ctx, "org_1", RevisionListFilter{TagIDs: []string{"tag_x"}}, 0, 10)
	if err != nil {
		t.Fatalf("ListLatest() error = %v", err)
	}
	if total != 1 {
		t.Errorf("tag filter total = %d, want 1", total)
	}
}

func TestPromptRepository_CountByTag(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestPromptRevision(t, repos, "org_1", "Tagged", []string{"tag_a"})
	createTestPromptRevision(t, repos, "org_1", "Untagged", nil)

	count, err := repos.Prompt.CountByTag(ctx, "org_1", "tag_a")
	if err != nil {
		t.Fatalf("CountByTag() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
