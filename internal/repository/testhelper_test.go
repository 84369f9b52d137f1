package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/docrouter-ai/docrouter-api/internal/database/migrations"
	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// newTestDocument builds a document ready for insertion.
func newTestDocument(orgID string) *models.Document {
	now := time.Now()
	return &models.Document{
		ID:             models.NewID(),
		OrganizationID: orgID,
		UserFileName:   "invoice.pdf",
		BlobName:       models.NewID() + ".pdf",
		UploadDate:     now,
		UploadedBy:     "user_test",
		State:          models.DocStateUploaded,
		TagIDs:         []string{},
		Metadata:       map[string]string{},
		UpdatedAt:      now,
	}
}

// insertTestCustomer seeds a payments customer with the given balances.
func insertTestCustomer(t *testing.T, repos *Repositories, orgID string, granted, purchased float64) {
	t.Helper()
	err := repos.Payments.UpsertCustomer(context.Background(), &models.PaymentsCustomer{
		OrganizationID:   orgID,
		GrantedCredits:   granted,
		PurchasedCredits: purchased,
	})
	if err != nil {
		t.Fatalf("failed to seed payments customer: %v", err)
	}
}
