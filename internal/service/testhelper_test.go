package service

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/docrouter-ai/docrouter-api/internal/database/migrations"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

func setupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return repository.NewRepositories(db)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// grantCredits seeds a payments customer with granted credits.
func grantCredits(t *testing.T, repos *repository.Repositories, orgID string, granted float64) {
	t.Helper()
	err := repos.Payments.UpsertCustomer(context.Background(), &models.PaymentsCustomer{
		OrganizationID: orgID,
		GrantedCredits: granted,
		UpdatedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}
}
