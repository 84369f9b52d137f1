package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/config"
	"github.com/docrouter-ai/docrouter-api/internal/database/migrations"
	"github.com/docrouter-ai/docrouter-api/internal/http/mw"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// setupHandlers builds a handler set against an in-memory database with the
// full service stack behind it.
func setupHandlers(t *testing.T) (*Handlers, *repository.Repositories) {
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

	repos := repository.NewRepositories(db)
	logger := slog.New(slog.DiscardHandler)

	cfg := &config.Config{
		JWTSecret:           "test-secret",
		EncryptionKey:       bytes.Repeat([]byte{0x42}, 32),
		DefaultLLMModel:     "claude-sonnet-4-5",
		VerificationBaseURL: "http://localhost:3000",
	}
	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		t.Fatalf("failed to create services: %v", err)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret, repos)

	return New(logger, services, verifier, db), repos
}

// asUser returns a context carrying the given identity, the way the auth
// middleware leaves it for handlers.
func asUser(userID string) context.Context {
	return mw.WithIdentity(context.Background(), &auth.Identity{UserID: userID})
}

func asAdmin(userID string) context.Context {
	return mw.WithIdentity(context.Background(), &auth.Identity{UserID: userID, IsAdmin: true})
}

func asOrgToken(userID, orgID string) context.Context {
	return mw.WithIdentity(context.Background(), &auth.Identity{UserID: userID, TokenOrgID: orgID})
}

// seedOrg creates a user and an organization with that user as an admin
// member, returning both ids.
func seedOrg(t *testing.T, h *Handlers) (userID, orgID string) {
	t.Helper()
	ctx := context.Background()

	user, err := h.services.Account.CreateUser(ctx, "owner@example.com", "Owner", models.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	org, err := h.services.Account.CreateOrganization(ctx, user.ID, "Acme", models.OrgTypeTeam, nil)
	if err != nil {
		t.Fatalf("failed to seed org: %v", err)
	}
	return user.ID, org.ID
}

// seedMember adds another user to the organization with the given role.
func seedMember(t *testing.T, h *Handlers, orgID, email string, role models.MemberRole) string {
	t.Helper()
	ctx := context.Background()

	user, err := h.services.Account.CreateUser(ctx, email, "Member", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
	org, err := h.services.Account.GetOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("failed to load org: %v", err)
	}
	members := append(org.Members, models.OrganizationMember{UserID: user.ID, Role: role})
	if _, err := h.services.Account.UpdateOrganization(ctx, orgID, org.Name, org.Type, members); err != nil {
		t.Fatalf("failed to add member: %v", err)
	}
	return user.ID
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
