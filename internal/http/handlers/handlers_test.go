package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/http/mw"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// statusOf extracts the HTTP status from a handler error.
func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected status error, got %T: %v", err, err)
	}
	return se.GetStatus()
}

func TestHealth(t *testing.T) {
	h, _ := setupHandlers(t)

	output, err := h.Health(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "healthy" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "healthy")
	}
	if output.Body.Version == "" {
		t.Error("expected version to be set")
	}
}

func TestLivez(t *testing.T) {
	h, _ := setupHandlers(t)

	output, err := h.Livez(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	h, _ := setupHandlers(t)

	output, err := h.Readyz(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
	}
}

func TestIdentity_Missing(t *testing.T) {
	h, _ := setupHandlers(t)

	_, err := h.ListOrganizations(context.Background(), &ListOrganizationsInput{})
	if got := statusOf(t, err); got != 401 {
		t.Errorf("status = %d, want 401", got)
	}
}

func TestRequireOrg_Member(t *testing.T) {
	h, _ := setupHandlers(t)
	userID, orgID := seedOrg(t, h)

	org, err := h.requireOrg(asUser(userID), orgID, models.RoleUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID != orgID {
		t.Errorf("org.ID = %q, want %q", org.ID, orgID)
	}
}

func TestRequireOrg_NotAMember(t *testing.T) {
	h, _ := setupHandlers(t)
	_, orgID := seedOrg(t, h)

	outsider, err := h.services.Account.CreateUser(context.Background(), "out@example.com", "Out", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	_, err = h.requireOrg(asUser(outsider.ID), orgID, models.RoleUser)
	if got := statusOf(t, err); got != 403 {
		t.Errorf("status = %d, want 403", got)
	}
}

func TestRequireOrg_SystemAdminBypass(t *testing.T) {
	h, _ := setupHandlers(t)
	_, orgID := seedOrg(t, h)

	_, err := h.requireOrg(asAdmin("some-admin"), orgID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireOrg_OrgTokenConfinement(t *testing.T) {
	h, _ := setupHandlers(t)
	userID, orgID := seedOrg(t, h)

	// A token scoped to a different org cannot act here, even for a member.
	_, err := h.requireOrg(asOrgToken(userID, "other-org"), orgID, models.RoleUser)
	if got := statusOf(t, err); got != 403 {
		t.Errorf("status = %d, want 403", got)
	}

	// Scoped to the right org it works.
	if _, err := h.requireOrg(asOrgToken(userID, orgID), orgID, models.RoleUser); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireOrg_AccountTokenRejected(t *testing.T) {
	h, _ := setupHandlers(t)
	userID, orgID := seedOrg(t, h)
	ctx := context.Background()

	// An account-level token resolves to an identity, but that identity can
	// never act on org endpoints, member or not.
	_, raw, err := h.services.Account.CreateAccessToken(ctx, userID, nil, "ci", 0)
	if err != nil {
		t.Fatalf("CreateAccessToken() error = %v", err)
	}
	id, err := h.verifier.Verify(ctx, raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !id.AccountToken {
		t.Fatal("expected identity to be marked as an account token")
	}

	_, err = h.requireOrg(mw.WithIdentity(ctx, id), orgID, models.RoleUser)
	if got := statusOf(t, err); got != 403 {
		t.Errorf("status = %d, want 403", got)
	}
}

func TestRequireOrg_AdminRoleRequired(t *testing.T) {
	h, _ := setupHandlers(t)
	_, orgID := seedOrg(t, h)
	memberID := seedMember(t, h, orgID, "plain@example.com", models.RoleUser)

	_, err := h.requireOrg(asUser(memberID), orgID, models.RoleAdmin)
	if got := statusOf(t, err); got != 403 {
		t.Errorf("status = %d, want 403", got)
	}
}

func TestRequireOrg_UnknownOrg(t *testing.T) {
	h, _ := setupHandlers(t)
	userID, _ := seedOrg(t, h)

	_, err := h.requireOrg(asUser(userID), "nope", models.RoleUser)
	if got := statusOf(t, err); got != 404 {
		t.Errorf("status = %d, want 404", got)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &service.ValidationError{Detail: "bad"}, 422},
		{"referenced", &service.ReferencedError{Entity: "tag", ID: "t1", Referrers: []string{"1 document"}}, 409},
		{"credits", &service.SPUCreditError{Required: 1, Available: 0}, 402},
		{"not found", repository.ErrNotFound, 404},
		{"duplicate", repository.ErrDuplicateName, 409},
		{"bad token", auth.ErrInvalidToken, 401},
		{"expired token", auth.ErrTokenExpired, 401},
		{"wrapped not found", fmt.Errorf("loading: %w", repository.ErrNotFound), 404},
		{"unknown", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusOf(t, mapError(tt.err)); got != tt.want {
				t.Errorf("mapError(%v) status = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
