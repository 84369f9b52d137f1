package handlers

import (
	"testing"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

func TestCreateUser(t *testing.T) {
	h, _ := setupHandlers(t)

	input := &CreateUserInput{}
	input.Body.Email = "new@example.com"
	input.Body.Name = "New User"

	output, err := h.CreateUser(asAdmin("sys"), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Email != "new@example.com" {
		t.Errorf("Email = %q, want %q", output.Body.Email, "new@example.com")
	}
	if output.Body.Role != models.RoleUser {
		t.Errorf("Role = %q, want default %q", output.Body.Role, models.RoleUser)
	}

	// Same email again conflicts.
	_, err = h.CreateUser(asAdmin("sys"), input)
	if got := statusOf(t, err); got != 409 {
		t.Errorf("duplicate email status = %d, want 409", got)
	}
}

func TestCreateOrganization_CreatorBecomesAdmin(t *testing.T) {
	h, _ := setupHandlers(t)

	user, err := h.services.Account.CreateUser(asAdmin("sys"), "creator@example.com", "Creator", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	input := &CreateOrganizationInput{}
	input.Body.Name = "New Org"

	output, err := h.CreateOrganization(asUser(user.ID), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Type != models.OrgTypeTeam {
		t.Errorf("Type = %q, want default %q", output.Body.Type, models.OrgTypeTeam)
	}
	if output.Body.RoleOf(user.ID) != models.RoleAdmin {
		t.Errorf("creator role = %q, want %q", output.Body.RoleOf(user.ID), models.RoleAdmin)
	}
}

func TestUpdateOrganization_RequiresOrgAdmin(t *testing.T) {
	h, _ := setupHandlers(t)
	_, orgID := seedOrg(t, h)
	memberID := seedMember(t, h, orgID, "plain@example.com", models.RoleUser)

	input := &UpdateOrganizationInput{ID: orgID}
	input.Body.Name = "Renamed"

	_, err := h.UpdateOrganization(asUser(memberID), input)
	if got := statusOf(t, err); got != 403 {
		t.Errorf("status = %d, want 403", got)
	}
}

func TestListOrganizations_MembershipFiltered(t *testing.T) {
	h, _ := setupHandlers(t)
	userID, orgID := seedOrg(t, h)
	outsiderID := seedMember(t, h, orgID, "other@example.com", models.RoleUser)

	// A second org the first user is not a member of.
	if _, err := h.services.Account.CreateOrganization(asUser(outsiderID), outsiderID, "Other Org", models.OrgTypeTeam, []models.OrganizationMember{{UserID: outsiderID, Role: models.RoleAdmin}}); err != nil {
		t.Fatalf("failed to seed second org: %v", err)
	}

	output, err := h.ListOrganizations(asUser(userID), &ListOrganizationsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Total != 1 {
		t.Errorf("Total = %d, want 1", output.Body.Total)
	}
	if len(output.Body.Organizations) != 1 || output.Body.Organizations[0].ID != orgID {
		t.Errorf("expected only org %q in listing", orgID)
	}
}

func TestCreateAccessToken_OrgScopedRequiresAdmin(t *testing.T) {
	h, _ := setupHandlers(t)
	ownerID, orgID := seedOrg(t, h)
	memberID := seedMember(t, h, orgID, "plain@example.com", models.RoleUser)

	input := &CreateAccessTokenInput{}
	input.Body.Name = "ci token"
	input.Body.OrganizationID = &orgID

	_, err := h.CreateAccessToken(asUser(memberID), input)
	if got := statusOf(t, err); got != 403 {
		t.Errorf("member status = %d, want 403", got)
	}

	output, err := h.CreateAccessToken(asUser(ownerID), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Token == "" {
		t.Error("expected raw token in response")
	}
	if output.Body.OrganizationID == nil || *output.Body.OrganizationID != orgID {
		t.Error("expected token to be org-scoped")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	h, _ := setupHandlers(t)
	ownerID, _ := seedOrg(t, h)

	input := &CreateAccessTokenInput{}
	input.Body.Name = "personal"

	created, err := h.CreateAccessToken(asUser(ownerID), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The minted token authenticates back to the same user.
	id, err := h.verifier.Verify(asUser(ownerID), created.Body.Token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if id.UserID != ownerID {
		t.Errorf("UserID = %q, want %q", id.UserID, ownerID)
	}

	list, err := h.ListAccessTokens(asUser(ownerID), &ListAccessTokensInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Body.Tokens) != 1 {
		t.Fatalf("len(Tokens) = %d, want 1", len(list.Body.Tokens))
	}

	if _, err := h.DeleteAccessToken(asUser(ownerID), &DeleteAccessTokenInput{ID: list.Body.Tokens[0].ID}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := h.verifier.Verify(asUser(ownerID), created.Body.Token); err == nil {
		t.Error("expected revoked token to fail verification")
	}
}

func TestInvitationFlow(t *testing.T) {
	h, _ := setupHandlers(t)
	_, orgID := seedOrg(t, h)

	input := &InviteInput{}
	input.Body.Email = "invitee@example.com"
	input.Body.OrganizationID = &orgID

	inv, err := h.Invite(asAdmin("sys"), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Body.Token == "" {
		t.Fatal("expected invitation token")
	}

	invitee, err := h.services.Account.CreateUser(asAdmin("sys"), "invitee@example.com", "Invitee", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to seed invitee: %v", err)
	}

	if _, err := h.AcceptInvitation(asUser(invitee.ID), &AcceptInvitationInput{Token: inv.Body.Token}); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	org, err := h.services.Account.GetOrganization(asUser(invitee.ID), orgID)
	if err != nil {
		t.Fatalf("failed to load org: %v", err)
	}
	if org.RoleOf(invitee.ID) != models.RoleUser {
		t.Errorf("invitee role = %q, want %q", org.RoleOf(invitee.ID), models.RoleUser)
	}

	// Tokens are single use.
	_, err = h.AcceptInvitation(asUser(invitee.ID), &AcceptInvitationInput{Token: inv.Body.Token})
	if err == nil {
		t.Error("expected second accept to fail")
	}
}
