package handlers

import (
	"context"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// UserOutput wraps a single user.
type UserOutput struct {
	Body *models.User
}

// CreateUserInput is the body of POST /account/users.
type CreateUserInput struct {
	Body struct {
		Email string            `json:"email" format:"email"`
		Name  string            `json:"name"`
		Role  models.MemberRole `json:"role,omitempty" enum:"admin,user"`
	}
}

// CreateUser creates a system user.
func (h *Handlers) CreateUser(ctx context.Context, input *CreateUserInput) (*UserOutput, error) {
	role := input.Body.Role
	if role == "" {
		role = models.RoleUser
	}
	user, err := h.services.Account.CreateUser(ctx, input.Body.Email, input.Body.Name, role)
	if err != nil {
		return nil, mapError(err)
	}
	return &UserOutput{Body: user}, nil
}

// UpdateUserInput is the body of PUT /account/users/{id}.
type UpdateUserInput struct {
	ID   string `path:"id"`
	Body struct {
		Name string            `json:"name"`
		Role models.MemberRole `json:"role" enum:"admin,user"`
	}
}

// UpdateUser updates a user's name and role.
func (h *Handlers) UpdateUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	user, err := h.services.Account.UpdateUser(ctx, input.ID, input.Body.Name, input.Body.Role)
	if err != nil {
		return nil, mapError(err)
	}
	return &UserOutput{Body: user}, nil
}

// DeleteUserInput identifies the user to delete.
type DeleteUserInput struct {
	ID string `path:"id"`
}

// DeleteUser removes a user. The last system admin cannot be removed.
func (h *Handlers) DeleteUser(ctx context.Context, input *DeleteUserInput) (*struct{}, error) {
	if err := h.services.Account.DeleteUser(ctx, input.ID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

// ListUsersInput carries user list paging.
type ListUsersInput struct {
	Pagination
}

// ListUsersOutput is a page of users.
type ListUsersOutput struct {
	Body struct {
		Users []*models.User `json:"users"`
		Total int            `json:"total"`
	}
}

// ListUsers lists system users.
func (h *Handlers) ListUsers(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	users, total, err := h.services.Account.ListUsers(ctx, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListUsersOutput{}
	out.Body.Users = users
	out.Body.Total = total
	return out, nil
}

// OrganizationOutput wraps a single organization.
type OrganizationOutput struct {
	Body *models.Organization
}

// CreateOrganizationInput is the body of POST /account/organizations.
type CreateOrganizationInput struct {
	Body struct {
		Name    string                      `json:"name"`
		Type    models.OrgType              `json:"type,omitempty" enum:"individual,team,enterprise"`
		Members []models.OrganizationMember `json:"members,omitempty"`
	}
}

// CreateOrganization creates an organization. The creator becomes an admin
// member unless an explicit member list is given.
func (h *Handlers) CreateOrganization(ctx context.Context, input *CreateOrganizationInput) (*OrganizationOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	orgType := input.Body.Type
	if orgType == "" {
		orgType = models.OrgTypeTeam
	}
	org, err := h.services.Account.CreateOrganization(ctx, id.UserID, input.Body.Name, orgType, input.Body.Members)
	if err != nil {
		return nil, mapError(err)
	}
	return &OrganizationOutput{Body: org}, nil
}

// UpdateOrganizationInput is the body of PUT /account/organizations/{id}.
type UpdateOrganizationInput struct {
	ID   string `path:"id"`
	Body struct {
		Name    string                      `json:"name,omitempty"`
		Type    models.OrgType              `json:"type,omitempty" enum:"individual,team,enterprise"`
		Members []models.OrganizationMember `json:"members,omitempty"`
	}
}

// UpdateOrganization renames an organization or replaces its member list.
// Requires the org admin role (or system admin).
func (h *Handlers) UpdateOrganization(ctx context.Context, input *UpdateOrganizationInput) (*OrganizationOutput, error) {
	if _, err := h.requireOrg(ctx, input.ID, models.RoleAdmin); err != nil {
		return nil, err
	}
	org, err := h.services.Account.UpdateOrganization(ctx, input.ID, input.Body.Name, input.Body.Type, input.Body.Members)
	if err != nil {
		return nil, mapError(err)
	}
	return &OrganizationOutput{Body: org}, nil
}

// ListOrganizationsInput carries organization list paging.
type ListOrganizationsInput struct {
	Pagination
}

// ListOrganizationsOutput is a page of organizations.
type ListOrganizationsOutput struct {
	Body struct {
		Organizations []*models.Organization `json:"organizations"`
		Total         int                    `json:"total"`
	}
}

// ListOrganizations lists organizations visible to the caller. Non-admins
// only see organizations they are a member of.
func (h *Handlers) ListOrganizations(ctx context.Context, input *ListOrganizationsInput) (*ListOrganizationsOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	orgs, total, err := h.services.Account.ListOrganizations(ctx, id, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListOrganizationsOutput{}
	out.Body.Organizations = orgs
	out.Body.Total = total
	return out, nil
}

// InviteInput is the body of POST /account/email/invitations.
type InviteInput struct {
	Body struct {
		Email          string            `json:"email" format:"email"`
		OrganizationID *string           `json:"organization_id,omitempty"`
		Role           models.MemberRole `json:"role,omitempty" enum:"admin,user"`
	}
}

// InviteOutput is the created invitation.
type InviteOutput struct {
	Body *models.Invitation
}

// Invite creates an email invitation, optionally bound to an organization.
func (h *Handlers) Invite(ctx context.Context, input *InviteInput) (*InviteOutput, error) {
	role := input.Body.Role
	if role == "" {
		role = models.RoleUser
	}
	inv, err := h.services.Account.Invite(ctx, input.Body.Email, input.Body.OrganizationID, role)
	if err != nil {
		return nil, mapError(err)
	}
	return &InviteOutput{Body: inv}, nil
}

// AcceptInvitationInput identifies the invitation to accept.
type AcceptInvitationInput struct {
	Token string `path:"token"`
}

// AcceptInvitation redeems an invitation for the calling user.
func (h *Handlers) AcceptInvitation(ctx context.Context, input *AcceptInvitationInput) (*struct{}, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.services.Account.AcceptInvitation(ctx, input.Token, id.UserID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

// StartEmailVerificationOutput is the created verification record.
type StartEmailVerificationOutput struct {
	Body struct {
		ExpiresAt time.Time `json:"expires_at"`
	}
}

// StartEmailVerification issues a fresh verification token for the caller
// and mails the verification link.
func (h *Handlers) StartEmailVerification(ctx context.Context, _ *struct{}) (*StartEmailVerificationOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	ver, err := h.services.Account.StartEmailVerification(ctx, id.UserID)
	if err != nil {
		return nil, mapError(err)
	}
	out := &StartEmailVerificationOutput{}
	out.Body.ExpiresAt = ver.ExpiresAt
	return out, nil
}

// VerifyEmailInput identifies the verification to redeem.
type VerifyEmailInput struct {
	Token string `path:"token"`
}

// VerifyEmail redeems an email verification token.
func (h *Handlers) VerifyEmail(ctx context.Context, input *VerifyEmailInput) (*struct{}, error) {
	if err := h.services.Account.VerifyEmail(ctx, input.Token); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}

// CreateAccessTokenInput is the body of POST /account/tokens.
type CreateAccessTokenInput struct {
	Body struct {
		Name           string  `json:"name"`
		OrganizationID *string `json:"organization_id,omitempty"`
		Lifetime       int64   `json:"lifetime,omitempty" doc:"Token lifetime in seconds, 0 for no expiry"`
	}
}

// CreateAccessTokenOutput carries the raw token. It is shown exactly once.
type CreateAccessTokenOutput struct {
	Body struct {
		*models.AccessToken
		Token string `json:"token"`
	}
}

// CreateAccessToken mints an opaque bearer token. Org-scoped tokens require
// the org admin role.
func (h *Handlers) CreateAccessToken(ctx context.Context, input *CreateAccessTokenInput) (*CreateAccessTokenOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if input.Body.OrganizationID != nil {
		if _, err := h.requireOrg(ctx, *input.Body.OrganizationID, models.RoleAdmin); err != nil {
			return nil, err
		}
	}
	record, raw, err := h.services.Account.CreateAccessToken(ctx, id.UserID, input.Body.OrganizationID, input.Body.Name, input.Body.Lifetime)
	if err != nil {
		return nil, mapError(err)
	}
	out := &CreateAccessTokenOutput{}
	out.Body.AccessToken = record
	out.Body.Token = raw
	return out, nil
}

// ListAccessTokensInput filters the token listing.
type ListAccessTokensInput struct {
	OrganizationID string `query:"organization_id"`
}

// ListAccessTokensOutput is the caller's tokens.
type ListAccessTokensOutput struct {
	Body struct {
		Tokens []*models.AccessToken `json:"tokens"`
	}
}

// ListAccessTokens lists the caller's tokens, optionally narrowed to one
// organization.
func (h *Handlers) ListAccessTokens(ctx context.Context, input *ListAccessTokensInput) (*ListAccessTokensOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	var orgID *string
	if input.OrganizationID != "" {
		orgID = &input.OrganizationID
	}
	tokens, err := h.services.Account.ListAccessTokens(ctx, id.UserID, orgID)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListAccessTokensOutput{}
	out.Body.Tokens = tokens
	return out, nil
}

// DeleteAccessTokenInput identifies the token to revoke.
type DeleteAccessTokenInput struct {
	ID string `path:"id"`
}

// DeleteAccessToken revokes one of the caller's tokens.
func (h *Handlers) DeleteAccessToken(ctx context.Context, input *DeleteAccessTokenInput) (*struct{}, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.services.Account.DeleteAccessToken(ctx, input.ID, id.UserID); err != nil {
		return nil, mapError(err)
	}
	return &struct{}{}, nil
}
