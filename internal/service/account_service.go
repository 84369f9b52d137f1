package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/crypto"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// ErrLastAdmin is returned when an operation would leave the system or an
// organization without an admin.
var ErrLastAdmin = errors.New("operation would remove the last admin")

// invitationLifetime is how long org invitations stay acceptable.
const invitationLifetime = 7 * 24 * time.Hour

// verificationLifetime is how long email verification tokens stay valid.
const verificationLifetime = 24 * time.Hour

// Mailer delivers account emails. Transport is an external collaborator; the
// default implementation only logs.
type Mailer interface {
	SendInvitation(ctx context.Context, email, link string) error
	SendVerification(ctx context.Context, email, link string) error
}

// LogMailer is the no-op Mailer used when no mail transport is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendInvitation(_ context.Context, email, link string) error {
	m.Logger.Info("invitation mail suppressed (no mail transport)", "email", email, "link", link)
	return nil
}

func (m *LogMailer) SendVerification(_ context.Context, email, link string) error {
	m.Logger.Info("verification mail suppressed (no mail transport)", "email", email, "link", link)
	return nil
}

// AccountService manages users, organizations, invitations and access tokens.
type AccountService struct {
	logger    *slog.Logger
	repos     *repository.Repositories
	encryptor *crypto.Encryptor
	mailer    Mailer
	baseURL   string
}

// NewAccountService creates a new account service.
func NewAccountService(logger *slog.Logger, repos *repository.Repositories, encryptor *crypto.Encryptor, mailer Mailer, baseURL string) *AccountService {
	if mailer == nil {
		mailer = &LogMailer{Logger: logger}
	}
	return &AccountService{
		logger:    logger,
		repos:     repos,
		encryptor: encryptor,
		mailer:    mailer,
		baseURL:   baseURL,
	}
}

// CreateUser adds a user account.
func (s *AccountService) CreateUser(ctx context.Context, email, name string, role models.MemberRole) (*models.User, error) {
	if email == "" {
		return nil, validationErrorf("email must not be empty")
	}
	if role == "" {
		role = models.RoleUser
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:        models.NewID(),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.User.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser modifies a user's name or role, preserving the at-least-one-
// system-admin invariant.
func (s *AccountService) UpdateUser(ctx context.Context, id, name string, role models.MemberRole) (*models.User, error) {
	user, err := s.repos.User.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != "" && role != user.Role && user.Role == models.RoleAdmin {
		admins, err := s.repos.User.CountAdmins(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return nil, ErrLastAdmin
		}
	}
	if name != "" {
		user.Name = name
	}
	if role != "" {
		user.Role = role
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user account, refusing to remove the last admin.
func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.repos.User.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		admins, err := s.repos.User.CountAdmins(ctx)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	return s.repos.User.Delete(ctx, id)
}

// ListUsers returns user accounts.
func (s *AccountService) ListUsers(ctx context.Context, skip, limit int) ([]*models.User, int, error) {
	return s.repos.User.List(ctx, skip, clampLimit(limit))
}

// CreateOrganization adds an organization. The creating user becomes its
// first admin when the member list leaves them out.
func (s *AccountService) CreateOrganization(ctx context.Context, creatorID, name string, orgType models.OrgType, members []models.OrganizationMember) (*models.Organization, error) {
	if name == "" {
		return nil, validationErrorf("organization name must not be empty")
	}
	if orgType == "" {
		orgType = models.OrgTypeIndividual
	}

	now := time.Now().UTC()
	org := &models.Organization{
		ID:        models.NewID(),
		Name:      name,
		Type:      orgType,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if org.RoleOf(creatorID) == "" {
		org.Members = append(org.Members, models.OrganizationMember{UserID: creatorID, Role: models.RoleAdmin})
	}
	if !org.HasAdmin() {
		return nil, ErrLastAdmin
	}

	if err := s.repos.Organization.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateOrganization modifies an organization's name, type or member set.
// The member set is replaced; the result must retain an admin.
func (s *AccountService) UpdateOrganization(ctx context.Context, id, name string, orgType models.OrgType, members []models.OrganizationMember) (*models.Organization, error) {
	org, err := s.repos.Organization.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		org.Name = name
	}
	if orgType != "" {
		org.Type = orgType
	}
	if members != nil {
		org.Members = members
	}
	if !org.HasAdmin() {
		return nil, ErrLastAdmin
	}
	org.UpdatedAt = time.Now().UTC()
	if err := s.repos.Organization.Update(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganization returns one organization.
func (s *AccountService) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	return s.repos.Organization.GetByID(ctx, id)
}

// ListOrganizations returns the organizations a user belongs to, or all of
// them for system admins.
func (s *AccountService) ListOrganizations(ctx context.Context, identity *auth.Identity, skip, limit int) ([]*models.Organization, int, error) {
	if identity.IsAdmin {
		return s.repos.Organization.List(ctx, skip, clampLimit(limit))
	}
	orgs, err := s.repos.Organization.ListForUser(ctx, identity.UserID)
	if err != nil {
		return nil, 0, err
	}
	return orgs, len(orgs), nil
}

// Invite records an invitation and hands the accept link to the mailer.
func (s *AccountService) Invite(ctx context.Context, email string, orgID *string, role models.MemberRole) (*models.Invitation, error) {
	if email == "" {
		return nil, validationErrorf("email must not be empty")
	}
	if role == "" {
		role = models.RoleUser
	}
	token, err := auth.GenerateToken("")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	inv := &models.Invitation{
		ID:             models.NewID(),
		Email:          email,
		OrganizationID: orgID,
		Role:           role,
		Token:          token,
		ExpiresAt:      now.Add(invitationLifetime),
		CreatedAt:      now,
	}
	if err := s.repos.Invitation.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	link := s.baseURL + "/invitations/" + token
	if err := s.mailer.SendInvitation(ctx, email, link); err != nil {
		s.logger.Error("failed to send invitation mail", "email", email, "error", err)
	}
	return inv, nil
}

// AcceptInvitation consumes an invitation token and adds the accepting user
// to the invited organization.
func (s *AccountService) AcceptInvitation(ctx context.Context, token, userID string) error {
	inv, err := s.repos.Invitation.GetInvitationByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.repos.Invitation.AcceptInvitation(ctx, token, time.Now().UTC()); err != nil {
		return err
	}
	if inv.OrganizationID == nil {
		return nil
	}

	org, err := s.repos.Organization.GetByID(ctx, *inv.OrganizationID)
	if err != nil {
		return err
	}
	if org.RoleOf(userID) != "" {
		return nil
	}
	org.Members = append(org.Members, models.OrganizationMember{UserID: userID, Role: inv.Role})
	org.UpdatedAt = time.Now().UTC()
	return s.repos.Organization.Update(ctx, org)
}

// StartEmailVerification records a verification token and mails the link.
func (s *AccountService) StartEmailVerification(ctx context.Context, userID string) (*models.EmailVerification, error) {
	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, err := auth.GenerateToken("")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	v := &models.EmailVerification{
		ID:        models.NewID(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(verificationLifetime),
		CreatedAt: now,
	}
	if err := s.repos.Invitation.CreateVerification(ctx, v); err != nil {
		return nil, err
	}

	link := s.baseURL + "/verify/" + token
	if err := s.mailer.SendVerification(ctx, user.Email, link); err != nil {
		s.logger.Error("failed to send verification mail", "email", user.Email, "error", err)
	}
	return v, nil
}

// VerifyEmail consumes a verification token and marks the user verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) error {
	v, err := s.repos.Invitation.UseVerification(ctx, token, time.Now().UTC())
	if err != nil {
		return err
	}
	user, err := s.repos.User.GetByID(ctx, v.UserID)
	if err != nil {
		return err
	}
	user.EmailVerified = true
	user.UpdatedAt = time.Now().UTC()
	return s.repos.User.Update(ctx, user)
}

// CreateAccessToken mints an opaque token. The raw token is returned exactly
// once; only hash and ciphertext are stored.
func (s *AccountService) CreateAccessToken(ctx context.Context, userID string, orgID *string, name string, lifetime int64) (*models.AccessToken, string, error) {
	if name == "" {
		return nil, "", validationErrorf("token name must not be empty")
	}
	prefix := auth.AccountTokenPrefix
	if orgID != nil {
		prefix = auth.OrgTokenPrefix
	}
	raw, err := auth.GenerateToken(prefix)
	if err != nil {
		return nil, "", err
	}
	encrypted, err := s.encryptor.Encrypt(raw)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encrypt token: %w", err)
	}

	token := &models.AccessToken{
		ID:             models.NewID(),
		UserID:         userID,
		OrganizationID: orgID,
		Name:           name,
		TokenEncrypted: encrypted,
		TokenHash:      auth.HashToken(raw),
		TokenPrefix:    auth.DisplayPrefix(raw),
		Lifetime:       lifetime,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repos.AccessToken.Create(ctx, token); err != nil {
		return nil, "", err
	}
	return token, raw, nil
}

// ListAccessTokens returns a user's tokens, optionally scoped to one org.
func (s *AccountService) ListAccessTokens(ctx context.Context, userID string, orgID *string) ([]*models.AccessToken, error) {
	return s.repos.AccessToken.ListByUser(ctx, userID, orgID)
}

// DeleteAccessToken removes one of the user's tokens.
func (s *AccountService) DeleteAccessToken(ctx context.Context, id, userID string) error {
	return s.repos.AccessToken.Delete(ctx, id, userID)
}
