package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteInvitationRepository implements InvitationRepository using SQLite.
type SQLiteInvitationRepository struct {
	db *sql.DB
}

// NewSQLiteInvitationRepository creates a new invitation repository.
func NewSQLiteInvitationRepository(db *sql.DB) *SQLiteInvitationRepository {
	return &SQLiteInvitationRepository{db: db}
}

func (r *SQLiteInvitationRepository) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invitations (id, email, organization_id, role, token, expires_at, accepted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.Email, inv.OrganizationID, string(inv.Role), inv.Token,
		formatTime(inv.ExpiresAt), formatTimePtr(inv.AcceptedAt), formatTime(inv.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (r *SQLiteInvitationRepository) GetInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, organization_id, role, token, expires_at, accepted_at, created_at
		FROM invitations WHERE token = ?
	`, token)

	var inv models.Invitation
	var orgID, acceptedAt sql.NullString
	var role, expiresAt, createdAt string
	err := row.Scan(&inv.ID, &inv.Email, &orgID, &role, &inv.Token,
		&expiresAt, &acceptedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if orgID.Valid {
		inv.OrganizationID = &orgID.String
	}
	inv.Role = models.MemberRole(role)
	inv.ExpiresAt = parseTime(expiresAt)
	inv.AcceptedAt = parseTimePtr(acceptedAt)
	inv.CreatedAt = parseTime(createdAt)
	return &inv, nil
}

// AcceptInvitation marks the invitation accepted. Already-accepted or
// expired invitations are not matched and return ErrNotFound.
func (r *SQLiteInvitationRepository) AcceptInvitation(ctx context.Context, token string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invitations SET accepted_at = ?
		WHERE token = ? AND accepted_at IS NULL AND expires_at > ?
	`, formatTime(at), token, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteInvitationRepository) CreateVerification(ctx context.Context, v *models.EmailVerification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_verifications (id, user_id, token, expires_at, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, v.UserID, v.Token, formatTime(v.ExpiresAt),
		formatTimePtr(v.UsedAt), formatTime(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	return nil
}

// UseVerification consumes a verification token. The single UPDATE makes the
// token one-shot even under concurrent use.
func (r *SQLiteInvitationRepository) UseVerification(ctx context.Context, token string, at time.Time) (*models.EmailVerification, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE email_verifications SET used_at = ?
		WHERE token = ? AND used_at IS NULL AND expires_at > ?
		RETURNING id, user_id, token, expires_at, used_at, created_at
	`, formatTime(at), token, formatTime(at))

	var v models.EmailVerification
	var usedAt sql.NullString
	var expiresAt, createdAt string
	err := row.Scan(&v.ID, &v.UserID, &v.Token, &expiresAt, &usedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to use verification: %w", err)
	}
	v.ExpiresAt = parseTime(expiresAt)
	v.UsedAt = parseTimePtr(usedAt)
	v.CreatedAt = parseTime(createdAt)
	return &v, nil
}
