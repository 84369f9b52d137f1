package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, email, name, role, email_verified, has_password, created_at, updated_at`

func (r *SQLiteUserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.Name, string(user.Role),
		boolToInt(user.EmailVerified), boolToInt(user.HasPassword),
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUserRow(row)
}

func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	return scanUserRow(row)
}

func (r *SQLiteUserRepository) Update(ctx context.Context, user *models.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET email = ?, name = ?, role = ?, email_verified = ?, has_password = ?, updated_at = ?
		WHERE id = ?
	`, user.Email, user.Name, string(user.Role),
		boolToInt(user.EmailVerified), boolToInt(user.HasPassword),
		formatTime(time.Now()), user.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteUserRepository) List(ctx context.Context, skip, limit int) ([]*models.User, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY email LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (r *SQLiteUserRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var role, createdAt, updatedAt string
	var emailVerified, hasPassword int
	err := row.Scan(&user.ID, &user.Email, &user.Name, &role,
		&emailVerified, &hasPassword, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = models.MemberRole(role)
	user.EmailVerified = emailVerified != 0
	user.HasPassword = hasPassword != 0
	user.CreatedAt = parseTime(createdAt)
	user.UpdatedAt = parseTime(updatedAt)
	return &user, nil
}

func scanUserRow(row rowScanner) (*models.User, error) {
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SQLiteOrganizationRepository implements OrganizationRepository using
// SQLite. Members live in organization_members and are reassembled onto the
// model on every read.
type SQLiteOrganizationRepository struct {
	db *sql.DB
}

// NewSQLiteOrganizationRepository creates a new organization repository.
func NewSQLiteOrganizationRepository(db *sql.DB) *SQLiteOrganizationRepository {
	return &SQLiteOrganizationRepository{db: db}
}

func (r *SQLiteOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, org.ID, org.Name, string(org.Type),
		formatTime(org.CreatedAt), formatTime(org.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	if err := replaceMembers(ctx, tx, org.ID, org.Members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SQLiteOrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, created_at, updated_at FROM organizations WHERE id = ?`, id)
	return r.scanOrgWithMembers(ctx, row)
}

func (r *SQLiteOrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, created_at, updated_at FROM organizations WHERE name = ? COLLATE NOCASE`, name)
	return r.scanOrgWithMembers(ctx, row)
}

func (r *SQLiteOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE organizations SET name = ?, type = ?, updated_at = ? WHERE id = ?
	`, org.Name, string(org.Type), formatTime(time.Now()), org.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM organization_members WHERE organization_id = ?`, org.ID); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	if err := replaceMembers(ctx, tx, org.ID, org.Members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SQLiteOrganizationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM organization_members WHERE organization_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	return nil
}

func (r *SQLiteOrganizationRepository) List(ctx context.Context, skip, limit int) ([]*models.Organization, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, created_at, updated_at FROM organizations
		ORDER BY name COLLATE NOCASE LIMIT ? OFFSET ?
	`, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	orgs, err := r.collectOrgs(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return orgs, total, nil
}

func (r *SQLiteOrganizationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.name, o.type, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = ?
		ORDER BY o.name COLLATE NOCASE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations for user: %w", err)
	}
	return r.collectOrgs(ctx, rows)
}

func (r *SQLiteOrganizationRepository) collectOrgs(ctx context.Context, rows *sql.Rows) ([]*models.Organization, error) {
	defer rows.Close()
	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, org := range orgs {
		members, err := r.loadMembers(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		org.Members = members
	}
	return orgs, nil
}

func (r *SQLiteOrganizationRepository) scanOrgWithMembers(ctx context.Context, row rowScanner) (*models.Organization, error) {
	org, err := scanOrg(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	members, err := r.loadMembers(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	org.Members = members
	return org, nil
}

func (r *SQLiteOrganizationRepository) loadMembers(ctx context.Context, orgID string) ([]models.OrganizationMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, role FROM organization_members WHERE organization_id = ? ORDER BY user_id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	defer rows.Close()

	var members []models.OrganizationMember
	for rows.Next() {
		var m models.OrganizationMember
		var role string
		if err := rows.Scan(&m.UserID, &role); err != nil {
			return nil, err
		}
		m.Role = models.MemberRole(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func replaceMembers(ctx context.Context, tx *sql.Tx, orgID string, members []models.OrganizationMember) error {
	for _, m := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO organization_members (organization_id, user_id, role)
			VALUES (?, ?, ?)
			ON CONFLICT (organization_id, user_id) DO UPDATE SET role = excluded.role
		`, orgID, m.UserID, string(m.Role)); err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}
	return nil
}

func scanOrg(row rowScanner) (*models.Organization, error) {
	var org models.Organization
	var orgType, createdAt, updatedAt string
	err := row.Scan(&org.ID, &org.Name, &orgType, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	org.Type = models.OrgType(orgType)
	org.CreatedAt = parseTime(createdAt)
	org.UpdatedAt = parseTime(updatedAt)
	return &org, nil
}

// SQLiteAccessTokenRepository implements AccessTokenRepository using SQLite.
type SQLiteAccessTokenRepository struct {
	db *sql.DB
}

// NewSQLiteAccessTokenRepository creates a new access token repository.
func NewSQLiteAccessTokenRepository(db *sql.DB) *SQLiteAccessTokenRepository {
	return &SQLiteAccessTokenRepository{db: db}
}

const tokenColumns = `id, user_id, organization_id, name, token_encrypted, token_hash, token_prefix, lifetime, created_at`

func (r *SQLiteAccessTokenRepository) Create(ctx context.Context, token *models.AccessToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens (`+tokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, token.ID, token.UserID, token.OrganizationID, token.Name,
		token.TokenEncrypted, token.TokenHash, token.TokenPrefix,
		token.Lifetime, formatTime(token.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

func (r *SQLiteAccessTokenRepository) GetByHash(ctx context.Context, hash string) (*models.AccessToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE token_hash = ?`, hash)
	token, err := scanAccessToken(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return token, nil
}

func (r *SQLiteAccessTokenRepository) ListByUser(ctx context.Context, userID string, orgID *string) ([]*models.AccessToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM access_tokens WHERE user_id = ?`
	args := []any{userID}
	if orgID != nil {
		query += ` AND organization_id = ?`
		args = append(args, *orgID)
	} else {
		query += ` AND organization_id IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list access tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.AccessToken
	for rows.Next() {
		token, err := scanAccessToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (r *SQLiteAccessTokenRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccessToken(row rowScanner) (*models.AccessToken, error) {
	var token models.AccessToken
	var orgID sql.NullString
	var createdAt string
	err := row.Scan(&token.ID, &token.UserID, &orgID, &token.Name,
		&token.TokenEncrypted, &token.TokenHash, &token.TokenPrefix,
		&token.Lifetime, &createdAt)
	if err != nil {
		return nil, err
	}
	if orgID.Valid {
		token.OrganizationID = &orgID.String
	}
	token.CreatedAt = parseTime(createdAt)
	return &token, nil
}
