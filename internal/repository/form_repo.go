package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteFormRepository implements FormRepository using SQLite.
type SQLiteFormRepository struct {
	db *sql.DB
}

// NewSQLiteFormRepository creates a new form repository.
func NewSQLiteFormRepository(db *sql.DB) *SQLiteFormRepository {
	return &SQLiteFormRepository{db: db}
}

func (r *SQLiteFormRepository) GetParentByName(ctx context.Context, orgID, name string) (*models.Form, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM forms WHERE organization_id = ? AND name = ? COLLATE NOCASE
	`, orgID, name)
	return scanFormParent(row)
}

func (r *SQLiteFormRepository) GetParent(ctx context.Context, orgID, formID string) (*models.Form, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM forms WHERE organization_id = ? AND id = ?
	`, orgID, formID)
	return scanFormParent(row)
}

func (r *SQLiteFormRepository) CreateRevision(ctx context.Context, parent *models.Form, rev *models.FormRevision) error {
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

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO forms (id, organization_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, name) DO UPDATE SET updated_at = excluded.updated_at
	`, parent.ID, parent.OrganizationID, parent.Name,
		formatTime(now), formatTime(now)); err != nil {
		return fmt.Errorf("failed to upsert form parent: %w", err)
	}

	var parentID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM forms WHERE organization_id = ? AND name = ? COLLATE NOCASE`,
		parent.OrganizationID, parent.Name).Scan(&parentID); err != nil {
		return fmt.Errorf("failed to read form parent: %w", err)
	}
	rev.FormID = parentID
	parent.ID = parentID

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(form_version), 0) + 1 FROM form_revisions WHERE form_id = ?`,
		parentID).Scan(&next); err != nil {
		return fmt.Errorf("failed to allocate form version: %w", err)
	}
	rev.FormVersion = next

	responseFormat, err := json.Marshal(rev.ResponseFormat)
	if err != nil {
		return fmt.Errorf("failed to encode form response format: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO form_revisions (form_revid, form_id, form_version, response_format,
			tag_ids, organization_id, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rev.RevID, rev.FormID, rev.FormVersion, string(responseFormat),
		encodeStrings(rev.TagIDs), rev.OrganizationID,
		formatTime(rev.CreatedAt), rev.CreatedBy); err != nil {
		return fmt.Errorf("failed to insert form revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SQLiteFormRepository) RenameParent(ctx context.Context, orgID, formID, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE forms SET name = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, name, formatTime(time.Now()), formID, orgID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to rename form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const formRevisionSelect = `
	SELECT r.form_revid, r.form_id, r.form_version, r.response_format,
	       r.tag_ids, r.organization_id, r.created_at, r.created_by, f.name
	FROM form_revisions r
	JOIN forms f ON f.id = r.form_id
`

func (r *SQLiteFormRepository) GetRevision(ctx context.Context, orgID, revID string) (*models.FormRevision, error) {
	row := r.db.QueryRowContext(ctx,
		formRevisionSelect+` WHERE r.organization_id = ? AND r.form_revid = ?`,
		orgID, revID)
	return scanFormRevisionRow(row)
}

func (r *SQLiteFormRepository) GetLatestRevision(ctx context.Context, orgID, formID string) (*models.FormRevision, error) {
	row := r.db.QueryRowContext(ctx,
		formRevisionSelect+` WHERE r.organization_id = ? AND r.form_id = ?
		ORDER BY r.form_version DESC LIMIT 1`,
		orgID, formID)
	return scanFormRevisionRow(row)
}

func (r *SQLiteFormRepository) ListLatest(ctx context.Context, orgID string, filter RevisionListFilter, skip, limit int) ([]*models.FormRevision, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	where := []string{"r.organization_id = ?"}
	args := []any{orgID}
	if filter.NameSearch != "" {
		where = append(where, "f.name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+filter.NameSearch+"%")
	}
	if len(filter.TagIDs) > 0 {
		var ors []string
		for _, id := range filter.TagIDs {
			ors = append(ors, "instr(r.tag_ids, ?) > 0")
			args = append(args, `"`+id+`"`)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	whereClause := strings.Join(where, " AND ")

	latest := `r.form_version = (SELECT MAX(form_version) FROM form_revisions WHERE form_id = r.form_id)`

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM form_revisions r
		JOIN forms f ON f.id = r.form_id
		WHERE `+whereClause+` AND `+latest, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count forms: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		formRevisionSelect+` WHERE `+whereClause+` AND `+latest+`
		ORDER BY f.name COLLATE NOCASE LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()

	var revs []*models.FormRevision
	for rows.Next() {
		rev, err := scanFormRevision(rows)
		if err != nil {
			return nil, 0, err
		}
		revs = append(revs, rev)
	}
	return revs, total, rows.Err()
}

func (r *SQLiteFormRepository) Delete(ctx context.Context, orgID, formID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM forms WHERE id = ? AND organization_id = ?`, formID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM form_revisions WHERE form_id = ?`, formID); err != nil {
		return fmt.Errorf("failed to delete form revisions: %w", err)
	}
	return nil
}

func (r *SQLiteFormRepository) CountByTag(ctx context.Context, orgID, tagID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM form_revisions
		WHERE organization_id = ? AND instr(tag_ids, ?) > 0
	`, orgID, `"`+tagID+`"`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count forms by tag: %w", err)
	}
	return count, nil
}

func scanFormParent(row rowScanner) (*models.Form, error) {
	var f models.Form
	var createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.OrganizationID, &f.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

func scanFormRevision(row rowScanner) (*models.FormRevision, error) {
	var rev models.FormRevision
	var responseFormat, tagIDs, createdAt string

	err := row.Scan(&rev.RevID, &rev.FormID, &rev.FormVersion, &responseFormat,
		&tagIDs, &rev.OrganizationID, &createdAt, &rev.CreatedBy, &rev.Name)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(responseFormat), &rev.ResponseFormat); err != nil {
		return nil, fmt.Errorf("failed to decode form response format: %w", err)
	}
	rev.TagIDs = decodeStrings(tagIDs)
	rev.CreatedAt = parseTime(createdAt)
	return &rev, nil
}

func scanFormRevisionRow(row rowScanner) (*models.FormRevision, error) {
	rev, err := scanFormRevision(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get form revision: %w", err)
	}
	return rev, nil
}
