package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteTagRepository implements TagRepository using SQLite.
type SQLiteTagRepository struct {
	db *sql.DB
}

// NewSQLiteTagRepository creates a new tag repository.
func NewSQLiteTagRepository(db *sql.DB) *SQLiteTagRepository {
	return &SQLiteTagRepository{db: db}
}

func (r *SQLiteTagRepository) Create(ctx context.Context, tag *models.Tag) error {
	query := `
		INSERT INTO tags (id, organization_id, name, color, description, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		tag.ID, tag.OrganizationID, tag.Name, tag.Color, tag.Description,
		tag.CreatedBy, formatTime(tag.CreatedAt), formatTime(tag.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

func (r *SQLiteTagRepository) GetByID(ctx context.Context, orgID, id string) (*models.Tag, error) {
	query := `
		SELECT id, organization_id, name, color, description, created_by, created_at, updated_at
		FROM tags WHERE id = ? AND organization_id = ?
	`
	tag, err := scanTag(r.db.QueryRowContext(ctx, query, id, orgID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return tag, nil
}

func (r *SQLiteTagRepository) GetByIDs(ctx context.Context, orgID string, ids []string) ([]*models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := []any{orgID}
	for _, id := range ids {
		args = append(args, id)
	}
	query := `
		SELECT id, organization_id, name, color, description, created_by, created_at, updated_at
		FROM tags WHERE organization_id = ? AND id IN (` + placeholders(len(ids)) + `)
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *SQLiteTagRepository) List(ctx context.Context, orgID string, skip, limit int) ([]*models.Tag, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE organization_id = ?`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tags: %w", err)
	}

	query := `
		SELECT id, organization_id, name, color, description, created_by, created_at, updated_at
		FROM tags WHERE organization_id = ?
		ORDER BY name COLLATE NOCASE LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, orgID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, 0, err
		}
		tags = append(tags, tag)
	}
	return tags, total, rows.Err()
}

func (r *SQLiteTagRepository) Update(ctx context.Context, tag *models.Tag) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tags SET name = ?, color = ?, description = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, tag.Name, tag.Color, tag.Description, formatTime(time.Now()), tag.ID, tag.OrganizationID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteTagRepository) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tags WHERE id = ? AND organization_id = ?`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTag(row rowScanner) (*models.Tag, error) {
	var tag models.Tag
	var createdAt, updatedAt string
	err := row.Scan(&tag.ID, &tag.OrganizationID, &tag.Name, &tag.Color,
		&tag.Description, &tag.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	tag.CreatedAt = parseTime(createdAt)
	tag.UpdatedAt = parseTime(updatedAt)
	return &tag, nil
}
