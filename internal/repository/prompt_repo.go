package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLitePromptRepository implements PromptRepository using SQLite.
type SQLitePromptRepository struct {
	db *sql.DB
}

// NewSQLitePromptRepository creates a new prompt repository.
func NewSQLitePromptRepository(db *sql.DB) *SQLitePromptRepository {
	return &SQLitePromptRepository{db: db}
}

func (r *SQLitePromptRepository) GetParentByName(ctx context.Context, orgID, name string) (*models.Prompt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM prompts WHERE organization_id = ? AND name = ? COLLATE NOCASE
	`, orgID, name)
	return scanPromptParent(row)
}

func (r *SQLitePromptRepository) GetParent(ctx context.Context, orgID, promptID string) (*models.Prompt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM prompts WHERE organization_id = ? AND id = ?
	`, orgID, promptID)
	return scanPromptParent(row)
}

func (r *SQLitePromptRepository) CreateRevision(ctx context.Context, parent *models.Prompt, rev *models.PromptRevision) error {
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
		INSERT INTO prompts (id, organization_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, name) DO UPDATE SET updated_at = excluded.updated_at
	`, parent.ID, parent.OrganizationID, parent.Name,
		formatTime(now), formatTime(now)); err != nil {
		return fmt.Errorf("failed to upsert prompt parent: %w", err)
	}

	var parentID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM prompts WHERE organization_id = ? AND name = ? COLLATE NOCASE`,
		parent.OrganizationID, parent.Name).Scan(&parentID); err != nil {
		return fmt.Errorf("failed to read prompt parent: %w", err)
	}
	rev.PromptID = parentID
	parent.ID = parentID

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(prompt_version), 0) + 1 FROM prompt_revisions WHERE prompt_id = ?`,
		parentID).Scan(&next); err != nil {
		return fmt.Errorf("failed to allocate prompt version: %w", err)
	}
	rev.PromptVersion = next

	var schemaID, schemaVersion any
	if rev.SchemaID != "" {
		schemaID = rev.SchemaID
		schemaVersion = rev.SchemaVersion
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prompt_revisions (prompt_revid, prompt_id, prompt_version, content, model,
			tag_ids, schema_id, schema_version, organization_id, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rev.RevID, rev.PromptID, rev.PromptVersion, rev.Content, rev.Model,
		encodeStrings(rev.TagIDs), schemaID, schemaVersion,
		rev.OrganizationID, formatTime(rev.CreatedAt), rev.CreatedBy); err != nil {
		return fmt.Errorf("failed to insert prompt revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SQLitePromptRepository) RenameParent(ctx context.Context, orgID, promptID, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE prompts SET name = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, name, formatTime(time.Now()), promptID, orgID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to rename prompt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const promptRevisionSelect = `
	SELECT r.prompt_revid, r.prompt_id, r.prompt_version, r.content, r.model,
	       r.tag_ids, r.schema_id, r.schema_version, r.organization_id,
	       r.created_at, r.created_by, p.name
	FROM prompt_revisions r
	JOIN prompts p ON p.id = r.prompt_id
`

func (r *SQLitePromptRepository) GetRevision(ctx context.Context, orgID, revID string) (*models.PromptRevision, error) {
	row := r.db.QueryRowContext(ctx,
		promptRevisionSelect+` WHERE r.organization_id = ? AND r.prompt_revid = ?`,
		orgID, revID)
	return scanPromptRevisionRow(row)
}

func (r *SQLitePromptRepository) GetLatestRevision(ctx context.Context, orgID, promptID string) (*models.PromptRevision, error) {
	row := r.db.QueryRowContext(ctx,
		promptRevisionSelect+` WHERE r.organization_id = ? AND r.prompt_id = ?
		ORDER BY r.prompt_version DESC LIMIT 1`,
		orgID, promptID)
	return scanPromptRevisionRow(row)
}

func (r *SQLitePromptRepository) ListLatest(ctx context.Context, orgID string, filter RevisionListFilter, skip, limit int) ([]*models.PromptRevision, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	where := []string{"r.organization_id = ?"}
	args := []any{orgID}
	if filter.NameSearch != "" {
		where = append(where, "p.name LIKE ? COLLATE NOCASE")
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

	latest := `r.prompt_version = (SELECT MAX(prompt_version) FROM prompt_revisions WHERE prompt_id = r.prompt_id)`

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM prompt_revisions r
		JOIN prompts p ON p.id = r.prompt_id
		WHERE `+whereClause+` AND `+latest, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count prompts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		promptRevisionSelect+` WHERE `+whereClause+` AND `+latest+`
		ORDER BY p.name COLLATE NOCASE LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var revs []*models.PromptRevision
	for rows.Next() {
		rev, err := scanPromptRevision(rows)
		if err != nil {
			return nil, 0, err
		}
		revs = append(revs, rev)
	}
	return revs, total, rows.Err()
}

// ListLatestByTags returns the latest revision of each prompt whose tags
// intersect the given set. Used by the "default" fanout.
func (r *SQLitePromptRepository) ListLatestByTags(ctx context.Context, orgID string, tagIDs []string) ([]*models.PromptRevision, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	args := []any{orgID}
	var ors []string
	for _, id := range tagIDs {
		ors = append(ors, "instr(r.tag_ids, ?) > 0")
		args = append(args, `"`+id+`"`)
	}

	rows, err := r.db.QueryContext(ctx,
		promptRevisionSelect+` WHERE r.organization_id = ?
		AND (`+strings.Join(ors, " OR ")+`)
		AND r.prompt_version = (SELECT MAX(prompt_version) FROM prompt_revisions WHERE prompt_id = r.prompt_id)
		ORDER BY p.name COLLATE NOCASE`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts by tags: %w", err)
	}
	defer rows.Close()

	var revs []*models.PromptRevision
	for rows.Next() {
		rev, err := scanPromptRevision(rows)
		if err != nil {
			return nil, err
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

func (r *SQLitePromptRepository) Delete(ctx context.Context, orgID, promptID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM prompts WHERE id = ? AND organization_id = ?`, promptID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM prompt_revisions WHERE prompt_id = ?`, promptID); err != nil {
		return fmt.Errorf("failed to delete prompt revisions: %w", err)
	}
	return nil
}

func (r *SQLitePromptRepository) CountBySchema(ctx context.Context, orgID, schemaID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM prompt_revisions
		WHERE organization_id = ? AND schema_id = ?
	`, orgID, schemaID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prompts by schema: %w", err)
	}
	return count, nil
}

func (r *SQLitePromptRepository) CountByTag(ctx context.Context, orgID, tagID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM prompt_revisions
		WHERE organization_id = ? AND instr(tag_ids, ?) > 0
	`, orgID, `"`+tagID+`"`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prompts by tag: %w", err)
	}
	return count, nil
}

func scanPromptParent(row rowScanner) (*models.Prompt, error) {
	var p models.Prompt
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func scanPromptRevision(row rowScanner) (*models.PromptRevision, error) {
	var rev models.PromptRevision
	var tagIDs, createdAt string
	var schemaID sql.NullString
	var schemaVersion sql.NullInt64

	err := row.Scan(&rev.RevID, &rev.PromptID, &rev.PromptVersion, &rev.Content,
		&rev.Model, &tagIDs, &schemaID, &schemaVersion, &rev.OrganizationID,
		&createdAt, &rev.CreatedBy, &rev.Name)
	if err != nil {
		return nil, err
	}

	rev.TagIDs = decodeStrings(tagIDs)
	rev.SchemaID = schemaID.String
	rev.SchemaVersion = int(schemaVersion.Int64)
	rev.CreatedAt = parseTime(createdAt)
	return &rev, nil
}

func scanPromptRevisionRow(row rowScanner) (*models.PromptRevision, error) {
	rev, err := scanPromptRevision(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt revision: %w", err)
	}
	return rev, nil
}
