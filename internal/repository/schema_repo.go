package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteSchemaRepository implements SchemaRepository using SQLite.
type SQLiteSchemaRepository struct {
	db *sql.DB
}

// NewSQLiteSchemaRepository creates a new schema repository.
func NewSQLiteSchemaRepository(db *sql.DB) *SQLiteSchemaRepository {
	return &SQLiteSchemaRepository{db: db}
}

func (r *SQLiteSchemaRepository) GetParentByName(ctx context.Context, orgID, name string) (*models.Schema, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM schemas WHERE organization_id = ? AND name = ? COLLATE NOCASE
	`, orgID, name)
	return scanSchemaParent(row)
}

func (r *SQLiteSchemaRepository) GetParent(ctx context.Context, orgID, schemaID string) (*models.Schema, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM schemas WHERE organization_id = ? AND id = ?
	`, orgID, schemaID)
	return scanSchemaParent(row)
}

// CreateRevision inserts the parent if absent and allocates the next version
// inside one transaction. The UNIQUE (schema_id, schema_version) constraint
// backstops concurrent writers.
func (r *SQLiteSchemaRepository) CreateRevision(ctx context.Context, parent *models.Schema, rev *models.SchemaRevision) error {
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
		INSERT INTO schemas (id, organization_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, name) DO UPDATE SET updated_at = excluded.updated_at
	`, parent.ID, parent.OrganizationID, parent.Name,
		formatTime(now), formatTime(now)); err != nil {
		return fmt.Errorf("failed to upsert schema parent: %w", err)
	}

	// The conflict target is the name, so re-read the canonical parent id in
	// case an earlier revision already created it.
	var parentID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM schemas WHERE organization_id = ? AND name = ? COLLATE NOCASE`,
		parent.OrganizationID, parent.Name).Scan(&parentID); err != nil {
		return fmt.Errorf("failed to read schema parent: %w", err)
	}
	rev.SchemaID = parentID
	parent.ID = parentID

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(schema_version), 0) + 1 FROM schema_revisions WHERE schema_id = ?`,
		parentID).Scan(&next); err != nil {
		return fmt.Errorf("failed to allocate schema version: %w", err)
	}
	rev.SchemaVersion = next

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_revisions (schema_revid, schema_id, schema_version, response_format, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rev.RevID, rev.SchemaID, rev.SchemaVersion, string(rev.ResponseFormat),
		formatTime(rev.CreatedAt), rev.CreatedBy); err != nil {
		return fmt.Errorf("failed to insert schema revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SQLiteSchemaRepository) RenameParent(ctx context.Context, orgID, schemaID, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schemas SET name = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, name, formatTime(time.Now()), schemaID, orgID)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to rename schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const schemaRevisionSelect = `
	SELECT r.schema_revid, r.schema_id, r.schema_version, r.response_format,
	       r.created_at, r.created_by, s.name, s.organization_id
	FROM schema_revisions r
	JOIN schemas s ON s.id = r.schema_id
`

func (r *SQLiteSchemaRepository) GetRevision(ctx context.Context, orgID, revID string) (*models.SchemaRevision, error) {
	row := r.db.QueryRowContext(ctx,
		schemaRevisionSelect+` WHERE s.organization_id = ? AND r.schema_revid = ?`,
		orgID, revID)
	return scanSchemaRevisionRow(row)
}

func (r *SQLiteSchemaRepository) GetRevisionByVersion(ctx context.Context, orgID, schemaID string, version int) (*models.SchemaRevision, error) {
	row := r.db.QueryRowContext(ctx,
		schemaRevisionSelect+` WHERE s.organization_id = ? AND r.schema_id = ? AND r.schema_version = ?`,
		orgID, schemaID, version)
	return scanSchemaRevisionRow(row)
}

func (r *SQLiteSchemaRepository) GetLatestRevision(ctx context.Context, orgID, schemaID string) (*models.SchemaRevision, error) {
	row := r.db.QueryRowContext(ctx,
		schemaRevisionSelect+` WHERE s.organization_id = ? AND r.schema_id = ?
		ORDER BY r.schema_version DESC LIMIT 1`,
		orgID, schemaID)
	return scanSchemaRevisionRow(row)
}

func (r *SQLiteSchemaRepository) ListLatest(ctx context.Context, orgID string, filter RevisionListFilter, skip, limit int) ([]*models.SchemaRevision, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	where := []string{"s.organization_id = ?"}
	args := []any{orgID}
	if filter.NameSearch != "" {
		where = append(where, "s.name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+filter.NameSearch+"%")
	}
	whereClause := strings.Join(where, " AND ")

	// Latest revision per parent via the max-version correlated filter.
	latest := `r.schema_version = (SELECT MAX(schema_version) FROM schema_revisions WHERE schema_id = r.schema_id)`

	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM schema_revisions r
		JOIN schemas s ON s.id = r.schema_id
		WHERE `+whereClause+` AND `+latest, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count schemas: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		schemaRevisionSelect+` WHERE `+whereClause+` AND `+latest+`
		ORDER BY s.name COLLATE NOCASE LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	var revs []*models.SchemaRevision
	for rows.Next() {
		rev, err := scanSchemaRevision(rows)
		if err != nil {
			return nil, 0, err
		}
		revs = append(revs, rev)
	}
	return revs, total, rows.Err()
}

func (r *SQLiteSchemaRepository) Delete(ctx context.Context, orgID, schemaID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM schemas WHERE id = ? AND organization_id = ?`, schemaID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	// Revisions cascade via the foreign key; delete explicitly in case the
	// connection has foreign_keys off.
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM schema_revisions WHERE schema_id = ?`, schemaID); err != nil {
		return fmt.Errorf("failed to delete schema revisions: %w", err)
	}
	return nil
}

func scanSchemaParent(row rowScanner) (*models.Schema, error) {
	var s models.Schema
	var createdAt, updatedAt string
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func scanSchemaRevision(row rowScanner) (*models.SchemaRevision, error) {
	var rev models.SchemaRevision
	var responseFormat, createdAt string
	err := row.Scan(&rev.RevID, &rev.SchemaID, &rev.SchemaVersion, &responseFormat,
		&createdAt, &rev.CreatedBy, &rev.Name, &rev.OrganizationID)
	if err != nil {
		return nil, err
	}
	rev.ResponseFormat = []byte(responseFormat)
	rev.CreatedAt = parseTime(createdAt)
	return &rev, nil
}

func scanSchemaRevisionRow(row rowScanner) (*models.SchemaRevision, error) {
	rev, err := scanSchemaRevision(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema revision: %w", err)
	}
	return rev, nil
}
