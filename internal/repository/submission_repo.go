package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteSubmissionRepository implements SubmissionRepository using SQLite.
type SQLiteSubmissionRepository struct {
	db *sql.DB
}

// NewSQLiteSubmissionRepository creates a new submission repository.
func NewSQLiteSubmissionRepository(db *sql.DB) *SQLiteSubmissionRepository {
	return &SQLiteSubmissionRepository{db: db}
}

const submissionColumns = `id, organization_id, document_id, form_revid,
	submission_data, submitted_by, created_at, updated_at`

func (r *SQLiteSubmissionRepository) Upsert(ctx context.Context, sub *models.FormSubmission) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO form_submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, form_revid, organization_id) DO UPDATE SET
			submission_data = excluded.submission_data,
			submitted_by = excluded.submitted_by,
			updated_at = excluded.updated_at
	`, sub.ID, sub.OrganizationID, sub.DocumentID, sub.FormRevID,
		string(sub.SubmissionData), sub.SubmittedBy,
		formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert submission: %w", err)
	}
	return nil
}

func (r *SQLiteSubmissionRepository) Get(ctx context.Context, orgID, documentID, formRevID string) (*models.FormSubmission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM form_submissions
		WHERE organization_id = ? AND document_id = ? AND form_revid = ?
	`, orgID, documentID, formRevID)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

func (r *SQLiteSubmissionRepository) ListByDocument(ctx context.Context, orgID, documentID string) ([]*models.FormSubmission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM form_submissions
		WHERE organization_id = ? AND document_id = ?
		ORDER BY created_at
	`, orgID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*models.FormSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *SQLiteSubmissionRepository) Delete(ctx context.Context, orgID, documentID, formRevID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM form_submissions
		WHERE organization_id = ? AND document_id = ? AND form_revid = ?
	`, orgID, documentID, formRevID)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteSubmissionRepository) DeleteByDocument(ctx context.Context, orgID, documentID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM form_submissions WHERE organization_id = ? AND document_id = ?
	`, orgID, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete submissions: %w", err)
	}
	return nil
}

func scanSubmission(row rowScanner) (*models.FormSubmission, error) {
	var sub models.FormSubmission
	var data, createdAt, updatedAt string
	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.DocumentID, &sub.FormRevID,
		&data, &sub.SubmittedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sub.SubmissionData = []byte(data)
	sub.CreatedAt = parseTime(createdAt)
	sub.UpdatedAt = parseTime(updatedAt)
	return &sub, nil
}
