package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteResultRepository implements ResultRepository using SQLite.
type SQLiteResultRepository struct {
	db *sql.DB
}

// NewSQLiteResultRepository creates a new result repository.
func NewSQLiteResultRepository(db *sql.DB) *SQLiteResultRepository {
	return &SQLiteResultRepository{db: db}
}

const resultColumns = `id, organization_id, document_id, prompt_revid, prompt_id,
	prompt_version, llm_result, updated_llm_result, is_edited, is_verified,
	created_at, updated_at`

// Upsert replaces any prior result for the same (document, prompt revision).
// A rerun resets the edit and verification flags.
func (r *SQLiteResultRepository) Upsert(ctx context.Context, result *models.LLMResult) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_runs (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id, prompt_revid) DO UPDATE SET
			prompt_id = excluded.prompt_id,
			prompt_version = excluded.prompt_version,
			llm_result = excluded.llm_result,
			updated_llm_result = excluded.updated_llm_result,
			is_edited = excluded.is_edited,
			is_verified = excluded.is_verified,
			updated_at = excluded.updated_at
	`, result.ID, result.OrganizationID, result.DocumentID, result.PromptRevID,
		result.PromptID, result.PromptVersion,
		string(result.LLMResult), string(result.UpdatedLLMResult),
		boolToInt(result.IsEdited), boolToInt(result.IsVerified),
		formatTime(result.CreatedAt), formatTime(result.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert result: %w", err)
	}
	return nil
}

func (r *SQLiteResultRepository) Get(ctx context.Context, orgID, documentID, promptRevID string) (*models.LLMResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+` FROM llm_runs
		WHERE organization_id = ? AND document_id = ? AND prompt_revid = ?
	`, orgID, documentID, promptRevID)
	result, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return result, nil
}

// GetLatestForPrompt falls back to the most recent result produced by any
// revision of the logical prompt.
func (r *SQLiteResultRepository) GetLatestForPrompt(ctx context.Context, orgID, documentID, promptID string) (*models.LLMResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+` FROM llm_runs
		WHERE organization_id = ? AND document_id = ? AND prompt_id = ?
		ORDER BY prompt_version DESC, updated_at DESC LIMIT 1
	`, orgID, documentID, promptID)
	result, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result: %w", err)
	}
	return result, nil
}

func (r *SQLiteResultRepository) ListByDocument(ctx context.Context, orgID, documentID string) ([]*models.LLMResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+resultColumns+` FROM llm_runs
		WHERE organization_id = ? AND document_id = ?
		ORDER BY created_at
	`, orgID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*models.LLMResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func (r *SQLiteResultRepository) UpdateUserEdit(ctx context.Context, orgID, documentID, promptRevID string, updated []byte, isEdited, isVerified bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE llm_runs
		SET updated_llm_result = ?, is_edited = ?, is_verified = ?, updated_at = ?
		WHERE organization_id = ? AND document_id = ? AND prompt_revid = ?
	`, string(updated), boolToInt(isEdited), boolToInt(isVerified),
		formatTime(time.Now()), orgID, documentID, promptRevID)
	if err != nil {
		return fmt.Errorf("failed to update result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteResultRepository) Delete(ctx context.Context, orgID, documentID, promptRevID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM llm_runs
		WHERE organization_id = ? AND document_id = ? AND prompt_revid = ?
	`, orgID, documentID, promptRevID)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteResultRepository) DeleteByDocument(ctx context.Context, orgID, documentID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM llm_runs WHERE organization_id = ? AND document_id = ?
	`, orgID, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return nil
}

func scanResult(row rowScanner) (*models.LLMResult, error) {
	var result models.LLMResult
	var llmResult, updatedLLMResult, createdAt, updatedAt string
	var isEdited, isVerified int

	err := row.Scan(&result.ID, &result.OrganizationID, &result.DocumentID,
		&result.PromptRevID, &result.PromptID, &result.PromptVersion,
		&llmResult, &updatedLLMResult, &isEdited, &isVerified,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	result.LLMResult = []byte(llmResult)
	result.UpdatedLLMResult = []byte(updatedLLMResult)
	result.IsEdited = isEdited != 0
	result.IsVerified = isVerified != 0
	result.CreatedAt = parseTime(createdAt)
	result.UpdatedAt = parseTime(updatedAt)
	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
