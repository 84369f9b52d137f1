package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteClaudeRepository implements ClaudeRepository using SQLite.
type SQLiteClaudeRepository struct {
	db *sql.DB
}

// NewSQLiteClaudeRepository creates a new Claude ingest repository.
func NewSQLiteClaudeRepository(db *sql.DB) *SQLiteClaudeRepository {
	return &SQLiteClaudeRepository{db: db}
}

// LastEntryUUIDs returns the most recently inserted entry UUIDs for a
// session, newest first. Rows are keyed by a 24-hex id generated at insert
// time, so insertion order follows the primary index scan in reverse.
func (r *SQLiteClaudeRepository) LastEntryUUIDs(ctx context.Context, sessionID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT entry_uuid FROM claude_logs
		WHERE session_id = ?
		ORDER BY rowid DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session entries: %w", err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		uuids = append(uuids, u)
	}
	return uuids, rows.Err()
}

// CreateLogs inserts a batch, skipping entries already stored for the
// session. Returns the number of rows actually inserted.
func (r *SQLiteClaudeRepository) CreateLogs(ctx context.Context, logs []*models.ClaudeLog) (int, error) {
	if len(logs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	inserted := 0
	for _, l := range logs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO claude_logs (id, organization_id, session_id, entry_uuid, payload, upload_date, uploaded_by)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id, entry_uuid) DO NOTHING
		`, l.ID, l.OrganizationID, l.SessionID, l.EntryUUID, string(l.Payload),
			formatTime(l.UploadDate), l.UploadedBy)
		if err != nil {
			return 0, fmt.Errorf("failed to insert claude log: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return inserted, nil
}

func (r *SQLiteClaudeRepository) CreateHook(ctx context.Context, hook *models.ClaudeHook) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO claude_hooks (id, organization_id, hook_event, session_id, payload, upload_date, uploaded_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, hook.ID, hook.OrganizationID, hook.HookEvent, hook.SessionID,
		string(hook.Payload), formatTime(hook.UploadDate), hook.UploadedBy)
	if err != nil {
		return fmt.Errorf("failed to insert claude hook: %w", err)
	}
	return nil
}

func (r *SQLiteClaudeRepository) ListLogs(ctx context.Context, orgID string, skip, limit int) ([]*models.ClaudeLog, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claude_logs WHERE organization_id = ?`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count claude logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, session_id, entry_uuid, payload, upload_date, uploaded_by
		FROM claude_logs WHERE organization_id = ?
		ORDER BY upload_date DESC, id DESC LIMIT ? OFFSET ?
	`, orgID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list claude logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.ClaudeLog
	for rows.Next() {
		var l models.ClaudeLog
		var payload, uploadDate string
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.SessionID, &l.EntryUUID,
			&payload, &uploadDate, &l.UploadedBy); err != nil {
			return nil, 0, fmt.Errorf("failed to scan claude log: %w", err)
		}
		l.Payload = []byte(payload)
		l.UploadDate = parseTime(uploadDate)
		logs = append(logs, &l)
	}
	return logs, total, rows.Err()
}

func (r *SQLiteClaudeRepository) ListHooks(ctx context.Context, orgID string, skip, limit int) ([]*models.ClaudeHook, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claude_hooks WHERE organization_id = ?`, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count claude hooks: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, hook_event, session_id, payload, upload_date, uploaded_by
		FROM claude_hooks WHERE organization_id = ?
		ORDER BY upload_date DESC, id DESC LIMIT ? OFFSET ?
	`, orgID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list claude hooks: %w", err)
	}
	defer rows.Close()

	var hooks []*models.ClaudeHook
	for rows.Next() {
		var h models.ClaudeHook
		var payload, uploadDate string
		if err := rows.Scan(&h.ID, &h.OrganizationID, &h.HookEvent, &h.SessionID,
			&payload, &uploadDate, &h.UploadedBy); err != nil {
			return nil, 0, fmt.Errorf("failed to scan claude hook: %w", err)
		}
		h.Payload = []byte(payload)
		h.UploadDate = parseTime(uploadDate)
		hooks = append(hooks, &h)
	}
	return hooks, total, rows.Err()
}
