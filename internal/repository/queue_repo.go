package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteQueueRepository implements QueueRepository on a plain table. ULID
// message ids give time-ordered leasing without a separate sequence.
type SQLiteQueueRepository struct {
	db *sql.DB
}

// NewSQLiteQueueRepository creates a new queue repository.
func NewSQLiteQueueRepository(db *sql.DB) *SQLiteQueueRepository {
	return &SQLiteQueueRepository{db: db}
}

func (r *SQLiteQueueRepository) Enqueue(ctx context.Context, queue string, payload []byte) (string, error) {
	now := time.Now()
	msgID := ulid.Make().String()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_queue (msg_id, queue, payload, status, attempts, visible_at, created_at)
		VALUES (?, ?, ?, 'ready', 0, ?, ?)
	`, msgID, queue, string(payload), formatTime(now), formatTime(now))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue message: %w", err)
	}
	return msgID, nil
}

// Lease claims the oldest visible ready message in one UPDATE so concurrent
// workers never double-claim. Returns nil when the queue is empty.
func (r *SQLiteQueueRepository) Lease(ctx context.Context, queue, workerID string, leaseDuration time.Duration) (*models.QueueMessage, error) {
	now := time.Now()
	row := r.db.QueryRowContext(ctx, `
		UPDATE job_queue
		SET status = 'leased', leased_by = ?, lease_expires_at = ?
		WHERE msg_id = (
			SELECT msg_id FROM job_queue
			WHERE queue = ? AND status = 'ready' AND visible_at <= ?
			ORDER BY msg_id
			LIMIT 1
		)
		RETURNING msg_id, queue, payload, status, attempts, visible_at, leased_by, lease_expires_at, created_at
	`, workerID, formatTime(now.Add(leaseDuration)), queue, formatTime(now))

	msg, err := scanQueueMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lease message: %w", err)
	}
	return msg, nil
}

func (r *SQLiteQueueRepository) Ack(ctx context.Context, msgID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_queue WHERE msg_id = ?`, msgID)
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteQueueRepository) Nack(ctx context.Context, msgID string, requeueAfter time.Duration) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE job_queue
		SET status = 'ready', leased_by = NULL, lease_expires_at = NULL,
		    attempts = attempts + 1, visible_at = ?
		WHERE msg_id = ?
	`, formatTime(time.Now().Add(requeueAfter)), msgID)
	if err != nil {
		return fmt.Errorf("failed to nack message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReapExpired returns leased messages with an expired lease to ready. The
// attempt counter is incremented so crashed workers still burn attempts.
func (r *SQLiteQueueRepository) ReapExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE job_queue
		SET status = 'ready', leased_by = NULL, lease_expires_at = NULL,
		    attempts = attempts + 1
		WHERE status = 'leased' AND lease_expires_at <= ?
	`, formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired leases: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanQueueMessage(row rowScanner) (*models.QueueMessage, error) {
	var msg models.QueueMessage
	var payload, status, visibleAt, createdAt string
	var leasedBy, leaseExpiresAt sql.NullString

	err := row.Scan(&msg.ID, &msg.Queue, &payload, &status, &msg.Attempts,
		&visibleAt, &leasedBy, &leaseExpiresAt, &createdAt)
	if err != nil {
		return nil, err
	}

	msg.Payload = []byte(payload)
	msg.Status = models.QueueMessageStatus(status)
	msg.VisibleAt = parseTime(visibleAt)
	msg.CreatedAt = parseTime(createdAt)
	msg.LeasedBy = leasedBy.String
	msg.LeaseExpiresAt = parseTimePtr(leaseExpiresAt)
	return &msg, nil
}
