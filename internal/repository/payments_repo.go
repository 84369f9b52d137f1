package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLitePaymentsRepository implements PaymentsRepository using SQLite.
type SQLitePaymentsRepository struct {
	db *sql.DB
}

// NewSQLitePaymentsRepository creates a new payments repository.
func NewSQLitePaymentsRepository(db *sql.DB) *SQLitePaymentsRepository {
	return &SQLitePaymentsRepository{db: db}
}

const customerColumns = `organization_id, granted_credits, granted_credits_used,
	purchased_credits, purchased_credits_used,
	subscription_spu_limit, subscription_spus_used,
	subscription_period_start, subscription_period_end, updated_at`

func (r *SQLitePaymentsRepository) GetCustomer(ctx context.Context, orgID string) (*models.PaymentsCustomer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM payments_customers WHERE organization_id = ?`, orgID)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payments customer: %w", err)
	}
	return c, nil
}

func (r *SQLitePaymentsRepository) UpsertCustomer(ctx context.Context, c *models.PaymentsCustomer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments_customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id) DO UPDATE SET
			granted_credits = excluded.granted_credits,
			granted_credits_used = excluded.granted_credits_used,
			purchased_credits = excluded.purchased_credits,
			purchased_credits_used = excluded.purchased_credits_used,
			subscription_spu_limit = excluded.subscription_spu_limit,
			subscription_spus_used = excluded.subscription_spus_used,
			subscription_period_start = excluded.subscription_period_start,
			subscription_period_end = excluded.subscription_period_end,
			updated_at = excluded.updated_at
	`, c.OrganizationID, c.GrantedCredits, c.GrantedCreditsUsed,
		c.PurchasedCredits, c.PurchasedCreditsUsed,
		c.SubscriptionSPULimit, c.SubscriptionSPUsUsed,
		formatTimePtr(c.SubscriptionPeriodStart), formatTimePtr(c.SubscriptionPeriodEnd),
		formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert payments customer: %w", err)
	}
	return nil
}

// Debit consumes subscription quota first, then purchased credits, then
// granted credits, and appends the usage record. One transaction keeps the
// balances and the ledger consistent. The debit always commits: work already
// done is billed even when the balance cannot cover it, with the overage
// driving the granted bucket negative. CheckSPU is the advisory gate that
// keeps new work from starting in that state.
func (r *SQLitePaymentsRepository) Debit(ctx context.Context, record *models.UsageRecord) error {
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

	row := tx.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM payments_customers WHERE organization_id = ?`,
		record.OrganizationID)
	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		c = &models.PaymentsCustomer{OrganizationID: record.OrganizationID}
	} else if err != nil {
		return fmt.Errorf("failed to read payments customer: %w", err)
	}

	now := record.Timestamp
	remaining := record.SPUs
	if c.SubscriptionActive(now) {
		if sub := c.SubscriptionSPULimit - c.SubscriptionSPUsUsed; sub > 0 {
			take := min(sub, remaining)
			c.SubscriptionSPUsUsed += take
			remaining -= take
		}
	}
	if remaining > 0 {
		if purchased := c.PurchasedCredits - c.PurchasedCreditsUsed; purchased > 0 {
			take := min(purchased, remaining)
			c.PurchasedCreditsUsed += take
			remaining -= take
		}
	}
	if remaining > 0 {
		c.GrantedCreditsUsed += remaining
	}

	// Upsert so the first debit for an org creates its customer row.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments_customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id) DO UPDATE SET
			granted_credits_used = excluded.granted_credits_used,
			purchased_credits_used = excluded.purchased_credits_used,
			subscription_spus_used = excluded.subscription_spus_used,
			updated_at = excluded.updated_at
	`, c.OrganizationID, c.GrantedCredits, c.GrantedCreditsUsed,
		c.PurchasedCredits, c.PurchasedCreditsUsed,
		c.SubscriptionSPULimit, c.SubscriptionSPUsUsed,
		formatTimePtr(c.SubscriptionPeriodStart), formatTimePtr(c.SubscriptionPeriodEnd),
		formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments_usage_records (id, organization_id, spus, operation, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.ID, record.OrganizationID, record.SPUs, string(record.Operation),
		record.Source, formatTime(record.Timestamp)); err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SQLitePaymentsRepository) UsageInRange(ctx context.Context, orgID string, start, end time.Time) ([]*models.UsageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, spus, operation, source, timestamp
		FROM payments_usage_records
		WHERE organization_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp
	`, orgID, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		var operation, timestamp string
		if err := rows.Scan(&rec.ID, &rec.OrganizationID, &rec.SPUs,
			&operation, &rec.Source, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Operation = models.UsageOperation(operation)
		rec.Timestamp = parseTime(timestamp)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func scanCustomer(row rowScanner) (*models.PaymentsCustomer, error) {
	var c models.PaymentsCustomer
	var periodStart, periodEnd sql.NullString
	var updatedAt string

	err := row.Scan(&c.OrganizationID, &c.GrantedCredits, &c.GrantedCreditsUsed,
		&c.PurchasedCredits, &c.PurchasedCreditsUsed,
		&c.SubscriptionSPULimit, &c.SubscriptionSPUsUsed,
		&periodStart, &periodEnd, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.SubscriptionPeriodStart = parseTimePtr(periodStart)
	c.SubscriptionPeriodEnd = parseTimePtr(periodEnd)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
