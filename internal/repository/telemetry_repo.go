package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteTelemetryRepository implements TelemetryRepository using SQLite.
type SQLiteTelemetryRepository struct {
	db *sql.DB
}

// NewSQLiteTelemetryRepository creates a new telemetry repository.
func NewSQLiteTelemetryRepository(db *sql.DB) *SQLiteTelemetryRepository {
	return &SQLiteTelemetryRepository{db: db}
}

func (r *SQLiteTelemetryRepository) CreateTrace(ctx context.Context, t *models.TelemetryTrace) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO telemetry_traces (id, organization_id, trace_id, span_count,
			payload, upload_date, uploaded_by, tag_ids, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OrganizationID, t.TraceID, t.SpanCount, string(t.Payload),
		formatTime(t.UploadDate), t.UploadedBy,
		encodeStrings(t.TagIDs), encodeStringMap(t.Metadata))
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}
	return nil
}

func (r *SQLiteTelemetryRepository) CreateMetric(ctx context.Context, m *models.TelemetryMetric) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO telemetry_metrics (id, organization_id, name,
			payload, upload_date, uploaded_by, tag_ids, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.OrganizationID, m.Name, string(m.Payload),
		formatTime(m.UploadDate), m.UploadedBy,
		encodeStrings(m.TagIDs), encodeStringMap(m.Metadata))
	if err != nil {
		return fmt.Errorf("failed to create metric: %w", err)
	}
	return nil
}

func (r *SQLiteTelemetryRepository) CreateLog(ctx context.Context, l *models.TelemetryLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO telemetry_logs (id, organization_id, severity, body,
			payload, upload_date, uploaded_by, tag_ids, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.OrganizationID, string(l.Severity), l.Body, string(l.Payload),
		formatTime(l.UploadDate), l.UploadedBy,
		encodeStrings(l.TagIDs), encodeStringMap(l.Metadata))
	if err != nil {
		return fmt.Errorf("failed to create log: %w", err)
	}
	return nil
}

// telemetryWhere builds the shared filter clause. extra holds the record
// type's own filters (severity, name).
func telemetryWhere(orgID string, filter TelemetryListFilter) ([]string, []any) {
	where := []string{"organization_id = ?"}
	args := []any{orgID}

	if len(filter.TagIDs) > 0 {
		var ors []string
		for _, id := range filter.TagIDs {
			ors = append(ors, "instr(tag_ids, ?) > 0")
			args = append(args, `"`+id+`"`)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if filter.Start != nil {
		where = append(where, "upload_date >= ?")
		args = append(args, formatTime(*filter.Start))
	}
	if filter.End != nil {
		where = append(where, "upload_date < ?")
		args = append(args, formatTime(*filter.End))
	}
	return where, args
}

func (r *SQLiteTelemetryRepository) ListTraces(ctx context.Context, orgID string, filter TelemetryListFilter, skip, limit int) ([]*models.TelemetryTrace, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}
	where, args := telemetryWhere(orgID, filter)
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetry_traces WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count traces: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, trace_id, span_count, payload, upload_date, uploaded_by, tag_ids, metadata
		FROM telemetry_traces WHERE `+whereClause+`
		ORDER BY upload_date DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list traces: %w", err)
	}
	defer rows.Close()

	var traces []*models.TelemetryTrace
	for rows.Next() {
		var t models.TelemetryTrace
		var payload, uploadDate, tagIDs, metadata string
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.TraceID, &t.SpanCount,
			&payload, &uploadDate, &t.UploadedBy, &tagIDs, &metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to scan trace: %w", err)
		}
		t.Payload = []byte(payload)
		t.UploadDate = parseTime(uploadDate)
		t.TagIDs = decodeStrings(tagIDs)
		t.Metadata = decodeStringMap(metadata)
		traces = append(traces, &t)
	}
	return traces, total, rows.Err()
}

func (r *SQLiteTelemetryRepository) ListMetrics(ctx context.Context, orgID string, filter TelemetryListFilter, skip, limit int) ([]*models.TelemetryMetric, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}
	where, args := telemetryWhere(orgID, filter)
	if filter.NameSearch != "" {
		where = append(where, "name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+filter.NameSearch+"%")
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetry_metrics WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count metrics: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, name, payload, upload_date, uploaded_by, tag_ids, metadata
		FROM telemetry_metrics WHERE `+whereClause+`
		ORDER BY upload_date DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*models.TelemetryMetric
	for rows.Next() {
		var m models.TelemetryMetric
		var payload, uploadDate, tagIDs, metadata string
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.Name,
			&payload, &uploadDate, &m.UploadedBy, &tagIDs, &metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to scan metric: %w", err)
		}
		m.Payload = []byte(payload)
		m.UploadDate = parseTime(uploadDate)
		m.TagIDs = decodeStrings(tagIDs)
		m.Metadata = decodeStringMap(metadata)
		metrics = append(metrics, &m)
	}
	return metrics, total, rows.Err()
}

func (r *SQLiteTelemetryRepository) ListLogs(ctx context.Context, orgID string, filter TelemetryListFilter, skip, limit int) ([]*models.TelemetryLog, int, error) {
	limit = clampLimit(limit)
	if skip < 0 {
		skip = 0
	}
	where, args := telemetryWhere(orgID, filter)
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filter.Severity)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM telemetry_logs WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, severity, body, payload, upload_date, uploaded_by, tag_ids, metadata
		FROM telemetry_logs WHERE `+whereClause+`
		ORDER BY upload_date DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, skip)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.TelemetryLog
	for rows.Next() {
		var l models.TelemetryLog
		var severity, payload, uploadDate, tagIDs, metadata string
		if err := rows.Scan(&l.ID, &l.OrganizationID, &severity, &l.Body,
			&payload, &uploadDate, &l.UploadedBy, &tagIDs, &metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to scan log: %w", err)
		}
		l.Severity = models.LogSeverity(severity)
		l.Payload = []byte(payload)
		l.UploadDate = parseTime(uploadDate)
		l.TagIDs = decodeStrings(tagIDs)
		l.Metadata = decodeStringMap(metadata)
		logs = append(logs, &l)
	}
	return logs, total, rows.Err()
}

func (r *SQLiteTelemetryRepository) CountByTag(ctx context.Context, orgID, tagID string) (int, error) {
	needle := `"` + tagID + `"`
	var total int
	for _, table := range []string{"telemetry_traces", "telemetry_metrics", "telemetry_logs"} {
		var count int
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE organization_id = ? AND instr(tag_ids, ?) > 0`,
			orgID, needle).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("failed to count telemetry by tag: %w", err)
		}
		total += count
	}
	return total, nil
}
