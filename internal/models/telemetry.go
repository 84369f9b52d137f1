package models

import (
	"encoding/json"
	"time"
)

// LogSeverity is the normalized severity of a telemetry log record.
type LogSeverity string

const (
	SeverityTrace LogSeverity = "TRACE"
	SeverityDebug LogSeverity = "DEBUG"
	SeverityInfo  LogSeverity = "INFO"
	SeverityWarn  LogSeverity = "WARN"
	SeverityError LogSeverity = "ERROR"
	SeverityFatal LogSeverity = "FATAL"
)

// SeverityFromNumber maps an OTLP severity_number (1-24) to a normalized
// severity. Out-of-range values fall back to INFO.
func SeverityFromNumber(n int) LogSeverity {
	switch {
	case n >= 1 && n <= 4:
		return SeverityTrace
	case n >= 5 && n <= 8:
		return SeverityDebug
	case n >= 9 && n <= 12:
		return SeverityInfo
	case n >= 13 && n <= 16:
		return SeverityWarn
	case n >= 17 && n <= 20:
		return SeverityError
	case n >= 21 && n <= 24:
		return SeverityFatal
	}
	return SeverityInfo
}

// TelemetryTrace is one ingested trace payload. The resource spans are
// stored verbatim as an opaque JSON value.
type TelemetryTrace struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	TraceID        string            `json:"trace_id,omitempty"`
	SpanCount      int               `json:"span_count"`
	Payload        json.RawMessage   `json:"payload"`
	UploadDate     time.Time         `json:"upload_date"`
	UploadedBy     string            `json:"uploaded_by"`
	TagIDs         []string          `json:"tag_ids,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// TelemetryMetric is one ingested metric payload.
type TelemetryMetric struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Name           string            `json:"name"`
	Payload        json.RawMessage   `json:"payload"`
	UploadDate     time.Time         `json:"upload_date"`
	UploadedBy     string            `json:"uploaded_by"`
	TagIDs         []string          `json:"tag_ids,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// TelemetryLog is one ingested log record.
type TelemetryLog struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Severity       LogSeverity       `json:"severity"`
	Body           string            `json:"body"`
	Payload        json.RawMessage   `json:"payload"`
	UploadDate     time.Time         `json:"upload_date"`
	UploadedBy     string            `json:"uploaded_by"`
	TagIDs         []string          `json:"tag_ids,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ClaudeLog is one deduplicated Claude session log entry. EntryUUID is the
// client-side identifier used for forward-insert deduplication within a
// session.
type ClaudeLog struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	SessionID      string          `json:"session_id"`
	EntryUUID      string          `json:"entry_uuid"`
	Payload        json.RawMessage `json:"payload"`
	UploadDate     time.Time       `json:"upload_date"`
	UploadedBy     string          `json:"uploaded_by"`
}

// ClaudeHook is one Claude hook event.
type ClaudeHook struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	HookEvent      string          `json:"hook_event"`
	SessionID      string          `json:"session_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	UploadDate     time.Time       `json:"upload_date"`
	UploadedBy     string          `json:"uploaded_by"`
}
