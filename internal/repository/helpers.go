package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when an entity does not exist in the caller's
// organization.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName is returned on case-insensitive name collisions.
var ErrDuplicateName = errors.New("duplicate name")

// timeFormat is the canonical storage format for timestamps (UTC).
const timeFormat = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// encodeStrings marshals a string slice as JSON text, never nil.
func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeStrings(s string) []string {
	var v []string
	if s != "" {
		_ = json.Unmarshal([]byte(s), &v)
	}
	if v == nil {
		v = []string{}
	}
	return v
}

// encodeStringMap marshals a string map as JSON text, never nil.
func encodeStringMap(v map[string]string) string {
	if v == nil {
		v = map[string]string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeStringMap(s string) map[string]string {
	v := map[string]string{}
	if s != "" {
		_ = json.Unmarshal([]byte(s), &v)
	}
	return v
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// clampLimit enforces the registry-wide pagination cap.
func clampLimit(limit int) int {
	const maxLimit = 100
	if limit <= 0 {
		return 10
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
