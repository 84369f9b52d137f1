package service

import (
	"fmt"
	"strings"
)

// ReferencedError reports a delete refused because other entities still
// reference the target. Referrers lists them for the API response.
type ReferencedError struct {
	Entity    string   // e.g. "tag", "schema"
	ID        string
	Referrers []string // e.g. "3 documents", "1 prompt"
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s %s is still referenced by %s", e.Entity, e.ID, strings.Join(e.Referrers, ", "))
}

// ValidationError reports a client input problem (HTTP 400/422).
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}
