package models

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
)

// NewID returns a new 24-character hex identifier for a durable entity.
// IDs are opaque: callers must not parse or order them.
func NewID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand only fails if the OS entropy source is broken
		panic("models: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// NewULID returns a time-ordered identifier. Used where insertion order
// matters: queue messages and usage records.
func NewULID() string {
	return ulid.Make().String()
}

// IsValidID reports whether s looks like a canonical 24-char hex identifier.
func IsValidID(s string) bool {
	if len(s) != 24 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
