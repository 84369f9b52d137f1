// Package llm provides LLM provider integrations for document extraction
// and chat.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrModelNotFound    = errors.New("model not found")
	ErrProviderDisabled = errors.New("provider disabled")
	ErrNoAPIKey         = errors.New("no API key configured")

	// ErrTransient wraps provider failures worth retrying: network errors,
	// rate limits, and upstream 5xx responses. Other provider rejections
	// are permanent.
	ErrTransient = errors.New("transient LLM provider error")
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Image is one page image attached to a request.
type Image struct {
	MediaType string // e.g. "image/png"
	Data      []byte
}

// Request is a completion request. When ResponseFormat is set the provider
// enforces schema-conformant JSON output; providers without native schema
// enforcement fall back to prompt instructions.
type Request struct {
	Model          string
	System         string
	Messages       []Message
	Images         []Image
	ResponseFormat json.RawMessage // JSON schema, optional
	Temperature    float64
	MaxTokens      int
}

// Result is a completed generation with token usage.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason string // "stop", "length", ...
	Model        string
}

// StreamFunc receives incremental output text.
type StreamFunc func(delta string) error

// Provider executes completion requests against one upstream.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
	Stream(ctx context.Context, req Request, fn StreamFunc) (*Result, error)
}
