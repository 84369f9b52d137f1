package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProvider_Generate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %s", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"total\": 42}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 8}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "test-key", srv.URL)
	result, err := p.Generate(context.Background(), Request{
		Model:          "gpt-4o-mini",
		System:         "extract fields",
		Messages:       []Message{{Role: "user", Content: "doc text"}},
		ResponseFormat: json.RawMessage(`{"type":"object"}`),
		Temperature:    0.2,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if result.Content != `{"total": 42}` {
		t.Errorf("Content = %s", result.Content)
	}
	if result.InputTokens != 120 || result.OutputTokens != 8 {
		t.Errorf("tokens = %d/%d, want 120/8", result.InputTokens, result.OutputTokens)
	}
	if result.FinishReason != "stop" {
		t.Errorf("FinishReason = %s", result.FinishReason)
	}

	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", gotBody["model"])
	}
	if _, ok := gotBody["response_format"]; !ok {
		t.Error("expected response_format in request")
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages len = %d, want 2 (system + user)", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
}

func TestOpenAIProvider_GenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openrouter", "test-key", srv.URL)
	_, err := p.Generate(context.Background(), Request{
		Model:    "deepseek/deepseek-chat",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry status code, got %v", err)
	}
	if !errors.Is(err, ErrTransient) {
		t.Errorf("429 should be transient, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("rate limit should be retryable")
	}
}

func TestOpenAIProvider_GeneratePermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "unknown model"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "test-key", srv.URL)
	_, err := p.Generate(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if errors.Is(err, ErrTransient) {
		t.Errorf("4xx other than 429 should be permanent, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("permanent rejection must not be retried")
	}
}

func TestOpenAIProvider_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "test-key", srv.URL)
	_, err := p.Generate(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, ErrTransient) {
		t.Errorf("5xx should be transient, got %v", err)
	}
}

func TestOpenAIProvider_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if body["stream"] != true {
			t.Error("expected stream=true in request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2}}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "test-key", srv.URL)
	var deltas []string
	result, err := p.Stream(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if result.Content != "Hello" {
		t.Errorf("Content = %s, want Hello", result.Content)
	}
	if len(deltas) != 2 {
		t.Errorf("deltas = %v, want 2 entries", deltas)
	}
	if result.InputTokens != 10 || result.OutputTokens != 2 {
		t.Errorf("tokens = %d/%d, want 10/2", result.InputTokens, result.OutputTokens)
	}
}

func TestOpenAIProvider_ImageParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		msgs, _ := body["messages"].([]any)
		if len(msgs) != 1 {
			t.Fatalf("messages len = %d, want 1", len(msgs))
		}
		user, _ := msgs[0].(map[string]any)
		parts, _ := user["content"].([]any)
		if len(parts) != 2 {
			t.Fatalf("content parts = %d, want image + text", len(parts))
		}
		img, _ := parts[0].(map[string]any)
		if img["type"] != "image_url" {
			t.Errorf("first part type = %v, want image_url", img["type"])
		}
		url, _ := img["image_url"].(map[string]any)
		if !strings.HasPrefix(url["url"].(string), "data:image/png;base64,") {
			t.Errorf("image url should be a data url, got %v", url["url"])
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}],"usage":{}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "test-key", srv.URL)
	_, err := p.Generate(context.Background(), Request{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "read this page"}},
		Images:   []Image{{MediaType: "image/png", Data: []byte{0x89, 0x50}}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}
