package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/http/mw"
	"github.com/docrouter-ai/docrouter-api/internal/llm"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// ListLLMProvidersOutput is the configured provider list. API keys are never
// returned.
type ListLLMProvidersOutput struct {
	Body struct {
		Providers []*models.LLMProvider `json:"providers"`
	}
}

// ListLLMProviders lists the configured upstream providers.
func (h *Handlers) ListLLMProviders(ctx context.Context, _ *struct{}) (*ListLLMProvidersOutput, error) {
	providers, err := h.services.LLM.ListProviders(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListLLMProvidersOutput{}
	out.Body.Providers = providers
	return out, nil
}

// UpdateLLMProviderInput is the body of PUT /account/llm/providers.
type UpdateLLMProviderInput struct {
	Body struct {
		Name          string   `json:"name"`
		Enabled       bool     `json:"enabled"`
		APIKey        string   `json:"api_key,omitempty" doc:"Empty keeps the stored key"`
		BaseURL       string   `json:"base_url,omitempty"`
		EnabledModels []string `json:"litellm_models_enabled,omitempty"`
	}
}

// UpdateLLMProviderOutput is the updated provider record.
type UpdateLLMProviderOutput struct {
	Body *models.LLMProvider
}

// UpdateLLMProvider upserts one provider's configuration. The API key is
// encrypted at rest; an empty key on update preserves the stored one.
func (h *Handlers) UpdateLLMProvider(ctx context.Context, input *UpdateLLMProviderInput) (*UpdateLLMProviderOutput, error) {
	provider, err := h.services.LLM.UpdateProvider(ctx, input.Body.Name, input.Body.Enabled,
		input.Body.APIKey, input.Body.BaseURL, input.Body.EnabledModels)
	if err != nil {
		return nil, mapError(err)
	}
	return &UpdateLLMProviderOutput{Body: provider}, nil
}

// ListLLMModelsOutput is the usable model catalog.
type ListLLMModelsOutput struct {
	Body struct {
		Models []llm.ModelSpec `json:"models"`
	}
}

// ListLLMModels lists models usable with the current provider configuration.
func (h *Handlers) ListLLMModels(ctx context.Context, _ *struct{}) (*ListLLMModelsOutput, error) {
	specs, err := h.services.LLM.Models(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListLLMModelsOutput{}
	out.Body.Models = specs
	return out, nil
}

// chatRunRequest is the body of the chat run endpoints.
type chatRunRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatRun handles POST /account/llm/run as a raw handler so the streaming
// variant can write SSE frames. Requires the system admin role.
func (h *Handlers) ChatRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authenticateRaw(w, r)
	if !ok {
		return
	}
	if !id.IsAdmin {
		writeJSONError(w, http.StatusForbidden, "account admin access required")
		return
	}
	h.serveChat(w, r)
}

// ChatRunOrg handles POST /orgs/{org}/llm/run, the org-scoped chat run.
// Requires the admin role within the organization.
func (h *Handlers) ChatRunOrg(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authenticateRaw(w, r)
	if !ok {
		return
	}
	ctx := mw.WithIdentity(r.Context(), id)
	if _, err := h.requireOrg(ctx, chi.URLParam(r, "org"), models.RoleAdmin); err != nil {
		status := http.StatusInternalServerError
		var se huma.StatusError
		if errors.As(err, &se) {
			status = se.GetStatus()
		}
		writeJSONError(w, status, err.Error())
		return
	}
	h.serveChat(w, r.WithContext(ctx))
}

func (h *Handlers) serveChat(w http.ResponseWriter, r *http.Request) {
	var req chatRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeJSONError(w, http.StatusUnprocessableEntity, "model and messages are required")
		return
	}
	chat := service.ChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if !req.Stream {
		result, err := h.services.LLM.Chat(r.Context(), chat)
		if err != nil {
			h.writeChatError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"content":       result.Content,
			"model":         result.Model,
			"input_tokens":  result.InputTokens,
			"output_tokens": result.OutputTokens,
			"finish_reason": result.FinishReason,
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Streams can outlive the server write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	_, err := h.services.LLM.ChatStream(r.Context(), chat, func(delta string) error {
		return sendSSE(w, flusher, map[string]any{"chunk": delta})
	})
	if err != nil {
		// The status line is already written; surface the error in-stream.
		_ = sendSSE(w, flusher, map[string]any{"error": err.Error()})
		return
	}
	_ = sendSSE(w, flusher, map[string]any{"done": true})
}

// authenticateRaw resolves the bearer credential on a raw (non-Huma) route.
func (h *Handlers) authenticateRaw(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
		return nil, false
	}
	id, err := h.verifier.Verify(r.Context(), strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid token")
		return nil, false
	}
	return id, true
}

// writeChatError maps a failed chat run to a status: configuration problems
// the caller can correct are 422, provider failures are 500.
func (h *Handlers) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, llm.ErrModelNotFound),
		errors.Is(err, llm.ErrProviderDisabled),
		errors.Is(err, llm.ErrNoAPIKey):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"error": detail})
}
