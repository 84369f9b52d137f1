package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docrouter-ai/docrouter-api/internal/llm"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// chatRouter mounts the raw chat routes the way main does.
func chatRouter(h *Handlers) *chi.Mux {
	router := chi.NewRouter()
	router.Post("/v0/account/llm/run", h.ChatRun)
	router.Post("/v0/orgs/{org}/llm/run", h.ChatRunOrg)
	return router
}

func mintToken(t *testing.T, h *Handlers, repos *repository.Repositories, userID string) string {
	t.Helper()
	user, err := repos.User.GetByID(t.Context(), userID)
	if err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	token, err := h.verifier.MintSessionToken(user, time.Hour)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return token
}

func doChat(router *chi.Mux, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatRun_MissingAuth(t *testing.T) {
	h, _ := setupHandlers(t)

	rec := doChat(chatRouter(h), "/v0/account/llm/run", "", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestChatRun_RequiresAccountAdmin(t *testing.T) {
	h, repos := setupHandlers(t)
	_, orgID := seedOrg(t, h)
	memberID := seedMember(t, h, orgID, "member@example.com", models.RoleUser)

	rec := doChat(chatRouter(h), "/v0/account/llm/run", mintToken(t, h, repos, memberID), `{}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestChatRun_InvalidBody(t *testing.T) {
	h, repos := setupHandlers(t)
	ownerID, _ := seedOrg(t, h)

	rec := doChat(chatRouter(h), "/v0/account/llm/run", mintToken(t, h, repos, ownerID), `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatRunOrg_RequiresOrgAdmin(t *testing.T) {
	h, repos := setupHandlers(t)
	_, orgID := seedOrg(t, h)
	memberID := seedMember(t, h, orgID, "member@example.com", models.RoleUser)

	rec := doChat(chatRouter(h), "/v0/orgs/"+orgID+"/llm/run", mintToken(t, h, repos, memberID), `{}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestChatRunOrg_NonMember(t *testing.T) {
	h, repos := setupHandlers(t)
	_, orgID := seedOrg(t, h)
	outsider, err := h.services.Account.CreateUser(t.Context(), "outsider@example.com", "Outsider", models.RoleUser)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	rec := doChat(chatRouter(h), "/v0/orgs/"+orgID+"/llm/run", mintToken(t, h, repos, outsider.ID), `{}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestWriteChatError(t *testing.T) {
	h, _ := setupHandlers(t)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"model not found", llm.ErrModelNotFound, http.StatusUnprocessableEntity},
		{"provider disabled", llm.ErrProviderDisabled, http.StatusUnprocessableEntity},
		{"no api key", llm.ErrNoAPIKey, http.StatusUnprocessableEntity},
		{"provider failure", errors.New("upstream rejected the request"), http.StatusInternalServerError},
		{"transient failure", fmt.Errorf("%w: status 429", llm.ErrTransient), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeChatError(rec, tt.err)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestChatRunOrg_ValidatesBody(t *testing.T) {
	h, repos := setupHandlers(t)
	ownerID, orgID := seedOrg(t, h)

	// Missing model and messages fails validation before any provider call.
	rec := doChat(chatRouter(h), "/v0/orgs/"+orgID+"/llm/run", mintToken(t, h, repos, ownerID), `{}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}
