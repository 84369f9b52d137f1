package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIVersion(t *testing.T) {
	wrapped := APIVersion()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/health", nil))

	if rec.Header().Get("X-API-Version") == "" {
		t.Error("expected X-API-Version header to be set")
	}
}

func TestAPIVersion_SetOnErrors(t *testing.T) {
	wrapped := APIVersion()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v0/orgs/o1/documents", nil))

	if rec.Header().Get("X-API-Version") == "" {
		t.Error("expected X-API-Version header on error responses")
	}
}
