package shutdown

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware_DisabledPassthrough(t *testing.T) {
	m := NewIdleMonitor(IdleMonitorConfig{Timeout: 0})

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := m.Middleware(inner)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if m.inFlight.Load() != 0 {
		t.Errorf("inFlight = %d, want 0 when disabled", m.inFlight.Load())
	}
}

func TestMiddleware_TracksActivity(t *testing.T) {
	m := NewIdleMonitor(IdleMonitorConfig{Timeout: time.Hour})
	before := m.lastSeen

	var during int64
	wrapped := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = m.inFlight.Load()
		w.WriteHeader(http.StatusOK)
	}))

	time.Sleep(time.Millisecond)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v0/orgs/o1/tags", nil))

	if during != 1 {
		t.Errorf("inFlight during request = %d, want 1", during)
	}
	if m.inFlight.Load() != 0 {
		t.Errorf("inFlight after request = %d, want 0", m.inFlight.Load())
	}
	if !m.lastSeen.After(before) {
		t.Error("expected lastSeen to advance")
	}
}

func TestMiddleware_ExcludedPaths(t *testing.T) {
	m := NewIdleMonitor(IdleMonitorConfig{Timeout: time.Hour, ExcludePaths: []string{"/healthz", "/readyz"}})
	before := m.lastSeen

	wrapped := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	time.Sleep(time.Millisecond)
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if m.lastSeen != before {
		t.Error("probe request should not count as activity")
	}
}
