// Package shutdown provides idle monitoring for scale-to-zero deployments.
// The monitor watches HTTP activity and background work and closes a channel
// once the server has been quiet for the configured timeout, letting main
// fold that into its normal graceful shutdown path.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BusyFunc reports whether background work is in progress. Idle shutdown is
// held off while it returns true.
type BusyFunc func() bool

// IdleMonitor tracks request activity and signals when the server has been
// idle long enough to stop.
type IdleMonitor struct {
	timeout  time.Duration
	logger   *slog.Logger
	excluded []string
	busy     BusyFunc

	inFlight atomic.Int64
	mu       sync.RWMutex
	lastSeen time.Time

	idle chan struct{}
	stop chan struct{}
}

// IdleMonitorConfig configures the monitor. A zero Timeout disables it
// entirely.
type IdleMonitorConfig struct {
	Timeout time.Duration
	Logger  *slog.Logger
	// ExcludePaths are path prefixes that do not count as activity, such as
	// health probes hit by the platform itself.
	ExcludePaths []string
	// BackgroundWorkCheck, when set, holds off shutdown while it returns
	// true. Wired to the job worker so in-flight OCR and LLM work finishes.
	BackgroundWorkCheck BusyFunc
}

// NewIdleMonitor creates an idle monitor.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IdleMonitor{
		timeout:  cfg.Timeout,
		logger:   logger,
		excluded: cfg.ExcludePaths,
		busy:     cfg.BackgroundWorkCheck,
		lastSeen: time.Now(),
		idle:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

// Start begins watching for idle periods.
func (m *IdleMonitor) Start() {
	if m.timeout <= 0 {
		m.logger.Debug("idle monitoring disabled")
		return
	}
	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excluded)
	go m.run()
}

// Stop halts the monitor.
func (m *IdleMonitor) Stop() {
	if m.timeout <= 0 {
		return
	}
	close(m.stop)
}

// ShutdownChan is closed once the idle timeout elapses.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.idle
}

// Middleware counts in-flight requests. Excluded path prefixes pass through
// without touching the idle clock.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if m.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range m.excluded {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		m.touch(1)
		defer m.touch(-1)
		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) touch(delta int64) {
	m.inFlight.Add(delta)
	m.mu.Lock()
	m.lastSeen = time.Now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	// Poll well under the timeout so the shutdown lands close to it.
	interval := m.timeout / 6
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			active := m.inFlight.Load()
			working := m.busy != nil && m.busy()
			if active > 0 || working {
				// Reset the clock so finished work still gets a full
				// grace period before shutdown.
				m.mu.Lock()
				m.lastSeen = time.Now()
				m.mu.Unlock()
				continue
			}

			m.mu.RLock()
			idleFor := time.Since(m.lastSeen)
			m.mu.RUnlock()
			if idleFor >= m.timeout {
				m.logger.Info("idle timeout reached, signaling graceful shutdown",
					"idle_time", idleFor, "timeout", m.timeout)
				close(m.idle)
				return
			}
			m.logger.Debug("idle check", "idle_time", idleFor, "active_requests", active)
		}
	}
}
