package mw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// TimeoutConfig selects a request deadline by path. Paths ending in a
// SkipPatterns suffix get no deadline at all, which SSE streams need.
// Paths containing an ExtendedPatterns substring get the longer Extended
// deadline, everything else gets Default. Suffix matching for skips keeps
// the chat route (".../llm/run") deadline-free without also exempting the
// extraction route (".../llm/run/{doc}").
type TimeoutConfig struct {
	Default          time.Duration
	Extended         time.Duration
	ExtendedPatterns []string
	SkipPatterns     []string
}

func (cfg TimeoutConfig) deadlineFor(path string) (time.Duration, bool) {
	for _, pattern := range cfg.SkipPatterns {
		if strings.HasSuffix(path, pattern) {
			return 0, false
		}
	}
	for _, pattern := range cfg.ExtendedPatterns {
		if strings.Contains(path, pattern) {
			return cfg.Extended, true
		}
	}
	return cfg.Default, true
}

// recovered carries a handler panic across the goroutine boundary so the
// outer Recoverer still sees the original stack.
type recovered struct {
	value any
	stack []byte
}

// Timeout applies per-path request deadlines. A request that overruns its
// deadline gets a 504 and the handler's context is cancelled.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeout, ok := cfg.deadlineFor(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			panicked := make(chan *recovered, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- &recovered{value: p, stack: debug.Stack()}
					}
				}()
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicked:
				panic(fmt.Sprintf("%v\n\noriginal stack trace:\n%s", p.value, p.stack))
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					w.WriteHeader(http.StatusGatewayTimeout)
				}
			}
		})
	}
}
