// Package mw provides HTTP middleware and Huma registration helpers.
package mw

import (
	"net/http"

	"github.com/docrouter-ai/docrouter-api/internal/version"
)

// APIVersion stamps every response with an X-API-Version header so clients
// can check compatibility.
func APIVersion() func(http.Handler) http.Handler {
	v := version.Get().Short()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", v)
			next.ServeHTTP(w, r)
		})
	}
}
