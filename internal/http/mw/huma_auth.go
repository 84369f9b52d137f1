package mw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
)

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// OperationMetadataKey is the key for storing additional operation requirements.
type OperationMetadataKey string

// MetaKeyRequireAccountAdmin marks operations that only system admins may call.
const MetaKeyRequireAccountAdmin OperationMetadataKey = "requireAccountAdmin"

type contextKey string

// identityKey is where the resolved caller identity lives in the request
// context.
const identityKey contextKey = "identity"

// IdentityFrom returns the authenticated identity, or nil on public routes.
func IdentityFrom(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityKey).(*auth.Identity)
	return identity
}

// WithIdentity returns a context carrying the given identity. Used by raw
// (non-Huma) handlers and tests.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// HumaAuth returns a Huma middleware that handles authentication based on
// operation security. It checks ctx.Operation().Security to determine if
// authentication is required.
func HumaAuth(api huma.API, verifier *auth.Verifier) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}
		credential := strings.TrimPrefix(authHeader, "Bearer ")

		stdCtx := ctx.Context()
		identity, err := verifier.Verify(stdCtx, credential)
		if err != nil {
			slog.Debug("auth validation failed", "error", err)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		if requiresAccountAdmin(op) && !identity.IsAdmin {
			huma.WriteErr(api, ctx, http.StatusForbidden, "account admin access required")
			return
		}

		next(huma.WithContext(ctx, WithIdentity(stdCtx, identity)))
	}
}

// operationRequiresAuth checks if the operation has bearerAuth in its
// security requirements.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}

// requiresAccountAdmin checks operation metadata for the account admin
// requirement.
func requiresAccountAdmin(op *huma.Operation) bool {
	if op.Metadata == nil {
		return false
	}
	if val, ok := op.Metadata[string(MetaKeyRequireAccountAdmin)]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
