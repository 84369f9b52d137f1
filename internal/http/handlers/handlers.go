// Package handlers contains the HTTP handlers for the API.
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/http/mw"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// Handlers bundles the services behind the HTTP surface.
type Handlers struct {
	logger   *slog.Logger
	services *service.Services
	verifier *auth.Verifier
	db       *sql.DB
}

// New creates the handler set.
func New(logger *slog.Logger, services *service.Services, verifier *auth.Verifier, db *sql.DB) *Handlers {
	return &Handlers{
		logger:   logger.With("component", "http"),
		services: services,
		verifier: verifier,
		db:       db,
	}
}

// Pagination carries the shared list paging query parameters.
type Pagination struct {
	Skip  int `query:"skip" minimum:"0" doc:"Number of items to skip"`
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum number of items to return"`
}

// identity returns the authenticated caller stashed by the auth middleware.
func identity(ctx context.Context) (*auth.Identity, error) {
	id := mw.IdentityFrom(ctx)
	if id == nil {
		return nil, huma.Error401Unauthorized("authentication required")
	}
	return id, nil
}

// requireOrg checks that the caller may act inside the organization and
// returns it. Account-level tokens never reach org endpoints, org-scoped
// tokens are confined to their own organization, and system admins bypass
// the membership check.
func (h *Handlers) requireOrg(ctx context.Context, orgID string, minRole models.MemberRole) (*models.Organization, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	if id.AccountToken {
		return nil, huma.Error403Forbidden("account tokens cannot access organization endpoints")
	}
	if id.TokenOrgID != "" && id.TokenOrgID != orgID {
		return nil, huma.Error403Forbidden("token is not valid for this organization")
	}

	org, err := h.services.Account.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, mapError(err)
	}

	role := org.RoleOf(id.UserID)
	if role == "" && !id.IsAdmin {
		return nil, huma.Error403Forbidden("not a member of this organization")
	}
	if minRole == models.RoleAdmin && role != models.RoleAdmin && !id.IsAdmin {
		return nil, huma.Error403Forbidden("organization admin role required")
	}
	return org, nil
}

// mapError translates service and repository errors to HTTP status errors.
func mapError(err error) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return huma.Error422UnprocessableEntity(ve.Detail)
	}
	var re *service.ReferencedError
	if errors.As(err, &re) {
		return huma.Error409Conflict(re.Error())
	}
	if service.IsCreditError(err) {
		return huma.NewError(http.StatusPaymentRequired, err.Error())
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return huma.Error404NotFound("not found")
	case errors.Is(err, repository.ErrDuplicateName):
		return huma.Error409Conflict("name already in use")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
		return huma.Error401Unauthorized(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
