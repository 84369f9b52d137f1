package handlers

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/service"
)

// resolveClaudeOrg picks the organization for the org-less Claude ingest
// endpoints: an org-scoped token wins, otherwise the body value is checked
// for membership.
func (h *Handlers) resolveClaudeOrg(ctx context.Context, id *auth.Identity, bodyOrgID string) (string, error) {
	if id.TokenOrgID != "" {
		return id.TokenOrgID, nil
	}
	if bodyOrgID == "" {
		return "", huma.Error422UnprocessableEntity("organization_id is required")
	}
	if _, err := h.requireOrg(ctx, bodyOrgID, models.RoleUser); err != nil {
		return "", err
	}
	return bodyOrgID, nil
}

// ClaudeLogInput is the body of POST /claude/log.
type ClaudeLogInput struct {
	Body struct {
		OrganizationID string `json:"organization_id,omitempty" doc:"Ignored for org-scoped tokens"`
		SessionID      string `json:"session_id"`
		Logs           []struct {
			UUID    string          `json:"uuid"`
			Payload json.RawMessage `json:"payload"`
		} `json:"logs"`
	}
}

// ClaudeLogOutput reports how many entries the batch added.
type ClaudeLogOutput struct {
	Body struct {
		Inserted int `json:"inserted"`
	}
}

// IngestClaudeLog stores the new tail of a session log batch. Entries
// already stored for the session are skipped.
func (h *Handlers) IngestClaudeLog(ctx context.Context, input *ClaudeLogInput) (*ClaudeLogOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	orgID, err := h.resolveClaudeOrg(ctx, id, input.Body.OrganizationID)
	if err != nil {
		return nil, err
	}
	entries := make([]service.ClaudeLogEntry, 0, len(input.Body.Logs))
	for _, l := range input.Body.Logs {
		entries = append(entries, service.ClaudeLogEntry{EntryUUID: l.UUID, Payload: l.Payload})
	}
	inserted, err := h.services.Claude.IngestLogs(ctx, orgID, id.UserID, input.Body.SessionID, entries)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ClaudeLogOutput{}
	out.Body.Inserted = inserted
	return out, nil
}

// ClaudeHookInput is the body of POST /claude/hook.
type ClaudeHookInput struct {
	Body struct {
		OrganizationID string          `json:"organization_id,omitempty" doc:"Ignored for org-scoped tokens"`
		HookEvent      string          `json:"hook_event"`
		SessionID      string          `json:"session_id,omitempty"`
		Payload        json.RawMessage `json:"payload"`
	}
}

// ClaudeHookOutput is the stored hook event.
type ClaudeHookOutput struct {
	Body *models.ClaudeHook
}

// IngestClaudeHook stores one hook event.
func (h *Handlers) IngestClaudeHook(ctx context.Context, input *ClaudeHookInput) (*ClaudeHookOutput, error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	orgID, err := h.resolveClaudeOrg(ctx, id, input.Body.OrganizationID)
	if err != nil {
		return nil, err
	}
	hook, err := h.services.Claude.IngestHook(ctx, orgID, id.UserID, input.Body.HookEvent, input.Body.SessionID, input.Body.Payload)
	if err != nil {
		return nil, mapError(err)
	}
	return &ClaudeHookOutput{Body: hook}, nil
}

// ClaudeListInput carries claude list paging.
type ClaudeListInput struct {
	OrgPath
	Pagination
}

// ListClaudeLogsOutput is a page of session log entries.
type ListClaudeLogsOutput struct {
	Body struct {
		Logs  []*models.ClaudeLog `json:"logs"`
		Total int                 `json:"total"`
	}
}

// ListClaudeLogs lists stored session log entries.
func (h *Handlers) ListClaudeLogs(ctx context.Context, input *ClaudeListInput) (*ListClaudeLogsOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	logs, total, err := h.services.Claude.ListLogs(ctx, input.Org, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListClaudeLogsOutput{}
	out.Body.Logs = logs
	out.Body.Total = total
	return out, nil
}

// ListClaudeHooksOutput is a page of hook events.
type ListClaudeHooksOutput struct {
	Body struct {
		Hooks []*models.ClaudeHook `json:"hooks"`
		Total int                  `json:"total"`
	}
}

// ListClaudeHooks lists stored hook events.
func (h *Handlers) ListClaudeHooks(ctx context.Context, input *ClaudeListInput) (*ListClaudeHooksOutput, error) {
	if _, err := h.requireOrg(ctx, input.Org, models.RoleUser); err != nil {
		return nil, err
	}
	hooks, total, err := h.services.Claude.ListHooks(ctx, input.Org, input.Skip, input.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := &ListClaudeHooksOutput{}
	out.Body.Hooks = hooks
	out.Body.Total = total
	return out, nil
}
