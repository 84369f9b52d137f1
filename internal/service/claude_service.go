package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// ClaudeService ingests Claude session logs and hook events.
type ClaudeService struct {
	logger  *slog.Logger
	repos   *repository.Repositories
	credits *CreditService
}

// NewClaudeService creates a new Claude ingest service.
func NewClaudeService(logger *slog.Logger, repos *repository.Repositories, credits *CreditService) *ClaudeService {
	return &ClaudeService{logger: logger, repos: repos, credits: credits}
}

// ClaudeLogEntry is one entry of a session log batch, in session order.
type ClaudeLogEntry struct {
	EntryUUID string
	Payload   json.RawMessage
}

// IngestLogs stores the new tail of a session log batch. Clients resend
// overlapping batches; the scan finds the last entry already stored and
// inserts only what follows it. The unique (session, entry) index backstops
// concurrent senders. Charges one SPU per batch.
func (s *ClaudeService) IngestLogs(ctx context.Context, orgID, uploadedBy, sessionID string, entries []ClaudeLogEntry) (int, error) {
	if sessionID == "" {
		return 0, validationErrorf("session_id must not be empty")
	}
	if len(entries) == 0 {
		return 0, validationErrorf("empty log batch")
	}

	if err := s.credits.CheckSPU(ctx, orgID, SPUCostClaudeLogBatch); err != nil {
		return 0, err
	}
	if err := s.credits.RecordSPU(ctx, orgID, SPUCostClaudeLogBatch, models.OpClaudeLog, uploadedBy); err != nil {
		return 0, fmt.Errorf("failed to record claude log usage: %w", err)
	}

	stored, err := s.repos.Claude.LastEntryUUIDs(ctx, sessionID, len(entries))
	if err != nil {
		return 0, fmt.Errorf("failed to load known entries: %w", err)
	}
	known := make(map[string]bool, len(stored))
	for _, uuid := range stored {
		known[uuid] = true
	}

	// Single monotone scan: everything after the last already-known entry
	// is new.
	start := 0
	for i, entry := range entries {
		if known[entry.EntryUUID] {
			start = i + 1
		}
	}
	if start >= len(entries) {
		return 0, nil
	}

	now := time.Now().UTC()
	logs := make([]*models.ClaudeLog, 0, len(entries)-start)
	for _, entry := range entries[start:] {
		logs = append(logs, &models.ClaudeLog{
			ID:             models.NewID(),
			OrganizationID: orgID,
			SessionID:      sessionID,
			EntryUUID:      entry.EntryUUID,
			Payload:        entry.Payload,
			UploadDate:     now,
			UploadedBy:     uploadedBy,
		})
	}
	inserted, err := s.repos.Claude.CreateLogs(ctx, logs)
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// IngestHook stores one hook event. Charges a fractional SPU.
func (s *ClaudeService) IngestHook(ctx context.Context, orgID, uploadedBy, hookEvent, sessionID string, payload json.RawMessage) (*models.ClaudeHook, error) {
	if hookEvent == "" {
		return nil, validationErrorf("hook_event must not be empty")
	}

	if err := s.credits.CheckSPU(ctx, orgID, SPUCostClaudeHook); err != nil {
		return nil, err
	}
	if err := s.credits.RecordSPU(ctx, orgID, SPUCostClaudeHook, models.OpClaudeHook, uploadedBy); err != nil {
		return nil, fmt.Errorf("failed to record claude hook usage: %w", err)
	}

	hook := &models.ClaudeHook{
		ID:             models.NewID(),
		OrganizationID: orgID,
		HookEvent:      hookEvent,
		SessionID:      sessionID,
		Payload:        payload,
		UploadDate:     time.Now().UTC(),
		UploadedBy:     uploadedBy,
	}
	if err := s.repos.Claude.CreateHook(ctx, hook); err != nil {
		return nil, err
	}
	return hook, nil
}

// ListLogs returns stored session log entries, newest first.
func (s *ClaudeService) ListLogs(ctx context.Context, orgID string, skip, limit int) ([]*models.ClaudeLog, int, error) {
	return s.repos.Claude.ListLogs(ctx, orgID, skip, clampLimit(limit))
}

// ListHooks returns stored hook events, newest first.
func (s *ClaudeService) ListHooks(ctx context.Context, orgID string, skip, limit int) ([]*models.ClaudeHook, int, error) {
	return s.repos.Claude.ListHooks(ctx, orgID, skip, clampLimit(limit))
}
