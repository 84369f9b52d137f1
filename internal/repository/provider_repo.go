package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docrouter-ai/docrouter-api/internal/models"
)

// SQLiteLLMProviderRepository implements LLMProviderRepository using SQLite.
type SQLiteLLMProviderRepository struct {
	db *sql.DB
}

// NewSQLiteLLMProviderRepository creates a new provider repository.
func NewSQLiteLLMProviderRepository(db *sql.DB) *SQLiteLLMProviderRepository {
	return &SQLiteLLMProviderRepository{db: db}
}

func (r *SQLiteLLMProviderRepository) Upsert(ctx context.Context, p *models.LLMProvider) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_providers (name, enabled, api_key_encrypted, base_url, enabled_models, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			enabled = excluded.enabled,
			api_key_encrypted = excluded.api_key_encrypted,
			base_url = excluded.base_url,
			enabled_models = excluded.enabled_models,
			updated_at = excluded.updated_at
	`, p.Name, boolToInt(p.Enabled), p.APIKeyEncrypted, p.BaseURL,
		encodeStrings(p.EnabledModels), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert provider: %w", err)
	}
	return nil
}

func (r *SQLiteLLMProviderRepository) Get(ctx context.Context, name string) (*models.LLMProvider, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, enabled, api_key_encrypted, base_url, enabled_models, updated_at
		FROM llm_providers WHERE name = ?
	`, name)
	p, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return p, nil
}

func (r *SQLiteLLMProviderRepository) List(ctx context.Context) ([]*models.LLMProvider, error) {
	return r.list(ctx, `
		SELECT name, enabled, api_key_encrypted, base_url, enabled_models, updated_at
		FROM llm_providers ORDER BY name
	`)
}

func (r *SQLiteLLMProviderRepository) ListEnabled(ctx context.Context) ([]*models.LLMProvider, error) {
	return r.list(ctx, `
		SELECT name, enabled, api_key_encrypted, base_url, enabled_models, updated_at
		FROM llm_providers WHERE enabled = 1 ORDER BY name
	`)
}

func (r *SQLiteLLMProviderRepository) list(ctx context.Context, query string) ([]*models.LLMProvider, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var providers []*models.LLMProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func scanProvider(row rowScanner) (*models.LLMProvider, error) {
	var p models.LLMProvider
	var enabled int
	var enabledModels, updatedAt string
	err := row.Scan(&p.Name, &enabled, &p.APIKeyEncrypted, &p.BaseURL,
		&enabledModels, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.Enabled = enabled != 0
	p.EnabledModels = decodeStrings(enabledModels)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
