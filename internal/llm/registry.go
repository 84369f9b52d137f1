package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docrouter-ai/docrouter-api/internal/crypto"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// Registry resolves model ids to configured providers. API keys come from
// admin-stored provider rows (encrypted at rest) with environment variables
// as the fallback.
type Registry struct {
	logger    *slog.Logger
	providers repository.LLMProviderRepository
	encryptor *crypto.Encryptor
	envKeys   map[string]string
	baseURLs  map[string]string
}

// NewRegistry creates a provider registry. envKeys maps provider names to
// keys seeded from the environment; baseURLs maps provider names to endpoint
// overrides (both optional).
func NewRegistry(logger *slog.Logger, providers repository.LLMProviderRepository, encryptor *crypto.Encryptor, envKeys, baseURLs map[string]string) *Registry {
	if envKeys == nil {
		envKeys = map[string]string{}
	}
	if baseURLs == nil {
		baseURLs = map[string]string{}
	}
	return &Registry{
		logger:    logger,
		providers: providers,
		encryptor: encryptor,
		envKeys:   envKeys,
		baseURLs:  baseURLs,
	}
}

// Resolve returns a ready provider and the model spec for a model id.
func (r *Registry) Resolve(ctx context.Context, model string) (Provider, ModelSpec, error) {
	providerName, row, err := r.providerFor(ctx, model)
	if err != nil {
		return nil, ModelSpec{}, err
	}

	apiKey, baseURL, err := r.credentials(providerName, row)
	if err != nil {
		return nil, ModelSpec{}, err
	}

	spec := SpecFor(providerName, model)

	var provider Provider
	if providerName == "anthropic" {
		provider = NewAnthropicProvider(apiKey, baseURL)
	} else {
		provider = NewOpenAIProvider(providerName, apiKey, baseURL)
	}
	return provider, spec, nil
}

// Models returns the models currently available: the catalog entries whose
// provider is usable, plus any admin-enabled models outside the catalog.
func (r *Registry) Models(ctx context.Context) ([]ModelSpec, error) {
	rows, err := r.providers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	byName := make(map[string]*models.LLMProvider, len(rows))
	for _, row := range rows {
		byName[row.Name] = row
	}

	usable := func(name string) bool {
		row := byName[name]
		if row != nil && !row.Enabled {
			return false
		}
		if _, _, err := r.credentials(name, row); err != nil {
			return false
		}
		return true
	}

	var out []ModelSpec
	seen := make(map[string]bool)
	for _, spec := range defaultCatalog {
		if usable(spec.Provider) {
			out = append(out, spec)
			seen[spec.ID] = true
		}
	}
	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		for _, id := range row.EnabledModels {
			if !seen[id] && usable(row.Name) {
				out = append(out, SpecFor(row.Name, id))
				seen[id] = true
			}
		}
	}
	return out, nil
}

// providerFor maps a model id to its provider, consulting admin-enabled
// model lists first and falling back to catalog and prefix heuristics.
func (r *Registry) providerFor(ctx context.Context, model string) (string, *models.LLMProvider, error) {
	rows, err := r.providers.List(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list providers: %w", err)
	}

	byName := make(map[string]*models.LLMProvider, len(rows))
	for _, row := range rows {
		byName[row.Name] = row
		for _, id := range row.EnabledModels {
			if id == model {
				if !row.Enabled {
					return "", nil, fmt.Errorf("provider %s: %w", row.Name, ErrProviderDisabled)
				}
				return row.Name, row, nil
			}
		}
	}

	name := ProviderForModel(model)
	if name == "" {
		return "", nil, fmt.Errorf("model %s: %w", model, ErrModelNotFound)
	}
	row := byName[name]
	if row != nil && !row.Enabled {
		return "", nil, fmt.Errorf("provider %s: %w", name, ErrProviderDisabled)
	}
	return name, row, nil
}

// credentials returns the API key and base URL for a provider. Stored keys
// win over environment keys.
func (r *Registry) credentials(name string, row *models.LLMProvider) (string, string, error) {
	apiKey := r.envKeys[name]
	baseURL := r.baseURLs[name]

	if row != nil {
		if row.BaseURL != "" {
			baseURL = row.BaseURL
		}
		if row.APIKeyEncrypted != "" && r.encryptor != nil {
			decrypted, err := r.encryptor.Decrypt(row.APIKeyEncrypted)
			if err != nil {
				if r.logger != nil {
					r.logger.Error("failed to decrypt provider key, falling back to environment",
						"provider", name, "error", err)
				}
			} else {
				apiKey = decrypted
			}
		}
	}

	if apiKey == "" {
		return "", "", fmt.Errorf("provider %s: %w", name, ErrNoAPIKey)
	}
	return apiKey, baseURL, nil
}

// IsRetryable reports whether an error is worth retrying on another attempt.
// Only transient provider failures qualify; configuration errors and 4xx
// rejections other than rate limits are permanent.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
