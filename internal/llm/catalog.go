package llm

import "strings"

// ModelSpec describes one known model: routing, pricing and capabilities.
type ModelSpec struct {
	ID                string  `json:"id"`
	Provider          string  `json:"provider"`
	DisplayName       string  `json:"display_name"`
	ContextWindow     int     `json:"context_window"`
	MaxOutputTokens   int     `json:"max_output_tokens"`
	PromptPricePer1M  float64 `json:"prompt_price_per_1m"`     // USD per 1M input tokens
	OutputPricePer1M  float64 `json:"completion_price_per_1m"` // USD per 1M output tokens
	SupportsVision    bool    `json:"supports_vision"`
	SupportsStructure bool    `json:"supports_structured_outputs"`
}

// Cost returns the USD cost of a generation.
func (m ModelSpec) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*m.PromptPricePer1M/1_000_000 +
		float64(outputTokens)*m.OutputPricePer1M/1_000_000
}

// defaultCatalog is the static model catalog. Admin-configured providers can
// enable additional model ids; unknown models inherit provider defaults.
var defaultCatalog = []ModelSpec{
	// Anthropic
	{ID: "claude-3-5-sonnet-latest", Provider: "anthropic", DisplayName: "Claude 3.5 Sonnet",
		ContextWindow: 200_000, MaxOutputTokens: 8192,
		PromptPricePer1M: 3.0, OutputPricePer1M: 15.0,
		SupportsVision: true, SupportsStructure: true},
	{ID: "claude-3-5-haiku-latest", Provider: "anthropic", DisplayName: "Claude 3.5 Haiku",
		ContextWindow: 200_000, MaxOutputTokens: 8192,
		PromptPricePer1M: 0.80, OutputPricePer1M: 4.0,
		SupportsVision: true, SupportsStructure: true},
	{ID: "claude-3-opus-latest", Provider: "anthropic", DisplayName: "Claude 3 Opus",
		ContextWindow: 200_000, MaxOutputTokens: 4096,
		PromptPricePer1M: 15.0, OutputPricePer1M: 75.0,
		SupportsVision: true, SupportsStructure: true},

	// OpenAI
	{ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128_000, MaxOutputTokens: 16_384,
		PromptPricePer1M: 2.50, OutputPricePer1M: 10.0,
		SupportsVision: true, SupportsStructure: true},
	{ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o mini",
		ContextWindow: 128_000, MaxOutputTokens: 16_384,
		PromptPricePer1M: 0.15, OutputPricePer1M: 0.60,
		SupportsVision: true, SupportsStructure: true},

	// OpenRouter passthrough models
	{ID: "meta-llama/llama-3.1-70b-instruct", Provider: "openrouter", DisplayName: "Llama 3.1 70B",
		ContextWindow: 128_000, MaxOutputTokens: 4096,
		PromptPricePer1M: 0.35, OutputPricePer1M: 0.40},
	{ID: "google/gemini-2.0-flash-001", Provider: "openrouter", DisplayName: "Gemini 2.0 Flash",
		ContextWindow: 1_000_000, MaxOutputTokens: 8192,
		PromptPricePer1M: 0.10, OutputPricePer1M: 0.40,
		SupportsVision: true, SupportsStructure: true},
	{ID: "deepseek/deepseek-chat", Provider: "openrouter", DisplayName: "DeepSeek Chat",
		ContextWindow: 64_000, MaxOutputTokens: 8192,
		PromptPricePer1M: 0.14, OutputPricePer1M: 0.28},
}

// providerDefaults apply to enabled models absent from the catalog.
var providerDefaults = map[string]ModelSpec{
	"anthropic":  {PromptPricePer1M: 3.0, OutputPricePer1M: 15.0, MaxOutputTokens: 8192, SupportsVision: true, SupportsStructure: true},
	"openai":     {PromptPricePer1M: 2.50, OutputPricePer1M: 10.0, MaxOutputTokens: 4096, SupportsVision: true, SupportsStructure: true},
	"openrouter": {PromptPricePer1M: 0.50, OutputPricePer1M: 1.50, MaxOutputTokens: 4096},
}

// LookupModel finds a model in the static catalog.
func LookupModel(id string) (ModelSpec, bool) {
	for _, spec := range defaultCatalog {
		if spec.ID == id {
			return spec, true
		}
	}
	return ModelSpec{}, false
}

// SpecFor returns the catalog entry for a model, falling back to provider
// defaults for models enabled outside the catalog.
func SpecFor(provider, model string) ModelSpec {
	if spec, ok := LookupModel(model); ok {
		return spec
	}
	spec := providerDefaults[provider]
	spec.ID = model
	spec.Provider = provider
	spec.DisplayName = model
	return spec
}

// ProviderForModel guesses the provider for catalog and prefixed model ids.
func ProviderForModel(model string) string {
	if spec, ok := LookupModel(model); ok {
		return spec.Provider
	}
	switch {
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o1-") || strings.HasPrefix(model, "o3-"):
		return "openai"
	case strings.Contains(model, "/"):
		return "openrouter"
	}
	return ""
}

// Catalog returns a copy of the static catalog.
func Catalog() []ModelSpec {
	out := make([]ModelSpec, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}
