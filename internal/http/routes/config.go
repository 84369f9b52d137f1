// Package routes provides shared route registration for the API, so the
// server and any spec generation use the same definitions.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/docrouter-ai/docrouter-api/internal/http/mw"
	"github.com/docrouter-ai/docrouter-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API,
// including metadata, the bearer security scheme, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("DocRouter API", version.Get().Short())
	cfg.Info.Description = "Multi-tenant document ingest, OCR and LLM extraction backend with telemetry ingest and SPU metering."

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Session JWT or opaque acc_/org_ access token in the Authorization header.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Account", Description: "User and organization management"},
		{Name: "Documents", Description: "Document upload and pipeline state"},
		{Name: "OCR", Description: "OCR artifact download"},
		{Name: "Schemas", Description: "Versioned JSON schemas"},
		{Name: "Prompts", Description: "Versioned extraction prompts"},
		{Name: "Forms", Description: "Versioned form definitions and submissions"},
		{Name: "Tags", Description: "Organization tags"},
		{Name: "LLM", Description: "Extraction runs and results"},
		{Name: "Telemetry", Description: "Trace, metric and log ingest"},
		{Name: "Claude", Description: "Claude session log and hook ingest"},
		{Name: "Payments", Description: "Credit balances and usage reporting"},
		{Name: "Health", Description: "System health and status"},
	}

	return cfg
}
