package service

import (
	"fmt"
	"log/slog"

	"github.com/docrouter-ai/docrouter-api/internal/config"
	"github.com/docrouter-ai/docrouter-api/internal/crypto"
	"github.com/docrouter-ai/docrouter-api/internal/llm"
	"github.com/docrouter-ai/docrouter-api/internal/ocr"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Account   *AccountService
	Tag       *TagService
	Schema    *SchemaService
	Prompt    *PromptService
	Form      *FormService
	Document  *DocumentService
	Credit    *CreditService
	LLM       *LLMService
	Telemetry *TelemetryService
	Claude    *ClaudeService

	Blobs     BlobStore
	OCR       ocr.Provider
	Registry  *llm.Registry
	Encryptor *crypto.Encryptor
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	var blobs BlobStore
	if cfg.StorageEnabled {
		storageSvc, err := NewStorageService(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage service: %w", err)
		}
		blobs = storageSvc
	} else {
		logger.Warn("no object storage configured - using in-memory blob store")
		blobs = NewMemoryBlobStore()
	}

	registry := llm.NewRegistry(logger, repos.LLMProvider, encryptor,
		map[string]string{
			"anthropic":  cfg.AnthropicAPIKey,
			"openai":     cfg.OpenAIAPIKey,
			"openrouter": cfg.OpenRouterAPIKey,
		}, nil)

	ocrClient := ocr.NewClient(ocr.ClientConfig{
		BaseURL: cfg.OCRServiceURL,
		APIKey:  cfg.OCRAPIKey,
		Timeout: cfg.OCRTimeout,
		Logger:  logger,
	})

	creditSvc := NewCreditService(logger, repos.Payments)
	tagSvc := NewTagService(logger, repos)
	schemaSvc := NewSchemaService(logger, repos)
	promptSvc := NewPromptService(logger, repos, tagSvc)
	formSvc := NewFormService(logger, repos, tagSvc)
	documentSvc := NewDocumentService(logger, repos, blobs, tagSvc)
	llmSvc := NewLLMService(logger, repos, registry, creditSvc, encryptor)
	telemetrySvc := NewTelemetryService(logger, repos, creditSvc, tagSvc)
	claudeSvc := NewClaudeService(logger, repos, creditSvc)
	accountSvc := NewAccountService(logger, repos, encryptor, nil, cfg.VerificationBaseURL)

	return &Services{
		Account:   accountSvc,
		Tag:       tagSvc,
		Schema:    schemaSvc,
		Prompt:    promptSvc,
		Form:      formSvc,
		Document:  documentSvc,
		Credit:    creditSvc,
		LLM:       llmSvc,
		Telemetry: telemetrySvc,
		Claude:    claudeSvc,
		Blobs:     blobs,
		OCR:       ocrClient,
		Registry:  registry,
		Encryptor: encryptor,
	}, nil
}
