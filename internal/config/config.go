// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string
	Env     string // "dev", "staging", "prod"

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret     string
	EncryptionKey []byte // 32-byte key for AES-256-GCM encryption of stored tokens

	// CORS
	CORSOrigins []string

	// Object storage (S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// OCR provider (internal HTTP service)
	OCRServiceURL string
	OCRAPIKey     string
	OCRTimeout    time.Duration

	// LLM provider keys (env seed; DB-configured providers take precedence)
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	DefaultLLMModel  string

	// Workers
	NWorkers           int
	WorkerPollInterval time.Duration
	WorkerLease        time.Duration
	WorkerMaxAttempts  int

	// OTLP gRPC ingest
	OTLPGRPCPort int

	// Verification link base for invitation/verification emails
	VerificationBaseURL string

	// IdleShutdownTimeout stops the server after this long without requests
	// or background work. Zero disables it. For scale-to-zero platforms.
	IdleShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		Env:         getEnv("ENV", "dev"),
		DatabaseURL: getEnv("DATABASE_URL", "file:docrouter.db?_journal=WAL&_timeout=5000"),

		// FASTAPI_SECRET is the legacy name, kept for deployment compatibility.
		JWTSecret: getEnvWithFallback("JWT_SECRET", "FASTAPI_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		OCRServiceURL: getEnv("OCR_SERVICE_URL", ""),
		OCRAPIKey:     getEnv("OCR_API_KEY", ""),
		OCRTimeout:    getEnvDuration("OCR_TIMEOUT", 2*time.Minute),

		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		DefaultLLMModel:  getEnv("DEFAULT_LLM_MODEL", "claude-3-5-sonnet-latest"),

		NWorkers:           getEnvInt("N_WORKERS", 3),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 500*time.Millisecond),
		WorkerLease:        getEnvDuration("WORKER_LEASE_DURATION", 5*time.Minute),
		WorkerMaxAttempts:  getEnvInt("WORKER_MAX_ATTEMPTS", 5),

		OTLPGRPCPort: getEnvInt("OTLP_GRPC_PORT", 4317),

		VerificationBaseURL: getEnvWithFallback("VERIFICATION_BASE_URL", "NEXTAUTH_URL", "http://localhost:3000"),

		IdleShutdownTimeout: getEnvDuration("IDLE_SHUTDOWN_TIMEOUT", 0),
	}

	// Enable storage only when both endpoint and bucket are configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.NWorkers < 1 {
		return nil, fmt.Errorf("N_WORKERS must be at least 1")
	}

	// Set up encryption key (derive from JWT secret if not explicitly set)
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		cfg.EncryptionKey = deriveEncryptionKey(cfg.JWTSecret)
	}

	return cfg, nil
}

// IsProd returns true when running in the prod environment.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string
// using HKDF. Appropriate for high-entropy secrets like the JWT secret.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("docrouter-api-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
