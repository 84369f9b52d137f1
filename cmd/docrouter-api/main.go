// Package main is the entry point for the docrouter-api server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/docrouter-ai/docrouter-api/internal/auth"
	"github.com/docrouter-ai/docrouter-api/internal/config"
	"github.com/docrouter-ai/docrouter-api/internal/database"
	"github.com/docrouter-ai/docrouter-api/internal/database/migrations"
	"github.com/docrouter-ai/docrouter-api/internal/http/handlers"
	"github.com/docrouter-ai/docrouter-api/internal/http/mw"
	"github.com/docrouter-ai/docrouter-api/internal/http/routes"
	"github.com/docrouter-ai/docrouter-api/internal/logging"
	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/otlp"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
	"github.com/docrouter-ai/docrouter-api/internal/service"
	"github.com/docrouter-ai/docrouter-api/internal/shutdown"
	"github.com/docrouter-ai/docrouter-api/internal/version"
	"github.com/docrouter-ai/docrouter-api/internal/worker"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	// Log version info first thing
	v := version.Get()
	logger.Info("starting docrouter-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations (with logging for each migration applied)
	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Log current schema version
	schemaVersion, err := migrations.GetLatestVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := migrations.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Restore leases orphaned by a previous server run so those messages
	// become leasable again immediately.
	restored, err := repos.Queue.ReapExpired(context.Background())
	if err != nil {
		logger.Warn("failed to reap expired leases", "error", err)
	} else if restored > 0 {
		logger.Info("restored expired leases", "count", restored)
	}

	// Initialize services
	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Token verifier for session JWTs and acc_/org_ access tokens
	verifier := auth.NewVerifier(cfg.JWTSecret, repos)

	// Start the background worker pool for the OCR and LLM queues
	jobWorker := worker.New(
		repos.Queue,
		map[string]worker.Handler{
			models.QueueOCR: worker.NewOCRWorker(logger, repos, services.Blobs, services.OCR, services.Credit, cfg.WorkerMaxAttempts),
			models.QueueLLM: worker.NewLLMWorker(logger, repos, services.Blobs, services.Registry, services.Credit, cfg.DefaultLLMModel, cfg.WorkerMaxAttempts),
		},
		worker.Config{
			PollInterval:  cfg.WorkerPollInterval,
			LeaseDuration: cfg.WorkerLease,
			Concurrency:   cfg.NWorkers,
		},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	jobWorker.Start(ctx)

	// OTLP/gRPC ingest listener
	otlpServer := otlp.NewServer(logger, verifier, repos.Organization, services.Telemetry)
	go func() {
		if err := otlpServer.ListenAndServe(ctx, cfg.OTLPGRPCPort); err != nil {
			logger.Error("otlp server error", "error", err)
		}
	}()

	// Idle monitor for scale-to-zero deployments
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:             cfg.IdleShutdownTimeout,
		Logger:              logger,
		ExcludePaths:        []string{"/healthz", "/readyz"},
		BackgroundWorkCheck: jobWorker.Busy,
	})
	idleMonitor.Start()

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(idleMonitor.Middleware)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.APIVersion())
	// Request timeout middleware with different timeouts per endpoint type
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:  30 * time.Second,
		Extended: 120 * time.Second,
		// LLM runs may wait on inference
		ExtendedPatterns: []string{"/llm/run"},
		// Chat routes end in /llm/run exactly; SSE streaming has no
		// timeout (managed by client disconnect)
		SkipPatterns: []string{"/llm/run"},
	}))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (32MB) - document uploads arrive base64-encoded
	router.Use(middleware.RequestSize(32 * 1024 * 1024))

	// Global rate limit by IP
	router.Use(httprate.LimitByIP(100, time.Minute))

	// Global concurrency throttle - prevent system overload
	router.Use(middleware.Throttle(100))

	// Main API with OpenAPI docs
	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, verifier))

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("DocRouter API", v.Short())
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	h := handlers.New(logger, services, verifier, db)
	routes.Register(api, h)

	mw.HiddenGet(hiddenAPI, "/healthz", h.Livez)
	mw.HiddenGet(hiddenAPI, "/readyz", h.Readyz)

	// Chat endpoints are raw HTTP so they can serve both JSON and SSE
	router.Post("/v0/account/llm/run", h.ChatRun)
	router.Post("/v0/orgs/{org}/llm/run", h.ChatRunOrg)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-sigChan:
			logger.Info("shutting down server")
		case <-idleMonitor.ShutdownChan():
			logger.Info("shutting down server after idle timeout")
		}

		// Stop the worker and the OTLP listener first
		cancel()
		jobWorker.Stop()
		idleMonitor.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
