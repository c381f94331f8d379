package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"rfp-pilot/backend/internal/api"
	"rfp-pilot/backend/internal/auth"
	"rfp-pilot/backend/internal/cache"
	"rfp-pilot/backend/internal/config"
	"rfp-pilot/backend/internal/logging"
	"rfp-pilot/backend/internal/mcp"
	"rfp-pilot/backend/internal/pipeline"
	"rfp-pilot/backend/internal/repository"
	"rfp-pilot/backend/internal/services"
	devtls "rfp-pilot/backend/internal/tls"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	logger := logging.NewLogger()

	envFile := flag.String("env", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		log.Fatalf("Configuration loading failed: %v", err)
	}
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"config_file", viper.ConfigFileUsed(),
	)

	logger.Info("Starting RFP Pilot")

	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer dbPool.Close()

	if err := repository.EnsureSchema(ctx, dbPool, repository.DefaultEmbeddingDim); err != nil {
		logger.Error("Failed to ensure schema", "error", err)
		log.Fatalf("Schema initialization failed: %v", err)
	}
	logger.Info("Database connected")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The cache degrades to a no-op on failure, so a missing Redis
		// is not fatal.
		logger.Warn("Redis unreachable, question caching disabled", "error", err)
	}
	defer rdb.Close()

	// Repository layer
	workflowStore := repository.NewPostgresWorkflowStore(dbPool)
	knowledgeStore := repository.NewPostgresKnowledgeStore(dbPool)

	// Service layer
	llm := services.NewAnthropicClient(cfg.LLM.APIKey, cfg.LLM.Model)
	embedder := services.NewHTTPEmbeddingClient(cfg.Embedding.URL)
	questionCache := cache.NewQuestionCache(rdb, logger)

	// Pipeline
	extractor := pipeline.NewExtractor(llm, questionCache, logger, cfg.Pipeline.MaxQuestions)
	retriever := pipeline.NewRetriever(embedder, knowledgeStore, logger)
	generator := pipeline.NewGenerator(llm, retriever, logger)
	reviewer := pipeline.NewReviewer(cfg.Pipeline.HighConfidence, cfg.Pipeline.MediumConfidence)
	orchestrator := pipeline.NewOrchestrator(
		workflowStore, llm, extractor, generator, reviewer,
		pipeline.MarkdownRenderer{}, logger,
		cfg.Pipeline.TopK, cfg.Pipeline.OutputDir,
	)

	logger.Info("Pipeline initialized",
		"top_k", cfg.Pipeline.TopK,
		"max_questions", cfg.Pipeline.MaxQuestions,
	)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ProblemDetailsHandler(logger)

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("rfp-pilot"))

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		log.Fatalf("auth initialization failed: %v", err)
	}

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	srv := &api.Server{
		Orchestrator: orchestrator,
		Store:        workflowStore,
		Generator:    generator,
		Cache:        questionCache,
		Knowledge:    knowledgeStore,
		Embedder:     embedder,
		Logger:       logger,
		TopK:         cfg.Pipeline.TopK,
		Version:      version,
	}

	e.GET("/health", srv.HandleHealth)

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echo.WrapMiddleware(authz.RequireAuth))
	apiGroup.POST("/rfp", srv.SubmitRFP)
	apiGroup.GET("/workflows", srv.ListWorkflows)
	apiGroup.GET("/workflows/:id", srv.GetWorkflow)
	apiGroup.GET("/download/:id", srv.DownloadArtifact)
	apiGroup.POST("/knowledge", srv.AddKnowledge)
	apiGroup.POST("/qa/ask", srv.AskQuestion)
	apiGroup.GET("/cache/stats", srv.CacheStats)
	apiGroup.POST("/cache/clear", srv.ClearCache)

	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(orchestrator, generator, workflowStore, logger, cfg.Pipeline.TopK)
	mcpHandler := mcpServer.HTTPHandler("/mcp")
	e.Any("/mcp", echo.WrapHandler(mcpHandler))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandler))

	logger.Info("MCP protocol handlers mounted")

	addr := ":8080"
	if cfg.TLS.Enable {
		addr = ":8443"
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- server.ListenAndServe()
				return
			}
			if generated, err := devtls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
				logger.Error("failed to provision self-signed cert", "error", err)
			} else if generated {
				logger.Info("Generated self-signed certificate", "cert", cfg.TLS.CertFile)
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
