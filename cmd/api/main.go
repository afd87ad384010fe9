// Package main provides the entrypoint for the CauldronWatch API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/api"
	"github.com/cauldronwatch/cauldronwatch/internal/api/middleware"
	"github.com/cauldronwatch/cauldronwatch/internal/auth"
	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/database"
	"github.com/cauldronwatch/cauldronwatch/internal/planner"
	"github.com/cauldronwatch/cauldronwatch/internal/feed/resilience"
	"github.com/cauldronwatch/cauldronwatch/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cauldronwatch-api"

	_ = godotenv.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting CauldronWatch API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	marketNodeID := os.Getenv("MARKET_NODE_ID")
	if marketNodeID == "" {
		marketNodeID = "market"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	planMetrics, err := middleware.NewPlanMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize plan metrics")
		os.Exit(1)
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize auth service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	authService := auth.NewService(auth.Config{
		SigningKey: jwtSigningKey,
	})
	log.Info().Msg("auth service initialized")

	// Initialize cauldron repository and plan store
	repo := cauldron.NewPostgresRepository(pool)
	planStore := planner.NewPostgresStore(pool)

	// Planning policy: optional YAML override, defaults otherwise
	policy := planner.DefaultPolicy()
	if path := os.Getenv("PLAN_POLICY_PATH"); path != "" {
		policy, err = planner.LoadPolicy(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load planning policy")
		}
		log.Info().Str("path", path).Msg("planning policy loaded")
	}

	planService := planner.NewService(planner.ServiceConfig{
		Repo:         repo,
		Store:        planStore,
		Engine:       planner.NewEngine(planner.EngineConfig{Policy: policy, Logger: log}),
		MarketNodeID: marketNodeID,
		Logger:       log,
	})
	log.Info().Str("market_node", marketNodeID).Msg("plan service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		PlanMetrics: planMetrics,
		AuthService: authService,
		PlanService: planService,
		Repo:        repo,
		DB:          pool,
		Feeds:       resilience.GlobalRegistry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
