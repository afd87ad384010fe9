// Package main provides the entrypoint for the CauldronWatch worker. The
// worker consumes Pub/Sub job messages, pulls market ledger snapshots into the
// database and recomputes collection plans.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/cauldron/marketfeed"
	"github.com/cauldronwatch/cauldronwatch/internal/database"
	"github.com/cauldronwatch/cauldronwatch/internal/planner"
	"github.com/cauldronwatch/cauldronwatch/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "cauldronwatch-worker"

	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting CauldronWatch worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription == "" {
		subscription = "cauldronwatch-jobs"
	}

	marketNodeID := os.Getenv("MARKET_NODE_ID")
	if marketNodeID == "" {
		marketNodeID = "market"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	repo := cauldron.NewPostgresRepository(pool)

	// Market ledger feed client
	feed := marketfeed.NewClient(marketfeed.ClientConfig{
		BaseURL: os.Getenv("MARKETFEED_BASE_URL"),
		APIKey:  os.Getenv("MARKETFEED_API_KEY"),
	})

	syncJob := worker.NewSyncJob(worker.SyncJobConfig{
		Logger: log,
		Feed:   feed,
		Repo:   repo,
	})

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
		Store:        planner.NewPostgresStore(pool),
		Engine:       planner.NewEngine(planner.EngineConfig{Policy: policy, Logger: log}),
		MarketNodeID: marketNodeID,
		Logger:       log,
	})

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Pub/Sub consumer. Without a project ID the worker falls back to a
	// periodic sync loop, which keeps local development usable without GCP.
	if projectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			SyncJob:          syncJob,
			PlanRunner:       planService,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Fatal().Err(err).Msg("pubsub handler stopped")
			}
		}()
		log.Info().
			Str("project", projectID).
			Str("subscription", subscription).
			Msg("worker consuming jobs")
	} else {
		interval := 30 * time.Minute
		if v := os.Getenv("SYNC_INTERVAL"); v != "" {
			if parsed, parseErr := time.ParseDuration(v); parseErr == nil {
				interval = parsed
			}
		}

		go func() {
			log.Info().Dur("interval", interval).Msg("no pubsub project configured, running periodic sync")
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				runSync(ctx, log, syncJob, planService)

				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func runSync(ctx context.Context, log zerolog.Logger, syncJob *worker.SyncJob, planService *planner.Service) {
	result, err := syncJob.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("snapshot sync failed")
		return
	}
	if result.Failed > 0 {
		log.Warn().
			Int("failed", result.Failed).
			Int("successful", result.Successful).
			Msg("snapshot sync completed with errors")
	}

	plan, err := planService.ComputePlan(ctx)
	if err != nil {
		log.Error().Err(err).Msg("plan computation failed")
		return
	}
	log.Info().
		Str("plan_id", plan.ID).
		Int("trips", plan.Stats.TotalTrips).
		Bool("overflow_free", plan.Verification.OverflowFree).
		Msg("plan computed")
}
