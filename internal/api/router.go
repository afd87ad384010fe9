// Package api provides the HTTP API for CauldronWatch.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/api/handler"
	"github.com/cauldronwatch/cauldronwatch/internal/api/middleware"
	"github.com/cauldronwatch/cauldronwatch/internal/auth"
	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/feed/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	PlanMetrics *middleware.PlanMetrics
	AuthService *auth.Service
	PlanService handler.PlanService
	Repo        cauldron.Repository
	DB          handler.Pinger
	Feeds       *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "cauldronwatch-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB, cfg.Feeds)
	planHandler := handler.NewPlanHandler(cfg.PlanService, cfg.PlanMetrics, cfg.Logger)
	cauldronHandler := handler.NewCauldronHandler(cfg.Repo, cfg.Logger)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Cauldron endpoints (authenticated) - operator-based rate limiting
		r.Route("/cauldrons", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByOperator(middleware.StandardRateLimit))
			r.Get("/", cauldronHandler.ListCauldrons)
			r.Route("/{cauldronId}", func(r chi.Router) {
				r.Get("/", cauldronHandler.GetCauldron)
				r.Get("/readings", cauldronHandler.ListReadings)
			})
		})

		// Reading ingest (authenticated) - standard rate limiting, JSON bodies only
		r.With(authMiddleware, standardRateLimit, middleware.RequireJSON).Post("/readings", cauldronHandler.IngestReadings)

		// Planning endpoints (authenticated)
		r.Route("/plans", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/latest", planHandler.LatestPlan)
		})

		// Plan compute - expensive, strict rate limiting
		r.With(authMiddleware, expensiveRateLimit).Post("/plans:compute", planHandler.ComputePlan)
	})

	return r
}
