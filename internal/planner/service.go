package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/drainrate"
)

// ServiceConfig holds configuration for the planning service.
type ServiceConfig struct {
	// Repo supplies cauldrons, readings, edges and couriers.
	Repo cauldron.Repository

	// Store receives computed plans. Optional; nil disables persistence.
	Store Store

	// Estimator derives drain rates from readings. Defaults to an estimator
	// with default configuration.
	Estimator *drainrate.Estimator

	// Engine computes the schedule. Defaults to an engine with the default
	// policy.
	Engine *Engine

	// MarketNodeID is the depot node in the connection graph.
	MarketNodeID string

	// ReadingWindow is how far back readings are fetched for drain-rate
	// estimation (default: 7 days).
	ReadingWindow time.Duration

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service assembles planning snapshots from the repository, estimates drain
// rates, runs the engine and stores the resulting plan.
type Service struct {
	repo          cauldron.Repository
	store         Store
	estimator     *drainrate.Estimator
	engine        *Engine
	marketNodeID  string
	readingWindow time.Duration
	log           zerolog.Logger
}

// NewService creates a new planning service.
func NewService(cfg ServiceConfig) *Service {
	estimator := cfg.Estimator
	if estimator == nil {
		estimator = drainrate.NewEstimator(drainrate.DefaultConfig())
	}

	engine := cfg.Engine
	if engine == nil {
		engine = NewEngine(EngineConfig{Logger: cfg.Logger})
	}

	readingWindow := cfg.ReadingWindow
	if readingWindow == 0 {
		readingWindow = 7 * 24 * time.Hour
	}

	return &Service{
		repo:          cfg.Repo,
		store:         cfg.Store,
		estimator:     estimator,
		engine:        engine,
		marketNodeID:  cfg.MarketNodeID,
		readingWindow: readingWindow,
		log:           cfg.Logger,
	}
}

// ComputePlan assembles a fresh snapshot, runs one planning run and stores
// the plan.
func (s *Service) ComputePlan(ctx context.Context) (*Plan, error) {
	in, err := s.buildInput(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := s.engine.Plan(in)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SavePlan(ctx, plan); err != nil {
			return nil, fmt.Errorf("save plan: %w", err)
		}
	}

	return plan, nil
}

// LatestPlan returns the most recently stored plan.
func (s *Service) LatestPlan(ctx context.Context) (*Plan, error) {
	if s.store == nil {
		return nil, ErrNoPlan
	}
	return s.store.LatestPlan(ctx)
}

// buildInput fetches the snapshot and enriches every cauldron with an
// estimated drain rate.
func (s *Service) buildInput(ctx context.Context) (Input, error) {
	listed, err := s.repo.ListCauldrons(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("list cauldrons: %w", err)
	}

	edges, err := s.repo.ListEdges(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("list edges: %w", err)
	}

	roster, err := s.repo.ListCouriers(ctx)
	if err != nil {
		return Input{}, fmt.Errorf("list couriers: %w", err)
	}

	since := time.Now().Add(-s.readingWindow)

	var (
		cauldrons     []cauldron.Cauldron
		lowConfidence []string
	)
	for _, c := range listed {
		readings, err := s.repo.ListReadings(ctx, c.ID, cauldron.ReadingQuery{Since: since})
		if err != nil {
			return Input{}, fmt.Errorf("list readings for %s: %w", c.ID, err)
		}

		est, err := s.estimator.Estimate(readings, c.FillRate)
		if err != nil {
			return Input{}, fmt.Errorf("estimate drain rate for %s: %w", c.ID, err)
		}

		enriched := *c
		enriched.DrainRate = est.DrainRate
		cauldrons = append(cauldrons, enriched)

		if est.Fallback {
			lowConfidence = append(lowConfidence, c.ID)
			s.log.Debug().
				Str("cauldron_id", c.ID).
				Float64("default_rate", est.DrainRate).
				Msg("no usable drain events, falling back to default rate")
		}
	}

	couriers := make([]cauldron.Courier, 0, len(roster))
	for _, c := range roster {
		couriers = append(couriers, *c)
	}

	return Input{
		MarketNodeID:  s.marketNodeID,
		Cauldrons:     cauldrons,
		Couriers:      couriers,
		Edges:         edges,
		LowConfidence: lowConfidence,
	}, nil
}
