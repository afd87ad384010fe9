package planner

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/graph"
)

// Configuration errors. These abort a planning run before any scheduling.
var (
	ErrMarketNotInGraph = errors.New("market node is not in the connection graph")
	ErrNoCouriers       = errors.New("courier roster is empty")
	ErrNoneReachable    = errors.New("no cauldron is reachable from the market")
)

// EngineConfig holds configuration for the planning engine.
type EngineConfig struct {
	// Policy is the planning policy. Zeroed fields fall back to defaults.
	Policy Policy

	// Logger for engine operations.
	Logger zerolog.Logger
}

// Engine computes collection plans. One Plan call is a single synchronous
// batch computation over a snapshot; the engine keeps no state between runs.
type Engine struct {
	policy Policy
	log    zerolog.Logger
}

// NewEngine creates a planning engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		policy: cfg.Policy.withDefaults(),
		log:    cfg.Logger,
	}
}

// Input is one planning run's snapshot. All fields are read-only to the
// engine; cauldrons must already carry their estimated drain rates.
type Input struct {
	MarketNodeID string
	Cauldrons    []cauldron.Cauldron
	Couriers     []cauldron.Courier
	Edges        []cauldron.Edge

	// LowConfidence lists cauldron IDs whose drain rate is a fallback
	// default; they are carried through into the plan's flags.
	LowConfidence []string
}

// Plan computes a courier collection schedule for the snapshot and verifies
// it by simulation. Partial infeasibility (unreachable cauldrons, stalls,
// overflow findings) degrades to reported output; only configuration errors
// fail the run.
func (e *Engine) Plan(in Input) (*Plan, error) {
	// The graph is built once per run and shared read-only by everything
	// that needs shortest paths.
	g := graph.New(in.Edges)

	if !g.HasNode(in.MarketNodeID) {
		return nil, ErrMarketNotInGraph
	}
	if len(in.Couriers) == 0 {
		return nil, ErrNoCouriers
	}

	fromMarket := g.From(in.MarketNodeID)

	var (
		reachable   []cauldron.Cauldron
		unreachable []string
		alreadySafe []string
		needService []cauldron.Cauldron
	)
	for _, c := range in.Cauldrons {
		if _, ok := fromMarket.DistanceTo(c.NodeID); !ok {
			unreachable = append(unreachable, c.ID)
			continue
		}
		reachable = append(reachable, c)
		if c.CurrentVolume <= e.policy.ServicedFraction*c.MaxVolume {
			alreadySafe = append(alreadySafe, c.ID)
			continue
		}
		needService = append(needService, c)
	}
	sort.Strings(unreachable)
	sort.Strings(alreadySafe)

	if len(reachable) == 0 {
		return nil, ErrNoneReachable
	}

	e.log.Info().
		Int("cauldrons", len(in.Cauldrons)).
		Int("reachable", len(reachable)).
		Int("need_service", len(needService)).
		Int("couriers", len(in.Couriers)).
		Msg("planning run started")

	sched := &scheduler{g: g, market: in.MarketNodeID, policy: e.policy, log: e.log}
	res := sched.run(newPool(needService), in.Couriers)

	// Drop couriers that never left the market.
	var routes []CourierRoute
	totalTrips := 0
	totalVolume := 0.0
	for _, r := range res.routes {
		if len(r.Trips) == 0 {
			continue
		}
		routes = append(routes, r)
		totalTrips += len(r.Trips)
		for _, t := range r.Trips {
			totalVolume += t.TotalVolume
		}
	}

	cycle := maxCycleMinutes(reachable, e.policy)
	daily := assembleDaily(routes)
	verification := verify(reachable, routes, cycle, e.policy)

	flags := res.flags
	for _, id := range in.LowConfidence {
		flags = append(flags, CauldronFlag{CauldronID: id, Reason: FlagLowConfidenceRate})
	}
	sort.Slice(flags, func(i, j int) bool {
		if flags[i].CauldronID != flags[j].CauldronID {
			return flags[i].CauldronID < flags[j].CauldronID
		}
		return flags[i].Reason < flags[j].Reason
	})

	plan := &Plan{
		ID:           "plan_" + uuid.New().String()[:22],
		GeneratedAt:  time.Now().UTC(),
		MarketNodeID: in.MarketNodeID,
		Routes:       routes,
		Daily:        daily,
		Stats: Statistics{
			FleetSize:          len(routes),
			TotalTrips:         totalTrips,
			TotalVolume:        totalVolume,
			CoveredCauldrons:   len(res.serviced) + len(alreadySafe),
			ReachableCauldrons: len(reachable),
			CycleMinutes:       cycle,
		},
		Verification: verification,
		Uncovered:    res.uncovered,
		Unreachable:  unreachable,
		AlreadySafe:  alreadySafe,
		Flags:        flags,
	}

	e.log.Info().
		Str("plan_id", plan.ID).
		Int("fleet_size", plan.Stats.FleetSize).
		Int("trips", plan.Stats.TotalTrips).
		Float64("volume", plan.Stats.TotalVolume).
		Int("uncovered", len(plan.Uncovered)).
		Bool("overflow_free", verification.OverflowFree).
		Msg("planning run completed")

	return plan, nil
}
