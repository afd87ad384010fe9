package planner_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/planner"
)

func newEngine(policy planner.Policy) *planner.Engine {
	return planner.NewEngine(planner.EngineConfig{
		Policy: policy,
		Logger: zerolog.Nop(),
	})
}

// marketScenario is the reference setup: a market connected to two cauldrons
// at 10 and 20 minutes, one nearly full and refilling fast, one nearly empty.
func marketScenario() planner.Input {
	return planner.Input{
		MarketNodeID: "market",
		Cauldrons: []cauldron.Cauldron{
			{
				ID: "cld_r1", Name: "Riverside", NodeID: "n1",
				MaxVolume: 1000, FillRate: 2, DrainRate: 10, CurrentVolume: 950,
			},
			{
				ID: "cld_r2", Name: "Hilltop", NodeID: "n2",
				MaxVolume: 800, FillRate: 1, DrainRate: 10, CurrentVolume: 100,
			},
		},
		Couriers: []cauldron.Courier{
			{ID: "cr_1", Name: "First Courier", Capacity: 100},
		},
		Edges: []cauldron.Edge{
			{From: "market", To: "n1", TravelMinutes: 10},
			{From: "market", To: "n2", TravelMinutes: 20},
		},
	}
}

func TestPlan_TwoCauldronScenario(t *testing.T) {
	eng := newEngine(planner.DefaultPolicy())

	plan, err := eng.Plan(marketScenario())
	require.NoError(t, err)

	// The urgent cauldron is serviced across repeated capacity-bound trips;
	// the nearly empty one needs no service at all.
	assert.Equal(t, []string{"cld_r2"}, plan.AlreadySafe)
	assert.Empty(t, plan.Uncovered)
	assert.Empty(t, plan.Unreachable)
	assert.Equal(t, 1, plan.Stats.FleetSize)
	assert.Equal(t, 2, plan.Stats.CoveredCauldrons)
	assert.Equal(t, 2, plan.Stats.ReachableCauldrons)
	assert.Greater(t, plan.Stats.TotalTrips, 1, "capacity 100 cannot clear 450 litres in one trip")

	require.Len(t, plan.Routes, 1)
	first := plan.Routes[0].Trips[0]
	require.NotEmpty(t, first.Stops)
	assert.Equal(t, "cld_r1", first.Stops[0].CauldronID, "the urgent cauldron goes first")

	// A single courier keeps the day overflow-free but cannot keep up with
	// the refill forever; the verifier must say so rather than hide it.
	assert.True(t, plan.Verification.OverflowFree)
	assert.Empty(t, plan.Verification.Overflows)
	if len(plan.Verification.Unsustainable) > 0 {
		assert.Equal(t, "cld_r1", plan.Verification.Unsustainable[0].CauldronID)
	}
}

func TestPlan_RoutesCarryScheduledTrips(t *testing.T) {
	eng := newEngine(planner.DefaultPolicy())

	plan, err := eng.Plan(marketScenario())
	require.NoError(t, err)

	require.NotEmpty(t, plan.Routes)
	trips := 0
	for _, r := range plan.Routes {
		require.NotEmpty(t, r.Trips, "a courier without trips must be dropped from the plan")
		trips += len(r.Trips)
	}
	assert.Equal(t, plan.Stats.TotalTrips, trips)
	assert.Equal(t, len(plan.Routes), plan.Stats.FleetSize)
	assert.Len(t, plan.Daily, trips)
}

func TestPlan_CapacityInvariant(t *testing.T) {
	eng := newEngine(planner.DefaultPolicy())

	plan, err := eng.Plan(marketScenario())
	require.NoError(t, err)

	for _, route := range plan.Routes {
		for _, trip := range route.Trips {
			total := 0.0
			for _, s := range trip.Stops {
				total += s.VolumeCollected
			}
			assert.LessOrEqual(t, total, route.Courier.Capacity+1e-9)
			assert.InDelta(t, trip.TotalVolume, total, 1e-9)
		}
	}
}

func TestPlan_NonNegativeCollections(t *testing.T) {
	policy := planner.DefaultPolicy()
	eng := newEngine(policy)

	plan, err := eng.Plan(marketScenario())
	require.NoError(t, err)

	for _, route := range plan.Routes {
		for _, trip := range route.Trips {
			for i, s := range trip.Stops {
				assert.GreaterOrEqual(t, s.VolumeCollected, 0.0)
				if !s.IsMarket && i > 0 {
					assert.GreaterOrEqual(t, s.VolumeCollected, policy.MinCollectionVolume,
						"non-first stop below the minimum worthwhile volume")
				}
			}
		}
	}
}

func TestPlan_TripsEndAtMarket(t *testing.T) {
	eng := newEngine(planner.DefaultPolicy())

	plan, err := eng.Plan(marketScenario())
	require.NoError(t, err)

	for _, route := range plan.Routes {
		for _, trip := range route.Trips {
			require.NotEmpty(t, trip.Stops)
			last := trip.Stops[len(trip.Stops)-1]
			assert.True(t, last.IsMarket)
			assert.Equal(t, "market", last.NodeID)
			for _, s := range trip.Stops[:len(trip.Stops)-1] {
				assert.False(t, s.IsMarket)
			}
		}
	}
}

func TestPlan_Deterministic(t *testing.T) {
	eng := newEngine(planner.DefaultPolicy())

	first, err := eng.Plan(marketScenario())
	require.NoError(t, err)
	second, err := eng.Plan(marketScenario())
	require.NoError(t, err)

	assert.Equal(t, first.Routes, second.Routes)
	assert.Equal(t, first.Daily, second.Daily)
	assert.Equal(t, first.Stats, second.Stats)
	assert.Equal(t, first.Verification, second.Verification)
}

func TestPlan_UnreachableCauldronReported(t *testing.T) {
	in := marketScenario()
	in.Cauldrons = append(in.Cauldrons, cauldron.Cauldron{
		ID: "cld_island", Name: "Island", NodeID: "island",
		MaxVolume: 500, FillRate: 1, DrainRate: 10, CurrentVolume: 450,
	})
	// No edge connects "island" to anything.

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	assert.Equal(t, []string{"cld_island"}, plan.Unreachable)
	for _, route := range plan.Routes {
		for _, trip := range route.Trips {
			for _, s := range trip.Stops {
				assert.NotEqual(t, "cld_island", s.CauldronID)
			}
		}
	}
}

func TestPlan_ZeroFillRateNeverForcesFleetGrowth(t *testing.T) {
	in := planner.Input{
		MarketNodeID: "market",
		Cauldrons: []cauldron.Cauldron{
			{
				ID: "cld_still", Name: "Still Pond", NodeID: "n1",
				MaxVolume: 1000, FillRate: 0, DrainRate: 10, CurrentVolume: 800,
			},
		},
		Couriers: []cauldron.Courier{
			{ID: "cr_1", Capacity: 400},
			{ID: "cr_2", Capacity: 400},
		},
		Edges: []cauldron.Edge{
			{From: "market", To: "n1", TravelMinutes: 5},
		},
	}

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Stats.FleetSize)
	assert.Zero(t, plan.Stats.CycleMinutes, "no positive fill rate means an unconstrained cycle")
	assert.Empty(t, plan.Uncovered)
	assert.Empty(t, plan.Verification.Unsustainable)
}

func TestPlan_FirstStopGuarantee(t *testing.T) {
	// Arrival is far past the overflow deadline, yet the first stop must
	// still be taken so progress is possible.
	in := planner.Input{
		MarketNodeID: "market",
		Cauldrons: []cauldron.Cauldron{
			{
				ID: "cld_far", Name: "Far Hollow", NodeID: "n1",
				MaxVolume: 1000, FillRate: 10, DrainRate: 40, CurrentVolume: 990,
			},
		},
		Couriers: []cauldron.Courier{{ID: "cr_1", Capacity: 600}},
		Edges: []cauldron.Edge{
			{From: "market", To: "n1", TravelMinutes: 120},
		},
	}

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	require.NotEmpty(t, plan.Routes)
	require.NotEmpty(t, plan.Routes[0].Trips)
	assert.Equal(t, "cld_far", plan.Routes[0].Trips[0].Stops[0].CauldronID)
}

func TestPlan_VisitLimitCircuitBreaker(t *testing.T) {
	policy := planner.DefaultPolicy()
	policy.VisitLimit = 2

	in := planner.Input{
		MarketNodeID: "market",
		Cauldrons: []cauldron.Cauldron{
			{
				ID: "cld_vast", Name: "Vast Basin", NodeID: "n1",
				MaxVolume: 10000, FillRate: 0, DrainRate: 50, CurrentVolume: 9000,
			},
		},
		Couriers: []cauldron.Courier{{ID: "cr_1", Capacity: 100}},
		Edges: []cauldron.Edge{
			{From: "market", To: "n1", TravelMinutes: 5},
		},
	}

	eng := newEngine(policy)
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	// Fully draining 4000 litres at 100 per trip would take 40 trips; the
	// breaker caps it at the visit limit and reports the cauldron managed.
	assert.Equal(t, 2, plan.Stats.TotalTrips)
	assert.Empty(t, plan.Uncovered)
	assert.Contains(t, plan.Flags, planner.CauldronFlag{
		CauldronID: "cld_vast",
		Reason:     planner.FlagVisitLimit,
	})
}

func TestPlan_StallReportedNotLooped(t *testing.T) {
	in := marketScenario()
	in.Couriers = []cauldron.Courier{{ID: "cr_zero", Capacity: 0}}

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	assert.Empty(t, plan.Routes)
	assert.Equal(t, []string{"cld_r1"}, plan.Uncovered)
}

func TestPlan_UncoveredCauldronStillVerified(t *testing.T) {
	in := marketScenario()
	in.Couriers = []cauldron.Courier{{ID: "cr_zero", Capacity: 0}}

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	require.Equal(t, []string{"cld_r1"}, plan.Uncovered)

	// cld_r1 sits at 950 of 1000 litres filling at 2 per minute; with nobody
	// coming the verifier must not stay silent about it.
	var flagged []string
	for _, u := range plan.Verification.Unsustainable {
		flagged = append(flagged, u.CauldronID)
	}
	assert.Contains(t, flagged, "cld_r1")
}

func TestPlan_UnvisitedOverflowWithinDayDetected(t *testing.T) {
	policy := planner.DefaultPolicy()
	policy.MaxTotalTrips = 1

	in := marketScenario()
	in.Cauldrons = append(in.Cauldrons, cauldron.Cauldron{
		ID: "cld_brim", Name: "Brim", NodeID: "n3",
		MaxVolume: 500, FillRate: 1, DrainRate: 10, CurrentVolume: 480,
	})
	in.Edges = append(in.Edges, cauldron.Edge{From: "market", To: "n3", TravelMinutes: 5})

	eng := newEngine(policy)
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	// One trip cannot cover both urgent cauldrons; whichever is left behind
	// crosses its max volume before the day ends, and the verification must
	// say so rather than certify the schedule.
	require.NotEmpty(t, plan.Uncovered)
	assert.False(t, plan.Verification.OverflowFree)
	require.NotEmpty(t, plan.Verification.Overflows)
	assert.Contains(t, plan.Uncovered, plan.Verification.Overflows[0].CauldronID)
}

func TestPlan_SlowDrainFlagged(t *testing.T) {
	in := planner.Input{
		MarketNodeID: "market",
		Cauldrons: []cauldron.Cauldron{
			{
				ID: "cld_slow", Name: "Slow Drain", NodeID: "n1",
				MaxVolume: 1000, FillRate: 5, DrainRate: 3, CurrentVolume: 800,
			},
		},
		Couriers: []cauldron.Courier{{ID: "cr_1", Capacity: 500}},
		Edges: []cauldron.Edge{
			{From: "market", To: "n1", TravelMinutes: 5},
		},
	}

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	assert.Contains(t, plan.Flags, planner.CauldronFlag{
		CauldronID: "cld_slow",
		Reason:     planner.FlagSlowDrain,
	})
}

func TestPlan_LowConfidenceCarriedThrough(t *testing.T) {
	in := marketScenario()
	in.LowConfidence = []string{"cld_r1"}

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	assert.Contains(t, plan.Flags, planner.CauldronFlag{
		CauldronID: "cld_r1",
		Reason:     planner.FlagLowConfidenceRate,
	})
}

func TestPlan_ConfigurationErrors(t *testing.T) {
	eng := newEngine(planner.DefaultPolicy())

	in := marketScenario()
	in.MarketNodeID = "missing"
	_, err := eng.Plan(in)
	assert.ErrorIs(t, err, planner.ErrMarketNotInGraph)

	in = marketScenario()
	in.Couriers = nil
	_, err = eng.Plan(in)
	assert.ErrorIs(t, err, planner.ErrNoCouriers)

	in = marketScenario()
	for i := range in.Cauldrons {
		in.Cauldrons[i].NodeID = "nowhere"
	}
	_, err = eng.Plan(in)
	assert.ErrorIs(t, err, planner.ErrNoneReachable)
}

func TestPlan_DailyScheduleChronological(t *testing.T) {
	in := marketScenario()
	in.Couriers = append(in.Couriers, cauldron.Courier{ID: "cr_2", Name: "Second", Capacity: 100})

	eng := newEngine(planner.DefaultPolicy())
	plan, err := eng.Plan(in)
	require.NoError(t, err)

	require.Equal(t, plan.Stats.TotalTrips, len(plan.Daily))
	for i := 1; i < len(plan.Daily); i++ {
		assert.LessOrEqual(t, plan.Daily[i-1].StartMinute, plan.Daily[i].StartMinute)
	}
	for _, d := range plan.Daily {
		assert.Greater(t, d.EndMinute, d.StartMinute)
	}
}
