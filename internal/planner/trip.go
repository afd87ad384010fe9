package planner

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/graph"
)

// tripBuilder builds one capacity- and time-bounded trip from the market.
type tripBuilder struct {
	g      *graph.Graph
	market string
	policy Policy
	log    zerolog.Logger
}

// builtTrip is one trip plus the bookkeeping the scheduler needs.
type builtTrip struct {
	trip Trip

	// serviced lists cauldrons brought below the serviced threshold,
	// distinct from merely visited.
	serviced []string

	flags []CauldronFlag
}

// candidate is one reachable cauldron scored for the next stop.
type candidate struct {
	id      string
	nodeID  string
	travel  float64
	service float64
	volume  float64
	score   float64

	slowDrain bool
}

// build constructs one trip against the live pool. It returns an empty trip
// when no reachable, feasible candidate exists; the caller must treat that as
// "no further progress possible" and terminate.
func (b *tripBuilder) build(p *pool, capacity float64) builtTrip {
	capLimit := capacity * b.policy.CapacityUtilization

	var (
		result  builtTrip
		stops   []Stop
		elapsed float64
		carried float64
		travel  float64
	)

	current := b.market

	for len(stops) < b.policy.MaxStopsPerTrip && elapsed < b.policy.MaxTripMinutes {
		if capLimit-carried <= 0 {
			break
		}

		sp := b.g.From(current)

		var best *candidate
		for _, e := range p.activeEntries() {
			dist, ok := sp.DistanceTo(e.Cauldron.NodeID)
			if !ok {
				// Unreachable from here: exclusion, not failure.
				continue
			}
			c := b.evaluate(e, dist, elapsed, carried, capLimit, len(stops) == 0)
			if c == nil {
				continue
			}
			if best == nil || c.score > best.score {
				best = c
			}
		}

		if best == nil {
			break
		}

		elapsed += best.travel
		stops = append(stops, Stop{
			NodeID:          best.nodeID,
			CauldronID:      best.id,
			ArrivalMinute:   elapsed,
			TravelMinutes:   best.travel,
			ServiceMinutes:  best.service,
			VolumeCollected: best.volume,
		})
		elapsed += best.service
		carried += best.volume
		travel += best.travel
		current = best.nodeID

		if best.slowDrain {
			result.flags = append(result.flags, CauldronFlag{
				CauldronID: best.id,
				Reason:     FlagSlowDrain,
			})
		}

		p.collect(best.id, best.volume)
		entry := p.entries[best.id]
		if entry.Level <= b.policy.ServicedFraction*entry.Cauldron.MaxVolume {
			p.deactivate(best.id)
			result.serviced = append(result.serviced, best.id)
		}

		b.log.Debug().
			Str("cauldron_id", best.id).
			Float64("volume", best.volume).
			Float64("arrival_minute", stops[len(stops)-1].ArrivalMinute).
			Float64("carried", carried).
			Msg("stop committed")
	}

	if len(stops) == 0 {
		return result
	}

	// Closing market stop: shortest-path return plus a fixed unload.
	back, ok := b.g.ShortestPath(current, b.market)
	if !ok {
		// The outbound path exists and the graph is undirected, so the
		// return must too; guard anyway.
		back = graph.Path{Minutes: 0}
	}
	elapsed += back.Minutes
	stops = append(stops, Stop{
		NodeID:         b.market,
		ArrivalMinute:  elapsed,
		TravelMinutes:  back.Minutes,
		ServiceMinutes: b.policy.UnloadMinutes,
		IsMarket:       true,
	})
	elapsed += b.policy.UnloadMinutes
	travel += back.Minutes

	result.trip = Trip{
		Stops:         stops,
		TotalMinutes:  elapsed,
		TotalVolume:   carried,
		TravelMinutes: travel,
	}
	return result
}

// evaluate scores one candidate, or returns nil when it must be rejected.
// Rejection grounds are arrival meaningfully past the overflow deadline and
// collections not worth the stop; the very first stop of a trip is exempt
// from both, subject only to the absolute capacity ceiling.
func (b *tripBuilder) evaluate(e *poolEntry, dist, elapsed, carried, capLimit float64, first bool) *candidate {
	c := e.Cauldron
	arrival := elapsed + dist

	minutesToOverflow := math.Inf(1)
	if c.FillRate > 0 {
		minutesToOverflow = (c.MaxVolume - e.Level) / c.FillRate
	}

	if !first && arrival > minutesToOverflow+b.policy.ArrivalGraceMinutes {
		return nil
	}

	// Drain toward the safety level, bounded by the remaining courier
	// capacity. The subtraction keeps the target at or below the present
	// level, since the safety level is never negative.
	target := e.Level - b.policy.SafetyFraction*c.MaxVolume
	if remaining := capLimit - carried; target > remaining {
		target = remaining
	}
	if target <= 0 {
		return nil
	}
	if !first && target < b.policy.MinCollectionVolume {
		return nil
	}

	service := b.policy.FallbackServiceMinutes
	slowDrain := true
	if effective := c.DrainRate - c.FillRate; effective > 0 {
		service = target / effective
		slowDrain = false
	}

	urgency := 0.0
	if !math.IsInf(minutesToOverflow, 1) {
		urgency = 60 / (minutesToOverflow + 1)
	}
	proximity := 60 / (dist + 1)
	efficiency := target / (dist + service + 1)

	score := b.policy.UrgencyWeight*urgency +
		b.policy.ProximityWeight*proximity +
		b.policy.EfficiencyWeight*efficiency
	if carried+target <= b.policy.SlackFraction*capLimit {
		score += b.policy.SlackBonus
	}

	return &candidate{
		id:        c.ID,
		nodeID:    c.NodeID,
		travel:    dist,
		service:   service,
		volume:    target,
		score:     score,
		slowDrain: slowDrain,
	}
}
