package planner

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/graph"
)

// scheduler drives the trip builder until every cauldron in the pool is
// serviced or no further progress is possible.
type scheduler struct {
	g      *graph.Graph
	market string
	policy Policy
	log    zerolog.Logger
}

// scheduleResult is the raw outcome of the fleet scheduling loop.
type scheduleResult struct {
	routes    []CourierRoute
	serviced  []string
	managed   []string
	uncovered []string
	flags     []CauldronFlag
	stalled   bool
}

// run assigns trips to couriers one at a time. Couriers are introduced in
// roster order: a new one joins only when a periodic check shows the pool is
// not shrinking, never mid-trip.
func (s *scheduler) run(p *pool, couriers []cauldron.Courier) scheduleResult {
	builder := &tripBuilder{g: s.g, market: s.market, policy: s.policy, log: s.log}

	routes := make([]CourierRoute, len(couriers))
	for i, c := range couriers {
		routes[i] = CourierRoute{Courier: c}
	}

	var res scheduleResult
	seenFlags := make(map[CauldronFlag]bool)

	activeCouriers := 1
	next := 0
	trips := 0
	lastPoolSize := p.activeSize()

	for p.activeSize() > 0 && trips < s.policy.MaxTotalTrips {
		courier := couriers[next]
		bt := builder.build(p, courier.Capacity)

		if len(bt.trip.Stops) == 0 {
			// No reachable, feasible candidate from the market: stop
			// rather than loop forever.
			res.stalled = true
			s.log.Warn().
				Int("remaining", p.activeSize()).
				Int("trips", trips).
				Msg("scheduling stalled, no further progress possible")
			break
		}

		routes[next].Trips = append(routes[next].Trips, bt.trip)
		trips++
		res.serviced = append(res.serviced, bt.serviced...)
		for _, f := range bt.flags {
			if !seenFlags[f] {
				seenFlags[f] = true
				res.flags = append(res.flags, f)
			}
		}

		// Visit-count circuit breaker: a cauldron that keeps getting
		// partially serviced and re-queued is treated as managed.
		for _, e := range p.activeEntries() {
			if e.Visits >= s.policy.VisitLimit {
				p.deactivate(e.Cauldron.ID)
				res.managed = append(res.managed, e.Cauldron.ID)
				f := CauldronFlag{CauldronID: e.Cauldron.ID, Reason: FlagVisitLimit}
				if !seenFlags[f] {
					seenFlags[f] = true
					res.flags = append(res.flags, f)
				}
			}
		}

		if trips%s.policy.ProgressCheckTrips == 0 {
			if p.activeSize() >= lastPoolSize && activeCouriers < len(couriers) {
				activeCouriers++
				s.log.Info().
					Int("fleet_size", activeCouriers).
					Int("remaining", p.activeSize()).
					Msg("pool not shrinking, adding courier")
			}
			lastPoolSize = p.activeSize()
		}

		next = (next + 1) % activeCouriers
	}

	res.routes = routes
	res.uncovered = p.activeIDs()
	sort.Strings(res.serviced)
	sort.Strings(res.managed)
	return res
}

// maxCycleMinutes derives the maximum safe repeat interval for the whole
// schedule: the tightest time any cauldron takes to refill from its
// post-service safe level to the near-overflow threshold, reduced by the
// safety margin. Returns 0 when no cauldron has a positive fill rate.
func maxCycleMinutes(cauldrons []cauldron.Cauldron, policy Policy) float64 {
	tightest := math.Inf(1)
	for _, c := range cauldrons {
		if c.FillRate <= 0 || c.MaxVolume <= 0 {
			continue
		}
		t := (policy.WarnFraction - policy.SafetyFraction) * c.MaxVolume / c.FillRate
		if t < tightest {
			tightest = t
		}
	}
	if math.IsInf(tightest, 1) {
		return 0
	}
	return tightest * policy.CycleSafetyMargin
}

// assembleDaily lays every courier's trips back-to-back from minute zero of
// a nominal day and merges them into one chronological view. Pure data
// transformation.
func assembleDaily(routes []CourierRoute) []DailyTrip {
	var daily []DailyTrip
	for _, r := range routes {
		start := 0.0
		for i, t := range r.Trips {
			daily = append(daily, DailyTrip{
				CourierID:   r.Courier.ID,
				CourierName: r.Courier.Name,
				TripIndex:   i,
				StartMinute: start,
				EndMinute:   start + t.TotalMinutes,
				Volume:      t.TotalVolume,
				Stops:       len(t.Stops),
			})
			start += t.TotalMinutes
		}
	}

	sort.Slice(daily, func(i, j int) bool {
		if daily[i].StartMinute != daily[j].StartMinute {
			return daily[i].StartMinute < daily[j].StartMinute
		}
		return daily[i].CourierID < daily[j].CourierID
	})
	return daily
}
