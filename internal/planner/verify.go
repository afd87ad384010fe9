package planner

import (
	"sort"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// visit is one scheduled collection at a cauldron, on the absolute day
// timeline.
type visit struct {
	minute float64
	volume float64
}

// verify replays the finished schedule against each cauldron's physical
// parameters as a discrete-event simulation. Between visits the level rises
// at the fill rate; a pre-visit level above max volume is an overflow event.
// The level is deliberately not clamped before the check, since the rise past
// max is exactly the condition to detect.
func verify(cauldrons []cauldron.Cauldron, routes []CourierRoute, cycleMinutes float64, policy Policy) Verification {
	visits := collectVisits(routes)
	horizon := scheduleMakespan(routes)

	v := Verification{OverflowFree: true}

	sorted := append([]cauldron.Cauldron(nil), cauldrons...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, c := range sorted {
		vs := visits[c.ID]
		if len(vs) == 0 {
			// No visit interrupts the fill, so the projection runs
			// uninterrupted from minute zero.
			v.checkUnvisited(c, horizon, cycleMinutes, policy)
			continue
		}
		sort.Slice(vs, func(i, j int) bool { return vs[i].minute < vs[j].minute })

		level := c.CurrentVolume
		prev := 0.0

		for _, vt := range vs {
			level += c.FillRate * (vt.minute - prev)

			if level > c.MaxVolume {
				v.OverflowFree = false
				v.Overflows = append(v.Overflows, OverflowEvent{
					CauldronID: c.ID,
					Minute:     vt.minute,
					Amount:     level - c.MaxVolume,
				})
			} else if threshold := policy.WarnFraction * c.MaxVolume; level > threshold {
				v.Warnings = append(v.Warnings, LevelWarning{
					CauldronID: c.ID,
					Minute:     vt.minute,
					Level:      level,
					Threshold:  threshold,
				})
			}

			level -= vt.volume
			if level < 0 {
				level = 0
			}
			prev = vt.minute
		}

		// Project past the last visit: if the cauldron fills to the brim
		// before the cycle can plausibly return, a clean simulated day is
		// not enough.
		if c.FillRate > 0 && cycleMinutes > 0 {
			minutesToOverflow := (c.MaxVolume - level) / c.FillRate
			if minutesToOverflow < cycleMinutes {
				v.Unsustainable = append(v.Unsustainable, SustainabilityFlag{
					CauldronID:        c.ID,
					OverflowInMinutes: minutesToOverflow,
					CycleMinutes:      cycleMinutes,
				})
			}
		}
	}

	return v
}

// checkUnvisited applies the same overflow and sustainability checks to a
// cauldron no courier stops at. The fill rises unchecked across the whole
// simulated day, so a level crossing max volume inside the day is an overflow
// event, and the cycle projection starts from the end-of-day level.
func (v *Verification) checkUnvisited(c cauldron.Cauldron, horizon, cycleMinutes float64, policy Policy) {
	endLevel := c.CurrentVolume + c.FillRate*horizon

	if endLevel > c.MaxVolume {
		minute := 0.0
		if c.FillRate > 0 && c.CurrentVolume < c.MaxVolume {
			minute = (c.MaxVolume - c.CurrentVolume) / c.FillRate
		}
		v.OverflowFree = false
		v.Overflows = append(v.Overflows, OverflowEvent{
			CauldronID: c.ID,
			Minute:     minute,
			Amount:     endLevel - c.MaxVolume,
		})
		return
	}

	if threshold := policy.WarnFraction * c.MaxVolume; endLevel > threshold {
		v.Warnings = append(v.Warnings, LevelWarning{
			CauldronID: c.ID,
			Minute:     horizon,
			Level:      endLevel,
			Threshold:  threshold,
		})
	}

	if c.FillRate > 0 && cycleMinutes > 0 {
		minutesToOverflow := (c.MaxVolume - endLevel) / c.FillRate
		if minutesToOverflow < cycleMinutes {
			v.Unsustainable = append(v.Unsustainable, SustainabilityFlag{
				CauldronID:        c.ID,
				OverflowInMinutes: minutesToOverflow,
				CycleMinutes:      cycleMinutes,
			})
		}
	}
}

// scheduleMakespan is the end of the latest-finishing courier route, trips
// laid back-to-back from minute zero.
func scheduleMakespan(routes []CourierRoute) float64 {
	makespan := 0.0
	for _, r := range routes {
		end := 0.0
		for _, t := range r.Trips {
			end += t.TotalMinutes
		}
		if end > makespan {
			makespan = end
		}
	}
	return makespan
}

// collectVisits flattens the per-courier routes into per-cauldron visit
// lists on the absolute day timeline, trips laid back-to-back per courier.
func collectVisits(routes []CourierRoute) map[string][]visit {
	visits := make(map[string][]visit)
	for _, r := range routes {
		tripStart := 0.0
		for _, t := range r.Trips {
			for _, s := range t.Stops {
				if s.IsMarket || s.CauldronID == "" {
					continue
				}
				visits[s.CauldronID] = append(visits[s.CauldronID], visit{
					minute: tripStart + s.ArrivalMinute,
					volume: s.VolumeCollected,
				})
			}
			tripStart += t.TotalMinutes
		}
	}
	return visits
}
