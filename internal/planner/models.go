// Package planner computes courier collection schedules for monitored
// cauldrons: which courier visits which cauldron when, collecting how much,
// such that no cauldron overflows on a repeating daily cycle.
package planner

import (
	"time"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// FlagReason classifies a per-cauldron data or scheduling anomaly.
type FlagReason string

const (
	// FlagSlowDrain marks a cauldron whose drain rate cannot outpace its
	// fill rate; it is serviced with a fixed fallback duration.
	FlagSlowDrain FlagReason = "DRAINS_SLOWER_THAN_FILL"

	// FlagLowConfidenceRate marks a cauldron whose drain rate came from the
	// configured default rather than observed drain events.
	FlagLowConfidenceRate FlagReason = "LOW_CONFIDENCE_DRAIN_RATE"

	// FlagVisitLimit marks a cauldron removed from the active pool by the
	// visit-count circuit breaker despite a residual level above threshold.
	FlagVisitLimit FlagReason = "VISIT_LIMIT_REACHED"
)

// CauldronFlag is a reported, non-fatal finding about one cauldron.
type CauldronFlag struct {
	CauldronID string
	Reason     FlagReason
}

// Stop is one halt on a trip. The trip begins implicitly at the market; the
// final stop is the explicit return to it.
type Stop struct {
	NodeID     string
	CauldronID string // empty for the market stop

	// ArrivalMinute is minutes from trip start.
	ArrivalMinute float64

	// TravelMinutes is the travel time from the previous stop.
	TravelMinutes float64

	// ServiceMinutes is the drain duration, or the unload duration at the
	// market.
	ServiceMinutes float64

	// VolumeCollected is litres picked up at this stop (zero at the market).
	VolumeCollected float64

	IsMarket bool
}

// Trip is one courier round trip from the market back to the market.
type Trip struct {
	Stops []Stop

	// TotalMinutes is the full elapsed time including the closing unload.
	TotalMinutes float64

	// TotalVolume is the litres carried back to the market.
	TotalVolume float64

	// TravelMinutes is the summed travel time across all legs.
	TravelMinutes float64
}

// CourierRoute is the ordered list of trips one courier works in a day.
type CourierRoute struct {
	Courier cauldron.Courier
	Trips   []Trip
}

// DailyTrip is one entry of the flattened, chronological daily schedule.
type DailyTrip struct {
	CourierID   string
	CourierName string

	// TripIndex is the trip's position within the courier's route.
	TripIndex int

	// StartMinute and EndMinute are minutes from the nominal day start.
	StartMinute float64
	EndMinute   float64

	Volume float64
	Stops  int
}

// Statistics aggregates a plan's headline numbers.
type Statistics struct {
	// FleetSize is the number of couriers with at least one trip.
	FleetSize int

	TotalTrips  int
	TotalVolume float64

	// CoveredCauldrons counts reachable cauldrons brought to a safe level
	// (or already at one); ReachableCauldrons is the denominator.
	CoveredCauldrons   int
	ReachableCauldrons int

	// CycleMinutes is the maximum interval at which the whole schedule can
	// safely repeat. Zero means unconstrained (no positive fill rates).
	// Advisory output, not an input constraint.
	CycleMinutes float64
}

// OverflowEvent records a simulated pre-visit level above max volume.
type OverflowEvent struct {
	CauldronID string
	Minute     float64
	Amount     float64
}

// LevelWarning records a simulated pre-visit level above the near-full
// threshold but still under max volume.
type LevelWarning struct {
	CauldronID string
	Minute     float64
	Level      float64
	Threshold  float64
}

// SustainabilityFlag marks a cauldron that survives the simulated day but
// would overflow before the next cycle could reach it again.
type SustainabilityFlag struct {
	CauldronID        string
	OverflowInMinutes float64
	CycleMinutes      float64
}

// Verification is the overflow verifier's result. Overflows are fatal
// findings, warnings informational; neither fails the planning run.
type Verification struct {
	OverflowFree  bool
	Overflows     []OverflowEvent
	Warnings      []LevelWarning
	Unsustainable []SustainabilityFlag
}

// Plan is the complete output of one planning run. It is immutable once
// returned; the engine holds no state between runs.
type Plan struct {
	ID           string
	GeneratedAt  time.Time
	MarketNodeID string

	Routes []CourierRoute
	Daily  []DailyTrip
	Stats  Statistics

	Verification Verification

	// Uncovered lists reachable cauldrons the scheduler could not service.
	// Never silently dropped.
	Uncovered []string

	// Unreachable lists cauldrons with no path from the market.
	Unreachable []string

	// AlreadySafe lists cauldrons that needed no service at snapshot time.
	AlreadySafe []string

	Flags []CauldronFlag
}
