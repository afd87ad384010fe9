package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds every heuristic constant the planning engine uses, so tests
// and operators can vary behaviour without touching algorithm code.
type Policy struct {
	// SafetyFraction is the fraction of max volume a collection drains a
	// cauldron toward. Default: 0.5.
	SafetyFraction float64 `yaml:"safetyFraction"`

	// ServicedFraction is the fraction of max volume at or below which a
	// cauldron counts as fully serviced for the run. Default: 0.5.
	ServicedFraction float64 `yaml:"servicedFraction"`

	// WarnFraction is the fraction of max volume treated as the near-overflow
	// threshold by the cycle calculator and the verifier. Default: 0.9.
	WarnFraction float64 `yaml:"warnFraction"`

	// MinCollectionVolume is the smallest pickup worth stopping for, in
	// litres. Default: 10.
	MinCollectionVolume float64 `yaml:"minCollectionVolume"`

	// CapacityUtilization scales the courier capacity the builder plans
	// against. Default: 1.0.
	CapacityUtilization float64 `yaml:"capacityUtilization"`

	// UnloadMinutes is the fixed unload duration at the market after each
	// trip. Default: 15.
	UnloadMinutes float64 `yaml:"unloadMinutes"`

	// FallbackServiceMinutes is the fixed drain duration used when a
	// cauldron's drain rate cannot outpace its fill rate. Default: 20.
	FallbackServiceMinutes float64 `yaml:"fallbackServiceMinutes"`

	// ArrivalGraceMinutes is how far past a cauldron's overflow deadline an
	// arrival may fall before the stop is rejected as too late. Default: 15.
	ArrivalGraceMinutes float64 `yaml:"arrivalGraceMinutes"`

	// MaxTripMinutes is the elapsed-time ceiling for a single trip.
	// Default: 480.
	MaxTripMinutes float64 `yaml:"maxTripMinutes"`

	// MaxStopsPerTrip is the iteration ceiling for a single trip.
	// Default: 25.
	MaxStopsPerTrip int `yaml:"maxStopsPerTrip"`

	// MaxTotalTrips bounds the whole scheduling loop against pathological
	// inputs. Default: 200.
	MaxTotalTrips int `yaml:"maxTotalTrips"`

	// VisitLimit is the circuit breaker: once a cauldron has been visited
	// this many times in a run it is treated as managed and removed from the
	// active pool. Default: 10.
	VisitLimit int `yaml:"visitLimit"`

	// ProgressCheckTrips is how many trips pass between fleet-growth checks.
	// Default: 3.
	ProgressCheckTrips int `yaml:"progressCheckTrips"`

	// CycleSafetyMargin scales the computed maximum cycle time down.
	// Must be below 1. Default: 0.8.
	CycleSafetyMargin float64 `yaml:"cycleSafetyMargin"`

	// Candidate scoring weights.
	UrgencyWeight    float64 `yaml:"urgencyWeight"`    // default 3.0
	ProximityWeight  float64 `yaml:"proximityWeight"`  // default 1.0
	EfficiencyWeight float64 `yaml:"efficiencyWeight"` // default 1.0

	// SlackBonus is added to a candidate's score when taking it keeps the
	// courier comfortably under capacity. Default: 0.5.
	SlackBonus float64 `yaml:"slackBonus"`

	// SlackFraction defines "comfortably under": carried volume after the
	// stop stays at or below this fraction of capacity. Default: 0.8.
	SlackFraction float64 `yaml:"slackFraction"`
}

// DefaultPolicy returns the default planning policy.
func DefaultPolicy() Policy {
	return Policy{
		SafetyFraction:         0.5,
		ServicedFraction:       0.5,
		WarnFraction:           0.9,
		MinCollectionVolume:    10,
		CapacityUtilization:    1.0,
		UnloadMinutes:          15,
		FallbackServiceMinutes: 20,
		ArrivalGraceMinutes:    15,
		MaxTripMinutes:         480,
		MaxStopsPerTrip:        25,
		MaxTotalTrips:          200,
		VisitLimit:             10,
		ProgressCheckTrips:     3,
		CycleSafetyMargin:      0.8,
		UrgencyWeight:          3.0,
		ProximityWeight:        1.0,
		EfficiencyWeight:       1.0,
		SlackBonus:             0.5,
		SlackFraction:          0.8,
	}
}

// LoadPolicy reads a policy from a YAML file. Fields left unset fall back to
// defaults.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	p := Policy{}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	return p.withDefaults(), nil
}

// withDefaults fills zeroed fields with defaults.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()

	if p.SafetyFraction <= 0 {
		p.SafetyFraction = def.SafetyFraction
	}
	if p.ServicedFraction <= 0 {
		p.ServicedFraction = def.ServicedFraction
	}
	if p.WarnFraction <= 0 {
		p.WarnFraction = def.WarnFraction
	}
	if p.MinCollectionVolume <= 0 {
		p.MinCollectionVolume = def.MinCollectionVolume
	}
	if p.CapacityUtilization <= 0 {
		p.CapacityUtilization = def.CapacityUtilization
	}
	if p.UnloadMinutes <= 0 {
		p.UnloadMinutes = def.UnloadMinutes
	}
	if p.FallbackServiceMinutes <= 0 {
		p.FallbackServiceMinutes = def.FallbackServiceMinutes
	}
	if p.ArrivalGraceMinutes < 0 {
		p.ArrivalGraceMinutes = def.ArrivalGraceMinutes
	}
	if p.MaxTripMinutes <= 0 {
		p.MaxTripMinutes = def.MaxTripMinutes
	}
	if p.MaxStopsPerTrip <= 0 {
		p.MaxStopsPerTrip = def.MaxStopsPerTrip
	}
	if p.MaxTotalTrips <= 0 {
		p.MaxTotalTrips = def.MaxTotalTrips
	}
	if p.VisitLimit <= 0 {
		p.VisitLimit = def.VisitLimit
	}
	if p.ProgressCheckTrips <= 0 {
		p.ProgressCheckTrips = def.ProgressCheckTrips
	}
	if p.CycleSafetyMargin <= 0 || p.CycleSafetyMargin >= 1 {
		p.CycleSafetyMargin = def.CycleSafetyMargin
	}
	if p.UrgencyWeight <= 0 {
		p.UrgencyWeight = def.UrgencyWeight
	}
	if p.ProximityWeight <= 0 {
		p.ProximityWeight = def.ProximityWeight
	}
	if p.EfficiencyWeight <= 0 {
		p.EfficiencyWeight = def.EfficiencyWeight
	}
	if p.SlackBonus <= 0 {
		p.SlackBonus = def.SlackBonus
	}
	if p.SlackFraction <= 0 {
		p.SlackFraction = def.SlackFraction
	}

	return p
}
