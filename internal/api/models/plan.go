package models

import (
	"github.com/cauldronwatch/cauldronwatch/internal/planner"
)

// PlanResponse is the API representation of a computed collection plan.
type PlanResponse struct {
	ID           string    `json:"id"`
	GeneratedAt  Timestamp `json:"generatedAt"`
	MarketNodeID string    `json:"marketNodeId"`

	Routes []CourierRouteResponse `json:"routes"`
	Daily  []DailyTripResponse    `json:"daily"`
	Stats  PlanStatistics         `json:"stats"`

	Verification VerificationResponse `json:"verification"`

	Uncovered   []string           `json:"uncovered,omitempty"`
	Unreachable []string           `json:"unreachable,omitempty"`
	AlreadySafe []string           `json:"alreadySafe,omitempty"`
	Flags       []CauldronFlagItem `json:"flags,omitempty"`
}

// CourierRouteResponse is one courier's trips for the day.
type CourierRouteResponse struct {
	CourierID   string         `json:"courierId"`
	CourierName string         `json:"courierName,omitempty"`
	Capacity    float64        `json:"capacity"`
	Trips       []TripResponse `json:"trips"`
}

// TripResponse is one market-to-market round trip.
type TripResponse struct {
	Stops         []StopResponse `json:"stops"`
	TotalMinutes  float64        `json:"totalMinutes"`
	TotalVolume   float64        `json:"totalVolume"`
	TravelMinutes float64        `json:"travelMinutes"`
}

// StopResponse is one halt on a trip.
type StopResponse struct {
	NodeID          string  `json:"nodeId"`
	CauldronID      string  `json:"cauldronId,omitempty"`
	ArrivalMinute   float64 `json:"arrivalMinute"`
	TravelMinutes   float64 `json:"travelMinutes"`
	ServiceMinutes  float64 `json:"serviceMinutes"`
	VolumeCollected float64 `json:"volumeCollected"`
	IsMarket        bool    `json:"isMarket"`
}

// DailyTripResponse is one entry of the chronological daily schedule.
type DailyTripResponse struct {
	CourierID   string  `json:"courierId"`
	CourierName string  `json:"courierName,omitempty"`
	TripIndex   int     `json:"tripIndex"`
	StartMinute float64 `json:"startMinute"`
	EndMinute   float64 `json:"endMinute"`
	Volume      float64 `json:"volume"`
	Stops       int     `json:"stops"`
}

// PlanStatistics aggregates a plan's headline numbers.
type PlanStatistics struct {
	FleetSize          int     `json:"fleetSize"`
	TotalTrips         int     `json:"totalTrips"`
	TotalVolume        float64 `json:"totalVolume"`
	CoveredCauldrons   int     `json:"coveredCauldrons"`
	ReachableCauldrons int     `json:"reachableCauldrons"`
	CycleMinutes       float64 `json:"cycleMinutes"`
}

// VerificationResponse is the overflow verifier's result.
type VerificationResponse struct {
	OverflowFree  bool                     `json:"overflowFree"`
	Overflows     []OverflowEventItem      `json:"overflows,omitempty"`
	Warnings      []LevelWarningItem       `json:"warnings,omitempty"`
	Unsustainable []SustainabilityFlagItem `json:"unsustainable,omitempty"`
}

// OverflowEventItem records a simulated pre-visit level above max volume.
type OverflowEventItem struct {
	CauldronID string  `json:"cauldronId"`
	Minute     float64 `json:"minute"`
	Amount     float64 `json:"amount"`
}

// LevelWarningItem records a simulated near-full level.
type LevelWarningItem struct {
	CauldronID string  `json:"cauldronId"`
	Minute     float64 `json:"minute"`
	Level      float64 `json:"level"`
	Threshold  float64 `json:"threshold"`
}

// SustainabilityFlagItem marks a cauldron the repeating cycle cannot keep up
// with.
type SustainabilityFlagItem struct {
	CauldronID        string  `json:"cauldronId"`
	OverflowInMinutes float64 `json:"overflowInMinutes"`
	CycleMinutes      float64 `json:"cycleMinutes"`
}

// CauldronFlagItem is a reported, non-fatal per-cauldron finding.
type CauldronFlagItem struct {
	CauldronID string `json:"cauldronId"`
	Reason     string `json:"reason"`
}

// FromPlan converts a domain plan into its API representation.
func FromPlan(p *planner.Plan) *PlanResponse {
	resp := &PlanResponse{
		ID:           p.ID,
		GeneratedAt:  Timestamp(p.GeneratedAt),
		MarketNodeID: p.MarketNodeID,
		Routes:       make([]CourierRouteResponse, 0, len(p.Routes)),
		Daily:        make([]DailyTripResponse, 0, len(p.Daily)),
		Stats: PlanStatistics{
			FleetSize:          p.Stats.FleetSize,
			TotalTrips:         p.Stats.TotalTrips,
			TotalVolume:        p.Stats.TotalVolume,
			CoveredCauldrons:   p.Stats.CoveredCauldrons,
			ReachableCauldrons: p.Stats.ReachableCauldrons,
			CycleMinutes:       p.Stats.CycleMinutes,
		},
		Uncovered:   p.Uncovered,
		Unreachable: p.Unreachable,
		AlreadySafe: p.AlreadySafe,
	}

	for _, route := range p.Routes {
		rr := CourierRouteResponse{
			CourierID:   route.Courier.ID,
			CourierName: route.Courier.Name,
			Capacity:    route.Courier.Capacity,
			Trips:       make([]TripResponse, 0, len(route.Trips)),
		}
		for _, trip := range route.Trips {
			tr := TripResponse{
				Stops:         make([]StopResponse, 0, len(trip.Stops)),
				TotalMinutes:  trip.TotalMinutes,
				TotalVolume:   trip.TotalVolume,
				TravelMinutes: trip.TravelMinutes,
			}
			for _, stop := range trip.Stops {
				tr.Stops = append(tr.Stops, StopResponse{
					NodeID:          stop.NodeID,
					CauldronID:      stop.CauldronID,
					ArrivalMinute:   stop.ArrivalMinute,
					TravelMinutes:   stop.TravelMinutes,
					ServiceMinutes:  stop.ServiceMinutes,
					VolumeCollected: stop.VolumeCollected,
					IsMarket:        stop.IsMarket,
				})
			}
			rr.Trips = append(rr.Trips, tr)
		}
		resp.Routes = append(resp.Routes, rr)
	}

	for _, d := range p.Daily {
		resp.Daily = append(resp.Daily, DailyTripResponse{
			CourierID:   d.CourierID,
			CourierName: d.CourierName,
			TripIndex:   d.TripIndex,
			StartMinute: d.StartMinute,
			EndMinute:   d.EndMinute,
			Volume:      d.Volume,
			Stops:       d.Stops,
		})
	}

	v := p.Verification
	resp.Verification.OverflowFree = v.OverflowFree
	for _, o := range v.Overflows {
		resp.Verification.Overflows = append(resp.Verification.Overflows, OverflowEventItem{
			CauldronID: o.CauldronID,
			Minute:     o.Minute,
			Amount:     o.Amount,
		})
	}
	for _, w := range v.Warnings {
		resp.Verification.Warnings = append(resp.Verification.Warnings, LevelWarningItem{
			CauldronID: w.CauldronID,
			Minute:     w.Minute,
			Level:      w.Level,
			Threshold:  w.Threshold,
		})
	}
	for _, u := range v.Unsustainable {
		resp.Verification.Unsustainable = append(resp.Verification.Unsustainable, SustainabilityFlagItem{
			CauldronID:        u.CauldronID,
			OverflowInMinutes: u.OverflowInMinutes,
			CycleMinutes:      u.CycleMinutes,
		})
	}

	for _, f := range p.Flags {
		resp.Flags = append(resp.Flags, CauldronFlagItem{
			CauldronID: f.CauldronID,
			Reason:     string(f.Reason),
		})
	}

	return resp
}
