// Package cauldron provides the core domain model for monitored cauldrons,
// their level readings, the market connection graph, and the courier roster.
package cauldron

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrCauldronNotFound = errors.New("cauldron not found")
	ErrCourierNotFound  = errors.New("courier not found")
)

// Cauldron represents a monitored, continuously filling cauldron.
type Cauldron struct {
	ID   string
	Name string

	// MaxVolume is the capacity in litres. Immutable for a planning run.
	MaxVolume float64

	// FillRate is the natural inflow in litres per minute. Immutable for a
	// planning run.
	FillRate float64

	// DrainRate is the rate in litres per minute at which the cauldron empties
	// while a courier is actively draining it. Estimated from readings, not
	// authoritative.
	DrainRate float64

	// CurrentVolume is the level at snapshot time, in litres.
	CurrentVolume float64

	// NodeID is the cauldron's node in the connection graph.
	NodeID string

	Location Point

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Point represents a geographic point. The planning engine never interprets
// it; it is carried through for presentation.
type Point struct {
	Lat float64
	Lon float64
}

// Reading is a raw time-series sample of a cauldron's level.
type Reading struct {
	CauldronID string
	Timestamp  time.Time
	Volume     float64
}

// Edge is an undirected, weighted connection between two graph nodes.
// Both endpoints are either the market node or a cauldron's node.
type Edge struct {
	From string
	To   string

	// TravelMinutes is the symmetric travel time along this connection.
	TravelMinutes float64
}

// Courier represents a capacity-bounded courier dispatched from the market.
type Courier struct {
	ID   string
	Name string

	// Capacity is the maximum volume in litres carried per trip.
	Capacity float64
}
