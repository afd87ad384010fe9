package cauldron

import (
	"context"
	"time"
)

// ReadingQuery bounds a reading listing.
type ReadingQuery struct {
	// Since restricts results to readings at or after this time. Zero means
	// no lower bound.
	Since time.Time

	// Limit caps the number of readings returned per cauldron. Zero means the
	// repository default.
	Limit int
}

// Repository defines the interface for cauldron data persistence.
type Repository interface {
	// GetCauldron retrieves a cauldron by ID.
	// Returns ErrCauldronNotFound if it doesn't exist.
	GetCauldron(ctx context.Context, id string) (*Cauldron, error)

	// ListCauldrons retrieves all cauldrons.
	ListCauldrons(ctx context.Context) ([]*Cauldron, error)

	// UpsertCauldron creates or replaces a cauldron.
	UpsertCauldron(ctx context.Context, c *Cauldron) error

	// ListReadings retrieves readings for one cauldron, ordered by timestamp
	// ascending.
	ListReadings(ctx context.Context, cauldronID string, q ReadingQuery) ([]Reading, error)

	// InsertReadings appends readings in bulk.
	InsertReadings(ctx context.Context, readings []Reading) error

	// ListEdges retrieves all connection graph edges.
	ListEdges(ctx context.Context) ([]Edge, error)

	// ReplaceEdges replaces the stored connection graph.
	ReplaceEdges(ctx context.Context, edges []Edge) error

	// ListCouriers retrieves the courier roster.
	ListCouriers(ctx context.Context) ([]*Courier, error)

	// UpsertCourier creates or replaces a courier.
	UpsertCourier(ctx context.Context, c *Courier) error
}
