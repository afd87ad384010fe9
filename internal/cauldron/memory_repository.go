package cauldron

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	caulds   map[string]*Cauldron
	readings map[string][]Reading
	edges    []Edge
	couriers map[string]*Courier
}

// NewInMemoryRepository creates a new in-memory cauldron repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		caulds:   make(map[string]*Cauldron),
		readings: make(map[string][]Reading),
		couriers: make(map[string]*Courier),
	}
}

// GetCauldron retrieves a cauldron by ID.
func (r *InMemoryRepository) GetCauldron(_ context.Context, id string) (*Cauldron, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caulds[id]
	if !ok {
		return nil, ErrCauldronNotFound
	}

	cpy := *c
	return &cpy, nil
}

// ListCauldrons retrieves all cauldrons ordered by ID.
func (r *InMemoryRepository) ListCauldrons(_ context.Context) ([]*Cauldron, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Cauldron, 0, len(r.caulds))
	for _, c := range r.caulds {
		cpy := *c
		out = append(out, &cpy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertCauldron creates or replaces a cauldron.
func (r *InMemoryRepository) UpsertCauldron(_ context.Context, c *Cauldron) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *c
	r.caulds[c.ID] = &cpy
	return nil
}

// ListReadings retrieves readings for one cauldron, oldest first.
func (r *InMemoryRepository) ListReadings(_ context.Context, cauldronID string, q ReadingQuery) ([]Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Reading
	for _, rd := range r.readings[cauldronID] {
		if !q.Since.IsZero() && rd.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, rd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// InsertReadings appends readings in bulk.
func (r *InMemoryRepository) InsertReadings(_ context.Context, readings []Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rd := range readings {
		r.readings[rd.CauldronID] = append(r.readings[rd.CauldronID], rd)
	}
	return nil
}

// ListEdges retrieves all connection graph edges.
func (r *InMemoryRepository) ListEdges(_ context.Context) ([]Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Edge(nil), r.edges...), nil
}

// ReplaceEdges replaces the stored connection graph.
func (r *InMemoryRepository) ReplaceEdges(_ context.Context, edges []Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.edges = append([]Edge(nil), edges...)
	return nil
}

// ListCouriers retrieves the courier roster ordered by ID.
func (r *InMemoryRepository) ListCouriers(_ context.Context) ([]*Courier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Courier, 0, len(r.couriers))
	for _, c := range r.couriers {
		cpy := *c
		out = append(out, &cpy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertCourier creates or replaces a courier.
func (r *InMemoryRepository) UpsertCourier(_ context.Context, c *Courier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *c
	r.couriers[c.ID] = &cpy
	return nil
}
