package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoPlan is returned when no plan has been stored yet.
var ErrNoPlan = errors.New("no plan stored")

// Store persists computed plans.
type Store interface {
	// SavePlan stores a plan.
	SavePlan(ctx context.Context, plan *Plan) error

	// LatestPlan returns the most recently generated plan, or ErrNoPlan if
	// none has been stored.
	LatestPlan(ctx context.Context) (*Plan, error)
}

// PostgresStore implements Store backed by PostgreSQL. Plans are stored as
// JSONB documents keyed by plan ID.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed plan store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SavePlan stores a plan.
func (s *PostgresStore) SavePlan(ctx context.Context, plan *Plan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	query := `
		INSERT INTO plans (id, generated_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			payload = EXCLUDED.payload`

	if _, err := s.pool.Exec(ctx, query, plan.ID, plan.GeneratedAt, payload); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// LatestPlan returns the most recently generated plan.
func (s *PostgresStore) LatestPlan(ctx context.Context) (*Plan, error) {
	query := `
		SELECT payload
		FROM plans
		ORDER BY generated_at DESC
		LIMIT 1`

	var payload []byte
	if err := s.pool.QueryRow(ctx, query).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPlan
		}
		return nil, fmt.Errorf("query latest plan: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal(payload, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return &plan, nil
}

// InMemoryStore implements Store using in-memory storage. Intended for
// testing and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	latest *Plan
}

// NewInMemoryStore creates a new in-memory plan store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// SavePlan stores a plan.
func (s *InMemoryStore) SavePlan(_ context.Context, plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *plan
	s.latest = &copied
	return nil
}

// LatestPlan returns the most recently stored plan.
func (s *InMemoryStore) LatestPlan(_ context.Context) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, ErrNoPlan
	}
	copied := *s.latest
	return &copied, nil
}
