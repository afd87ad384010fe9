package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// FeedHealth represents the health status of an upstream feed.
type FeedHealth struct {
	// Name is the feed identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful request.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed request.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the feed is considered healthy.
func (h *FeedHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the feed is in a degraded state (half-open).
func (h *FeedHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the feed is unhealthy (circuit open).
func (h *FeedHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks registered upstream feeds and their health status.
type Registry struct {
	mu        sync.RWMutex
	feeds map[string]*registeredFeed
}

type registeredFeed struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// GlobalRegistry is the default feed registry.
var GlobalRegistry = NewRegistry()

// NewRegistry creates a new feed registry.
func NewRegistry() *Registry {
	return &Registry{
		feeds: make(map[string]*registeredFeed),
	}
}

// Register adds a feed client to the registry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[name] = &registeredFeed{
		client: client,
	}
}

// Unregister removes a feed from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.feeds, name)
}

// RecordSuccess records a successful request for a feed.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.feeds[name]; ok {
		now := time.Now()
		p.lastSuccessAt = &now
	}
}

// RecordFailure records a failed request for a feed.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.feeds[name]; ok {
		now := time.Now()
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
	}
}

// GetHealth returns the health status of a specific feed.
func (r *Registry) GetHealth(name string) *FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.feeds[name]
	if !ok {
		return nil
	}

	return &FeedHealth{
		Name:          name,
		CircuitState:  p.client.CircuitBreakerState(),
		Counts:        p.client.CircuitBreakerCounts(),
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}

// GetAllHealth returns the health status of all registered feeds.
func (r *Registry) GetAllHealth() []*FeedHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*FeedHealth, 0, len(r.feeds))
	for name, p := range r.feeds {
		health = append(health, &FeedHealth{
			Name:          name,
			CircuitState:  p.client.CircuitBreakerState(),
			Counts:        p.client.CircuitBreakerCounts(),
			LastSuccessAt: p.lastSuccessAt,
			LastFailureAt: p.lastFailureAt,
			LastError:     p.lastError,
		})
	}

	return health
}

// FeedNames returns the names of all registered feeds.
func (r *Registry) FeedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.feeds))
	for name := range r.feeds {
		names = append(names, name)
	}
	return names
}

// FeedCount returns the number of registered feeds.
func (r *Registry) FeedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feeds)
}
