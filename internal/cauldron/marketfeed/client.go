// Package marketfeed provides a client for the market ledger service, the
// upstream source of cauldron rosters, level readings, the connection graph
// and the courier roster.
//
// The ledger's JSON is not consistent across deployments: the same field can
// arrive as "id", "cauldronId" or "cauldron_id" depending on the exporting
// guild. All shapes are normalized to the canonical domain types here, at the
// boundary, so nothing downstream has to know about the variants.
package marketfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/feed/resilience"
)

const (
	// DefaultBaseURL is the base URL for a locally running market ledger.
	DefaultBaseURL = "http://localhost:9090"

	// FeedName identifies this upstream feed.
	FeedName = "marketfeed"
)

// ClientConfig holds configuration for the market ledger client.
type ClientConfig struct {
	// BaseURL is the ledger base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as the X-API-Key header when set.
	APIKey string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a market ledger client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

// NewClient creates a new market ledger client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            FeedName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// Snapshot is one complete pull of the ledger's planning inputs.
type Snapshot struct {
	Cauldrons []*cauldron.Cauldron
	Edges     []cauldron.Edge
	Couriers  []*cauldron.Courier
	FetchedAt time.Time
}

// FetchCauldrons retrieves the cauldron roster.
func (c *Client) FetchCauldrons(ctx context.Context) ([]*cauldron.Cauldron, error) {
	var raw []feedCauldron
	if err := c.getJSON(ctx, "/v1/cauldrons", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch cauldrons: %w", err)
	}

	cauldrons := make([]*cauldron.Cauldron, 0, len(raw))
	for i := range raw {
		normal, err := raw[i].normalize()
		if err != nil {
			return nil, fmt.Errorf("cauldron %d: %w", i, err)
		}
		cauldrons = append(cauldrons, normal)
	}
	return cauldrons, nil
}

// FetchReadings retrieves level readings for one cauldron since the given
// time, ordered oldest first.
func (c *Client) FetchReadings(ctx context.Context, cauldronID string, since time.Time) ([]cauldron.Reading, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}

	path := "/v1/cauldrons/" + url.PathEscape(cauldronID) + "/readings"

	var raw []feedReading
	if err := c.getJSON(ctx, path, query, &raw); err != nil {
		return nil, fmt.Errorf("fetch readings: %w", err)
	}

	readings := make([]cauldron.Reading, 0, len(raw))
	for i := range raw {
		r, err := raw[i].normalize(cauldronID)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// FetchEdges retrieves the connection graph.
func (c *Client) FetchEdges(ctx context.Context) ([]cauldron.Edge, error) {
	var raw []feedEdge
	if err := c.getJSON(ctx, "/v1/network/edges", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch edges: %w", err)
	}

	edges := make([]cauldron.Edge, 0, len(raw))
	for i := range raw {
		e, err := raw[i].normalize()
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// FetchCouriers retrieves the courier roster.
func (c *Client) FetchCouriers(ctx context.Context) ([]*cauldron.Courier, error) {
	var raw []feedCourier
	if err := c.getJSON(ctx, "/v1/couriers", nil, &raw); err != nil {
		return nil, fmt.Errorf("fetch couriers: %w", err)
	}

	couriers := make([]*cauldron.Courier, 0, len(raw))
	for i := range raw {
		courier, err := raw[i].normalize()
		if err != nil {
			return nil, fmt.Errorf("courier %d: %w", i, err)
		}
		couriers = append(couriers, courier)
	}
	return couriers, nil
}

// FetchSnapshot retrieves a complete planning snapshot (cauldrons, graph and
// couriers).
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	cauldrons, err := c.FetchCauldrons(ctx)
	if err != nil {
		return nil, err
	}

	edges, err := c.FetchEdges(ctx)
	if err != nil {
		return nil, err
	}

	couriers, err := c.FetchCouriers(ctx)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Cauldrons: cauldrons,
		Edges:     edges,
		Couriers:  couriers,
		FetchedAt: time.Now(),
	}, nil
}

// getJSON issues a GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
