package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/cauldron/marketfeed"
)

// Feed supplies planning inputs from the market ledger.
type Feed interface {
	FetchSnapshot(ctx context.Context) (*marketfeed.Snapshot, error)
	FetchReadings(ctx context.Context, cauldronID string, since time.Time) ([]cauldron.Reading, error)
}

// SyncJob pulls the market ledger snapshot into the local repository.
type SyncJob struct {
	config SyncConfig
	logger zerolog.Logger
	feed   Feed
	repo   cauldron.Repository

	metrics *SyncMetrics
}

// SyncMetrics tracks sync job statistics.
type SyncMetrics struct {
	mu sync.RWMutex

	TotalSyncs      int64
	SuccessfulSyncs int64
	FailedSyncs     int64
	ReadingsFetched int64

	LastSyncAt       time.Time
	LastSyncDuration time.Duration
}

// SyncJobConfig holds configuration for creating a SyncJob.
type SyncJobConfig struct {
	Config SyncConfig
	Logger zerolog.Logger
	Feed   Feed
	Repo   cauldron.Repository
}

// NewSyncJob creates a new sync job processor.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	config := cfg.Config
	if config.Concurrency == 0 {
		config = DefaultSyncConfig()
	}

	return &SyncJob{
		config:  config,
		logger:  cfg.Logger,
		feed:    cfg.Feed,
		repo:    cfg.Repo,
		metrics: &SyncMetrics{},
	}
}

// SyncResult contains the result of one sync run.
type SyncResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Cauldrons int
	Couriers  int
	Edges     int
	Readings  int

	Successful int
	Failed     int
	Errors     []SyncError
}

// SyncError represents an error during sync.
type SyncError struct {
	Stage      string
	CauldronID string
	Error      string
}

// Run executes one full snapshot sync.
func (j *SyncJob) Run(ctx context.Context) (*SyncResult, error) {
	startTime := time.Now()
	result := &SyncResult{StartTime: startTime}

	j.logger.Info().
		Int("concurrency", j.config.Concurrency).
		Msg("starting snapshot sync")

	fetchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	snapshot, err := j.feed.FetchSnapshot(fetchCtx)
	cancel()
	if err != nil {
		j.recordRun(result, false)
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	for _, c := range snapshot.Cauldrons {
		if err := j.repo.UpsertCauldron(ctx, c); err != nil {
			j.recordRun(result, false)
			return nil, fmt.Errorf("upsert cauldron %s: %w", c.ID, err)
		}
	}
	result.Cauldrons = len(snapshot.Cauldrons)

	for _, c := range snapshot.Couriers {
		if err := j.repo.UpsertCourier(ctx, c); err != nil {
			j.recordRun(result, false)
			return nil, fmt.Errorf("upsert courier %s: %w", c.ID, err)
		}
	}
	result.Couriers = len(snapshot.Couriers)

	if err := j.repo.ReplaceEdges(ctx, snapshot.Edges); err != nil {
		j.recordRun(result, false)
		return nil, fmt.Errorf("replace edges: %w", err)
	}
	result.Edges = len(snapshot.Edges)

	if j.config.SyncReadings {
		j.syncReadings(ctx, snapshot.Cauldrons, result)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.recordRun(result, true)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("cauldrons", result.Cauldrons).
		Int("couriers", result.Couriers).
		Int("edges", result.Edges).
		Int("readings", result.Readings).
		Int("failed", result.Failed).
		Msg("snapshot sync completed")

	return result, nil
}

// syncReadings pulls per-cauldron level readings with a bounded worker pool.
func (j *SyncJob) syncReadings(ctx context.Context, cauldrons []*cauldron.Cauldron, result *SyncResult) {
	since := time.Now().Add(-j.config.ReadingWindow)

	type pull struct {
		cauldronID string
		readings   int
		err        error
	}

	work := make(chan *cauldron.Cauldron, len(cauldrons))
	pulls := make(chan pull, len(cauldrons))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}

				pullCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
				readings, err := j.feed.FetchReadings(pullCtx, c.ID, since)
				if err == nil && len(readings) > 0 {
					err = j.repo.InsertReadings(pullCtx, readings)
				}
				cancel()

				pulls <- pull{cauldronID: c.ID, readings: len(readings), err: err}
			}
		}()
	}

	for _, c := range cauldrons {
		work <- c
	}
	close(work)

	go func() {
		wg.Wait()
		close(pulls)
	}()

	for p := range pulls {
		if p.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SyncError{
				Stage:      "readings",
				CauldronID: p.cauldronID,
				Error:      p.err.Error(),
			})
			continue
		}
		result.Successful++
		result.Readings += p.readings
	}
}

func (j *SyncJob) recordRun(result *SyncResult, ok bool) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalSyncs++
	if ok {
		j.metrics.SuccessfulSyncs++
	} else {
		j.metrics.FailedSyncs++
	}
	j.metrics.ReadingsFetched += int64(result.Readings)
	j.metrics.LastSyncAt = time.Now()
	j.metrics.LastSyncDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SyncJob) GetMetrics() SyncMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return SyncMetrics{
		TotalSyncs:       j.metrics.TotalSyncs,
		SuccessfulSyncs:  j.metrics.SuccessfulSyncs,
		FailedSyncs:      j.metrics.FailedSyncs,
		ReadingsFetched:  j.metrics.ReadingsFetched,
		LastSyncAt:       j.metrics.LastSyncAt,
		LastSyncDuration: j.metrics.LastSyncDuration,
	}
}
