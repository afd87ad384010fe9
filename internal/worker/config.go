// Package worker provides background job processing for CauldronWatch.
package worker

import (
	"time"
)

// SyncConfig holds configuration for the snapshot sync job.
type SyncConfig struct {
	// Concurrency is the number of concurrent per-cauldron reading pulls.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each upstream pull.
	// Default: 30 seconds
	Timeout time.Duration

	// ReadingWindow is how far back readings are pulled per cauldron.
	// Default: 7 days
	ReadingWindow time.Duration

	// SyncReadings enables pulling per-cauldron level readings.
	// Default: true
	SyncReadings bool

	// PlanAfterSync triggers a planning run after a successful sync.
	// Default: true
	PlanAfterSync bool
}

// DefaultSyncConfig returns the default sync configuration.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Concurrency:   3,
		Timeout:       30 * time.Second,
		ReadingWindow: 7 * 24 * time.Hour,
		SyncReadings:  true,
		PlanAfterSync: true,
	}
}
