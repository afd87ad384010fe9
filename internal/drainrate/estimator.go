// Package drainrate estimates how fast a cauldron empties while a courier is
// actively draining it, from the cauldron's raw level readings.
package drainrate

import (
	"errors"
	"time"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
)

// Estimator errors.
var (
	ErrUnsortedReadings = errors.New("readings are not sorted by timestamp")
)

// Confidence represents the confidence level of an estimated drain rate.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Config holds configuration for the drain-rate estimator.
type Config struct {
	// MaxGap is the largest time gap between consecutive readings that is
	// still treated as continuous observation. Pairs further apart are data
	// gaps, not drain evidence. Default: 6 hours.
	MaxGap time.Duration

	// MaxDrainRate is the upper bound of the plausible drain-rate band in
	// litres per minute. Estimates above it are rejected as sensor noise.
	// Default: 500.
	MaxDrainRate float64

	// DefaultDrainRate is the fallback rate in litres per minute used when no
	// valid drain event exists. Default: 50.
	DefaultDrainRate float64

	// HighConfidenceMinEvents is the event count needed for HIGH confidence.
	// Default: 3.
	HighConfidenceMinEvents int
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		MaxGap:                  6 * time.Hour,
		MaxDrainRate:            500,
		DefaultDrainRate:        50,
		HighConfidenceMinEvents: 3,
	}
}

// Event is a maximal run of consecutive readings with strictly decreasing
// volume.
type Event struct {
	Start time.Time
	End   time.Time

	// ObservedDrop is the summed volume decrease across the run, in litres.
	ObservedDrop float64

	// DrainRate is the inferred rate for this event, corrected for the inflow
	// that continued during the drain.
	DrainRate float64
}

// Estimate is the result of estimating one cauldron's drain behaviour.
type Estimate struct {
	// DrainRate is the estimated drain rate in litres per minute.
	DrainRate float64

	// Events are the accepted drain events the estimate is based on.
	Events []Event

	// Confidence indicates how much observation backs the estimate.
	// LOW means the default rate was used.
	Confidence Confidence

	// Fallback is true when no valid drain event was found and DrainRate is
	// the configured default.
	Fallback bool
}

// Estimator derives drain rates from historical readings.
type Estimator struct {
	config Config
}

// NewEstimator creates a new Estimator with the given configuration.
func NewEstimator(config Config) *Estimator {
	if config.MaxGap <= 0 {
		config.MaxGap = DefaultConfig().MaxGap
	}
	if config.MaxDrainRate <= 0 {
		config.MaxDrainRate = DefaultConfig().MaxDrainRate
	}
	if config.DefaultDrainRate <= 0 {
		config.DefaultDrainRate = DefaultConfig().DefaultDrainRate
	}
	if config.HighConfidenceMinEvents <= 0 {
		config.HighConfidenceMinEvents = DefaultConfig().HighConfidenceMinEvents
	}
	return &Estimator{config: config}
}

// Estimate derives a drain rate for one cauldron from its readings.
//
// Readings must be sorted by timestamp ascending; fillRate is the cauldron's
// known constant inflow in litres per minute. The estimator is pure: the same
// readings always yield the same estimate.
func (e *Estimator) Estimate(readings []cauldron.Reading, fillRate float64) (Estimate, error) {
	for i := 1; i < len(readings); i++ {
		if readings[i].Timestamp.Before(readings[i-1].Timestamp) {
			return Estimate{}, ErrUnsortedReadings
		}
	}

	events := e.detectEvents(readings, fillRate)

	if len(events) == 0 {
		return Estimate{
			DrainRate:  e.config.DefaultDrainRate,
			Confidence: ConfidenceLow,
			Fallback:   true,
		}, nil
	}

	var sum float64
	for _, ev := range events {
		sum += ev.DrainRate
	}

	confidence := ConfidenceMedium
	if len(events) >= e.config.HighConfidenceMinEvents {
		confidence = ConfidenceHigh
	}

	return Estimate{
		DrainRate:  sum / float64(len(events)),
		Events:     events,
		Confidence: confidence,
	}, nil
}

// detectEvents walks consecutive reading pairs and collects maximal strictly
// decreasing runs whose inferred rate falls inside the plausible band.
func (e *Estimator) detectEvents(readings []cauldron.Reading, fillRate float64) []Event {
	var events []Event

	var (
		open  bool
		start time.Time
		end   time.Time
		drop  float64
	)

	closeEvent := func() {
		if !open {
			return
		}
		open = false

		minutes := end.Sub(start).Minutes()
		if minutes <= 0 || drop <= 0 {
			return
		}

		// The observed net slope already includes the inflow that kept
		// running during the drain: net = fill - drain, so
		// drain = fill + drop/dt.
		rate := fillRate + drop/minutes
		if rate <= 0 || rate > e.config.MaxDrainRate {
			return
		}

		events = append(events, Event{
			Start:        start,
			End:          end,
			ObservedDrop: drop,
			DrainRate:    rate,
		})
	}

	for i := 1; i < len(readings); i++ {
		prev, curr := readings[i-1], readings[i]

		gap := curr.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 || gap > e.config.MaxGap {
			// Data gap, not drain evidence.
			closeEvent()
			continue
		}

		dv := curr.Volume - prev.Volume
		if dv >= 0 {
			closeEvent()
			continue
		}

		if !open {
			open = true
			start = prev.Timestamp
			drop = 0
		}
		end = curr.Timestamp
		drop += -dv
	}
	closeEvent()

	return events
}
