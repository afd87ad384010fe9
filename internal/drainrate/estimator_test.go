package drainrate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cauldronwatch/cauldronwatch/internal/cauldron"
	"github.com/cauldronwatch/cauldronwatch/internal/drainrate"
)

// series builds readings at fixed 10-minute intervals from the given volumes.
func series(volumes ...float64) []cauldron.Reading {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	readings := make([]cauldron.Reading, 0, len(volumes))
	for i, v := range volumes {
		readings = append(readings, cauldron.Reading{
			CauldronID: "cld_test",
			Timestamp:  base.Add(time.Duration(i) * 10 * time.Minute),
			Volume:     v,
		})
	}
	return readings
}

func TestEstimate_SingleDrainEvent(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.DefaultConfig())

	// Fill rate 2 L/min. Volume drops 100 L over 10 minutes, so the net
	// slope is -10 L/min and the true drain rate is 2 + 10 = 12 L/min.
	readings := series(500, 520, 420, 440, 460)

	result, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.InDelta(t, 12.0, result.DrainRate, 1e-9)
	assert.InDelta(t, 100.0, result.Events[0].ObservedDrop, 1e-9)
	assert.False(t, result.Fallback)
	assert.Equal(t, drainrate.ConfidenceMedium, result.Confidence)
}

func TestEstimate_MultiPairEventAggregatesDrop(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.DefaultConfig())

	// Two consecutive decreasing pairs form one event: 600 -> 450 -> 300
	// over 20 minutes. Net slope -15 L/min, fill 1 L/min, drain 16 L/min.
	readings := series(600, 450, 300, 320)

	result, err := est.Estimate(readings, 1.0)
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.InDelta(t, 300.0, result.Events[0].ObservedDrop, 1e-9)
	assert.InDelta(t, 16.0, result.DrainRate, 1e-9)
	assert.Equal(t, 20*time.Minute, result.Events[0].End.Sub(result.Events[0].Start))
}

func TestEstimate_MeanAcrossEvents(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.DefaultConfig())

	// Two separate events (split by a rise): rates 12 and 22 with fill 2.
	readings := series(500, 400, 420, 440, 240, 260)

	result, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	assert.InDelta(t, 17.0, result.DrainRate, 1e-9)
}

func TestEstimate_NoEventsFallsBack(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.Config{DefaultDrainRate: 40})

	readings := series(100, 120, 140, 160)

	result, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, drainrate.ConfidenceLow, result.Confidence)
	assert.InDelta(t, 40.0, result.DrainRate, 1e-9)
	assert.Empty(t, result.Events)
}

func TestEstimate_EmptyReadingsFallsBack(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.DefaultConfig())

	result, err := est.Estimate(nil, 2.0)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, drainrate.ConfidenceLow, result.Confidence)
}

func TestEstimate_GapSplitsEvent(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.Config{MaxGap: 30 * time.Minute})

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	readings := []cauldron.Reading{
		{CauldronID: "cld_test", Timestamp: base, Volume: 500},
		{CauldronID: "cld_test", Timestamp: base.Add(10 * time.Minute), Volume: 400},
		// 2 hour hole in the data; the following drop must not join the
		// first event or count as evidence on its own.
		{CauldronID: "cld_test", Timestamp: base.Add(130 * time.Minute), Volume: 200},
	}

	result, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.InDelta(t, 100.0, result.Events[0].ObservedDrop, 1e-9)
}

func TestEstimate_ImplausibleRateRejected(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.Config{MaxDrainRate: 100, DefaultDrainRate: 25})

	// 5000 L over 10 minutes implies 502 L/min, outside the plausible band.
	readings := series(6000, 1000)

	result, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.InDelta(t, 25.0, result.DrainRate, 1e-9)
}

func TestEstimate_UnsortedReadingsRejected(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.DefaultConfig())

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	readings := []cauldron.Reading{
		{CauldronID: "cld_test", Timestamp: base.Add(10 * time.Minute), Volume: 500},
		{CauldronID: "cld_test", Timestamp: base, Volume: 400},
	}

	_, err := est.Estimate(readings, 2.0)
	assert.ErrorIs(t, err, drainrate.ErrUnsortedReadings)
}

func TestEstimate_Idempotent(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.DefaultConfig())

	readings := series(500, 400, 420, 440, 240, 260, 280, 180)

	first, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	second, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEstimate_HighConfidenceWithManyEvents(t *testing.T) {
	est := drainrate.NewEstimator(drainrate.DefaultConfig())

	// Three separate drain events.
	readings := series(500, 400, 420, 320, 340, 240, 260)

	result, err := est.Estimate(readings, 2.0)
	require.NoError(t, err)

	require.Len(t, result.Events, 3)
	assert.Equal(t, drainrate.ConfidenceHigh, result.Confidence)
}
