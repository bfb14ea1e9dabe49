package report

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-walkforward/internal/dataset"
	"nifty-walkforward/internal/simulate"
	"nifty-walkforward/internal/trainer"
)

func TestSummarize_ZeroTradesIsSafe(t *testing.T) {
	result := Summarize(0.85, nil, 40)

	assert.Equal(t, 0.85, result.Threshold)
	assert.Zero(t, result.Trades)
	assert.Zero(t, result.Wins)
	assert.Zero(t, result.Precision)
	assert.Zero(t, result.AvgPnL)
	assert.Zero(t, result.TotalPnL)
	assert.Zero(t, result.TradesPerDay)
}

func TestSummarize_Aggregates(t *testing.T) {
	trades := []simulate.Trade{
		{NetPnL: 120},
		{NetPnL: -45},
		{NetPnL: 60},
		{NetPnL: -15},
	}

	result := Summarize(0.60, trades, 60)

	assert.Equal(t, 4, result.Trades)
	assert.Equal(t, 2, result.Wins)
	assert.InDelta(t, 0.5, result.Precision, 1e-9)
	assert.InDelta(t, 120.0, result.TotalPnL, 1e-9)
	assert.InDelta(t, 30.0, result.AvgPnL, 1e-9)
	assert.InDelta(t, 4.0/60.0, result.TradesPerDay, 1e-9)
}

func TestSummarize_ZeroTestDays(t *testing.T) {
	result := Summarize(0.60, []simulate.Trade{{NetPnL: 10}}, 0)
	assert.Zero(t, result.TradesPerDay)
}

func calibrationFixture() ([]trainer.Prediction, *dataset.Table) {
	base := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	probs := []float64{0.05, 0.08, 0.52, 0.58, 0.55, 1.00}
	labels := []int{0, 0, 1, 0, 1, 1}

	preds := make([]trainer.Prediction, len(probs))
	timestamps := make([]time.Time, len(probs))
	closes := make([]float64, len(probs))
	futures := make([]float64, len(probs))
	for i := range probs {
		preds[i] = trainer.Prediction{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			RowIndex:    i,
			Label:       labels[i],
			Probability: probs[i],
		}
		timestamps[i] = preds[i].Timestamp
		closes[i] = 100
		futures[i] = 101 // +1% forward return everywhere
	}
	futures[1] = math.NaN() // one unpriceable row

	ds := &dataset.Table{
		Timestamps:  timestamps,
		Close:       closes,
		FutureClose: futures,
		Horizon:     15,
	}
	return preds, ds
}

func TestCalibration_BinAssignment(t *testing.T) {
	preds, ds := calibrationFixture()

	bins := Calibration(preds, ds, 10)
	require.Len(t, bins, 10)

	// [0.0, 0.1): two low-confidence misses.
	assert.Equal(t, 2, bins[0].Count)
	assert.InDelta(t, 0.065, bins[0].MeanPredicted, 1e-9)
	assert.Zero(t, bins[0].EmpiricalRate)

	// [0.5, 0.6): three rows, two positives.
	assert.Equal(t, 3, bins[5].Count)
	assert.InDelta(t, 0.55, bins[5].MeanPredicted, 1e-9)
	assert.InDelta(t, 2.0/3.0, bins[5].EmpiricalRate, 1e-9)
	assert.InDelta(t, 0.01, bins[5].AvgForwardReturn, 1e-9)
}

func TestCalibration_EdgeProbabilityStaysInItsOwnBin(t *testing.T) {
	// A probability sitting exactly on a bin boundary belongs to the bin it
	// opens. Inexact float division (0.3/0.1 = 2.999...) used to drop these
	// one bin low.
	var preds []trainer.Prediction
	for i := 1; i <= 9; i++ {
		preds = append(preds, trainer.Prediction{
			Probability: float64(i) / 10,
			Label:       1,
		})
	}

	bins := Calibration(preds, nil, 10)
	require.Len(t, bins, 10)

	assert.Zero(t, bins[0].Count)
	for i := 1; i <= 9; i++ {
		assert.Equal(t, 1, bins[i].Count, "bin %d", i)
		assert.InDelta(t, float64(i)/10, bins[i].MeanPredicted, 1e-12, "bin %d", i)
	}
}

func TestCalibration_ProbabilityOneLandsInTopBin(t *testing.T) {
	preds, ds := calibrationFixture()

	bins := Calibration(preds, ds, 10)
	assert.Equal(t, 1, bins[9].Count)
	assert.InDelta(t, 1.0, bins[9].MeanPredicted, 1e-9)
	assert.InDelta(t, 1.0, bins[9].EmpiricalRate, 1e-9)
}

func TestCalibration_EmptyBinsReportedEmpty(t *testing.T) {
	preds, ds := calibrationFixture()

	bins := Calibration(preds, ds, 10)
	for _, b := range []int{1, 2, 3, 4, 6, 7, 8} {
		assert.Zero(t, bins[b].Count, "bin %d", b)
		assert.Zero(t, bins[b].MeanPredicted, "bin %d", b)
		assert.Zero(t, bins[b].EmpiricalRate, "bin %d", b)
		assert.Zero(t, bins[b].AvgForwardReturn, "bin %d", b)
	}
}

func TestCalibration_UnpriceableRowSkippedForReturns(t *testing.T) {
	preds, ds := calibrationFixture()

	bins := Calibration(preds, ds, 10)
	// Bin 0 holds rows 0 and 1; row 1 has no forward close, so the average
	// forward return comes from row 0 alone.
	assert.Equal(t, 2, bins[0].Count)
	assert.InDelta(t, 0.01, bins[0].AvgForwardReturn, 1e-9)
}

func TestCalibration_DefaultBinCount(t *testing.T) {
	preds, ds := calibrationFixture()
	assert.Len(t, Calibration(preds, ds, 0), 10)
	assert.Len(t, Calibration(preds, ds, -3), 10)
}
