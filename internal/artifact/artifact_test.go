package artifact

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-walkforward/internal/dto"
	"nifty-walkforward/internal/fold"
	"nifty-walkforward/internal/report"
	"nifty-walkforward/internal/trainer"
)

func sampleReport() *dto.RunReport {
	trainFrom := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	testFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	return &dto.RunReport{
		Folds: []dto.FoldSummary{
			{
				FoldID:     0,
				TrainFrom:  trainFrom,
				TrainTo:    testFrom.Add(-time.Minute),
				TestFrom:   testFrom,
				TestTo:     time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC),
				TrainRange: fold.Range{Start: 0, End: 500},
				TestRange:  fold.Range{Start: 500, End: 540},
			},
			{
				FoldID:     1,
				Skipped:    true,
				SkipReason: "insufficient fold data",
			},
		},
		Predictions: []trainer.Prediction{
			{Timestamp: testFrom, FoldID: 0, Label: 1, Probability: 0.73},
		},
		Thresholds: []report.ThresholdResult{
			{Threshold: 0.6, Trades: 10, Wins: 6, Precision: 0.6, AvgPnL: 12.5, TotalPnL: 125, TradesPerDay: 0.5},
		},
		Calibration: []report.CalibrationBin{
			{Low: 0.7, High: 0.8, Count: 1, MeanPredicted: 0.73, EmpiricalRate: 1, AvgForwardReturn: 0.01},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteAll_ProducesEveryArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).WriteAll(sampleReport()))

	for _, name := range []string{"folds.csv", "predictions.csv", "thresholds.csv", "calibration.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	preds := readCSV(t, filepath.Join(dir, "predictions.csv"))
	require.Len(t, preds, 2)
	assert.Equal(t, []string{"timestamp", "fold_id", "label", "probability"}, preds[0])
	assert.Equal(t, "0.730000", preds[1][3])

	thresholds := readCSV(t, filepath.Join(dir, "thresholds.csv"))
	require.Len(t, thresholds, 2)
	assert.Equal(t, "0.60", thresholds[1][0])
	assert.Equal(t, "10", thresholds[1][1])
}

func TestWriteAll_EmptyDirDisablesArtifacts(t *testing.T) {
	assert.NoError(t, NewWriter("").WriteAll(sampleReport()))
}

func TestReadFolds_IntegerBoundsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).WriteAll(sampleReport()))

	folds, err := ReadFolds(filepath.Join(dir, "folds.csv"), nil)
	require.NoError(t, err)
	require.Len(t, folds, 2)

	assert.Equal(t, 0, folds[0].ID)
	assert.Equal(t, fold.Range{Start: 0, End: 500}, folds[0].Train)
	assert.Equal(t, fold.Range{Start: 500, End: 540}, folds[0].Test)
	assert.Equal(t, 1, folds[1].ID)
}

func TestReadFolds_TimestampBoundsResolved(t *testing.T) {
	// A fold table carrying only calendar bounds: index ranges must be
	// rebuilt against the timestamp column.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, 10)
	for i := range timestamps {
		timestamps[i] = base.Add(time.Duration(i) * time.Minute)
	}

	path := filepath.Join(t.TempDir(), "folds.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	cw := csv.NewWriter(f)
	require.NoError(t, cw.Write([]string{"fold_id", "train_from", "train_to", "test_from", "test_to"}))
	require.NoError(t, cw.Write([]string{
		"0",
		base.Format(time.RFC3339),
		base.Add(4 * time.Minute).Format(time.RFC3339),
		base.Add(5 * time.Minute).Format(time.RFC3339),
		base.Add(9 * time.Minute).Format(time.RFC3339),
	}))
	cw.Flush()
	require.NoError(t, cw.Error())
	require.NoError(t, f.Close())

	folds, err := ReadFolds(path, timestamps)
	require.NoError(t, err)
	require.Len(t, folds, 1)
	assert.Equal(t, fold.Range{Start: 0, End: 5}, folds[0].Train)
	assert.Equal(t, fold.Range{Start: 5, End: 10}, folds[0].Test)
}

func TestReadFolds_UnresolvableRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folds.csv")
	require.NoError(t, os.WriteFile(path, []byte("fold_id\n0\n"), 0o644))

	_, err := ReadFolds(path, nil)
	assert.Error(t, err)
}
