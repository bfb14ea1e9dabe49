package trainer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-walkforward/config"
	"nifty-walkforward/internal/dataset"
	"nifty-walkforward/internal/fold"
	"nifty-walkforward/pkg/logger"
)

func datasetConfig() config.Dataset {
	return config.Dataset{
		TimestampLayout: "2006-01-02 15:04:05",
		HorizonMinutes:  15,
		Features:        []string{"x"},
	}
}

// learnableTable builds n one-minute rows where the single feature fully
// determines the label. Rows listed in holes get a blank label and must be
// dropped by the trainer.
func learnableTable(t *testing.T, n int, holes map[int]bool) *dataset.Table {
	t.Helper()

	var b strings.Builder
	b.WriteString("timestamp,close,label,future_close_15m,x\n")

	base := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		x := float64(i%10) / 10
		label := "0"
		if x >= 0.5 {
			label = "1"
		}
		if holes[i] {
			label = ""
		}
		fmt.Fprintf(&b, "%s,100,%s,101,%g\n",
			base.Add(time.Duration(i)*time.Minute).Format("2006-01-02 15:04:05"), label, x)
	}

	ds, err := dataset.Parse(strings.NewReader(b.String()), datasetConfig())
	require.NoError(t, err)
	return ds
}

func testTrainer(t *testing.T) *Trainer {
	t.Helper()

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	return New(log, Config{
		Model: config.Model{
			Rounds:         20,
			LearningRate:   0.3,
			MaxDepth:       3,
			MinChildWeight: 1,
			Lambda:         1,
		},
	})
}

func TestTrainFold_PredictsEveryUsableTestRow(t *testing.T) {
	ds := learnableTable(t, 240, nil)
	f := fold.Fold{
		ID:    1,
		Train: fold.Range{Start: 0, End: 180},
		Test:  fold.Range{Start: 180, End: 240},
	}

	result, err := testTrainer(t).TrainFold(context.Background(), ds, f)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FoldID)
	assert.Len(t, result.Predictions, 60)
	assert.Equal(t, 180, result.Metrics.TrainRows)
	assert.Equal(t, 60, result.Metrics.TestRows)
	assert.Zero(t, result.Metrics.DroppedTrain)
	assert.Zero(t, result.Metrics.DroppedTest)

	for _, p := range result.Predictions {
		assert.Equal(t, 1, p.FoldID)
		assert.GreaterOrEqual(t, p.RowIndex, 180)
		assert.Less(t, p.RowIndex, 240)
		assert.Greater(t, p.Probability, 0.0)
		assert.Less(t, p.Probability, 1.0)
	}
}

func TestTrainFold_LearnsSeparableLabels(t *testing.T) {
	ds := learnableTable(t, 240, nil)
	f := fold.Fold{
		Train: fold.Range{Start: 0, End: 180},
		Test:  fold.Range{Start: 180, End: 240},
	}

	result, err := testTrainer(t).TrainFold(context.Background(), ds, f)
	require.NoError(t, err)

	assert.Greater(t, result.Metrics.AUC, 0.95)
	assert.Greater(t, result.Metrics.Accuracy, 0.9)
	assert.Greater(t, result.Importance["x"], 0.0)
}

func TestTrainFold_DropsInvalidRows(t *testing.T) {
	holes := map[int]bool{10: true, 20: true, 200: true}
	ds := learnableTable(t, 240, holes)
	f := fold.Fold{
		Train: fold.Range{Start: 0, End: 180},
		Test:  fold.Range{Start: 180, End: 240},
	}

	result, err := testTrainer(t).TrainFold(context.Background(), ds, f)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Metrics.DroppedTrain)
	assert.Equal(t, 1, result.Metrics.DroppedTest)
	assert.Len(t, result.Predictions, 59)
	for _, p := range result.Predictions {
		assert.NotEqual(t, 200, p.RowIndex)
	}
}

func TestTrainFold_InsufficientTrainRows(t *testing.T) {
	ds := learnableTable(t, 240, nil)
	f := fold.Fold{
		ID:    3,
		Train: fold.Range{Start: 0, End: 30},
		Test:  fold.Range{Start: 30, End: 240},
	}

	_, err := testTrainer(t).TrainFold(context.Background(), ds, f)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainFold_InsufficientTestRows(t *testing.T) {
	ds := learnableTable(t, 240, nil)
	f := fold.Fold{
		Train: fold.Range{Start: 0, End: 235},
		Test:  fold.Range{Start: 235, End: 240},
	}

	_, err := testTrainer(t).TrainFold(context.Background(), ds, f)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestTrainFold_PosWeightReflectsImbalance(t *testing.T) {
	ds := learnableTable(t, 240, nil)
	f := fold.Fold{
		Train: fold.Range{Start: 0, End: 180},
		Test:  fold.Range{Start: 180, End: 240},
	}

	result, err := testTrainer(t).TrainFold(context.Background(), ds, f)
	require.NoError(t, err)

	// x in {0.0 .. 0.9} with a 0.5 cutoff: classes are balanced.
	assert.InDelta(t, 1.0, result.Metrics.PosWeight, 1e-9)
}

func TestTrainFold_CancelledContext(t *testing.T) {
	ds := learnableTable(t, 240, nil)
	f := fold.Fold{
		Train: fold.Range{Start: 0, End: 180},
		Test:  fold.Range{Start: 180, End: 240},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testTrainer(t).TrainFold(ctx, ds, f)
	assert.ErrorIs(t, err, context.Canceled)
}
