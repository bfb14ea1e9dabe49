package trainer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"nifty-walkforward/config"
	"nifty-walkforward/internal/dataset"
	"nifty-walkforward/internal/fold"
	"nifty-walkforward/internal/gbdt"
	"nifty-walkforward/pkg/logger"
)

var (
	// ErrInsufficientData marks a fold with too few usable rows. The fold
	// is skipped; the run continues.
	ErrInsufficientData = errors.New("insufficient fold data")

	// ErrTraining marks a classifier that failed to fit. Fatal for that
	// fold only.
	ErrTraining = errors.New("classifier training failed")
)

// Config holds per-fold training parameters.
type Config struct {
	MinTrainRows int
	MinTestRows  int
	Model        config.Model
}

// Prediction is one out-of-sample model output: the fold that produced it,
// the true label, and the predicted positive-class probability. Predictions
// are never mutated after the fold completes.
type Prediction struct {
	Timestamp   time.Time `json:"timestamp"`
	FoldID      int       `json:"fold_id"`
	RowIndex    int       `json:"-"`
	Label       int       `json:"label"`
	Probability float64   `json:"probability"`
}

// Metrics summarizes one fold's model. The 0.5 threshold applies only to
// accuracy/precision/recall; the continuous probability is what flows
// downstream.
type Metrics struct {
	AUC           float64 `json:"auc"`
	Accuracy      float64 `json:"accuracy"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	TrainRows     int     `json:"train_rows"`
	TestRows      int     `json:"test_rows"`
	DroppedTrain  int     `json:"dropped_train"`
	DroppedTest   int     `json:"dropped_test"`
	PosWeight     float64 `json:"pos_weight"`
	BestIteration int     `json:"best_iteration"`
	StoppedEarly  bool    `json:"stopped_early"`
}

// Result is the trainer's output for one surviving fold.
type Result struct {
	FoldID      int
	Predictions []Prediction
	Importance  map[string]float64
	Metrics     Metrics
}

type Trainer struct {
	log *logger.Logger
	cfg Config
}

func New(log *logger.Logger, cfg Config) *Trainer {
	if cfg.MinTrainRows <= 0 {
		cfg.MinTrainRows = 50
	}
	if cfg.MinTestRows <= 0 {
		cfg.MinTestRows = 10
	}
	return &Trainer{log: log, cfg: cfg}
}

// TrainFold fits one gradient boosted classifier on the fold's training
// rows, validates against the fold's test rows, and emits calibrated
// probabilities for every usable test row. Invalid rows (missing label or
// feature) are dropped per slice, never imputed.
func (t *Trainer) TrainFold(ctx context.Context, ds *dataset.Table, f fold.Fold) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainRows := validRows(ds, f.Train)
	testRows := validRows(ds, f.Test)

	droppedTrain := f.Train.Len() - len(trainRows)
	droppedTest := f.Test.Len() - len(testRows)

	if len(trainRows) < t.cfg.MinTrainRows {
		return nil, fmt.Errorf("%w: fold %d has %d training rows, need %d",
			ErrInsufficientData, f.ID, len(trainRows), t.cfg.MinTrainRows)
	}
	if len(testRows) < t.cfg.MinTestRows {
		return nil, fmt.Errorf("%w: fold %d has %d test rows, need %d",
			ErrInsufficientData, f.ID, len(testRows), t.cfg.MinTestRows)
	}

	posWeight := classWeight(ds, trainRows)

	trainSet := buildDataSet(ds, trainRows)
	testSet := buildDataSet(ds, testRows)

	model, err := gbdt.Train(trainSet, testSet, gbdt.Params{
		Rounds:              t.cfg.Model.Rounds,
		LearningRate:        t.cfg.Model.LearningRate,
		MaxDepth:            t.cfg.Model.MaxDepth,
		MinChildWeight:      t.cfg.Model.MinChildWeight,
		Lambda:              t.cfg.Model.Lambda,
		PosWeight:           posWeight,
		EarlyStoppingRounds: t.cfg.Model.EarlyStoppingRounds,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fold %d: %v", ErrTraining, f.ID, err)
	}

	probs := model.Predict(testSet)

	preds := make([]Prediction, len(testRows))
	for k, row := range testRows {
		preds[k] = Prediction{
			Timestamp:   ds.Timestamps[row],
			FoldID:      f.ID,
			RowIndex:    row,
			Label:       int(ds.Label[row]),
			Probability: probs[k],
		}
	}

	result := &Result{
		FoldID:      f.ID,
		Predictions: preds,
		Importance:  importanceByName(ds.FeatureName, model.FeatureGain()),
		Metrics: Metrics{
			AUC:           rocAUC(probs, testSet.Labels),
			TrainRows:     len(trainRows),
			TestRows:      len(testRows),
			DroppedTrain:  droppedTrain,
			DroppedTest:   droppedTest,
			PosWeight:     posWeight,
			BestIteration: model.BestIteration,
			StoppedEarly:  model.StoppedEarly,
		},
	}
	result.Metrics.Accuracy, result.Metrics.Precision, result.Metrics.Recall =
		thresholdMetrics(probs, testSet.Labels)

	t.log.DebugContext(ctx, "Fold trained",
		logger.IntField("fold_id", f.ID),
		logger.IntField("train_rows", len(trainRows)),
		logger.IntField("test_rows", len(testRows)),
		logger.FloatField("auc", result.Metrics.AUC),
		logger.IntField("best_iteration", model.BestIteration),
	)

	return result, nil
}

func validRows(ds *dataset.Table, r fold.Range) []int {
	var rows []int
	for i := r.Start; i < r.End && i < ds.Len(); i++ {
		if ds.IsValid(i) {
			rows = append(rows, i)
		}
	}
	return rows
}

// classWeight computes negatives/positives on the training slice, guarded
// against a slice with no positive examples.
func classWeight(ds *dataset.Table, rows []int) float64 {
	pos, neg := 0, 0
	for _, i := range rows {
		if ds.Label[i] > 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 {
		return 1
	}
	return float64(neg) / float64(pos)
}

func buildDataSet(ds *dataset.Table, rows []int) *gbdt.DataSet {
	out := &gbdt.DataSet{
		Cols:   make([][]float64, len(ds.Features)),
		Labels: make([]float64, len(rows)),
	}
	for f := range ds.Features {
		col := make([]float64, len(rows))
		for k, i := range rows {
			col[k] = ds.Features[f][i]
		}
		out.Cols[f] = col
	}
	for k, i := range rows {
		out.Labels[k] = ds.Label[i]
	}
	return out
}

func importanceByName(names []string, gains []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = gains[i]
	}
	return out
}

// rocAUC computes the area under the ROC curve. Undefined when the test
// slice holds a single class; reported as 0 in that case.
func rocAUC(probs, labels []float64) float64 {
	pos, neg := 0, 0
	for _, y := range labels {
		if y > 0.5 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] < probs[order[b]]
	})

	scores := make([]float64, len(order))
	classes := make([]bool, len(order))
	for k, i := range order {
		scores[k] = probs[i]
		classes[k] = labels[i] > 0.5
	}

	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

func thresholdMetrics(probs, labels []float64) (accuracy, precision, recall float64) {
	var tp, fp, tn, fn int
	for i, p := range probs {
		predicted := p >= 0.5
		actual := labels[i] > 0.5
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && !actual:
			tn++
		default:
			fn++
		}
	}

	total := tp + fp + tn + fn
	if total > 0 {
		accuracy = float64(tp+tn) / float64(total)
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	return accuracy, precision, recall
}
