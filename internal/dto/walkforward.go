package dto

import (
	"time"

	"nifty-walkforward/internal/fold"
	"nifty-walkforward/internal/report"
	"nifty-walkforward/internal/trainer"
)

// RunRequest defines the parameters for one walk-forward evaluation run.
// Zero-valued fields fall back to the loaded configuration.
type RunRequest struct {
	DatasetSource string `json:"dataset_source"`
	TrainMonths   *int   `json:"train_months" validate:"omitempty,gt=0"`
	TestMonths    *int   `json:"test_months" validate:"omitempty,gt=0"`
	StepMonths    *int   `json:"step_months" validate:"omitempty,gt=0"`
	PricerMode    string `json:"pricer_mode" validate:"omitempty,oneof=terminal path"`
}

// FoldSummary reports one fold's outcome, trained or skipped. Skipped
// folds stay in the report so a run never looks complete when folds were
// actually dropped.
type FoldSummary struct {
	FoldID     int        `json:"fold_id"`
	TrainFrom  time.Time  `json:"train_from"`
	TrainTo    time.Time  `json:"train_to"`
	TestFrom   time.Time  `json:"test_from"`
	TestTo     time.Time  `json:"test_to"`
	TrainRange fold.Range `json:"train_range"`
	TestRange  fold.Range `json:"test_range"`

	Skipped    bool               `json:"skipped"`
	SkipReason string             `json:"skip_reason,omitempty"`
	Metrics    *trainer.Metrics   `json:"metrics,omitempty"`
	Importance map[string]float64 `json:"importance,omitempty"`
}

// SkippedFold is one entry in the run-level skip list.
type SkippedFold struct {
	FoldID int    `json:"fold_id"`
	Reason string `json:"reason"`
}

// RunReport is the pipeline's primary output artifact: the threshold sweep
// plus calibration and per-fold summaries, annotated with what was skipped.
type RunReport struct {
	DatasetSource string    `json:"dataset_source"`
	Rows          int       `json:"rows"`
	PricerMode    string    `json:"pricer_mode"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`

	FoldsTotal   int           `json:"folds_total"`
	FoldsTrained int           `json:"folds_trained"`
	FoldsSkipped int           `json:"folds_skipped"`
	Skipped      []SkippedFold `json:"skipped,omitempty"`
	TestDays     float64       `json:"test_days"`

	Folds       []FoldSummary            `json:"folds"`
	Thresholds  []report.ThresholdResult `json:"thresholds"`
	Calibration []report.CalibrationBin  `json:"calibration"`

	// Predictions is the concatenated out-of-sample table; written to the
	// prediction artifact, omitted from API responses for size.
	Predictions []trainer.Prediction `json:"-"`
}
