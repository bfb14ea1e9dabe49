package model

import (
	"time"

	"gorm.io/datatypes"
)

// Run is one persisted walk-forward evaluation run.
type Run struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	DatasetSource string         `gorm:"not null" json:"dataset_source"`
	PricerMode    string         `gorm:"not null" json:"pricer_mode"`
	Config        datatypes.JSON `gorm:"type:jsonb" json:"config"`
	Rows          int            `gorm:"not null" json:"rows"`
	FoldsTotal    int            `gorm:"not null" json:"folds_total"`
	FoldsTrained  int            `gorm:"not null" json:"folds_trained"`
	FoldsSkipped  int            `gorm:"not null" json:"folds_skipped"`
	SkipReasons   datatypes.JSON `gorm:"type:jsonb" json:"skip_reasons"`
	TestDays      float64        `json:"test_days"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`

	Folds        []RunFold        `gorm:"foreignKey:RunID" json:"folds,omitempty"`
	Thresholds   []RunThreshold   `gorm:"foreignKey:RunID" json:"thresholds,omitempty"`
	Calibrations []RunCalibration `gorm:"foreignKey:RunID" json:"calibrations,omitempty"`
}

func (Run) TableName() string {
	return "runs"
}

// RunFold is one fold record of a run, trained or skipped. Index bounds are
// stored alongside the calendar bounds so consumers can use either
// representation.
type RunFold struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	RunID      uint      `gorm:"not null;index" json:"run_id"`
	FoldID     int       `gorm:"not null" json:"fold_id"`
	TrainFrom  time.Time `gorm:"not null" json:"train_from"`
	TrainTo    time.Time `gorm:"not null" json:"train_to"`
	TestFrom   time.Time `gorm:"not null" json:"test_from"`
	TestTo     time.Time `gorm:"not null" json:"test_to"`
	TrainStart int       `gorm:"not null" json:"train_start"`
	TrainEnd   int       `gorm:"not null" json:"train_end"`
	TestStart  int       `gorm:"not null" json:"test_start"`
	TestEnd    int       `gorm:"not null" json:"test_end"`

	Skipped    bool           `gorm:"not null" json:"skipped"`
	SkipReason string         `json:"skip_reason"`
	AUC        float64        `json:"auc"`
	Accuracy   float64        `json:"accuracy"`
	Precision  float64        `json:"precision"`
	Recall     float64        `json:"recall"`
	TrainRows  int            `json:"train_rows"`
	TestRows   int            `json:"test_rows"`
	Importance datatypes.JSON `gorm:"type:jsonb" json:"importance"`
}

func (RunFold) TableName() string {
	return "run_folds"
}

// RunThreshold is one row of a run's threshold sweep.
type RunThreshold struct {
	ID           uint    `gorm:"primarykey" json:"id"`
	RunID        uint    `gorm:"not null;index" json:"run_id"`
	Threshold    float64 `gorm:"not null" json:"threshold"`
	Trades       int     `gorm:"not null" json:"trades"`
	Wins         int     `gorm:"not null" json:"wins"`
	Precision    float64 `json:"precision"`
	AvgPnL       float64 `json:"avg_pnl"`
	TotalPnL     float64 `json:"total_pnl"`
	TradesPerDay float64 `json:"trades_per_day"`
}

func (RunThreshold) TableName() string {
	return "run_thresholds"
}

// RunCalibration is one probability bin of a run's calibration table.
type RunCalibration struct {
	ID               uint    `gorm:"primarykey" json:"id"`
	RunID            uint    `gorm:"not null;index" json:"run_id"`
	BinLow           float64 `gorm:"not null" json:"bin_low"`
	BinHigh          float64 `gorm:"not null" json:"bin_high"`
	Count            int     `gorm:"not null" json:"count"`
	MeanPredicted    float64 `json:"mean_predicted"`
	EmpiricalRate    float64 `json:"empirical_rate"`
	AvgForwardReturn float64 `json:"avg_forward_return"`
}

func (RunCalibration) TableName() string {
	return "run_calibrations"
}

// GetRunParam filters run listing.
type GetRunParam struct {
	IDs   []uint
	Limit int
}
