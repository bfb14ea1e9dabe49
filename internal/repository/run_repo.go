package repository

import (
	"context"

	"gorm.io/gorm"

	"nifty-walkforward/internal/model"
	"nifty-walkforward/pkg/utils"
)

type RunRepository interface {
	Create(ctx context.Context, run *model.Run, opts ...utils.DBOption) error
	Get(ctx context.Context, param model.GetRunParam, opts ...utils.DBOption) ([]model.Run, error)
	GetDetail(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Run, error)
}

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Create persists a run with its folds, threshold sweep and calibration
// bins in one transaction.
func (r *runRepository) Create(ctx context.Context, run *model.Run, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
}

func (r *runRepository) Get(ctx context.Context, param model.GetRunParam, opts ...utils.DBOption) ([]model.Run, error) {
	var runs []model.Run
	query := utils.ApplyOptions(r.db.WithContext(ctx), opts...).Order("created_at DESC")
	if len(param.IDs) > 0 {
		query = query.Where("id IN ?", param.IDs)
	}
	if param.Limit > 0 {
		query = query.Limit(param.Limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}

func (r *runRepository) GetDetail(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Run, error) {
	opts = append(opts,
		utils.WithPreload("Folds"),
		utils.WithPreload("Thresholds"),
		utils.WithPreload("Calibrations"),
	)

	var run model.Run
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&run, id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
