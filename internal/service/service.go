package service

import (
	"nifty-walkforward/config"
	"nifty-walkforward/internal/artifact"
	"nifty-walkforward/internal/repository"
	"nifty-walkforward/internal/trainer"
	"nifty-walkforward/pkg/cache"
	"nifty-walkforward/pkg/httpclient"
	"nifty-walkforward/pkg/logger"
)

type Service struct {
	WalkForwardService WalkForwardService
	RunRepo            repository.RunRepository
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
) *Service {
	tr := trainer.New(log, trainer.Config{
		MinTrainRows: cfg.Folds.MinTrainRows,
		MinTestRows:  cfg.Folds.MinTestRows,
		Model:        cfg.Model,
	})

	walkForwardService := NewWalkForwardService(
		cfg,
		log,
		tr,
		repo.RunRepo,
		artifact.NewWriter(cfg.Output.Dir),
		inmemoryCache,
		httpclient.New(cfg.Dataset.FetchTimeout),
	)

	return &Service{
		WalkForwardService: walkForwardService,
		RunRepo:            repo.RunRepo,
	}
}
