package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nifty-walkforward/config"
	"nifty-walkforward/internal/dataset"
	"nifty-walkforward/internal/dto"
	"nifty-walkforward/internal/fold"
	"nifty-walkforward/internal/model"
	"nifty-walkforward/internal/report"
	"nifty-walkforward/internal/repository"
	"nifty-walkforward/internal/simulate"
	"nifty-walkforward/internal/trainer"
	"nifty-walkforward/pkg/cache"
	"nifty-walkforward/pkg/httpclient"
	"nifty-walkforward/pkg/logger"
)

// WalkForwardService runs the full evaluation pipeline: fold generation,
// per-fold training, threshold sweep, outcome pricing and aggregation.
type WalkForwardService interface {
	Run(ctx context.Context, req dto.RunRequest) (*dto.RunReport, error)
}

// ArtifactWriter persists a completed report; the CSV writer implements it.
type ArtifactWriter interface {
	WriteAll(report *dto.RunReport) error
}

type walkForwardService struct {
	cfg        *config.Config
	log        *logger.Logger
	trainer    *trainer.Trainer
	runRepo    repository.RunRepository
	writer     ArtifactWriter
	cache      cache.Cache
	httpClient *httpclient.Client
}

func NewWalkForwardService(
	cfg *config.Config,
	log *logger.Logger,
	tr *trainer.Trainer,
	runRepo repository.RunRepository,
	writer ArtifactWriter,
	inmemoryCache cache.Cache,
	httpClient *httpclient.Client,
) WalkForwardService {
	return &walkForwardService{
		cfg:        cfg,
		log:        log,
		trainer:    tr,
		runRepo:    runRepo,
		writer:     writer,
		cache:      inmemoryCache,
		httpClient: httpClient,
	}
}

// Run executes one walk-forward evaluation. Configuration and schema
// errors abort the run; per-fold errors are recorded in the report's skip
// list and the run continues with the surviving folds.
func (s *walkForwardService) Run(ctx context.Context, req dto.RunRequest) (*dto.RunReport, error) {
	startedAt := time.Now()

	ds, source, err := s.loadDataset(ctx, req)
	if err != nil {
		return nil, err
	}

	foldCfg := s.foldConfig(req)
	folds, err := fold.Build(ds.Timestamps, foldCfg)
	if err != nil {
		s.log.ErrorContext(ctx, "Fold generation failed", logger.ErrorField(err))
		return nil, err
	}

	pricerMode := req.PricerMode
	if pricerMode == "" {
		pricerMode = s.cfg.Trading.PricerMode
	}

	rep := &dto.RunReport{
		DatasetSource: source,
		Rows:          ds.Len(),
		PricerMode:    pricerMode,
		StartedAt:     startedAt,
		FoldsTotal:    len(folds),
	}

	if len(folds) == 0 {
		// Not an error: insufficient history simply produces no folds,
		// but the caller must see that explicitly.
		s.log.WarnContext(ctx, "No folds produced",
			logger.StringField("dataset", source),
			logger.IntField("rows", ds.Len()),
		)
		rep.FinishedAt = time.Now()
		return rep, nil
	}

	results, skipped, err := s.trainFolds(ctx, ds, folds)
	if err != nil {
		return nil, err
	}

	rep.Skipped = skipped
	rep.FoldsSkipped = len(skipped)
	rep.FoldsTrained = len(results)

	skipReason := make(map[int]string, len(skipped))
	for _, sk := range skipped {
		skipReason[sk.FoldID] = sk.Reason
	}

	resultByFold := make(map[int]*trainer.Result, len(results))
	for _, r := range results {
		resultByFold[r.FoldID] = r
		rep.Predictions = append(rep.Predictions, r.Predictions...)
	}

	for _, f := range folds {
		summary := dto.FoldSummary{
			FoldID:     f.ID,
			TrainFrom:  f.TrainFrom,
			TrainTo:    f.TrainTo,
			TestFrom:   f.TestFrom,
			TestTo:     f.TestTo,
			TrainRange: f.Train,
			TestRange:  f.Test,
		}
		if r, ok := resultByFold[f.ID]; ok {
			metrics := r.Metrics
			summary.Metrics = &metrics
			summary.Importance = r.Importance
			rep.TestDays += f.TestDays()
		} else {
			summary.Skipped = true
			summary.SkipReason = skipReason[f.ID]
		}
		rep.Folds = append(rep.Folds, summary)
	}

	s.sweep(ds, rep, pricerMode)
	rep.Calibration = report.Calibration(rep.Predictions, ds, s.cfg.Trading.CalibrationBins)
	rep.FinishedAt = time.Now()

	if s.writer != nil {
		if err := s.writer.WriteAll(rep); err != nil {
			s.log.ErrorContext(ctx, "Failed to write artifacts", logger.ErrorField(err))
			return nil, err
		}
	}

	if s.runRepo != nil {
		if err := s.persist(ctx, rep); err != nil {
			// Persistence is best effort; the report is already complete.
			s.log.ErrorContext(ctx, "Failed to persist run", logger.ErrorField(err))
		}
	}

	s.log.InfoContext(ctx, "Walk-forward run completed",
		logger.StringField("dataset", source),
		logger.TimeField("started_at", rep.StartedAt),
		logger.IntField("folds_total", rep.FoldsTotal),
		logger.IntField("folds_trained", rep.FoldsTrained),
		logger.IntField("folds_skipped", rep.FoldsSkipped),
		logger.IntField("predictions", len(rep.Predictions)),
	)

	return rep, nil
}

func (s *walkForwardService) loadDataset(ctx context.Context, req dto.RunRequest) (*dataset.Table, string, error) {
	datasetCfg := s.cfg.Dataset
	if req.DatasetSource != "" {
		datasetCfg.Source = req.DatasetSource
	}

	cacheKey := "dataset:" + datasetCfg.Source
	if ds, ok := cache.GetTyped[*dataset.Table](s.cache, cacheKey); ok {
		return ds, datasetCfg.Source, nil
	}

	ds, err := dataset.Load(ctx, datasetCfg, s.httpClient)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to load dataset",
			logger.StringField("source", datasetCfg.Source),
			logger.ErrorField(err),
		)
		return nil, "", err
	}

	s.cache.Set(cacheKey, ds, s.cfg.Cache.DefaultExpiration)
	return ds, datasetCfg.Source, nil
}

func (s *walkForwardService) foldConfig(req dto.RunRequest) fold.Config {
	cfg := fold.Config{
		TrainMonths: s.cfg.Folds.TrainMonths,
		TestMonths:  s.cfg.Folds.TestMonths,
		StepMonths:  s.cfg.Folds.StepMonths,
	}
	if req.TrainMonths != nil {
		cfg.TrainMonths = *req.TrainMonths
	}
	if req.TestMonths != nil {
		cfg.TestMonths = *req.TestMonths
	}
	if req.StepMonths != nil {
		cfg.StepMonths = *req.StepMonths
	}
	return cfg
}

// trainFolds runs per-fold training with bounded parallelism. Folds are
// independent, so parallel execution is purely a performance optimization;
// results are re-sorted by fold id so output ordering is deterministic.
func (s *walkForwardService) trainFolds(ctx context.Context, ds *dataset.Table, folds []fold.Fold) ([]*trainer.Result, []dto.SkippedFold, error) {
	maxParallel := s.cfg.Folds.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}

	var (
		mu      sync.Mutex
		results []*trainer.Result
		skipped []dto.SkippedFold
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, f := range folds {
		f := f
		g.Go(func() error {
			result, err := s.trainer.TrainFold(gctx, ds, f)
			if err != nil {
				if errors.Is(err, trainer.ErrInsufficientData) || errors.Is(err, trainer.ErrTraining) {
					s.log.WarnContext(gctx, "Fold skipped",
						logger.IntField("fold_id", f.ID),
						logger.ErrorField(err),
					)
					mu.Lock()
					skipped = append(skipped, dto.SkippedFold{FoldID: f.ID, Reason: err.Error()})
					mu.Unlock()
					return nil
				}
				return err
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].FoldID < results[j].FoldID })
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].FoldID < skipped[j].FoldID })
	return results, skipped, nil
}

// sweep selects, prices and aggregates trades at every threshold. Every
// threshold produces exactly one result row even when nothing clears it.
func (s *walkForwardService) sweep(ds *dataset.Table, rep *dto.RunReport, pricerMode string) {
	pricer := simulate.NewPricer(pricerMode, simulate.PricerConfig{
		TakeProfitFrac: s.cfg.Trading.TakeProfitFrac,
		StopLossFrac:   s.cfg.Trading.StopLossFrac,
		SlippageFrac:   s.cfg.Trading.SlippageFrac,
		Commission:     s.cfg.Trading.Commission,
		LotSize:        s.cfg.Trading.LotSize,
	})

	thresholds := simulate.Thresholds(
		s.cfg.Trading.ThresholdStart,
		s.cfg.Trading.ThresholdEnd,
		s.cfg.Trading.ThresholdStep,
	)

	for _, threshold := range thresholds {
		signals := simulate.Select(rep.Predictions, threshold)

		var trades []simulate.Trade
		for _, sig := range signals {
			if trade, ok := pricer.Price(ds, sig); ok {
				trades = append(trades, trade)
			}
		}

		rep.Thresholds = append(rep.Thresholds, report.Summarize(threshold, trades, rep.TestDays))
	}
}

func (s *walkForwardService) persist(ctx context.Context, rep *dto.RunReport) error {
	configSnapshot, err := json.Marshal(map[string]interface{}{
		"folds":   s.cfg.Folds,
		"model":   s.cfg.Model,
		"trading": s.cfg.Trading,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config snapshot: %w", err)
	}
	skipReasons, err := json.Marshal(rep.Skipped)
	if err != nil {
		return fmt.Errorf("failed to marshal skip reasons: %w", err)
	}

	run := &model.Run{
		DatasetSource: rep.DatasetSource,
		PricerMode:    rep.PricerMode,
		Config:        configSnapshot,
		Rows:          rep.Rows,
		FoldsTotal:    rep.FoldsTotal,
		FoldsTrained:  rep.FoldsTrained,
		FoldsSkipped:  rep.FoldsSkipped,
		SkipReasons:   skipReasons,
		TestDays:      rep.TestDays,
		StartedAt:     rep.StartedAt,
		FinishedAt:    rep.FinishedAt,
	}

	for _, f := range rep.Folds {
		rf := model.RunFold{
			FoldID:     f.FoldID,
			TrainFrom:  f.TrainFrom,
			TrainTo:    f.TrainTo,
			TestFrom:   f.TestFrom,
			TestTo:     f.TestTo,
			TrainStart: f.TrainRange.Start,
			TrainEnd:   f.TrainRange.End,
			TestStart:  f.TestRange.Start,
			TestEnd:    f.TestRange.End,
			Skipped:    f.Skipped,
			SkipReason: f.SkipReason,
		}
		if f.Metrics != nil {
			rf.AUC = f.Metrics.AUC
			rf.Accuracy = f.Metrics.Accuracy
			rf.Precision = f.Metrics.Precision
			rf.Recall = f.Metrics.Recall
			rf.TrainRows = f.Metrics.TrainRows
			rf.TestRows = f.Metrics.TestRows
		}
		if len(f.Importance) > 0 {
			if importance, err := json.Marshal(f.Importance); err == nil {
				rf.Importance = importance
			}
		}
		run.Folds = append(run.Folds, rf)
	}

	for _, t := range rep.Thresholds {
		run.Thresholds = append(run.Thresholds, model.RunThreshold{
			Threshold:    t.Threshold,
			Trades:       t.Trades,
			Wins:         t.Wins,
			Precision:    t.Precision,
			AvgPnL:       t.AvgPnL,
			TotalPnL:     t.TotalPnL,
			TradesPerDay: t.TradesPerDay,
		})
	}

	for _, b := range rep.Calibration {
		run.Calibrations = append(run.Calibrations, model.RunCalibration{
			BinLow:           b.Low,
			BinHigh:          b.High,
			Count:            b.Count,
			MeanPredicted:    b.MeanPredicted,
			EmpiricalRate:    b.EmpiricalRate,
			AvgForwardReturn: b.AvgForwardReturn,
		})
	}

	return s.runRepo.Create(ctx, run)
}
