package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nifty-walkforward/internal/dto"
	"nifty-walkforward/internal/repository"
	"nifty-walkforward/internal/service"
	"nifty-walkforward/pkg/logger"
	"nifty-walkforward/pkg/utils"
)

var (
	runDatasetSource string
	runPricerMode    string
	runTrainMonths   int
	runTestMonths    int
	runStepMonths    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the walk-forward evaluation pipeline once and exit",
	Run:   Run,
}

func init() {
	runCmd.Flags().StringVar(&runDatasetSource, "dataset", "", "dataset source (path or URL), overrides config")
	runCmd.Flags().StringVar(&runPricerMode, "pricer", "", "pricer mode: terminal or path")
	runCmd.Flags().IntVar(&runTrainMonths, "train-months", 0, "training window in months, overrides config")
	runCmd.Flags().IntVar(&runTestMonths, "test-months", 0, "test window in months, overrides config")
	runCmd.Flags().IntVar(&runStepMonths, "step-months", 0, "step between folds in months, overrides config")
}

func Run(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runPricerMode != "" && !utils.ContainsString([]string{"terminal", "path"}, runPricerMode) {
		log.Fatalf("Invalid pricer mode %q: must be terminal or path", runPricerMode)
	}

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}
	defer appDep.Close()

	repo := repository.NewRepository(appDep.GormDB(), appDep.log)
	services := service.NewService(appDep.cfg, appDep.log, repo, appDep.cache)

	req := dto.RunRequest{
		DatasetSource: runDatasetSource,
		PricerMode:    runPricerMode,
	}
	if runTrainMonths > 0 {
		req.TrainMonths = utils.ToPointer(runTrainMonths)
	}
	if runTestMonths > 0 {
		req.TestMonths = utils.ToPointer(runTestMonths)
	}
	if runStepMonths > 0 {
		req.StepMonths = utils.ToPointer(runStepMonths)
	}

	report, err := services.WalkForwardService.Run(ctx, req)
	if err != nil {
		appDep.log.Fatal("Run failed", logger.ErrorField(err))
	}

	summary, err := json.MarshalIndent(report.Thresholds, "", "  ")
	if err == nil {
		fmt.Println(string(summary))
	}
	if report.FoldsTotal == 0 {
		fmt.Println("no folds produced: dataset history shorter than one train+test window")
	}
	if report.FoldsSkipped > 0 {
		fmt.Printf("skipped %d of %d folds:\n", report.FoldsSkipped, report.FoldsTotal)
		for _, sk := range report.Skipped {
			fmt.Printf("  fold %d: %s\n", sk.FoldID, sk.Reason)
		}
	}
}
