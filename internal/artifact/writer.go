package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"nifty-walkforward/internal/dto"
)

// Writer persists run artifacts as flat CSV tables under one directory:
// folds.csv, predictions.csv, thresholds.csv, calibration.csv.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteAll writes every artifact for a run. An empty directory disables
// artifact writing.
func (w *Writer) WriteAll(report *dto.RunReport) error {
	if w.dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", w.dir, err)
	}

	if err := w.writeFolds(report); err != nil {
		return err
	}
	if err := w.writePredictions(report); err != nil {
		return err
	}
	if err := w.writeThresholds(report); err != nil {
		return err
	}
	return w.writeCalibration(report)
}

func (w *Writer) writeFolds(report *dto.RunReport) error {
	return w.writeCSV("folds.csv", foldHeader, func(cw *csv.Writer) error {
		for _, f := range report.Folds {
			row := []string{
				strconv.Itoa(f.FoldID),
				f.TrainFrom.Format(time.RFC3339),
				f.TrainTo.Format(time.RFC3339),
				f.TestFrom.Format(time.RFC3339),
				f.TestTo.Format(time.RFC3339),
				strconv.Itoa(f.TrainRange.Start),
				strconv.Itoa(f.TrainRange.End),
				strconv.Itoa(f.TestRange.Start),
				strconv.Itoa(f.TestRange.End),
				strconv.FormatBool(f.Skipped),
				f.SkipReason,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Writer) writePredictions(report *dto.RunReport) error {
	header := []string{"timestamp", "fold_id", "label", "probability"}
	return w.writeCSV("predictions.csv", header, func(cw *csv.Writer) error {
		for _, p := range report.Predictions {
			row := []string{
				p.Timestamp.Format(time.RFC3339),
				strconv.Itoa(p.FoldID),
				strconv.Itoa(p.Label),
				strconv.FormatFloat(p.Probability, 'f', 6, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Writer) writeThresholds(report *dto.RunReport) error {
	header := []string{"threshold", "trades", "wins", "precision", "avg_pnl", "total_pnl", "trades_per_day"}
	return w.writeCSV("thresholds.csv", header, func(cw *csv.Writer) error {
		for _, t := range report.Thresholds {
			row := []string{
				strconv.FormatFloat(t.Threshold, 'f', 2, 64),
				strconv.Itoa(t.Trades),
				strconv.Itoa(t.Wins),
				strconv.FormatFloat(t.Precision, 'f', 4, 64),
				strconv.FormatFloat(t.AvgPnL, 'f', 2, 64),
				strconv.FormatFloat(t.TotalPnL, 'f', 2, 64),
				strconv.FormatFloat(t.TradesPerDay, 'f', 4, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Writer) writeCalibration(report *dto.RunReport) error {
	header := []string{"bin_low", "bin_high", "count", "mean_predicted", "empirical_rate", "avg_forward_return"}
	return w.writeCSV("calibration.csv", header, func(cw *csv.Writer) error {
		for _, b := range report.Calibration {
			row := []string{
				strconv.FormatFloat(b.Low, 'f', 2, 64),
				strconv.FormatFloat(b.High, 'f', 2, 64),
				strconv.Itoa(b.Count),
				strconv.FormatFloat(b.MeanPredicted, 'f', 4, 64),
				strconv.FormatFloat(b.EmpiricalRate, 'f', 4, 64),
				strconv.FormatFloat(b.AvgForwardReturn, 'f', 6, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *Writer) writeCSV(name string, header []string, body func(*csv.Writer) error) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := body(cw); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
