package report

import (
	"gonum.org/v1/gonum/stat"

	"nifty-walkforward/internal/dataset"
	"nifty-walkforward/internal/simulate"
	"nifty-walkforward/internal/trainer"
)

// ThresholdResult aggregates all simulated trades at one threshold. One
// result exists per swept threshold regardless of outcome: a threshold
// nothing cleared still yields a zero-count row.
type ThresholdResult struct {
	Threshold    float64 `json:"threshold"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Precision    float64 `json:"precision"`
	AvgPnL       float64 `json:"avg_pnl"`
	TotalPnL     float64 `json:"total_pnl"`
	TradesPerDay float64 `json:"trades_per_day"`
}

// Summarize rolls per-trade outcomes into one ThresholdResult. testDays is
// the total calendar days covered by the surviving folds' test windows.
// Zero trades yields precision 0, never a division error.
func Summarize(threshold float64, trades []simulate.Trade, testDays float64) ThresholdResult {
	result := ThresholdResult{Threshold: threshold, Trades: len(trades)}
	if len(trades) == 0 {
		return result
	}

	pnls := make([]float64, len(trades))
	for i, tr := range trades {
		pnls[i] = tr.NetPnL
		result.TotalPnL += tr.NetPnL
		if tr.NetPnL > 0 {
			result.Wins++
		}
	}

	result.Precision = float64(result.Wins) / float64(result.Trades)
	result.AvgPnL = stat.Mean(pnls, nil)
	if testDays > 0 {
		result.TradesPerDay = float64(result.Trades) / testDays
	}
	return result
}

// CalibrationBin compares the model's confidence against its empirical
// correctness inside one fixed probability range. Zero-member bins are
// reported empty, not dropped and not an error.
type CalibrationBin struct {
	Low              float64 `json:"low"`
	High             float64 `json:"high"`
	Count            int     `json:"count"`
	MeanPredicted    float64 `json:"mean_predicted"`
	EmpiricalRate    float64 `json:"empirical_rate"`
	AvgForwardReturn float64 `json:"avg_forward_return"`
}

// Calibration groups the out-of-sample predictions into bins equal-width in
// probability and reports, per bin, mean predicted probability versus the
// realized positive-label rate, plus the mean realized forward return for
// rows that can be priced.
func Calibration(preds []trainer.Prediction, ds *dataset.Table, bins int) []CalibrationBin {
	if bins <= 0 {
		bins = 10
	}
	width := 1.0 / float64(bins)

	out := make([]CalibrationBin, bins)
	probSums := make([]float64, bins)
	posCounts := make([]int, bins)
	retSums := make([]float64, bins)
	retCounts := make([]int, bins)

	for b := range out {
		out[b].Low = float64(b) * width
		out[b].High = float64(b+1) * width
	}

	for _, p := range preds {
		// p*bins, not p/width: 0.3/0.1 truncates to 2.999... and lands
		// edge probabilities one bin low.
		b := int(p.Probability * float64(bins))
		if b >= bins { // probability exactly 1.0 lands in the top bin
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}

		out[b].Count++
		probSums[b] += p.Probability
		if p.Label == 1 {
			posCounts[b]++
		}
		if ds != nil && ds.HasOutcome(p.RowIndex) && ds.Close[p.RowIndex] != 0 {
			retSums[b] += (ds.FutureClose[p.RowIndex] - ds.Close[p.RowIndex]) / ds.Close[p.RowIndex]
			retCounts[b]++
		}
	}

	for b := range out {
		if out[b].Count > 0 {
			out[b].MeanPredicted = probSums[b] / float64(out[b].Count)
			out[b].EmpiricalRate = float64(posCounts[b]) / float64(out[b].Count)
		}
		if retCounts[b] > 0 {
			out[b].AvgForwardReturn = retSums[b] / float64(retCounts[b])
		}
	}
	return out
}
