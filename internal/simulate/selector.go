package simulate

import (
	"time"

	"nifty-walkforward/internal/trainer"
)

// Signal is one row whose predicted probability cleared a threshold. It is
// a view over the prediction table joined with price data, not a stored
// entity.
type Signal struct {
	RowIndex    int
	FoldID      int
	Timestamp   time.Time
	Probability float64
	Label       int
}

// Select returns the signals at one threshold. The comparison is inclusive:
// a probability exactly equal to the threshold is selected. An empty result
// is a valid outcome, not an error; the sweep still reports a row for it.
func Select(preds []trainer.Prediction, threshold float64) []Signal {
	var out []Signal
	for _, p := range preds {
		if p.Probability >= threshold {
			out = append(out, Signal{
				RowIndex:    p.RowIndex,
				FoldID:      p.FoldID,
				Timestamp:   p.Timestamp,
				Probability: p.Probability,
				Label:       p.Label,
			})
		}
	}
	return out
}

// Thresholds expands a [start, end] sweep with a fixed step, inclusive of
// the end bound up to float tolerance.
func Thresholds(start, end, step float64) []float64 {
	var out []float64
	for t := start; t <= end+step/1e6; t += step {
		out = append(out, t)
	}
	return out
}
