package fold

import (
	"errors"
	"fmt"
	"time"

	"nifty-walkforward/pkg/utils"
)

// ErrConfiguration indicates invalid window parameters. It is fatal and
// raised before any fold is built.
var ErrConfiguration = errors.New("invalid fold configuration")

// Config holds the calendar window parameters for walk-forward splitting.
// All three are whole calendar months and must be positive.
type Config struct {
	TrainMonths int
	TestMonths  int
	StepMonths  int
}

// Range is a half-open interval [Start, End) of row indices into the
// sorted timestamp column.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

func (r Range) Empty() bool {
	return r.Len() == 0
}

// Fold is one walk-forward train/test split. Folds are immutable once
// generated; the trainer only reads them.
type Fold struct {
	ID int

	TrainFrom time.Time
	TrainTo   time.Time
	TestFrom  time.Time
	TestTo    time.Time

	Train Range
	Test  Range
}

// TestDays returns the calendar days spanned by the fold's test window.
func (f Fold) TestDays() float64 {
	return utils.CalendarDays(f.TestFrom, f.TestTo)
}

// Build partitions a sorted timestamp column into walk-forward folds.
//
// Windows step by calendar months from the first-of-month of the earliest
// timestamp. The training window ends one sampling unit before the test
// window begins, so no training timestamp can equal or exceed a test
// timestamp in the same fold. Folds whose calendar window contains no rows
// (market holidays, gaps) are still emitted with empty ranges; rejecting
// thin folds is the trainer's job. Insufficient history yields an empty
// slice, not an error.
func Build(timestamps []time.Time, cfg Config) ([]Fold, error) {
	if cfg.TrainMonths <= 0 || cfg.TestMonths <= 0 || cfg.StepMonths <= 0 {
		return nil, fmt.Errorf("%w: train=%d test=%d step=%d months (all must be > 0)",
			ErrConfiguration, cfg.TrainMonths, cfg.TestMonths, cfg.StepMonths)
	}
	if len(timestamps) == 0 {
		return nil, nil
	}

	startMonth := utils.FirstOfMonth(timestamps[0])
	endMonth := utils.FirstOfMonth(timestamps[len(timestamps)-1])

	var folds []Fold
	testStart := utils.AddMonths(startMonth, cfg.TrainMonths)

	for !utils.AddMonths(testStart, cfg.TestMonths).After(utils.AddMonths(endMonth, 1)) {
		trainFrom := utils.AddMonths(testStart, -cfg.TrainMonths)
		trainTo := testStart.Add(-utils.SamplingUnit) // purge gap
		testTo := utils.AddMonths(testStart, cfg.TestMonths).Add(-utils.SamplingUnit)

		folds = append(folds, Fold{
			ID:        len(folds),
			TrainFrom: trainFrom,
			TrainTo:   trainTo,
			TestFrom:  testStart,
			TestTo:    testTo,
			Train:     ResolveRange(timestamps, trainFrom, trainTo),
			Test:      ResolveRange(timestamps, testStart, testTo),
		})

		testStart = utils.AddMonths(testStart, cfg.StepMonths)
	}

	return folds, nil
}

// ResolveRange maps a closed calendar window [from, to] onto a half-open
// index range using binary search: lower bound for the start, upper bound
// for the end.
func ResolveRange(timestamps []time.Time, from, to time.Time) Range {
	return Range{
		Start: lowerBound(timestamps, from),
		End:   upperBound(timestamps, to),
	}
}

// lowerBound returns the first index i where timestamps[i] >= target.
func lowerBound(timestamps []time.Time, target time.Time) int {
	lo, hi := 0, len(timestamps)
	for lo < hi {
		mid := (lo + hi) / 2
		if timestamps[mid].Before(target) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first index i where timestamps[i] > target.
func upperBound(timestamps []time.Time, target time.Time) int {
	lo, hi := 0, len(timestamps)
	for lo < hi {
		mid := (lo + hi) / 2
		if !timestamps[mid].After(target) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
