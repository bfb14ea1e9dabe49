package dataset

import (
	"errors"
	"fmt"
	"time"

	"nifty-walkforward/pkg/utils"
)

// ErrSchema indicates the input table is missing a required column. This is
// fatal: no fold can be processed meaningfully without the canonical schema.
var ErrSchema = errors.New("dataset schema error")

// Table is the columnar, timestamp-sorted input to the pipeline. Columns are
// stored feature-major so fold slices are cheap views. A Table is read-only
// once loaded; folds share it without copying.
type Table struct {
	Timestamps  []time.Time
	Close       []float64
	FutureClose []float64 // forward close at Horizon minutes
	Horizon     int       // minutes
	Label       []float64 // 1/0, NaN when missing
	Features    [][]float64
	FeatureName []string

	valid []bool
}

func (t *Table) Len() int {
	return len(t.Timestamps)
}

// IsValid reports whether row i may enter training. A row is valid iff its
// label is a finite 0/1 and every feature value is finite. Invalid rows are
// excluded explicitly, never imputed.
func (t *Table) IsValid(i int) bool {
	return t.valid[i]
}

// HasOutcome reports whether row i can be priced: the entry close and the
// forward close at the horizon are both present.
func (t *Table) HasOutcome(i int) bool {
	return utils.IsFinite(t.Close[i]) && utils.IsFinite(t.FutureClose[i])
}

// finishLoad computes the row-validity column and checks timestamp ordering.
// Called once at the end of loading.
func (t *Table) finishLoad() error {
	for i := 1; i < len(t.Timestamps); i++ {
		if t.Timestamps[i].Before(t.Timestamps[i-1]) {
			return fmt.Errorf("timestamps not sorted at row %d: %s < %s",
				i, t.Timestamps[i], t.Timestamps[i-1])
		}
	}

	t.valid = make([]bool, t.Len())
	for i := range t.valid {
		t.valid[i] = t.rowValid(i)
	}
	return nil
}

func (t *Table) rowValid(i int) bool {
	if !utils.IsFinite(t.Label[i]) {
		return false
	}
	if t.Label[i] != 0 && t.Label[i] != 1 {
		return false
	}
	for _, col := range t.Features {
		if !utils.IsFinite(col[i]) {
			return false
		}
	}
	return true
}

// ValidCount returns the number of valid rows in the half-open range [start, end).
func (t *Table) ValidCount(start, end int) int {
	n := 0
	for i := start; i < end && i < t.Len(); i++ {
		if t.valid[i] {
			n++
		}
	}
	return n
}
