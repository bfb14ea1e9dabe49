package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"nifty-walkforward/config"
	"nifty-walkforward/pkg/httpclient"
)

const (
	colTimestamp = "timestamp"
	colClose     = "close"
	colLabel     = "label"
)

// Load reads the input table described by cfg. Sources starting with
// http:// or https:// are fetched with the resty client; anything else is a
// local path. The returned table is sorted by timestamp and validated
// against the canonical schema.
func Load(ctx context.Context, cfg config.Dataset, client *httpclient.Client) (*Table, error) {
	var r io.Reader

	if strings.HasPrefix(cfg.Source, "http://") || strings.HasPrefix(cfg.Source, "https://") {
		body, err := client.GetBytes(ctx, cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch dataset %s: %w", cfg.Source, err)
		}
		r = bytes.NewReader(body)
	} else {
		f, err := os.Open(cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset %s: %w", cfg.Source, err)
		}
		defer f.Close()
		r = bufio.NewReaderSize(f, 1<<20)
	}

	return Parse(r, cfg)
}

// Parse reads a CSV table from r. The header must contain the canonical
// column names: timestamp, close, label, future_close_{N}m for the
// configured horizon, and every configured feature. There is no column
// alias guessing; a missing column fails fast with ErrSchema.
func Parse(r io.Reader, cfg config.Dataset) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}

	futureCol := FutureCloseColumn(cfg.HorizonMinutes)
	required := append([]string{colTimestamp, colClose, colLabel, futureCol}, cfg.Features...)
	for _, name := range required {
		if _, ok := colIdx[name]; !ok {
			return nil, fmt.Errorf("%w: column %q not found", ErrSchema, name)
		}
	}

	layout := cfg.TimestampLayout
	if layout == "" {
		layout = "2006-01-02 15:04:05"
	}

	t := &Table{
		Horizon:     cfg.HorizonMinutes,
		Features:    make([][]float64, len(cfg.Features)),
		FeatureName: append([]string(nil), cfg.Features...),
	}

	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset row %d: %w", row, err)
		}

		ts, err := time.Parse(layout, rec[colIdx[colTimestamp]])
		if err != nil {
			return nil, fmt.Errorf("bad timestamp at row %d: %w", row, err)
		}

		t.Timestamps = append(t.Timestamps, ts)
		t.Close = append(t.Close, parseCell(rec[colIdx[colClose]]))
		t.FutureClose = append(t.FutureClose, parseCell(rec[colIdx[futureCol]]))
		t.Label = append(t.Label, parseCell(rec[colIdx[colLabel]]))
		for k, feat := range cfg.Features {
			t.Features[k] = append(t.Features[k], parseCell(rec[colIdx[feat]]))
		}
		row++
	}

	sortByTimestamp(t)

	if err := t.finishLoad(); err != nil {
		return nil, err
	}
	return t, nil
}

// FutureCloseColumn returns the canonical forward-close column name for a
// horizon in minutes, e.g. future_close_15m.
func FutureCloseColumn(horizonMinutes int) string {
	return fmt.Sprintf("future_close_%dm", horizonMinutes)
}

// parseCell converts a CSV cell to float64; blanks and unparseable values
// become NaN and are handled by the row-validity predicate.
func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func sortByTimestamp(t *Table) {
	n := t.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.Timestamps[order[a]].Before(t.Timestamps[order[b]])
	})

	reorderTime(t.Timestamps, order)
	reorderFloat(t.Close, order)
	reorderFloat(t.FutureClose, order)
	reorderFloat(t.Label, order)
	for k := range t.Features {
		reorderFloat(t.Features[k], order)
	}
}

func reorderFloat(col []float64, order []int) {
	out := make([]float64, len(col))
	for i, j := range order {
		out[i] = col[j]
	}
	copy(col, out)
}

func reorderTime(col []time.Time, order []int) {
	out := make([]time.Time, len(col))
	for i, j := range order {
		out[i] = col[j]
	}
	copy(col, out)
}
