package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"nifty-walkforward/internal/fold"
)

var foldHeader = []string{
	"fold_id",
	"train_from", "train_to", "test_from", "test_to",
	"train_start", "train_end", "test_start", "test_end",
	"skipped", "skip_reason",
}

// ReadFolds loads a persisted fold table. Rows may carry resolved integer
// index bounds, ISO-8601 calendar bounds, or both; when index bounds are
// absent they are resolved against timestamps with the same binary-search
// rule the builder uses. timestamps may be nil if every row carries index
// bounds.
func ReadFolds(path string, timestamps []time.Time) ([]fold.Fold, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fold table %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read fold table header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["fold_id"]; !ok {
		return nil, fmt.Errorf("fold table %s has no fold_id column", path)
	}

	var folds []fold.Fold
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		fd, err := parseFoldRow(rec, col, timestamps)
		if err != nil {
			return nil, err
		}
		folds = append(folds, fd)
	}
	return folds, nil
}

func parseFoldRow(rec []string, col map[string]int, timestamps []time.Time) (fold.Fold, error) {
	var f fold.Fold

	id, err := strconv.Atoi(cell(rec, col, "fold_id"))
	if err != nil {
		return f, fmt.Errorf("bad fold_id %q: %w", cell(rec, col, "fold_id"), err)
	}
	f.ID = id

	f.TrainFrom, _ = parseTime(cell(rec, col, "train_from"))
	f.TrainTo, _ = parseTime(cell(rec, col, "train_to"))
	f.TestFrom, _ = parseTime(cell(rec, col, "test_from"))
	f.TestTo, _ = parseTime(cell(rec, col, "test_to"))

	trainRange, trainOK := parseRange(rec, col, "train_start", "train_end")
	testRange, testOK := parseRange(rec, col, "test_start", "test_end")

	switch {
	case trainOK && testOK:
		f.Train, f.Test = trainRange, testRange
	case len(timestamps) > 0 && !f.TestFrom.IsZero():
		f.Train = fold.ResolveRange(timestamps, f.TrainFrom, f.TrainTo)
		f.Test = fold.ResolveRange(timestamps, f.TestFrom, f.TestTo)
	default:
		return f, fmt.Errorf("fold %d has neither index bounds nor resolvable timestamp bounds", id)
	}

	return f, nil
}

func parseRange(rec []string, col map[string]int, startKey, endKey string) (fold.Range, bool) {
	start, err1 := strconv.Atoi(cell(rec, col, startKey))
	end, err2 := strconv.Atoi(cell(rec, col, endKey))
	if err1 != nil || err2 != nil {
		return fold.Range{}, false
	}
	return fold.Range{Start: start, End: end}, true
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(s))
}

func cell(rec []string, col map[string]int, key string) string {
	i, ok := col[key]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
