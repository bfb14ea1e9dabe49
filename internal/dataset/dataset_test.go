package dataset

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-walkforward/config"
)

func testConfig() config.Dataset {
	return config.Dataset{
		TimestampLayout: "2006-01-02 15:04:05",
		HorizonMinutes:  15,
		Features:        []string{"rsi", "ema_gap"},
	}
}

const validCSV = `timestamp,close,label,future_close_15m,rsi,ema_gap
2024-01-02 09:15:00,100.5,1,101.2,55.1,0.4
2024-01-02 09:16:00,100.7,0,100.1,56.0,0.5
2024-01-02 09:17:00,100.9,1,102.0,57.2,0.6
`

func TestParse_CanonicalSchema(t *testing.T) {
	ds, err := Parse(strings.NewReader(validCSV), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 15, ds.Horizon)
	assert.Equal(t, []string{"rsi", "ema_gap"}, ds.FeatureName)
	assert.Equal(t, 100.5, ds.Close[0])
	assert.Equal(t, 101.2, ds.FutureClose[0])
	assert.Equal(t, 1.0, ds.Label[0])
	assert.Equal(t, 55.1, ds.Features[0][0])
	assert.Equal(t, 0.5, ds.Features[1][1])
	assert.Equal(t, time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC), ds.Timestamps[0])
}

func TestParse_MissingColumnIsSchemaError(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing close", header: "timestamp,label,future_close_15m,rsi,ema_gap"},
		{name: "missing label", header: "timestamp,close,future_close_15m,rsi,ema_gap"},
		{name: "missing future close", header: "timestamp,close,label,rsi,ema_gap"},
		{name: "missing feature", header: "timestamp,close,label,future_close_15m,rsi"},
		{name: "wrong horizon column", header: "timestamp,close,label,future_close_30m,rsi,ema_gap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.header+"\n"), testConfig())
			assert.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestParse_SortsByTimestamp(t *testing.T) {
	shuffled := `timestamp,close,label,future_close_15m,rsi,ema_gap
2024-01-02 09:17:00,102,1,103,57,0.6
2024-01-02 09:15:00,100,0,101,55,0.4
2024-01-02 09:16:00,101,1,102,56,0.5
`
	ds, err := Parse(strings.NewReader(shuffled), testConfig())
	require.NoError(t, err)

	require.Equal(t, 3, ds.Len())
	for i := 1; i < ds.Len(); i++ {
		assert.True(t, ds.Timestamps[i].After(ds.Timestamps[i-1]))
	}
	// Columns must move with their timestamps.
	assert.Equal(t, 100.0, ds.Close[0])
	assert.Equal(t, 55.0, ds.Features[0][0])
	assert.Equal(t, 102.0, ds.Close[2])
}

func TestParse_RowValidity(t *testing.T) {
	csv := `timestamp,close,label,future_close_15m,rsi,ema_gap
2024-01-02 09:15:00,100,1,101,55,0.4
2024-01-02 09:16:00,101,,102,56,0.5
2024-01-02 09:17:00,102,2,103,57,0.6
2024-01-02 09:18:00,103,0,104,,0.7
2024-01-02 09:19:00,104,1,105,59,0.8
`
	ds, err := Parse(strings.NewReader(csv), testConfig())
	require.NoError(t, err)

	assert.True(t, ds.IsValid(0))
	assert.False(t, ds.IsValid(1), "missing label")
	assert.False(t, ds.IsValid(2), "label outside {0,1}")
	assert.False(t, ds.IsValid(3), "missing feature")
	assert.True(t, ds.IsValid(4))
	assert.Equal(t, 2, ds.ValidCount(0, ds.Len()))
}

func TestParse_BlankOutcomeCells(t *testing.T) {
	csv := `timestamp,close,label,future_close_15m,rsi,ema_gap
2024-01-02 09:15:00,100,1,,55,0.4
`
	ds, err := Parse(strings.NewReader(csv), testConfig())
	require.NoError(t, err)

	assert.True(t, math.IsNaN(ds.FutureClose[0]))
	assert.False(t, ds.HasOutcome(0))
	// The row is still valid for training; only pricing needs the outcome.
	assert.True(t, ds.IsValid(0))
}

func TestParse_BadTimestamp(t *testing.T) {
	csv := `timestamp,close,label,future_close_15m,rsi,ema_gap
not-a-time,100,1,101,55,0.4
`
	_, err := Parse(strings.NewReader(csv), testConfig())
	assert.Error(t, err)
}

func TestFutureCloseColumn(t *testing.T) {
	assert.Equal(t, "future_close_15m", FutureCloseColumn(15))
	assert.Equal(t, "future_close_30m", FutureCloseColumn(30))
}
