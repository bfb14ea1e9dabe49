package simulate

import (
	"time"

	"nifty-walkforward/internal/dataset"
)

// Exit reasons recorded on priced trades.
const (
	ExitHorizon    = "horizon"
	ExitTakeProfit = "take_profit"
	ExitStopLoss   = "stop_loss"
)

// Trade is one priced signal outcome. Trades are immutable; re-pricing the
// same inputs yields the identical result.
type Trade struct {
	EntryTime   time.Time `json:"entry_time"`
	EntryPrice  float64   `json:"entry_price"`
	Horizon     int       `json:"horizon_minutes"`
	FoldID      int       `json:"fold_id"`
	Probability float64   `json:"probability"`
	Label       int       `json:"label"`
	RawDelta    float64   `json:"raw_delta"`
	CappedDelta float64   `json:"capped_delta"`
	Cost        float64   `json:"cost"`
	NetPnL      float64   `json:"net_pnl"`
	ExitReason  string    `json:"exit_reason"`
}

// PricerConfig is the simplified cost and exit model. TakeProfitFrac and
// StopLossFrac are fractions of the entry price; zero disables the
// respective cap.
type PricerConfig struct {
	TakeProfitFrac float64
	StopLossFrac   float64
	SlippageFrac   float64
	Commission     float64
	LotSize        float64
}

// Pricer converts one selected signal into a simulated trade. The bool
// result is false when the row cannot be priced (missing entry or forward
// close).
type Pricer interface {
	Price(ds *dataset.Table, sig Signal) (Trade, bool)
}

// TerminalPricer prices a trade from the single realized price at the
// fixed horizon. The take-profit cap is applied first and only caps the
// upside; the stop-loss is then re-evaluated on the possibly-capped value.
//
// This model does not walk the price path between entry and the horizon: a
// trade that touches the stop intrabar and recovers past the take-profit
// by the horizon is priced as a take-profit win. PathPricer is the
// explicit alternative; this behavior here is intentional and must not be
// "fixed" in place.
type TerminalPricer struct {
	cfg PricerConfig
}

func NewTerminalPricer(cfg PricerConfig) *TerminalPricer {
	return &TerminalPricer{cfg: cfg}
}

func (p *TerminalPricer) Price(ds *dataset.Table, sig Signal) (Trade, bool) {
	if !ds.HasOutcome(sig.RowIndex) {
		return Trade{}, false
	}

	entry := ds.Close[sig.RowIndex]
	rawDelta := ds.FutureClose[sig.RowIndex] - entry

	capped := rawDelta
	reason := ExitHorizon

	if p.cfg.TakeProfitFrac > 0 {
		tpPoints := p.cfg.TakeProfitFrac * entry
		if rawDelta >= tpPoints {
			capped = tpPoints
			reason = ExitTakeProfit
		}
	}
	if p.cfg.StopLossFrac > 0 {
		slPoints := p.cfg.StopLossFrac * entry
		if capped <= -slPoints {
			capped = -slPoints
			reason = ExitStopLoss
		}
	}

	return finishTrade(ds, sig, entry, rawDelta, capped, reason, p.cfg), true
}

// PathPricer walks the per-row closes between entry and the horizon and
// exits at the first stop-loss or take-profit touch, falling back to the
// horizon close when neither triggers. It is the explicitly-named
// bar-by-bar alternative to TerminalPricer, opt-in by configuration.
type PathPricer struct {
	cfg PricerConfig
}

func NewPathPricer(cfg PricerConfig) *PathPricer {
	return &PathPricer{cfg: cfg}
}

func (p *PathPricer) Price(ds *dataset.Table, sig Signal) (Trade, bool) {
	if !ds.HasOutcome(sig.RowIndex) {
		return Trade{}, false
	}

	entry := ds.Close[sig.RowIndex]
	rawDelta := ds.FutureClose[sig.RowIndex] - entry
	horizonEnd := sig.Timestamp.Add(time.Duration(ds.Horizon) * time.Minute)

	tpPoints := p.cfg.TakeProfitFrac * entry
	slPoints := p.cfg.StopLossFrac * entry

	capped := rawDelta
	reason := ExitHorizon

	for i := sig.RowIndex + 1; i < ds.Len() && !ds.Timestamps[i].After(horizonEnd); i++ {
		delta := ds.Close[i] - entry
		if p.cfg.StopLossFrac > 0 && delta <= -slPoints {
			capped = -slPoints
			reason = ExitStopLoss
			break
		}
		if p.cfg.TakeProfitFrac > 0 && delta >= tpPoints {
			capped = tpPoints
			reason = ExitTakeProfit
			break
		}
	}

	return finishTrade(ds, sig, entry, rawDelta, capped, reason, p.cfg), true
}

func finishTrade(ds *dataset.Table, sig Signal, entry, rawDelta, capped float64, reason string, cfg PricerConfig) Trade {
	cost := entry*cfg.SlippageFrac + cfg.Commission
	return Trade{
		EntryTime:   sig.Timestamp,
		EntryPrice:  entry,
		Horizon:     ds.Horizon,
		FoldID:      sig.FoldID,
		Probability: sig.Probability,
		Label:       sig.Label,
		RawDelta:    rawDelta,
		CappedDelta: capped,
		Cost:        cost,
		NetPnL:      capped*cfg.LotSize - cost,
		ExitReason:  reason,
	}
}

// NewPricer returns the pricer for a configured mode; anything other than
// "path" gets the terminal model.
func NewPricer(mode string, cfg PricerConfig) Pricer {
	if mode == "path" {
		return NewPathPricer(cfg)
	}
	return NewTerminalPricer(cfg)
}
