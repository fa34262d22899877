// Package pnl computes fee-adjusted trade returns and drawdowns with
// liquidation clamping.
package pnl

import (
	"math"
	"time"

	"perp-strategy-lab/internal/align"
	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/idhash"
)

// Engine turns resolved candidates into trades under a fee model. The
// fee constants are configuration, not hidden globals, so scenarios can
// vary them.
type Engine struct {
	fees domain.FeeConfig
}

// NewEngine creates a P&L engine with the given fee model.
func NewEngine(fees domain.FeeConfig) *Engine {
	return &Engine{fees: fees}
}

// Evaluate computes the trade for one resolved candidate. Returns false
// when the candidate lacks required fields; such rows are dropped, not
// defaulted.
func (e *Engine) Evaluate(c align.Candidate, strategyID string, prepare, holding domain.Interval) (*domain.Trade, bool) {
	open, high, low, close := c.Entry.Open, c.Entry.High, c.Entry.Low, c.Entry.Close
	if !validPrices(open, high, low, close) || c.ExitTime <= c.Entry.StartTime {
		return nil, false
	}

	side := c.Signal.Side
	ft := e.fees.TradingFee

	var maxDrawdown, ret float64
	switch side {
	case domain.SideLong:
		maxDrawdown = low/open - 1
		ret = (close*(1-ft))/(open*(1+ft)) - 1
	case domain.SideShort:
		maxDrawdown = 1 - high/open
		ret = 1 - (close*(1+ft))/(open*(1-ft))
	default:
		return nil, false
	}

	// Funding decay: the position pays the funding rate once per funding
	// period held, applied as a multiplicative drag on the fee-adjusted
	// return.
	if e.fees.FundingFee > 0 && e.fees.FundingPeriod > 0 {
		held := time.Duration(c.ExitTime-c.Entry.StartTime) * time.Millisecond
		ret *= 1 - e.fees.FundingFee*(held.Hours()/e.fees.FundingPeriod.Hours())
	}

	// Liquidation clamps, in this order. Losing the full position
	// intraday liquidates it even if price recovers by the close, and
	// the balance can never go negative.
	if maxDrawdown < -1 {
		maxDrawdown = -1
	}
	if maxDrawdown == -1 {
		ret = -1
	}
	if ret < -1 {
		ret = -1
	}

	return &domain.Trade{
		TradeID:         idhash.ComputeTradeID(c.Entry.Symbol, strategyID, prepare, holding, c.Entry.StartTime, side),
		Symbol:          c.Entry.Symbol,
		StrategyID:      strategyID,
		PrepareInterval: prepare,
		HoldingInterval: holding,
		EntryTime:       c.Entry.StartTime,
		EntryPrice:      open,
		ExitTime:        c.ExitTime,
		ExitPrice:       close,
		Side:            side,
		MaxDrawdown:     maxDrawdown,
		Return:          ret,
	}, true
}

// EvaluateAll evaluates candidates in order, dropping invalid rows.
func (e *Engine) EvaluateAll(candidates []align.Candidate, strategyID string, prepare, holding domain.Interval) []*domain.Trade {
	var trades []*domain.Trade
	for _, c := range candidates {
		if t, ok := e.Evaluate(c, strategyID, prepare, holding); ok {
			trades = append(trades, t)
		}
	}
	return trades
}

func validPrices(prices ...float64) bool {
	for _, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}
