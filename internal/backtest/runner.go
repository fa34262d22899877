// Package backtest runs strategy combinations end to end:
// signal generation → alignment → conflict resolution → P&L → storage.
package backtest

import (
	"context"
	"errors"
	"fmt"

	"perp-strategy-lab/internal/align"
	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/pnl"
	"perp-strategy-lab/internal/signal"
	"perp-strategy-lab/internal/storage"
)

// Runner executes a single (strategy, prepare_interval, holding_interval)
// combination against stored candles and persists the resulting trades.
type Runner struct {
	candles storage.CandleStore
	trades  storage.TradeStore

	// engine prices per-symbol (breakout) trades under the full fee
	// model. panelEngine prices cross-sectional (momentum) trades,
	// which pay trading fees but no funding decay.
	engine      *pnl.Engine
	panelEngine *pnl.Engine
}

func NewRunner(candles storage.CandleStore, trades storage.TradeStore, fees domain.FeeConfig) *Runner {
	return &Runner{
		candles:     candles,
		trades:      trades,
		engine:      pnl.NewEngine(fees),
		panelEngine: pnl.NewEngine(fees.WithoutFunding()),
	}
}

// Run simulates one combination and stores its trades. Trades whose
// trade_id already exists are skipped, so re-runs are idempotent. The
// returned slice holds only the newly stored trades.
func (r *Runner) Run(ctx context.Context, cfg domain.StrategyConfig) ([]*domain.Trade, error) {
	gen, err := signal.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	var trades []*domain.Trade
	switch cfg.StrategyType {
	case domain.StrategyTypeMomentum:
		trades, err = r.runPanel(ctx, gen, cfg)
	default:
		trades, err = r.runPerSymbol(ctx, gen, cfg)
	}
	if err != nil {
		return nil, err
	}

	stored := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if err := r.trades.Insert(ctx, t); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return nil, fmt.Errorf("store trade %s: %w", t.TradeID, err)
		}
		stored = append(stored, t)
	}
	return stored, nil
}

// runPerSymbol handles strategies that read one symbol's series at a
// time (breakout). Symbols missing formation or holding data are
// skipped, not failed.
func (r *Runner) runPerSymbol(ctx context.Context, gen signal.Generator, cfg domain.StrategyConfig) ([]*domain.Trade, error) {
	symbols, err := r.candles.Symbols(ctx, cfg.PrepareInterval)
	if err != nil {
		return nil, fmt.Errorf("list symbols at %s: %w", cfg.PrepareInterval, err)
	}

	var all []*domain.Trade
	for _, sym := range symbols {
		formation, err := r.candles.GetSeries(ctx, sym, cfg.PrepareInterval)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get formation series %s/%s: %w", sym, cfg.PrepareInterval, err)
		}
		holding, err := r.candles.GetSeries(ctx, sym, cfg.HoldingInterval)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get holding series %s/%s: %w", sym, cfg.HoldingInterval, err)
		}

		candidates := align.Align(gen.Generate(formation), holding, cfg.PrepareInterval)
		candidates = align.Resolve(candidates)
		all = append(all, r.engine.EvaluateAll(candidates, gen.ID(), cfg.PrepareInterval, cfg.HoldingInterval)...)
	}
	return all, nil
}

// runPanel handles strategies that read the whole cross-section at once
// (momentum). Conflict resolution runs across symbols, so at most one
// trade opens per entry time in the whole panel.
func (r *Runner) runPanel(ctx context.Context, gen signal.Generator, cfg domain.StrategyConfig) ([]*domain.Trade, error) {
	panel, err := r.candles.GetPanel(ctx, cfg.PrepareInterval)
	if err != nil {
		return nil, fmt.Errorf("get panel at %s: %w", cfg.PrepareInterval, err)
	}
	signals := gen.Generate(panel)
	if len(signals) == 0 {
		return nil, nil
	}

	// Group signals per symbol, keeping each symbol's signals in order.
	bySymbol := make(map[string][]domain.Signal)
	var order []string
	for _, s := range signals {
		if _, ok := bySymbol[s.Symbol]; !ok {
			order = append(order, s.Symbol)
		}
		bySymbol[s.Symbol] = append(bySymbol[s.Symbol], s)
	}

	var candidates []align.Candidate
	for _, sym := range order {
		holding, err := r.candles.GetSeries(ctx, sym, cfg.HoldingInterval)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get holding series %s/%s: %w", sym, cfg.HoldingInterval, err)
		}
		candidates = append(candidates, align.Align(bySymbol[sym], holding, cfg.PrepareInterval)...)
	}

	align.SortCandidates(candidates)
	candidates = align.Resolve(candidates)
	return r.panelEngine.EvaluateAll(candidates, gen.ID(), cfg.PrepareInterval, cfg.HoldingInterval), nil
}
