package backtest

import (
	"context"
	"errors"
	"testing"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage/memory"
)

// failingPerformanceStore rejects every append.
type failingPerformanceStore struct {
	err error
}

func (s *failingPerformanceStore) Append(ctx context.Context, r *domain.PerformanceRecord) error {
	return s.err
}

func (s *failingPerformanceStore) GetAll(ctx context.Context) ([]*domain.PerformanceRecord, error) {
	return nil, nil
}

func TestCombinations_FullGrid(t *testing.T) {
	configs := Combinations()

	// Every interval pair runs momentum plus one breakout per sigma.
	perPair := 1 + len(domain.BreakoutSigmas)
	want := len(domain.Intervals) * len(domain.Intervals) * perPair
	if len(configs) != want {
		t.Fatalf("expected %d combinations, got %d", want, len(configs))
	}

	var momentum, breakout int
	for _, cfg := range configs {
		switch cfg.StrategyType {
		case domain.StrategyTypeMomentum:
			momentum++
		case domain.StrategyTypeBreakout:
			breakout++
			if cfg.Sigma == nil {
				t.Fatal("breakout combination without sigma")
			}
		default:
			t.Fatalf("unexpected strategy type %q", cfg.StrategyType)
		}
	}
	if momentum != len(domain.Intervals)*len(domain.Intervals) {
		t.Errorf("momentum combinations: got %d", momentum)
	}
	if breakout != momentum*len(domain.BreakoutSigmas) {
		t.Errorf("breakout combinations: got %d", breakout)
	}
}

func TestOrchestrator_Run_EmptyStore(t *testing.T) {
	ctx := context.Background()

	orch := New(Options{
		CandleStore:      memory.NewCandleStore(),
		TradeStore:       memory.NewTradeStore(),
		PerformanceStore: memory.NewPerformanceStore(),
		BenchmarkStore:   memory.NewBenchmarkStore(),
		Fees:             domain.DefaultFees,
		Workers:          4,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.CombinationsProcessed != len(Combinations()) {
		t.Errorf("processed: got %d, want %d", result.CombinationsProcessed, len(Combinations()))
	}
	if result.CombinationsSkipped != result.CombinationsProcessed {
		t.Errorf("expected every combination skipped, got %d of %d",
			result.CombinationsSkipped, result.CombinationsProcessed)
	}
	if result.TradesCreated != 0 {
		t.Errorf("trades: got %d", result.TradesCreated)
	}
	if result.RecordsCreated != 0 {
		t.Errorf("records: got %d", result.RecordsCreated)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors: %v", result.Errors)
	}
}

func TestOrchestrator_Run_CreatesRecords(t *testing.T) {
	ctx := context.Background()
	candleStore := memory.NewCandleStore()
	tradeStore := memory.NewTradeStore()
	recordStore := memory.NewPerformanceStore()

	// Two large moves past warm-up with differently sized follow-ups,
	// so the 1h/1h breakout combinations produce at least two trades
	// with distinct returns.
	series := breakoutSeries("BTCUSDT", 30, map[int]float64{
		12: 0.3, 13: 0.1,
		20: 0.3, 21: 0.05,
	})
	if err := candleStore.InsertBulk(ctx, series); err != nil {
		t.Fatalf("insert candles: %v", err)
	}

	var progressed int
	orch := New(Options{
		CandleStore:       candleStore,
		TradeStore:        tradeStore,
		PerformanceStore:  recordStore,
		BenchmarkStore:    memory.NewBenchmarkStore(),
		Fees:              domain.DefaultFees.WithoutFunding(),
		Workers:           4,
		OnCombinationDone: func() { progressed++ },
	})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("errors: %v", result.Errors)
	}
	if result.TradesCreated == 0 {
		t.Fatal("expected trades to be created")
	}
	if result.RecordsCreated == 0 {
		t.Fatal("expected performance records to be created")
	}
	if progressed == 0 {
		t.Error("expected progress callback invocations")
	}

	records, err := recordStore.GetAll(ctx)
	if err != nil {
		t.Fatalf("get records: %v", err)
	}

	var symbolRec, portfolioRec *domain.PerformanceRecord
	for _, r := range records {
		if r.StrategyID != "BREAKOUT_3.0" ||
			r.PrepareInterval != domain.Interval1h || r.HoldingInterval != domain.Interval1h {
			continue
		}
		switch r.Symbol {
		case "BTCUSDT":
			symbolRec = r
		case domain.PortfolioSymbol:
			portfolioRec = r
		}
	}
	if symbolRec == nil {
		t.Fatal("missing BREAKOUT_3.0 1h/1h record for BTCUSDT")
	}
	if portfolioRec == nil {
		t.Fatal("missing BREAKOUT_3.0 1h/1h portfolio record")
	}

	if symbolRec.StandardDeviation <= 0 {
		t.Errorf("stddev: got %v", symbolRec.StandardDeviation)
	}
	if symbolRec.CumulativeReturn <= 0 {
		t.Errorf("cumulative return: got %v", symbolRec.CumulativeReturn)
	}
	// No benchmark data stored, so every ratio reduces to
	// cumulative / stddev.
	want := symbolRec.CumulativeReturn / symbolRec.StandardDeviation
	if symbolRec.TBillSharpe != want || symbolRec.SP500Sharpe != want || symbolRec.CryptoSharpe != want {
		t.Errorf("ratios: got %v / %v / %v, want %v",
			symbolRec.TBillSharpe, symbolRec.SP500Sharpe, symbolRec.CryptoSharpe, want)
	}

	// A single symbol means the portfolio is that symbol's trade list.
	if portfolioRec.CumulativeReturn != symbolRec.CumulativeReturn {
		t.Errorf("portfolio cumulative: got %v, want %v",
			portfolioRec.CumulativeReturn, symbolRec.CumulativeReturn)
	}
}

func TestOrchestrator_Run_AppendFailureAborts(t *testing.T) {
	ctx := context.Background()
	candleStore := memory.NewCandleStore()

	// Enough movement that several combinations produce records, so
	// in-flight work exists when the first append fails.
	series := breakoutSeries("BTCUSDT", 30, map[int]float64{
		12: 0.3, 13: 0.1,
		20: 0.3, 21: 0.05,
	})
	if err := candleStore.InsertBulk(ctx, series); err != nil {
		t.Fatalf("insert candles: %v", err)
	}

	storeErr := errors.New("results collection unavailable")
	orch := New(Options{
		CandleStore:      candleStore,
		TradeStore:       memory.NewTradeStore(),
		PerformanceStore: &failingPerformanceStore{err: storeErr},
		BenchmarkStore:   memory.NewBenchmarkStore(),
		Fees:             domain.DefaultFees,
		Workers:          4,
	})

	// The run must surface the storage error and still let every worker
	// exit, rather than hanging on unread results.
	_, err := orch.Run(ctx)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected append error, got %v", err)
	}
}

func TestOrchestrator_Run_Rerun_AppendsRecords(t *testing.T) {
	ctx := context.Background()
	candleStore := memory.NewCandleStore()
	tradeStore := memory.NewTradeStore()
	recordStore := memory.NewPerformanceStore()

	series := breakoutSeries("BTCUSDT", 30, map[int]float64{
		12: 0.3, 13: 0.1,
		20: 0.3, 21: 0.05,
	})
	if err := candleStore.InsertBulk(ctx, series); err != nil {
		t.Fatalf("insert candles: %v", err)
	}

	orch := New(Options{
		CandleStore:      candleStore,
		TradeStore:       tradeStore,
		PerformanceStore: recordStore,
		BenchmarkStore:   memory.NewBenchmarkStore(),
		Fees:             domain.DefaultFees,
		Workers:          2,
	})

	first, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	// Trades are deduplicated by trade_id; records are append-only.
	if second.TradesCreated != 0 {
		t.Errorf("expected 0 new trades on re-run, got %d", second.TradesCreated)
	}
	if second.RecordsCreated != first.RecordsCreated {
		t.Errorf("re-run records: got %d, want %d", second.RecordsCreated, first.RecordsCreated)
	}

	records, err := recordStore.GetAll(ctx)
	if err != nil {
		t.Fatalf("get records: %v", err)
	}
	if len(records) != first.RecordsCreated+second.RecordsCreated {
		t.Errorf("total records: got %d, want %d", len(records), first.RecordsCreated+second.RecordsCreated)
	}
}
