package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage/memory"
)

func setupTestStore(t *testing.T) *memory.PerformanceStore {
	t.Helper()
	ctx := context.Background()
	store := memory.NewPerformanceStore()

	records := []*domain.PerformanceRecord{
		{
			Symbol:          "BTCUSDT",
			StrategyID:      "BREAKOUT_2.0",
			PrepareInterval: domain.Interval1h,
			HoldingInterval: domain.Interval4h,
			FirstEntryTime:  1_600_000_000_000,
			LastExitTime:    1_600_100_000_000,
			MaxDrawdown:     -0.10, CumulativeReturn: 0.25, StandardDeviation: 0.05,
			TBillSharpe: 4.8, SP500Sharpe: 4.5, CryptoSharpe: 4.0,
		},
		{
			Symbol:          "ETHUSDT",
			StrategyID:      "MOMENTUM",
			PrepareInterval: domain.Interval1h,
			HoldingInterval: domain.Interval1h,
			FirstEntryTime:  1_599_000_000_000,
			LastExitTime:    1_600_200_000_000,
			MaxDrawdown:     -0.20, CumulativeReturn: 0.40, StandardDeviation: 0.04,
			TBillSharpe: 9.8, SP500Sharpe: 9.5, CryptoSharpe: 9.0,
		},
		{
			Symbol:          domain.PortfolioSymbol,
			StrategyID:      "MOMENTUM",
			PrepareInterval: domain.Interval1h,
			HoldingInterval: domain.Interval1h,
			FirstEntryTime:  1_599_000_000_000,
			LastExitTime:    1_600_200_000_000,
			MaxDrawdown:     -0.15, CumulativeReturn: 0.30, StandardDeviation: 0.03,
			TBillSharpe: 9.9, SP500Sharpe: 9.7, CryptoSharpe: 9.5,
		},
	}
	for _, r := range records {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	return store
}

func TestGenerator_Generate(t *testing.T) {
	store := setupTestStore(t)

	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(store).WithClock(func() time.Time { return fixed })

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want %v", report.GeneratedAt, fixed)
	}
	if report.SymbolCount != 2 {
		t.Errorf("SymbolCount = %d, want 2", report.SymbolCount)
	}
	if report.StrategyCount != 2 {
		t.Errorf("StrategyCount = %d, want 2", report.StrategyCount)
	}
	if report.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", report.RecordCount)
	}
	if report.FirstEntryTime != 1_599_000_000_000 {
		t.Errorf("FirstEntryTime = %d", report.FirstEntryTime)
	}
	if report.LastExitTime != 1_600_200_000_000 {
		t.Errorf("LastExitTime = %d", report.LastExitTime)
	}

	// Symbol rows ranked by crypto-market ratio descending.
	if len(report.Results) != 2 {
		t.Fatalf("Results length = %d, want 2", len(report.Results))
	}
	if report.Results[0].Symbol != "ETHUSDT" || report.Results[1].Symbol != "BTCUSDT" {
		t.Errorf("Results order = %s, %s; want ETHUSDT, BTCUSDT",
			report.Results[0].Symbol, report.Results[1].Symbol)
	}

	// Portfolio rows kept separate.
	if len(report.Portfolio) != 1 {
		t.Fatalf("Portfolio length = %d, want 1", len(report.Portfolio))
	}
	if report.Portfolio[0].Symbol != domain.PortfolioSymbol {
		t.Errorf("Portfolio symbol = %s", report.Portfolio[0].Symbol)
	}
	if report.Portfolio[0].PrepareInterval != "60" {
		t.Errorf("PrepareInterval = %s, want 60", report.Portfolio[0].PrepareInterval)
	}
}

func TestGenerator_Generate_Empty(t *testing.T) {
	gen := NewGenerator(memory.NewPerformanceStore())

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if report.RecordCount != 0 || len(report.Results) != 0 || len(report.Portfolio) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestRenderCSV(t *testing.T) {
	rows := []ResultRow{
		{
			Symbol: "BTCUSDT", Strategy: "BREAKOUT_2.0",
			PrepareInterval: "60", HoldingInterval: "240",
			FirstEntryTime: 1000, LastExitTime: 2000,
			MaxDrawdown: -0.1, Return: 0.25, StandardDeviation: 0.05,
			TBillSharpe: 4.8, SP500Sharpe: 4.5, CryptoSharpe: 4.0,
		},
	}

	out := RenderCSV(rows)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	wantHeader := "symbol,strategy,prepare_interval,holding_interval," +
		"first_entry_time,last_exit_time,max_drawdown,return,standard_deviation," +
		"us_30d_tbill_sharpe,sp500_sharpe,total_crypto_sharpe"
	if lines[0] != wantHeader {
		t.Errorf("header = %q", lines[0])
	}
	wantRow := "BTCUSDT,BREAKOUT_2.0,60,240,1000,2000,-0.100000,0.250000,0.050000,4.800000,4.500000,4.000000"
	if lines[1] != wantRow {
		t.Errorf("row = %q, want %q", lines[1], wantRow)
	}
}

func TestAppendCSV_HeaderOnlyOnCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "returns.csv")
	row := ResultRow{Symbol: "BTCUSDT", Strategy: "MOMENTUM", PrepareInterval: "60", HoldingInterval: "60"}

	if err := AppendCSV(path, []ResultRow{row}); err != nil {
		t.Fatalf("first AppendCSV failed: %v", err)
	}
	if err := AppendCSV(path, []ResultRow{row}); err != nil {
		t.Fatalf("second AppendCSV failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	content := string(data)
	if got := strings.Count(content, "symbol,strategy"); got != 1 {
		t.Errorf("header written %d times, want 1", got)
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 lines (header + 2 rows), got %d", len(lines))
	}
}

func TestRenderMarkdown(t *testing.T) {
	store := setupTestStore(t)
	gen := NewGenerator(store).WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Backtest Report",
		"Generated: 2024-06-01T12:00:00Z",
		"## Portfolio Results",
		"## Top Strategies by Crypto-Market Ratio",
		"| portfolio | MOMENTUM |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Ranked order: ETHUSDT (9.0) above BTCUSDT (4.0).
	eth := strings.Index(md, "| ETHUSDT |")
	btc := strings.Index(md, "| BTCUSDT |")
	if eth == -1 || btc == -1 || eth > btc {
		t.Errorf("expected ETHUSDT row before BTCUSDT row (eth=%d btc=%d)", eth, btc)
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	report := &Report{GeneratedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	md := RenderMarkdown(report)
	if !strings.Contains(md, "No portfolio records.") || !strings.Contains(md, "No results.") {
		t.Errorf("empty-report placeholders missing:\n%s", md)
	}
}
