package reporting

import (
	"context"
	"sort"
	"time"

	"perp-strategy-lab/internal/domain"
	"perp-strategy-lab/internal/storage"
)

// Generator produces reports from the results collection.
type Generator struct {
	performanceStore storage.PerformanceStore
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(performanceStore storage.PerformanceStore) *Generator {
	return &Generator{
		performanceStore: performanceStore,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate assembles a report from all stored performance records.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	records, err := g.performanceStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var results, portfolio []ResultRow
	symbolSet := make(map[string]struct{})
	strategySet := make(map[string]struct{})
	var firstEntry, lastExit int64

	for _, rec := range records {
		strategySet[rec.StrategyID] = struct{}{}
		if firstEntry == 0 || rec.FirstEntryTime < firstEntry {
			firstEntry = rec.FirstEntryTime
		}
		if rec.LastExitTime > lastExit {
			lastExit = rec.LastExitTime
		}

		row := rowFromRecord(rec)
		if rec.Symbol == domain.PortfolioSymbol {
			portfolio = append(portfolio, row)
			continue
		}
		symbolSet[rec.Symbol] = struct{}{}
		results = append(results, row)
	}

	sortResultRows(results)
	sortResultRows(portfolio)

	return &Report{
		GeneratedAt:    g.now(),
		SymbolCount:    len(symbolSet),
		StrategyCount:  len(strategySet),
		RecordCount:    len(records),
		FirstEntryTime: firstEntry,
		LastExitTime:   lastExit,
		Results:        results,
		Portfolio:      portfolio,
	}, nil
}

// RowsFromRecords converts performance records to result rows in input
// order, without ranking.
func RowsFromRecords(records []*domain.PerformanceRecord) []ResultRow {
	rows := make([]ResultRow, len(records))
	for i, rec := range records {
		rows[i] = rowFromRecord(rec)
	}
	return rows
}

func rowFromRecord(rec *domain.PerformanceRecord) ResultRow {
	return ResultRow{
		Symbol:            rec.Symbol,
		Strategy:          rec.StrategyID,
		PrepareInterval:   rec.PrepareInterval.String(),
		HoldingInterval:   rec.HoldingInterval.String(),
		FirstEntryTime:    rec.FirstEntryTime,
		LastExitTime:      rec.LastExitTime,
		MaxDrawdown:       rec.MaxDrawdown,
		Return:            rec.CumulativeReturn,
		StandardDeviation: rec.StandardDeviation,
		TBillSharpe:       rec.TBillSharpe,
		SP500Sharpe:       rec.SP500Sharpe,
		CryptoSharpe:      rec.CryptoSharpe,
	}
}

// sortResultRows orders rows by crypto-market ratio descending, with
// (symbol, strategy, prepare, holding) as a deterministic tie-break.
func sortResultRows(rows []ResultRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CryptoSharpe != rows[j].CryptoSharpe {
			return rows[i].CryptoSharpe > rows[j].CryptoSharpe
		}
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		if rows[i].Strategy != rows[j].Strategy {
			return rows[i].Strategy < rows[j].Strategy
		}
		if rows[i].PrepareInterval != rows[j].PrepareInterval {
			return rows[i].PrepareInterval < rows[j].PrepareInterval
		}
		return rows[i].HoldingInterval < rows[j].HoldingInterval
	})
}
