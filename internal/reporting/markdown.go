package reporting

import (
	"fmt"
	"strings"
	"time"
)

// topResultLimit caps the per-symbol table in the Markdown summary. The
// full result set goes to CSV; the Markdown view is for skimming.
const topResultLimit = 25

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbols: %d | Strategies: %d | Records: %d\n\n",
		r.SymbolCount, r.StrategyCount, r.RecordCount))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Records | %d |\n", r.RecordCount))
	sb.WriteString(fmt.Sprintf("| First Entry (ms) | %d |\n", r.FirstEntryTime))
	sb.WriteString(fmt.Sprintf("| Last Exit (ms) | %d |\n", r.LastExitTime))
	sb.WriteString("\n")

	// Portfolio Results
	sb.WriteString("## Portfolio Results\n\n")
	if len(r.Portfolio) > 0 {
		writeResultTable(&sb, r.Portfolio)
	} else {
		sb.WriteString("No portfolio records.\n\n")
	}

	// Top Strategies
	sb.WriteString("## Top Strategies by Crypto-Market Ratio\n\n")
	if len(r.Results) > 0 {
		rows := r.Results
		if len(rows) > topResultLimit {
			rows = rows[:topResultLimit]
		}
		writeResultTable(&sb, rows)
	} else {
		sb.WriteString("No results.\n\n")
	}

	return sb.String()
}

func writeResultTable(sb *strings.Builder, rows []ResultRow) {
	sb.WriteString("| Symbol | Strategy | Prepare | Holding | Return | Stddev | MaxDD | TBill | SP500 | Crypto |\n")
	sb.WriteString("|--------|----------|---------|---------|--------|--------|-------|-------|-------|--------|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			row.Symbol, row.Strategy, row.PrepareInterval, row.HoldingInterval,
			row.Return, row.StandardDeviation, row.MaxDrawdown,
			row.TBillSharpe, row.SP500Sharpe, row.CryptoSharpe))
	}
	sb.WriteString("\n")
}
