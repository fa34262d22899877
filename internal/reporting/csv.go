package reporting

import (
	"fmt"
	"os"
	"strings"
)

const csvHeader = "symbol,strategy,prepare_interval,holding_interval," +
	"first_entry_time,last_exit_time,max_drawdown,return,standard_deviation," +
	"us_30d_tbill_sharpe,sp500_sharpe,total_crypto_sharpe\n"

// RenderCSV renders result rows as a CSV string including the header.
func RenderCSV(rows []ResultRow) string {
	var sb strings.Builder
	sb.WriteString(csvHeader)
	for _, r := range rows {
		sb.WriteString(renderCSVRow(r))
	}
	return sb.String()
}

// AppendCSV appends result rows to the file at path, creating it first if
// needed. The header is written only when the file is created, so repeated
// runs accumulate rows in one results file.
func AppendCSV(path string, rows []ResultRow) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat results file: %w", err)
	}

	var sb strings.Builder
	if info.Size() == 0 {
		sb.WriteString(csvHeader)
	}
	for _, r := range rows {
		sb.WriteString(renderCSVRow(r))
	}

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write results file: %w", err)
	}
	return nil
}

func renderCSVRow(r ResultRow) string {
	return fmt.Sprintf("%s,%s,%s,%s,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
		r.Symbol,
		r.Strategy,
		r.PrepareInterval,
		r.HoldingInterval,
		r.FirstEntryTime,
		r.LastExitTime,
		r.MaxDrawdown,
		r.Return,
		r.StandardDeviation,
		r.TBillSharpe,
		r.SP500Sharpe,
		r.CryptoSharpe,
	)
}
