package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"perp-strategy-lab/internal/domain"
)

// LoadBenchmarkCSV reads a benchmark series from a CSV file with a
// header row and columns time,open[,close]. Time is in seconds. Series
// without a close column (rate series like the T-bill) get Close 0.
func LoadBenchmarkCSV(path, name string) ([]domain.BenchmarkPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open benchmark file: %w", err)
	}
	defer f.Close()

	points, err := ReadBenchmarkCSV(f, name)
	if err != nil {
		return nil, fmt.Errorf("read benchmark file %s: %w", path, err)
	}
	return points, nil
}

// ReadBenchmarkCSV parses benchmark CSV content.
func ReadBenchmarkCSV(r io.Reader, name string) ([]domain.BenchmarkPoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 || header[0] != "time" || header[1] != "open" {
		return nil, fmt.Errorf("unexpected header %v, want time,open[,close]", header)
	}
	hasClose := len(header) > 2 && header[2] == "close"

	var points []domain.BenchmarkPoint
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected at least 2 fields, got %d", len(points)+2, len(row))
		}

		t, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: time: %w", len(points)+2, err)
		}
		open, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: open: %w", len(points)+2, err)
		}

		p := domain.BenchmarkPoint{Name: name, Time: t, Open: open}
		if hasClose && len(row) > 2 {
			p.Close, err = strconv.ParseFloat(row[2], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: close: %w", len(points)+2, err)
			}
		}
		points = append(points, p)
	}
	return points, nil
}
