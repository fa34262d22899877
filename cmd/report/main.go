package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"perp-strategy-lab/internal/reporting"
	"perp-strategy-lab/internal/storage"
	"perp-strategy-lab/internal/storage/memory"
	pgstore "perp-strategy-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (produces an empty report)")
	flag.Parse()

	ctx := context.Background()

	// Validate flags
	if !*useMemory && *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required when not using --use-memory")
		os.Exit(1)
	}

	// Create store
	var performanceStore storage.PerformanceStore = memory.NewPerformanceStore()
	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
			os.Exit(1)
		}
		defer pool.Close()

		performanceStore = pgstore.NewPerformanceStore(pool)
	}

	// Generate report
	gen := reporting.NewGenerator(performanceStore)
	report, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	// Write output files
	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	csvPath := filepath.Join(*outputDir, "returns.csv")
	allRows := append(append([]reporting.ResultRow{}, report.Results...), report.Portfolio...)
	if err := reporting.AppendCSV(csvPath, allRows); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(*outputDir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing Markdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Report generated successfully:")
	fmt.Printf("  - %s (%d rows appended)\n", csvPath, len(allRows))
	fmt.Printf("  - %s\n", mdPath)
}
