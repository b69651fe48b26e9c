// Command analyze runs the full analysis offline against a local CSV export,
// an archived upload in GCS, or generated sample data, and prints the
// results without starting the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path"

	"github.com/joho/godotenv"

	"github.com/dkurbatov/spendlens/internal/analysis"
	"github.com/dkurbatov/spendlens/internal/detect"
	"github.com/dkurbatov/spendlens/internal/gcsarchive"
	"github.com/dkurbatov/spendlens/internal/ingest"
	"github.com/dkurbatov/spendlens/internal/insights"
	"github.com/dkurbatov/spendlens/internal/logger"
	"github.com/dkurbatov/spendlens/internal/recurring"
	"github.com/dkurbatov/spendlens/internal/store/inmemory"
	"github.com/dkurbatov/spendlens/internal/synthetic"
)

func main() {
	_ = godotenv.Load()

	var (
		file   = flag.String("file", "", "CSV export to analyze (omit to analyze generated sample data)")
		uri    = flag.String("uri", "", "gs:// URI of an archived upload to re-analyze")
		seed   = flag.Int64("seed", 1, "seed for sample data generation")
		months = flag.Int("months", 3, "months of sample data to generate")
	)
	flag.Parse()

	log := logger.New()
	ctx := context.Background()
	st := inmemory.NewStore()

	deps := analysis.Deps{
		Log:       log,
		Store:     st,
		Processor: ingest.NewProcessor(log),
		Detector:  detect.NewService(log),
		Miner:     recurring.NewMiner(log, recurring.DefaultConfig()),
		Generator: insights.NewGenerator(log),
	}

	var state *analysis.State
	var pipeline *analysis.Pipeline

	switch {
	case *uri != "":
		data, err := gcsarchive.FetchCSV(ctx, *uri)
		if err != nil {
			log.Fatal().Err(err).Str("uri", *uri).Msg("Failed to fetch archived CSV")
		}
		log.Info().Str("uri", *uri).Int("bytes", len(data)).Msg("Fetched archived upload")
		state = &analysis.State{Filename: path.Base(*uri), CSVBytes: data}
		pipeline = analysis.NewUploadPipeline(deps)
	case *file != "":
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Failed to read CSV")
		}
		state = &analysis.State{Filename: *file, CSVBytes: data}
		pipeline = analysis.NewUploadPipeline(deps)
	default:
		session, txs := synthetic.Generate(synthetic.Options{Seed: *seed, Months: *months})
		log.Info().Int("transactions", len(txs)).Msg("Generated sample data")
		state = &analysis.State{Session: session, Transactions: txs}
		pipeline = analysis.NewSeededPipeline(deps)
	}

	if err := pipeline.Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	printReport(state)
}

func printReport(state *analysis.State) {
	fmt.Printf("\nSession %s (%d transactions)\n", state.Session.ID, state.Session.RowCount)

	fmt.Printf("\nAnomalies (%d):\n", len(state.Anomalies))
	if len(state.Anomalies) == 0 {
		fmt.Println("  none")
	}
	for _, a := range state.Anomalies {
		fmt.Printf("  [%-6s] %.0f%%  %s\n", a.Severity, a.Confidence*100, a.Explanation)
	}

	fmt.Printf("\nRecurring charges (%d):\n", len(state.Recurring))
	if len(state.Recurring) == 0 {
		fmt.Println("  none")
	}
	for _, c := range state.Recurring {
		tag := ""
		if c.IsGrayCharge {
			tag = "  <- gray charge"
		}
		fmt.Printf("  %-30s $%7.2f every %2d days x%d%s\n",
			c.DescriptionPattern, math.Abs(c.AverageAmount), c.FrequencyDays, c.OccurrenceCount, tag)
	}

	fmt.Printf("\nInsights (%d):\n", len(state.Insights))
	for _, in := range state.Insights {
		fmt.Printf("  %s: %s\n", in.Title, in.Body)
	}
	fmt.Println()
}
