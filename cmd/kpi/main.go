// Command kpi computes the marketing KPI payload for local files and prints
// it as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AngelCh415/mkt-kpi/internal/ingest"
	"github.com/AngelCh415/mkt-kpi/internal/metrics"
	"github.com/AngelCh415/mkt-kpi/internal/models"
	"github.com/AngelCh415/mkt-kpi/internal/normalize"
	"github.com/AngelCh415/mkt-kpi/internal/pipeline"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kpi", flag.ContinueOnError)
	fs.SetOutput(stderr)
	eventsPath := fs.String("events", "", "events CSV or XLSX file (required)")
	costsPath := fs.String("costs", "", "costs CSV or XLSX file")
	topN := fs.Int("top", metrics.DefaultTopN, "number of top and bottom entries")
	maxDiscard := fs.Float64("max-discard", normalize.DefaultMaxDiscardRatio, "largest tolerated share of discarded rows")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *eventsPath == "" {
		fmt.Fprintln(stderr, "kpi: -events is required")
		fs.Usage()
		return 2
	}
	if err := (normalize.Options{MaxDiscardRatio: *maxDiscard}).Validate(); err != nil {
		fmt.Fprintf(stderr, "kpi: -max-discard: %v\n", err)
		return 2
	}

	lvl := slog.LevelWarn
	if *verbose {
		lvl = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: lvl}))
	engine := pipeline.NewEngine(pipeline.Options{MaxDiscardRatio: *maxDiscard}, log, nil)

	ev, err := loadFile(*eventsPath, func(r io.Reader, f ingest.Format) (*models.EventDataset, error) {
		return engine.LoadEvents(ctx, r, f)
	})
	if err != nil {
		return report(stdout, stderr, err)
	}
	var costs *models.CostDataset
	if *costsPath != "" {
		costs, err = loadFile(*costsPath, func(r io.Reader, f ingest.Format) (*models.CostDataset, error) {
			return engine.LoadCosts(ctx, r, f)
		})
		if err != nil {
			return report(stdout, stderr, err)
		}
	}

	res, err := metrics.NewService(*topN, log).Compute(ctx, ev, costs)
	if err != nil {
		return report(stdout, stderr, err)
	}
	return encode(stdout, res, 0)
}

func loadFile[T any](path string, load func(io.Reader, ingest.Format) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return load(f, ingest.FormatFromName(path))
}

// report prints a pipeline error report on stdout, or a plain message on
// stderr for anything else.
func report(stdout, stderr io.Writer, err error) int {
	var rep models.Reporter
	if errors.As(err, &rep) {
		return encode(stdout, rep.Report(), 1)
	}
	fmt.Fprintf(stderr, "kpi: %v\n", err)
	return 1
}

func encode(w io.Writer, v any, code int) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return 1
	}
	return code
}
