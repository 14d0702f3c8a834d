package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/model"
)

var (
	enrichAll      bool
	enrichID       string
	enrichCompany  string
	enrichProvider string
	enrichLimit    int
	enrichWorkers  int
	enrichDryRun   bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run one enrichment pass and exit",
	Long: `Re-enriches the selected jobs once and prints a summary.

Exactly one of --all, --id, --company or --provider is required; --provider
may also narrow --company. Exit status is 1 when the job set could not be
resolved or the run was interrupted, 2 when some jobs failed.`,
	RunE: runEnrich,
}

func init() {
	f := enrichCmd.Flags()
	f.BoolVar(&enrichAll, "all", false, "enrich every stored job")
	f.StringVar(&enrichID, "id", "", "enrich a single job by id")
	f.StringVar(&enrichCompany, "company", "", "enrich all jobs of a company (case-insensitive)")
	f.StringVar(&enrichProvider, "provider", "", "enrich all jobs from a provider")
	f.IntVar(&enrichLimit, "limit", 0, "cap the number of jobs (0 = no cap)")
	f.IntVar(&enrichWorkers, "workers", 0, "concurrent jobs (default: enrich.workers from config)")
	f.BoolVar(&enrichDryRun, "dry-run", false, "compute enrichment but do not write it")
	rootCmd.AddCommand(enrichCmd)
}

func selectorFromFlags() model.Selector {
	return model.Selector{
		All:      enrichAll,
		ID:       strings.TrimSpace(enrichID),
		Company:  strings.TrimSpace(enrichCompany),
		Provider: strings.TrimSpace(enrichProvider),
		Limit:    enrichLimit,
	}
}

func runEnrich(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	sel := selectorFromFlags()
	if err := sel.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, pipelineOptions{dryRun: enrichDryRun, workers: enrichWorkers}, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	summary := p.orch.Run(ctx, sel)
	printSummary(summary)

	switch {
	case summary.Err != nil, summary.Cancelled:
		p.Close()
		os.Exit(1)
	case summary.Failed > 0:
		p.Close()
		os.Exit(2)
	}
	return nil
}

func printSummary(s model.Summary) {
	fmt.Printf("\nTask %s (%s)\n", s.TaskID, s.Selector)
	fmt.Println(strings.Repeat("─", 47))
	if s.Err != nil {
		fmt.Printf("run failed: %v\n", s.Err)
		return
	}
	fmt.Printf("%-12s %d\n", "processed", s.Processed)
	fmt.Printf("%-12s %d (%d unchanged)\n", "succeeded", s.Succeeded, s.Unchanged)
	fmt.Printf("%-12s %d\n", "failed", s.Failed)
	fmt.Printf("%-12s %s\n", "duration", s.Duration.Round(time.Millisecond))
	if s.Cancelled {
		fmt.Println("interrupted: remaining jobs were not started")
	}
	for _, e := range s.Errors {
		fmt.Printf("  ✗ %-24s %s\n", e.JobID, e.Message)
	}
}
