package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/browse"
	"github.com/amishk599/jobenrich/internal/model"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse weakly enriched jobs in an interactive TUI",
	Long:  "Pick a company, then inspect jobs whose quality is below browse.quality_threshold and re-enrich them in place.",
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Anything written to stdout while the alt screen is up garbles it.
	logger := silentLogger()
	ctx := context.Background()

	p, err := buildPipeline(ctx, cfg, pipelineOptions{}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	reenrich := func(ctx context.Context, id string) (model.Job, model.Summary, error) {
		summary := p.orch.Run(ctx, model.Selector{ID: id})
		if summary.Err != nil {
			return model.Job{}, summary, summary.Err
		}
		job, err := p.db.GetJob(ctx, id)
		return job, summary, err
	}

	for {
		jobs, err := browse.RunLoader("Loading jobs…", func(ctx context.Context) ([]model.Job, error) {
			return p.db.ListJobs(ctx, model.Selector{All: true})
		})
		if errors.Is(err, browse.ErrCancelled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs stored. Use `jobenrich import` first.")
			return nil
		}

		choices := browse.CompanyChoices(jobs)
		idx, err := browse.RunCompanyPicker(choices)
		if err != nil {
			return err
		}
		if idx < 0 {
			return nil
		}

		back, err := browse.RunBrowseTUI(browse.FilterCompany(jobs, choices[idx]), cfg.Browse.QualityThreshold, p.scorer, reenrich)
		if err != nil {
			return err
		}
		if !back {
			return nil
		}
	}
}
