package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json|->",
	Short: "Load job postings from a JSON array into the store",
	Long: `Reads a JSON array of postings and upserts each one. Existing enrichment
fields of a replaced job are kept; run "jobenrich enrich" afterwards.

Each element: {"id", "provider", "company", "title", "description",
"location", "url", "posted_at" (RFC 3339)}.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// importRecord is the on-disk shape of one posting.
type importRecord struct {
	ID          string     `json:"id"`
	Provider    string     `json:"provider"`
	Company     string     `json:"company"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	URL         string     `json:"url"`
	PostedAt    *time.Time `json:"posted_at"`
}

func (r importRecord) job() model.Job {
	return model.Job{
		ID:          strings.TrimSpace(r.ID),
		Provider:    strings.TrimSpace(r.Provider),
		Company:     strings.TrimSpace(r.Company),
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Location:    strings.TrimSpace(r.Location),
		URL:         strings.TrimSpace(r.URL),
		PostedAt:    r.PostedAt,
	}
}

// parseImport decodes postings and splits them into valid jobs and the
// validation errors of the rest.
func parseImport(r io.Reader) ([]model.Job, []error, error) {
	var records []importRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, nil, fmt.Errorf("decoding postings: %w", err)
	}
	jobs := make([]model.Job, 0, len(records))
	var invalid []error
	for i, rec := range records {
		job := rec.job()
		if err := job.Validate(); err != nil {
			invalid = append(invalid, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, invalid, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	jobs, invalid, err := parseImport(in)
	if err != nil {
		return err
	}
	for _, e := range invalid {
		logger.Warn("skipping posting", "error", e)
	}

	ctx := context.Background()
	db, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	imported := 0
	for _, job := range jobs {
		if err := db.UpsertJob(ctx, job); err != nil {
			logger.Error("upsert failed", "job_id", job.ID, "error", err)
			continue
		}
		imported++
	}

	logger.Info("import complete", "imported", imported, "skipped", len(invalid), "failed", len(jobs)-imported)
	if imported < len(jobs) {
		return fmt.Errorf("%d posting(s) could not be stored", len(jobs)-imported)
	}
	return nil
}
