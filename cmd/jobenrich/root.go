package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobenrich/internal/ai"
	"github.com/amishk599/jobenrich/internal/classifier"
	"github.com/amishk599/jobenrich/internal/config"
	"github.com/amishk599/jobenrich/internal/enrich"
	"github.com/amishk599/jobenrich/internal/lock"
	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/notifier"
	"github.com/amishk599/jobenrich/internal/ratelimit"
	"github.com/amishk599/jobenrich/internal/retry"
	"github.com/amishk599/jobenrich/internal/scorer"
	"github.com/amishk599/jobenrich/internal/store"
	"github.com/amishk599/jobenrich/internal/taxonomy"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:          "jobenrich",
	Short:        "Re-enrich stored job postings",
	Long:         "jobenrich classifies stored job postings by role and language, scores their completeness and writes the results back.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvPath+" env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig(path string) (*config.Config, error) {
	return config.Load(config.ResolvePath(path))
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// silentLogger is used by TUI commands: any log output before the alt
// screen starts corrupts the display.
func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backend is everything a concrete store offers.
type backend interface {
	model.JobStore
	model.JobWriter
	model.JobLister
	model.TaskStore
	Close() error
}

var (
	_ backend = (*store.SQLiteStore)(nil)
	_ backend = (*store.PostgresStore)(nil)
)

func openStore(ctx context.Context, cfg *config.Config) (backend, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Store.DSN)
	default:
		return store.NewSQLiteStore(cfg.Store.Path)
	}
}

// setupLocker returns the per-job lock and a func that releases its
// connection. The memory lock only excludes runs inside this process.
func setupLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (enrich.Locker, func(), error) {
	if cfg.Lock.Type != "redis" {
		return lock.NewMemoryLocker(), func() {}, nil
	}
	rdb, err := lock.NewRedisClient(ctx, cfg.Lock.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis job locks", "ttl", cfg.Lock.TTL)
	return lock.NewRedisLocker(rdb, cfg.Lock.TTL, logger), func() { rdb.Close() }, nil
}

func setupAnalyzer(cfg *config.Config, logger *slog.Logger) enrich.JobAnalyzer {
	if !cfg.AI.Enabled {
		return ai.NewNopJobAnalyzer()
	}
	httpClient := &http.Client{Timeout: cfg.AI.Timeout}
	var provider ai.LLMProvider = ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	provider = ratelimit.NewRateLimitedProvider(provider, ratelimit.NewKeyedLimiter(cfg.AI.MinDelay), cfg.AI.BaseURL)
	logger.Info("ai insights enabled", "model", cfg.AI.Model, "min_delay", cfg.AI.MinDelay)
	return ai.NewLLMJobAnalyzer(provider, ai.JobAnalysisTemplate, logger)
}

func setupReporter(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Reporter {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack reporter")
		return notifier.NewSlackReporter(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogReporter(logger)
	}
}

// enrichmentProvider names what produced a run's enrichment on its task record.
func enrichmentProvider(cfg *config.Config) string {
	if cfg.AI.Enabled {
		return "taxonomy+" + cfg.AI.Model
	}
	return "taxonomy"
}

// pipeline bundles an orchestrator with the store it writes to.
type pipeline struct {
	orch    *enrich.Orchestrator
	db      backend
	scorer  *scorer.Scorer
	cleanup []func()
}

func (p *pipeline) Close() {
	for i := len(p.cleanup) - 1; i >= 0; i-- {
		p.cleanup[i]()
	}
}

type pipelineOptions struct {
	dryRun  bool
	workers int // overrides config when > 0
}

func buildPipeline(ctx context.Context, cfg *config.Config, opts pipelineOptions, logger *slog.Logger) (*pipeline, error) {
	tax, err := taxonomy.Load(cfg.Enrich.TaxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy: %w", err)
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	p := &pipeline{db: db, scorer: scorer.New(cfg.Enrich.MinDescriptionLength)}
	p.cleanup = append(p.cleanup, func() { db.Close() })

	locker, closeLocker, err := setupLocker(ctx, cfg, logger)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connecting lock backend: %w", err)
	}
	p.cleanup = append(p.cleanup, closeLocker)

	var jobs model.JobStore = retry.NewRetryStore(db, cfg.Store.Retries, cfg.Store.RetryDelay, logger)
	var tasks model.TaskStore = db
	if opts.dryRun {
		logger.Info("dry-run: no enrichment will be written")
		jobs = store.NewDryRunStore(jobs, logger)
		tasks = store.NewNopTaskStore()
	}

	workers := cfg.Enrich.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	p.orch = enrich.NewOrchestrator(
		jobs,
		tasks,
		classifier.New(tax),
		p.scorer,
		setupAnalyzer(cfg, logger),
		locker,
		setupReporter(cfg, httpClient, logger),
		enrich.Options{
			Workers:     workers,
			CallTimeout: cfg.Store.CallTimeout,
			Provider:    enrichmentProvider(cfg),
		},
		logger,
	)
	return p, nil
}
