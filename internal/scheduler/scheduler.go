package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/jobenrich/internal/model"
)

// Runner executes one enrichment run. Satisfied by *enrich.Orchestrator.
type Runner interface {
	Run(ctx context.Context, sel model.Selector) model.Summary
}

// Scheduler triggers enrichment runs on a cron spec. Overlapping runs are
// skipped, never queued.
type Scheduler struct {
	runner   Runner
	spec     string
	schedule cron.Schedule
	selector model.Selector
	logger   *slog.Logger

	ctx context.Context // set by Run, read by the cron job
	job cron.Job
	wg  sync.WaitGroup
}

// New validates spec (standard five-field cron or a descriptor like
// "@every 6h") and selector.
func New(runner Runner, spec string, sel model.Selector, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("schedule selector: %w", err)
	}

	s := &Scheduler{
		runner:   runner,
		spec:     spec,
		schedule: schedule,
		selector: sel,
		logger:   logger,
		ctx:      context.Background(),
	}
	s.job = cron.NewChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	).Then(cron.FuncJob(s.runOnce))
	return s, nil
}

// Run performs one immediate run, then fires on schedule until ctx is
// cancelled. It waits for an in-flight run to wind down before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	c := cron.New(cron.WithLogger(cronLogger{s.logger}))
	c.Schedule(s.schedule, s.job)

	s.logger.Info("starting scheduler", "spec", s.spec, "selector", s.selector.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
	c.Start()

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	s.wg.Wait()
	return nil
}

func (s *Scheduler) runOnce() {
	ctx := s.ctx
	if ctx.Err() != nil {
		return
	}
	summary := s.runner.Run(ctx, s.selector)
	if summary.Err != nil {
		s.logger.Error("scheduled run failed", "task_id", summary.TaskID, "error", summary.Err)
		return
	}
	s.logger.Info("scheduled run complete",
		"task_id", summary.TaskID,
		"processed", summary.Processed,
		"failed", summary.Failed,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
