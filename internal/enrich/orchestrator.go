package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobenrich/internal/classifier"
	"github.com/amishk599/jobenrich/internal/model"
	"github.com/amishk599/jobenrich/internal/scorer"
)

// Options tune a single Orchestrator.
type Options struct {
	Workers     int           // concurrent items; <= 1 means sequential
	CallTimeout time.Duration // per store call; 0 disables
	Provider    string        // recorded on each task
	Now         func() time.Time
}

// Orchestrator owns the re-enrichment pipeline for a selected job set:
// select → lock → fetch → validate → classify → score → write.
type Orchestrator struct {
	store      model.JobStore
	tasks      model.TaskStore
	classifier *classifier.Classifier
	scorer     *scorer.Scorer
	analyzer   JobAnalyzer
	locker     Locker
	reporter   model.Reporter
	opts       Options
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator wired with all its dependencies.
// analyzer, locker and reporter may be nil.
func NewOrchestrator(
	store model.JobStore,
	tasks model.TaskStore,
	cls *classifier.Classifier,
	sc *scorer.Scorer,
	analyzer JobAnalyzer,
	locker Locker,
	reporter model.Reporter,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:      store,
		tasks:      tasks,
		classifier: cls,
		scorer:     sc,
		analyzer:   analyzer,
		locker:     locker,
		reporter:   reporter,
		opts:       opts,
		logger:     logger,
	}
}

// outcome of one item.
type outcome int

const (
	outcomeWritten outcome = iota
	outcomeUnchanged
	outcomeFailed
)

// Run enriches every job the selector resolves to. It never returns an
// error: selection failures land in Summary.Err, item failures in
// Summary.Errors.
func (o *Orchestrator) Run(ctx context.Context, sel model.Selector) model.Summary {
	start := o.opts.Now()
	task := model.EnrichmentTask{
		ID:        uuid.NewString(),
		Provider:  o.opts.Provider,
		Selector:  sel.String(),
		Status:    model.TaskPending,
		CreatedAt: start,
	}
	summary := model.Summary{TaskID: task.ID, Selector: task.Selector}
	logger := o.logger.With("task_id", task.ID)

	o.saveTask(ctx, logger, task, true)

	ids, err := o.selectIDs(ctx, sel)
	if err != nil {
		summary.Err = err
		logger.Error("resolving selector", "selector", task.Selector, "error", err)
		return o.finish(ctx, logger, task, summary, start)
	}

	_ = task.Transition(model.TaskRunning, o.opts.Now())
	o.saveTask(ctx, logger, task, false)
	logger.Info("enrichment run started", "selector", task.Selector, "jobs", len(ids), "workers", o.opts.Workers)

	var mu sync.Mutex
	record := func(id string, res outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.Processed++
		switch res {
		case outcomeWritten:
			summary.Succeeded++
		case outcomeUnchanged:
			summary.Succeeded++
			summary.Unchanged++
		case outcomeFailed:
			summary.Failed++
			summary.Errors = append(summary.Errors, model.ItemError{JobID: id, Message: err.Error(), Err: err})
		}
	}

	// In-flight items finish even after cancellation; only dispatch stops.
	itemCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := o.enrichOne(itemCtx, logger, id)
			record(id, res, err)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil && summary.Processed < len(ids) {
		summary.Cancelled = true
		logger.Warn("enrichment run cancelled", "processed", summary.Processed, "remaining", len(ids)-summary.Processed)
	}

	return o.finish(ctx, logger, task, summary, start)
}

func (o *Orchestrator) selectIDs(ctx context.Context, sel model.Selector) ([]string, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("selecting jobs: %w", err)
	}
	cctx, cancel := o.callContext(ctx)
	defer cancel()
	ids, err := o.store.SelectJobIDs(cctx, sel)
	if err != nil {
		return nil, o.storeErr("select jobs", err)
	}
	return ids, nil
}

// enrichOne runs the pipeline for a single job. A compare-and-set conflict
// triggers one re-fetch and recompute.
func (o *Orchestrator) enrichOne(ctx context.Context, logger *slog.Logger, id string) (outcome, error) {
	logger = logger.With("job_id", id)

	if o.locker != nil {
		release, ok, err := o.locker.TryLock(ctx, id)
		if err != nil {
			logger.Warn("lock unavailable", "error", err)
			return outcomeFailed, fmt.Errorf("locking job %s: %w", id, err)
		}
		if !ok {
			logger.Info("job locked by another run, skipping")
			return outcomeFailed, fmt.Errorf("job %s: %w", id, model.ErrJobLocked)
		}
		defer release()
	}

	res, err := o.attempt(ctx, logger, id)
	if errors.Is(err, model.ErrConflict) {
		logger.Info("concurrent update detected, re-fetching")
		res, err = o.attempt(ctx, logger, id)
	}
	if err != nil {
		logger.Warn("enrichment failed", "error", err)
		return outcomeFailed, err
	}
	return res, nil
}

func (o *Orchestrator) attempt(ctx context.Context, logger *slog.Logger, id string) (outcome, error) {
	job, err := o.getJob(ctx, id)
	if err != nil {
		return outcomeFailed, err
	}
	if err := job.Validate(); err != nil {
		return outcomeFailed, err
	}

	e := o.compute(ctx, logger, job)
	if e.SameAs(job) {
		logger.Debug("enrichment unchanged, skipping write")
		return outcomeUnchanged, nil
	}

	cctx, cancel := o.callContext(ctx)
	defer cancel()
	if err := o.store.UpdateEnrichment(cctx, id, e, job.LastEnrichedAt); err != nil {
		return outcomeFailed, o.storeErr("update enrichment", err)
	}

	logger.Debug("job enriched",
		"role_function", e.RoleFunction,
		"languages", e.LanguageRequirements,
		"quality", e.Quality,
	)
	return outcomeWritten, nil
}

// compute derives the enrichment patch. Quality is scored on the record as
// it will look after the patch is applied.
func (o *Orchestrator) compute(ctx context.Context, logger *slog.Logger, job model.Job) model.Enrichment {
	c := o.classifier.Classify(job.Title, job.Description)
	e := model.Enrichment{
		RoleFunction:         c.RoleFunction,
		LanguageRequirements: c.LanguageRequirements,
		Version:              model.CurrentEnrichmentVersion,
		EnrichedAt:           o.opts.Now(),
	}

	if o.analyzer != nil && job.Insights == nil && job.Description != "" {
		analyzed, err := o.analyzer.Analyze(ctx, job)
		if err != nil {
			logger.Warn("ai analysis failed, continuing without insights", "error", err)
		} else {
			e.Insights = analyzed.Insights
		}
	}

	e.Quality = o.scorer.Score(e.Apply(job))
	return e
}

func (o *Orchestrator) getJob(ctx context.Context, id string) (model.Job, error) {
	cctx, cancel := o.callContext(ctx)
	defer cancel()
	job, err := o.store.GetJob(cctx, id)
	if err != nil {
		return model.Job{}, o.storeErr("get job", err)
	}
	return job, nil
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opts.CallTimeout)
}

// storeErr maps a per-call timeout onto ErrStoreUnavailable.
func (o *Orchestrator) storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, model.ErrStoreUnavailable) {
		return &model.StoreError{Op: op, Err: err}
	}
	return err
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, task model.EnrichmentTask, summary model.Summary, start time.Time) model.Summary {
	end := o.opts.Now()
	summary.Duration = end.Sub(start)

	task.Processed = summary.Processed
	task.Succeeded = summary.Succeeded
	task.Failed = summary.Failed
	switch {
	case summary.Err != nil:
		task.Error = summary.Err.Error()
		_ = task.Transition(model.TaskFailed, end)
	case summary.Cancelled:
		task.Error = "cancelled"
		_ = task.Transition(model.TaskFailed, end)
	default:
		_ = task.Transition(model.TaskCompleted, end)
	}
	o.saveTask(ctx, logger, task, false)

	logger.Info("enrichment run finished",
		"status", task.Status,
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"unchanged", summary.Unchanged,
		"failed", summary.Failed,
		"duration", summary.Duration,
	)

	if o.reporter != nil {
		if err := o.reporter.Report(task, summary); err != nil {
			logger.Error("reporting run summary", "error", err)
		}
	}
	return summary
}

// saveTask persists task bookkeeping. Failures are logged only: the audit
// trail must never block enrichment.
func (o *Orchestrator) saveTask(ctx context.Context, logger *slog.Logger, task model.EnrichmentTask, create bool) {
	if o.tasks == nil {
		return
	}
	cctx, cancel := o.callContext(context.WithoutCancel(ctx))
	defer cancel()
	var err error
	if create {
		err = o.tasks.CreateTask(cctx, task)
	} else {
		err = o.tasks.UpdateTask(cctx, task)
	}
	if err != nil {
		logger.Warn("saving task", "status", task.Status, "error", err)
	}
}
