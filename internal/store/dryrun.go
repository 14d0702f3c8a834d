package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/jobenrich/internal/model"
)

// DryRunStore is used in dry-run mode. Reads pass through to the wrapped
// store; enrichment writes are logged and dropped, so every run sees the
// same stored state.
type DryRunStore struct {
	inner  model.JobStore
	logger *slog.Logger
}

func NewDryRunStore(inner model.JobStore, logger *slog.Logger) *DryRunStore {
	return &DryRunStore{inner: inner, logger: logger}
}

func (s *DryRunStore) GetJob(ctx context.Context, id string) (model.Job, error) {
	return s.inner.GetJob(ctx, id)
}

func (s *DryRunStore) SelectJobIDs(ctx context.Context, sel model.Selector) ([]string, error) {
	return s.inner.SelectJobIDs(ctx, sel)
}

func (s *DryRunStore) UpdateEnrichment(_ context.Context, id string, e model.Enrichment, _ *time.Time) error {
	s.logger.Info("dry-run: skipping write",
		"job_id", id,
		"role_function", e.RoleFunction,
		"languages", e.LanguageRequirements,
		"quality", e.Quality,
	)
	return nil
}

// NopTaskStore discards task bookkeeping (dry-run and one-off classification).
type NopTaskStore struct{}

func NewNopTaskStore() *NopTaskStore { return &NopTaskStore{} }

func (NopTaskStore) CreateTask(context.Context, model.EnrichmentTask) error { return nil }
func (NopTaskStore) UpdateTask(context.Context, model.EnrichmentTask) error { return nil }
func (NopTaskStore) ListTasks(context.Context, int) ([]model.EnrichmentTask, error) {
	return nil, nil
}
