package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobenrich/internal/model"
)

// RetryStore is a decorator that retries transient store failures with
// exponential backoff and jitter before delegating to the wrapped JobStore.
type RetryStore struct {
	inner      model.JobStore
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

var _ model.JobStore = (*RetryStore)(nil)

// NewRetryStore wraps a JobStore with retry logic.
// maxRetries is the number of additional attempts after the first failure (default: 2).
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewRetryStore(inner model.JobStore, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetryStore {
	return &RetryStore{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func (s *RetryStore) GetJob(ctx context.Context, id string) (model.Job, error) {
	var job model.Job
	err := s.do(ctx, "get job", func() error {
		var err error
		job, err = s.inner.GetJob(ctx, id)
		return err
	})
	return job, err
}

func (s *RetryStore) SelectJobIDs(ctx context.Context, sel model.Selector) ([]string, error) {
	var ids []string
	err := s.do(ctx, "select jobs", func() error {
		var err error
		ids, err = s.inner.SelectJobIDs(ctx, sel)
		return err
	})
	return ids, err
}

// UpdateEnrichment is safe to retry: the compare-and-set guard turns a write
// that landed before a dropped connection into ErrConflict, not a double write.
func (s *RetryStore) UpdateEnrichment(ctx context.Context, id string, e model.Enrichment, expected *time.Time) error {
	return s.do(ctx, "update enrichment", func() error {
		return s.inner.UpdateEnrichment(ctx, id, e, expected)
	})
}

func (s *RetryStore) do(ctx context.Context, op string, call func() error) error {
	err := call()
	if !isRetryable(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		delay := s.backoffDelay(attempt)

		s.logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", s.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), lastErr))
		case <-time.After(delay):
		}

		err = call()
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
func (s *RetryStore) backoffDelay(attempt int) time.Duration {
	// Exponential: baseDelay * 2^(attempt-1)
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true only for transient store failures. Conflicts,
// missing and malformed records are answers, not outages.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, model.ErrStoreUnavailable)
}
