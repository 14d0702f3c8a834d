package enrich

import (
	"context"

	"github.com/amishk599/jobenrich/internal/model"
)

// JobAnalyzer enriches a Job with AI-generated insights.
// Returns the original job unchanged when enrichment is unavailable or disabled.
type JobAnalyzer interface {
	Analyze(ctx context.Context, job model.Job) (model.Job, error)
}

// Locker guards a job against concurrent runs. Satisfied by lock.MemoryLocker
// and lock.RedisLocker.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}
