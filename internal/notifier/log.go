package notifier

import (
	"log/slog"

	"github.com/amishk599/jobenrich/internal/model"
)

var _ model.Reporter = (*LogReporter)(nil)

// LogReporter writes run summaries to the given logger as structured messages.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs one line for the run and one per failed item.
// Returns nil (stdout logging does not fail).
func (r *LogReporter) Report(task model.EnrichmentTask, s model.Summary) error {
	args := []any{
		"task_id", task.ID,
		"status", task.Status,
		"selector", s.Selector,
		"processed", s.Processed,
		"succeeded", s.Succeeded,
		"unchanged", s.Unchanged,
		"failed", s.Failed,
		"duration", s.Duration,
	}
	if s.Err != nil {
		args = append(args, "error", s.Err)
		r.logger.Error("enrichment run report", args...)
		return nil
	}
	r.logger.Info("enrichment run report", args...)

	for _, e := range s.Errors {
		r.logger.Warn("enrichment item failed", "task_id", task.ID, "job_id", e.JobID, "error", e.Message)
	}
	return nil
}
