package model

import "time"

// ItemError records why a single job could not be enriched.
type ItemError struct {
	JobID   string
	Message string
	Err     error
}

// Summary is the result of one orchestrator run. It is always returned, even
// when the job set could not be resolved, so callers can inspect partial progress.
type Summary struct {
	TaskID    string
	Selector  string
	Processed int
	Succeeded int
	Unchanged int // subset of Succeeded that needed no write
	Failed    int
	Errors    []ItemError
	Err       error // selection failure; nil when the job set was resolved
	Cancelled bool
	Duration  time.Duration
}

// FailedIDs returns the ids of failed items in recorded order.
func (s Summary) FailedIDs() []string {
	ids := make([]string, 0, len(s.Errors))
	for _, e := range s.Errors {
		ids = append(ids, e.JobID)
	}
	return ids
}
