package model

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of an EnrichmentTask.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// allowedTransitions: pending -> running -> completed|failed. A pending task
// may fail directly when the run cannot start.
var allowedTransitions = map[TaskStatus][]TaskStatus{
	TaskPending: {TaskRunning, TaskFailed},
	TaskRunning: {TaskCompleted, TaskFailed},
}

// ParseTaskStatus converts a stored string into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskPending, TaskRunning, TaskCompleted, TaskFailed:
		return TaskStatus(s), nil
	default:
		return "", fmt.Errorf("unknown task status %q", s)
	}
}

// IsTerminal returns true for completed and failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnrichmentTask is the audit record of one orchestrator run.
type EnrichmentTask struct {
	ID         string
	Provider   string
	Selector   string
	Status     TaskStatus
	Processed  int
	Succeeded  int
	Failed     int
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Transition moves the task to the next status, stamping timestamps.
func (t *EnrichmentTask) Transition(to TaskStatus, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.Status, to)
	}
	t.Status = to
	switch to {
	case TaskRunning:
		t.StartedAt = &now
	case TaskCompleted, TaskFailed:
		t.FinishedAt = &now
	}
	return nil
}
