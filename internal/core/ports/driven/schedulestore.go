package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// ScheduleStore persists periodic check bookkeeping: shared interval
// schedules, per-source periodic tasks, and execution history.
//
// Interval schedules are shared records: tasks with equal intervals
// reference one schedule. Deleting a schedule still referenced by any
// task is a correctness bug; implementations must treat the
// reference-count check plus delete as a critical section.
type ScheduleStore interface {
	// GetOrCreateSchedule returns the schedule for the interval,
	// creating it when no task uses that interval yet.
	GetOrCreateSchedule(ctx context.Context, interval time.Duration) (*domain.IntervalSchedule, error)

	// DeleteScheduleIfUnused removes the schedule when no periodic
	// task references it. Returns true if it was removed.
	DeleteScheduleIfUnused(ctx context.Context, scheduleID string) (bool, error)

	// CountSchedules returns the number of interval schedules.
	CountSchedules(ctx context.Context) (int, error)

	// SaveTask persists a periodic task (create or update by ID).
	SaveTask(ctx context.Context, task *domain.PeriodicTask) error

	// GetTaskBySource retrieves the task for a source.
	// Returns nil and no error when the source has no task.
	GetTaskBySource(ctx context.Context, sourceID string) (*domain.PeriodicTask, error)

	// ListTasks returns all periodic tasks.
	ListTasks(ctx context.Context) ([]domain.PeriodicTask, error)

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, taskID string) error

	// CountTasks returns the number of periodic tasks.
	CountTasks(ctx context.Context) (int, error)

	// RecordResult logs a check execution result.
	RecordResult(ctx context.Context, result *domain.CheckResult) error

	// GetHistory returns recent results for a task, newest first.
	GetHistory(ctx context.Context, taskID string, limit int) ([]domain.CheckResult, error)

	// PruneHistory keeps the most recent 'keep' results per task.
	PruneHistory(ctx context.Context, keep int) error
}
