package domain

import "time"

// IntervalSchedule is a shared recurrence record. Periodic tasks with
// the same interval reference one schedule; the schedule is deleted
// only when no task references it any more.
type IntervalSchedule struct {
	// ID is the unique identifier for the schedule.
	ID string

	// Interval is the recurrence period.
	Interval time.Duration
}

// PeriodicTask is the named recurring check entry for one periodic
// source. Exactly one task exists per periodic source; its sole
// argument is the source's identifier.
type PeriodicTask struct {
	// ID is the unique identifier for the task.
	ID string

	// Name is the unique human-readable task name
	// ("check source <id>").
	Name string

	// ScheduleID references the shared IntervalSchedule.
	ScheduleID string

	// SourceID is the task's sole argument.
	SourceID string

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// CheckResult records one periodic check execution.
type CheckResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// SourceID identifies the checked source.
	SourceID string

	// StartedAt is when the check started.
	StartedAt time.Time

	// EndedAt is when the check completed.
	EndedAt time.Time

	// Success indicates whether the check completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// DryRun indicates medium consumption was suppressed.
	DryRun bool

	// FilesIngested counts candidates handed to the orchestrator.
	FilesIngested int
}

// DefaultCheckInterval is the periodic check interval used when a
// source does not configure one.
const DefaultCheckInterval = 10 * time.Minute
