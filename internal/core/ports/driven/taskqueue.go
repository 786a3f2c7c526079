package driven

import (
	"context"
	"time"
)

// Task names understood by the worker.
const (
	TaskFileProcess        = "file.process"
	TaskDocumentDuplicates = "document.duplicates"
	TaskSharedFilePrune    = "sharedfile.prune"
)

// QueuedTask is one claimed unit of background work. Payload values are
// primitive IDs and flags only - never live object references; this is
// the serialization contract across the process boundary.
type QueuedTask struct {
	ID       string
	Name     string
	Payload  map[string]string
	Attempts int
}

// TaskQueue hands work from the request path to worker processes.
// Claimed tasks stay invisible for a visibility window; unacked tasks
// reappear so another worker can claim them.
type TaskQueue interface {
	// Enqueue publishes a task.
	Enqueue(ctx context.Context, name string, payload map[string]string) error

	// Claim takes the next visible task, making it invisible for the
	// given window. Returns nil and no error when the queue is empty.
	Claim(ctx context.Context, visibility time.Duration) (*QueuedTask, error)

	// Ack removes a completed task.
	Ack(ctx context.Context, taskID string) error

	// Nack makes a failed task visible again after the delay, counting
	// the attempt.
	Nack(ctx context.Context, taskID string, delay time.Duration) error
}
