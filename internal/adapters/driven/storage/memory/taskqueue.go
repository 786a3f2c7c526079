package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure TaskQueue implements the interface.
var _ driven.TaskQueue = (*TaskQueue)(nil)

type queuedTask struct {
	task      driven.QueuedTask
	visibleAt time.Time
	enqueued  time.Time
	seq       int64
}

// TaskQueue is an in-memory implementation of driven.TaskQueue with
// visibility-timeout semantics.
type TaskQueue struct {
	mu    sync.Mutex
	tasks map[string]*queuedTask
	seq   int64
	now   func() time.Time
}

// NewTaskQueue creates a new in-memory task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks: make(map[string]*queuedTask),
		now:   time.Now,
	}
}

// Enqueue publishes a task.
func (q *TaskQueue) Enqueue(_ context.Context, name string, payload map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	id := uuid.NewString()
	now := q.now()
	q.tasks[id] = &queuedTask{
		task:      driven.QueuedTask{ID: id, Name: name, Payload: payload},
		visibleAt: now,
		enqueued:  now,
		seq:       q.seq,
	}
	return nil
}

// Claim takes the oldest visible task, making it invisible for the
// given window.
func (q *TaskQueue) Claim(_ context.Context, visibility time.Duration) (*driven.QueuedTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var next *queuedTask
	for _, entry := range q.tasks {
		if entry.visibleAt.After(now) {
			continue
		}
		if next == nil || entry.seq < next.seq {
			next = entry
		}
	}
	if next == nil {
		return nil, nil
	}
	next.visibleAt = now.Add(visibility)
	next.task.Attempts++
	claimed := next.task
	return &claimed, nil
}

// Ack removes a completed task.
func (q *TaskQueue) Ack(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tasks, taskID)
	return nil
}

// Nack makes a failed task visible again after the delay.
func (q *TaskQueue) Nack(_ context.Context, taskID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.tasks[taskID]
	if !ok {
		return nil
	}
	entry.visibleAt = q.now().Add(delay)
	return nil
}
