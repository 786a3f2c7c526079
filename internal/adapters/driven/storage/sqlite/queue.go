package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// taskQueue implements driven.TaskQueue with a visibility-timeout table.
// A claimed task becomes invisible for the caller's window; tasks that
// are never acked reappear once the window passes.
type taskQueue struct {
	store *Store
}

var _ driven.TaskQueue = (*taskQueue)(nil)

// Enqueue publishes a task.
func (q *taskQueue) Enqueue(ctx context.Context, name string, payload map[string]string) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	now := time.Now().UTC().UnixNano()
	_, err = q.store.db.ExecContext(ctx, `
		INSERT INTO queued_tasks (task_id, name, payload, attempts, visible_at, enqueued_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, uuid.NewString(), name, string(payloadJSON), now, now)
	if err != nil {
		return fmt.Errorf("enqueueing task: %w", err)
	}
	return nil
}

// Claim takes the oldest visible task, making it invisible for the
// given window. Returns nil and no error when the queue is empty.
func (q *taskQueue) Claim(ctx context.Context, visibility time.Duration) (*driven.QueuedTask, error) {
	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().UnixNano()
	row := tx.QueryRowContext(ctx, `
		SELECT id, task_id, name, payload, attempts
		FROM queued_tasks
		WHERE visible_at <= ?
		ORDER BY id
		LIMIT 1
	`, now)

	var rowID int64
	var task driven.QueuedTask
	var payloadJSON string
	err = row.Scan(&rowID, &task.ID, &task.Name, &payloadJSON, &task.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning queued task: %w", err)
	}

	if err := json.Unmarshal([]byte(payloadJSON), &task.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}

	task.Attempts++
	_, err = tx.ExecContext(ctx, `
		UPDATE queued_tasks SET visible_at = ?, attempts = ? WHERE id = ?
	`, time.Now().UTC().Add(visibility).UnixNano(), task.Attempts, rowID)
	if err != nil {
		return nil, fmt.Errorf("claiming task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &task, nil
}

// Ack removes a completed task.
func (q *taskQueue) Ack(ctx context.Context, taskID string) error {
	_, err := q.store.db.ExecContext(ctx, "DELETE FROM queued_tasks WHERE task_id = ?", taskID)
	if err != nil {
		return fmt.Errorf("acking task: %w", err)
	}
	return nil
}

// Nack makes a failed task visible again after the delay.
func (q *taskQueue) Nack(ctx context.Context, taskID string, delay time.Duration) error {
	_, err := q.store.db.ExecContext(ctx, `
		UPDATE queued_tasks SET visible_at = ? WHERE task_id = ?
	`, time.Now().UTC().Add(delay).UnixNano(), taskID)
	if err != nil {
		return fmt.Errorf("nacking task: %w", err)
	}
	return nil
}
