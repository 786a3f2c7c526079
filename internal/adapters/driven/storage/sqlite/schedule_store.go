package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// scheduleStore implements driven.ScheduleStore.
type scheduleStore struct {
	store *Store
}

var _ driven.ScheduleStore = (*scheduleStore)(nil)

// GetOrCreateSchedule returns the schedule for the interval, creating
// it when no task uses that interval yet.
func (s *scheduleStore) GetOrCreateSchedule(ctx context.Context, interval time.Duration) (*domain.IntervalSchedule, error) {
	if interval <= 0 {
		return nil, domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	schedule := &domain.IntervalSchedule{Interval: interval}
	row := tx.QueryRowContext(ctx,
		"SELECT id FROM interval_schedules WHERE interval_seconds = ?",
		int64(interval.Seconds()))
	err = row.Scan(&schedule.ID)
	if errors.Is(err, sql.ErrNoRows) {
		schedule.ID = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			"INSERT INTO interval_schedules (id, interval_seconds) VALUES (?, ?)",
			schedule.ID, int64(interval.Seconds()))
		if err != nil {
			return nil, fmt.Errorf("creating schedule: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return schedule, nil
}

// DeleteScheduleIfUnused removes the schedule when no periodic task
// references it. The reference check and delete run in one transaction.
func (s *scheduleStore) DeleteScheduleIfUnused(ctx context.Context, scheduleID string) (bool, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM periodic_tasks WHERE schedule_id = ?", scheduleID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking schedule usage: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM interval_schedules WHERE id = ?", scheduleID)
	if err != nil {
		return false, fmt.Errorf("deleting schedule: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	return deleted > 0, nil
}

// CountSchedules returns the number of interval schedules.
func (s *scheduleStore) CountSchedules(ctx context.Context) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM interval_schedules").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting schedules: %w", err)
	}
	return count, nil
}

// SaveTask persists a periodic task (create or update by ID).
func (s *scheduleStore) SaveTask(ctx context.Context, task *domain.PeriodicTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO periodic_tasks
			(id, name, schedule_id, source_id, last_run, next_run, last_error, last_success, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule_id = excluded.schedule_id,
			source_id = excluded.source_id,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled
	`, task.ID, task.Name, task.ScheduleID, task.SourceID,
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		nullString(task.LastError), formatNullableTime(task.LastSuccess),
		boolToInt(task.Enabled))

	if err != nil {
		return fmt.Errorf("saving periodic task: %w", err)
	}
	return nil
}

// GetTaskBySource retrieves the task for a source.
// Returns nil and no error when the source has no task.
func (s *scheduleStore) GetTaskBySource(ctx context.Context, sourceID string) (*domain.PeriodicTask, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, schedule_id, source_id, last_run, next_run, last_error, last_success, enabled
		FROM periodic_tasks WHERE source_id = ?
	`, sourceID)

	task, err := scanPeriodicTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

// ListTasks returns all periodic tasks.
func (s *scheduleStore) ListTasks(ctx context.Context) ([]domain.PeriodicTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, schedule_id, source_id, last_run, next_run, last_error, last_success, enabled
		FROM periodic_tasks ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying periodic tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.PeriodicTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanPeriodicTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating periodic tasks: %w", err)
	}

	return tasks, nil
}

// DeleteTask removes a task and its result history.
func (s *scheduleStore) DeleteTask(ctx context.Context, taskID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM check_results WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("deleting task history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM periodic_tasks WHERE id = ?", taskID); err != nil {
		return fmt.Errorf("deleting periodic task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CountTasks returns the number of periodic tasks.
func (s *scheduleStore) CountTasks(ctx context.Context) (int, error) {
	var count int
	err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM periodic_tasks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting periodic tasks: %w", err)
	}
	return count, nil
}

// RecordResult logs a check execution result.
func (s *scheduleStore) RecordResult(ctx context.Context, result *domain.CheckResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO check_results
			(task_id, source_id, started_at, ended_at, success, error, dry_run, files_ingested)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.TaskID, result.SourceID,
		result.StartedAt.UTC().Format(time.RFC3339),
		result.EndedAt.UTC().Format(time.RFC3339),
		boolToInt(result.Success),
		nullString(result.Error),
		boolToInt(result.DryRun),
		result.FilesIngested)

	if err != nil {
		return fmt.Errorf("recording check result: %w", err)
	}
	return nil
}

// GetHistory returns recent results for a task, newest first.
func (s *scheduleStore) GetHistory(ctx context.Context, taskID string, limit int) ([]domain.CheckResult, error) {
	query := `
		SELECT task_id, source_id, started_at, ended_at, success, error, dry_run, files_ingested
		FROM check_results WHERE task_id = ?
		ORDER BY id DESC
	`
	args := []any{taskID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying check history: %w", err)
	}
	defer rows.Close()

	var results []domain.CheckResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var result domain.CheckResult
		var startedAt, endedAt string
		var success, dryRun int
		var errMsg sql.NullString
		if err := rows.Scan(&result.TaskID, &result.SourceID, &startedAt, &endedAt,
			&success, &errMsg, &dryRun, &result.FilesIngested); err != nil {
			return nil, fmt.Errorf("scanning check result: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			result.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339, endedAt); err == nil {
			result.EndedAt = t
		}
		result.Success = success == 1
		result.DryRun = dryRun == 1
		if errMsg.Valid {
			result.Error = errMsg.String
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating check history: %w", err)
	}

	return results, nil
}

// PruneHistory keeps the most recent 'keep' results per task.
func (s *scheduleStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM check_results
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY id DESC) as rn
				FROM check_results
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning check history: %w", err)
	}
	return nil
}

// scanPeriodicTask scans one periodic task from a row or rows scanner.
func scanPeriodicTask(scan func(dest ...any) error) (*domain.PeriodicTask, error) {
	var task domain.PeriodicTask
	var lastRun, nextRun, lastError, lastSuccess sql.NullString
	var enabled int

	err := scan(&task.ID, &task.Name, &task.ScheduleID, &task.SourceID,
		&lastRun, &nextRun, &lastError, &lastSuccess, &enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning periodic task: %w", err)
	}

	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	if lastError.Valid {
		task.LastError = lastError.String
	}
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.Enabled = enabled == 1

	return &task, nil
}
