package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure ScheduleStore implements the interface.
var _ driven.ScheduleStore = (*ScheduleStore)(nil)

// ScheduleStore is an in-memory implementation of driven.ScheduleStore.
type ScheduleStore struct {
	mu        sync.Mutex
	schedules map[string]domain.IntervalSchedule
	tasks     map[string]domain.PeriodicTask
	history   map[string][]domain.CheckResult
}

// NewScheduleStore creates a new in-memory schedule store.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		schedules: make(map[string]domain.IntervalSchedule),
		tasks:     make(map[string]domain.PeriodicTask),
		history:   make(map[string][]domain.CheckResult),
	}
}

// GetOrCreateSchedule returns the schedule for the interval, creating
// it when no task uses that interval yet.
func (s *ScheduleStore) GetOrCreateSchedule(_ context.Context, interval time.Duration) (*domain.IntervalSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, schedule := range s.schedules {
		if schedule.Interval == interval {
			found := schedule
			return &found, nil
		}
	}
	schedule := domain.IntervalSchedule{ID: uuid.NewString(), Interval: interval}
	s.schedules[schedule.ID] = schedule
	return &schedule, nil
}

// DeleteScheduleIfUnused removes the schedule when no periodic task
// references it.
func (s *ScheduleStore) DeleteScheduleIfUnused(_ context.Context, scheduleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ScheduleID == scheduleID {
			return false, nil
		}
	}
	if _, ok := s.schedules[scheduleID]; !ok {
		return false, nil
	}
	delete(s.schedules, scheduleID)
	return true, nil
}

// CountSchedules returns the number of interval schedules.
func (s *ScheduleStore) CountSchedules(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedules), nil
}

// SaveTask persists a periodic task.
func (s *ScheduleStore) SaveTask(_ context.Context, task *domain.PeriodicTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

// GetTaskBySource retrieves the task for a source.
func (s *ScheduleStore) GetTaskBySource(_ context.Context, sourceID string) (*domain.PeriodicTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.SourceID == sourceID {
			found := task
			return &found, nil
		}
	}
	return nil, nil
}

// ListTasks returns all periodic tasks.
func (s *ScheduleStore) ListTasks(_ context.Context) ([]domain.PeriodicTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.PeriodicTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		result = append(result, task)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// DeleteTask removes a task.
func (s *ScheduleStore) DeleteTask(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	delete(s.history, taskID)
	return nil
}

// CountTasks returns the number of periodic tasks.
func (s *ScheduleStore) CountTasks(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks), nil
}

// RecordResult logs a check execution result.
func (s *ScheduleStore) RecordResult(_ context.Context, result *domain.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[result.TaskID] = append(s.history[result.TaskID], *result)
	return nil
}

// GetHistory returns recent results for a task, newest first.
func (s *ScheduleStore) GetHistory(_ context.Context, taskID string, limit int) ([]domain.CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[taskID]
	var result []domain.CheckResult
	for i := len(entries) - 1; i >= 0; i-- {
		result = append(result, entries[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// PruneHistory keeps the most recent 'keep' results per task.
func (s *ScheduleStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for taskID, entries := range s.history {
		if keep > 0 && len(entries) > keep {
			s.history[taskID] = entries[len(entries)-keep:]
		}
	}
	return nil
}
