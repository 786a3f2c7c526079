package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intake-cli/internal/logger"
)

// resultHistoryKeep bounds the per-task check result history.
const resultHistoryKeep = 100

// Ensure SourceScheduler implements the interface.
var _ driving.SourceScheduler = (*SourceScheduler)(nil)

// SourceScheduler owns the mapping between periodic sources and their
// recurring check tasks, and executes check ticks. Interval schedules
// are shared: tasks with equal intervals reference one schedule record,
// garbage-collected when the last referencing task goes away.
type SourceScheduler struct {
	sourceStore   driven.SourceStore
	logStore      driven.SourceLogStore
	scheduleStore driven.ScheduleStore
	sharedFiles   driven.SharedUploadedFileStore
	registry      *BackendRegistry
	orchestrator  driving.IngestOrchestrator

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewSourceScheduler creates a new source scheduler.
func NewSourceScheduler(
	sourceStore driven.SourceStore,
	logStore driven.SourceLogStore,
	scheduleStore driven.ScheduleStore,
	sharedFiles driven.SharedUploadedFileStore,
	registry *BackendRegistry,
	orchestrator driving.IngestOrchestrator,
) *SourceScheduler {
	return &SourceScheduler{
		sourceStore:   sourceStore,
		logStore:      logStore,
		scheduleStore: scheduleStore,
		sharedFiles:   sharedFiles,
		registry:      registry,
		orchestrator:  orchestrator,
		inFlight:      make(map[string]bool),
	}
}

// OnSourceCreated registers a periodic task for the source.
func (s *SourceScheduler) OnSourceCreated(ctx context.Context, source domain.Source) error {
	interval := checkInterval(source)
	schedule, err := s.scheduleStore.GetOrCreateSchedule(ctx, interval)
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}

	task := &domain.PeriodicTask{
		ID:         uuid.NewString(),
		Name:       fmt.Sprintf("check source %s", source.ID),
		ScheduleID: schedule.ID,
		SourceID:   source.ID,
		NextRun:    time.Now().UTC().Add(interval),
		Enabled:    source.Enabled,
	}
	if err := s.scheduleStore.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// OnSourceUpdated deletes and recreates the source's task, collecting
// the old interval schedule if now unused.
func (s *SourceScheduler) OnSourceUpdated(ctx context.Context, source domain.Source) error {
	if err := s.OnSourceDeleted(ctx, source.ID); err != nil {
		return err
	}
	return s.OnSourceCreated(ctx, source)
}

// OnSourceDeleted removes the source's task and garbage-collects its
// interval schedule when no other task references it.
func (s *SourceScheduler) OnSourceDeleted(ctx context.Context, sourceID string) error {
	task, err := s.scheduleStore.GetTaskBySource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil
	}
	if err := s.scheduleStore.DeleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if _, err := s.scheduleStore.DeleteScheduleIfUnused(ctx, task.ScheduleID); err != nil {
		return fmt.Errorf("collect schedule: %w", err)
	}
	return nil
}

// RunCheck executes one check tick for a source immediately. Under
// dryRun, medium consumption is suppressed but ingestion still runs.
// At most one check per source runs at a time; overlapping calls fail
// with ErrCheckInProgress instead of hitting the medium twice.
//
//nolint:gocognit // tick orchestration with sequential steps
func (s *SourceScheduler) RunCheck(ctx context.Context, sourceID string, dryRun bool) (*domain.CheckResult, error) {
	s.mu.Lock()
	if s.inFlight[sourceID] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: source %s", domain.ErrCheckInProgress, sourceID)
	}
	s.inFlight[sourceID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, sourceID)
		s.mu.Unlock()
	}()

	source, err := s.sourceStore.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !source.Enabled {
		return nil, domain.ErrSourceDisabled
	}

	backend, err := s.registry.Build(*source)
	if err != nil {
		return nil, err
	}
	periodic, ok := backend.(driven.PeriodicBackend)
	if !ok {
		return nil, fmt.Errorf("%w: source %s", domain.ErrNotPeriodic, sourceID)
	}

	result := &domain.CheckResult{
		SourceID:  sourceID,
		StartedAt: time.Now().UTC(),
		DryRun:    dryRun,
	}

	staged, err := periodic.CheckFiles(ctx, dryRun)
	if err != nil {
		s.logSourceError(ctx, sourceID, err)
		result.EndedAt = time.Now().UTC()
		result.Error = err.Error()
		s.finishCheck(ctx, source, result)
		return result, err
	}

	expand := source.ConfigValue("uncompress", domain.UncompressNever) == domain.UncompressAlways

	// Staged files sharing a key came from the same medium item (a
	// mail message with several attachments stages one file each).
	// Consumption happens per item, once all of its files landed.
	var keys []string
	grouped := make(map[string][]domain.StagedFile)
	for _, candidate := range staged {
		if _, ok := grouped[candidate.Key]; !ok {
			keys = append(keys, candidate.Key)
		}
		grouped[candidate.Key] = append(grouped[candidate.Key], candidate)
	}

	var firstErr error
	for _, key := range keys {
		ingested := 0
		for _, candidate := range grouped[key] {
			if err := s.ingestStaged(ctx, source, candidate, expand); err != nil {
				s.logSourceError(ctx, sourceID, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			ingested++
			result.FilesIngested++
		}
		if dryRun || ingested != len(grouped[key]) {
			continue
		}
		if err := periodic.Consume(ctx, grouped[key][0]); err != nil {
			err = fmt.Errorf("consume %q: %w", key, err)
			s.logSourceError(ctx, sourceID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	result.EndedAt = time.Now().UTC()
	result.Success = firstErr == nil
	if firstErr != nil {
		result.Error = firstErr.Error()
	}
	s.finishCheck(ctx, source, result)
	return result, firstErr
}

// ingestStaged runs one candidate through the orchestrator. The staged
// copy is removed either way: on failure the medium still holds the
// original and the next check stages it again.
func (s *SourceScheduler) ingestStaged(
	ctx context.Context,
	source *domain.Source,
	candidate domain.StagedFile,
	expand bool,
) error {
	reader, err := s.sharedFiles.Open(ctx, candidate.SharedFileID)
	if err != nil {
		return &domain.SourceError{SourceID: source.ID, Message: "open staged content", Err: err}
	}
	defer reader.Close() //nolint:errcheck
	//nolint:errcheck // best effort, prune collects leftovers
	defer s.sharedFiles.Delete(ctx, candidate.SharedFileID)

	_, err = s.orchestrator.Ingest(ctx, driving.IngestRequest{
		Reader:   reader,
		SourceID: source.ID,
		Expand:   expand,
		Label:    candidate.Filename,
		Metadata: candidate.Metadata,
	})
	if err != nil {
		return fmt.Errorf("ingest %q: %w", candidate.Filename, err)
	}
	return nil
}

// finishCheck updates the task bookkeeping and appends the result to
// the history. Bookkeeping failures are logged, never raised: the check
// outcome stands.
func (s *SourceScheduler) finishCheck(ctx context.Context, source *domain.Source, result *domain.CheckResult) {
	task, err := s.scheduleStore.GetTaskBySource(ctx, source.ID)
	if err != nil {
		log.Printf("scheduler: failed to load task for source %s: %v", source.ID, err)
		return
	}
	if task != nil {
		result.TaskID = task.ID
		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(checkInterval(*source))
		if result.Success {
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		} else {
			task.LastError = result.Error
		}
		if err := s.scheduleStore.SaveTask(ctx, task); err != nil {
			log.Printf("scheduler: failed to save task %s: %v", task.ID, err)
		}
	}
	if err := s.scheduleStore.RecordResult(ctx, result); err != nil {
		log.Printf("scheduler: failed to record result for source %s: %v", source.ID, err)
	}
	if err := s.scheduleStore.PruneHistory(ctx, resultHistoryKeep); err != nil {
		log.Printf("scheduler: failed to prune history: %v", err)
	}
}

func (s *SourceScheduler) logSourceError(ctx context.Context, sourceID string, err error) {
	message := err.Error()
	var srcErr *domain.SourceError
	if errors.As(err, &srcErr) {
		message = srcErr.LogMessage()
	}
	if logErr := s.logStore.Append(ctx, sourceID, message); logErr != nil {
		log.Printf("scheduler: failed to log for source %s: %v", sourceID, logErr)
	}
}

func checkInterval(source domain.Source) time.Duration {
	if raw := source.ConfigValue("interval", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return domain.DefaultCheckInterval
}

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// sharedFilePruneEvery spaces out prune task submissions.
const sharedFilePruneEvery = time.Hour

// sharedFileMaxAge is how long an unclaimed staged blob survives before
// the prune task collects it.
const sharedFileMaxAge = 24 * time.Hour

// Scheduler runs due periodic tasks. Ticks for different sources run
// concurrently; a stuck source does not block others.
type Scheduler struct {
	scheduleStore driven.ScheduleStore
	sourceStore   driven.SourceStore
	registry      *BackendRegistry
	checks        driving.SourceScheduler
	queue         driven.TaskQueue
	tick          time.Duration

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	lastPrune time.Time
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler loop over the source scheduler.
// queue may be nil, in which case shared file pruning is not scheduled.
func NewScheduler(
	scheduleStore driven.ScheduleStore,
	sourceStore driven.SourceStore,
	registry *BackendRegistry,
	checks driving.SourceScheduler,
	queue driven.TaskQueue,
) *Scheduler {
	return &Scheduler{
		scheduleStore: scheduleStore,
		sourceStore:   sourceStore,
		registry:      registry,
		checks:        checks,
		queue:         queue,
		tick:          time.Minute,
	}
}

// Start begins the scheduler loop. Blocks until the context is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	wakeups := s.subscribeWakeups(ctx)

	s.maybeEnqueuePrune(ctx)
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case sourceID := <-wakeups:
			s.runCheck(ctx, sourceID)
		case <-ticker.C:
			s.maybeEnqueuePrune(ctx)
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// maybeEnqueuePrune submits the shared file prune task at most once per
// sharedFilePruneEvery.
func (s *Scheduler) maybeEnqueuePrune(ctx context.Context) {
	if s.queue == nil {
		return
	}
	now := time.Now().UTC()
	s.mu.Lock()
	if !s.lastPrune.IsZero() && now.Sub(s.lastPrune) < sharedFilePruneEvery {
		s.mu.Unlock()
		return
	}
	s.lastPrune = now
	s.mu.Unlock()

	err := s.queue.Enqueue(ctx, driven.TaskSharedFilePrune, map[string]string{
		"age_seconds": strconv.FormatInt(int64(sharedFileMaxAge/time.Second), 10),
	})
	if err != nil {
		log.Printf("scheduler: failed to enqueue shared file prune: %v", err)
	}
}

// Stop gracefully stops, waiting for in-flight ticks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// subscribeWakeups fans wakeup hints from backends that push them into
// one channel of source IDs. Hints are advisory; the periodic tick
// remains authoritative.
func (s *Scheduler) subscribeWakeups(ctx context.Context) <-chan string {
	out := make(chan string)
	sources, err := s.sourceStore.List(ctx)
	if err != nil {
		log.Printf("scheduler: failed to list sources for wakeups: %v", err)
		return out
	}
	for _, source := range sources {
		backend, err := s.registry.Build(source)
		if err != nil {
			continue
		}
		waker, ok := backend.(driven.WakeupBackend)
		if !ok {
			continue
		}
		ch, err := waker.Wakeups(ctx)
		if err != nil {
			log.Printf("scheduler: wakeup subscription for source %s failed: %v", source.ID, err)
			continue
		}
		sourceID := source.ID
		go func() {
			for range ch {
				select {
				case out <- sourceID:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	return out
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.scheduleStore.ListTasks(ctx)
	if err != nil {
		log.Printf("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now().UTC()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runCheck(ctx, task.SourceID)
		}
	}
}

// runCheck executes a single source check in its own goroutine.
func (s *Scheduler) runCheck(ctx context.Context, sourceID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.checks.RunCheck(ctx, sourceID, false); err != nil {
			switch {
			case errors.Is(err, domain.ErrSourceDisabled):
				logger.Debug("Skipping disabled source %s", sourceID)
			case errors.Is(err, domain.ErrCheckInProgress):
				logger.Debug("Check already running for source %s", sourceID)
			default:
				log.Printf("scheduler: check for source %s failed: %v", sourceID, err)
			}
		}
	}()
}
