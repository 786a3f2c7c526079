package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intake-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
)

// fakePeriodic is a periodic backend whose candidates are set by the
// test. It records consumed keys for assertions.
type fakePeriodic struct {
	source   domain.Source
	shared   driven.SharedUploadedFileStore
	staged   []stagedContent
	checkErr error
	consumed []string
	created  []string

	// When set, CheckFiles signals checkStarted and blocks until
	// checkRelease closes, letting tests overlap two checks.
	checkStarted chan struct{}
	checkRelease chan struct{}
}

type stagedContent struct {
	key      string
	filename string
	content  string
}

func (f *fakePeriodic) Type() string                { return "fakeperiodic" }
func (f *fakePeriodic) Setup() []domain.ConfigKey   { return nil }
func (f *fakePeriodic) Clean(context.Context) error { return nil }
func (f *fakePeriodic) Actions() []domain.Action    { return nil }
func (f *fakePeriodic) ExecuteAction(context.Context, string, domain.ActionArgs) (any, error) {
	return nil, domain.ErrUnknownAction
}

func (f *fakePeriodic) CheckFiles(ctx context.Context, _ bool) ([]domain.StagedFile, error) {
	if f.checkStarted != nil {
		f.checkStarted <- struct{}{}
		<-f.checkRelease
	}
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	var out []domain.StagedFile
	for _, staged := range f.staged {
		handle, err := f.shared.Create(ctx, staged.filename, strings.NewReader(staged.content))
		if err != nil {
			return nil, err
		}
		f.created = append(f.created, handle.ID)
		out = append(out, domain.StagedFile{
			Key:          staged.key,
			Filename:     staged.filename,
			SharedFileID: handle.ID,
		})
	}
	return out, nil
}

func (f *fakePeriodic) Consume(_ context.Context, file domain.StagedFile) error {
	f.consumed = append(f.consumed, file.Key)
	return nil
}

type schedulerFixture struct {
	scheduler     *SourceScheduler
	sourceStore   *memory.SourceStore
	logStore      *memory.SourceLogStore
	scheduleStore *memory.ScheduleStore
	sharedFiles   *memory.SharedUploadedFileStore
	docStore      *memory.DocumentStore
	backend       *fakePeriodic
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	fx := &schedulerFixture{
		sourceStore:   memory.NewSourceStore(),
		logStore:      memory.NewSourceLogStore(),
		scheduleStore: memory.NewScheduleStore(),
		sharedFiles:   memory.NewSharedUploadedFileStore(),
		docStore:      memory.NewDocumentStore(),
	}
	registry := NewBackendRegistry(driven.BackendDeps{SharedFiles: fx.sharedFiles})
	fx.backend = &fakePeriodic{shared: fx.sharedFiles}
	registry.Register(domain.BackendType{ID: "fakeperiodic", Name: "Fake"},
		func(source domain.Source, _ driven.BackendDeps) (driven.Backend, error) {
			fx.backend.source = source
			return fx.backend, nil
		})
	orchestrator := NewIngestOrchestrator(fx.docStore, memory.NewTaskQueue())
	fx.scheduler = NewSourceScheduler(
		fx.sourceStore, fx.logStore, fx.scheduleStore, fx.sharedFiles, registry, orchestrator,
	)
	return fx
}

func countTasks(t *testing.T, store *memory.ScheduleStore) int {
	t.Helper()
	n, err := store.CountTasks(context.Background())
	require.NoError(t, err)
	return n
}

func countSchedules(t *testing.T, store *memory.ScheduleStore) int {
	t.Helper()
	n, err := store.CountSchedules(context.Background())
	require.NoError(t, err)
	return n
}

func periodicSource(id, interval string) domain.Source {
	return domain.Source{
		ID:      id,
		Type:    "fakeperiodic",
		Label:   "source " + id,
		Enabled: true,
		Config:  map[string]string{"interval": interval},
	}
}

func TestSourceScheduler_SharedSchedules(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.scheduler.OnSourceCreated(ctx, periodicSource("src-1", "5m")))
	require.NoError(t, fx.scheduler.OnSourceCreated(ctx, periodicSource("src-2", "5m")))
	require.NoError(t, fx.scheduler.OnSourceCreated(ctx, periodicSource("src-3", "1h")))

	// Equal intervals share one schedule record.
	assert.Equal(t, 3, countTasks(t, fx.scheduleStore))
	assert.Equal(t, 2, countSchedules(t, fx.scheduleStore))

	// The shared schedule survives until its last task goes away.
	require.NoError(t, fx.scheduler.OnSourceDeleted(ctx, "src-1"))
	assert.Equal(t, 2, countSchedules(t, fx.scheduleStore))
	require.NoError(t, fx.scheduler.OnSourceDeleted(ctx, "src-2"))
	assert.Equal(t, 1, countSchedules(t, fx.scheduleStore))
	require.NoError(t, fx.scheduler.OnSourceDeleted(ctx, "src-3"))
	assert.Equal(t, 0, countSchedules(t, fx.scheduleStore))
	assert.Equal(t, 0, countTasks(t, fx.scheduleStore))
}

func TestSourceScheduler_UpdateIsNetZero(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := periodicSource("src-1", "5m")
	require.NoError(t, fx.scheduler.OnSourceCreated(ctx, source))
	require.NoError(t, fx.scheduler.OnSourceUpdated(ctx, source))

	assert.Equal(t, 1, countTasks(t, fx.scheduleStore))
	assert.Equal(t, 1, countSchedules(t, fx.scheduleStore))
}

func TestSourceScheduler_UpdateSwitchesSchedule(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.scheduler.OnSourceCreated(ctx, periodicSource("src-1", "5m")))
	require.NoError(t, fx.scheduler.OnSourceUpdated(ctx, periodicSource("src-1", "15m")))

	assert.Equal(t, 1, countTasks(t, fx.scheduleStore))
	assert.Equal(t, 1, countSchedules(t, fx.scheduleStore))
}

func TestSourceScheduler_DeleteWithoutTask(t *testing.T) {
	fx := newSchedulerFixture(t)
	assert.NoError(t, fx.scheduler.OnSourceDeleted(context.Background(), "never-scheduled"))
}

func TestSourceScheduler_RunCheck(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := periodicSource("src-1", "5m")
	require.NoError(t, fx.sourceStore.Save(ctx, source))
	require.NoError(t, fx.scheduler.OnSourceCreated(ctx, source))
	fx.backend.staged = []stagedContent{
		{key: "a", filename: "first.txt", content: "first content"},
		{key: "b", filename: "second.txt", content: "second content"},
	}

	result, err := fx.scheduler.RunCheck(ctx, "src-1", false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.FilesIngested)
	assert.Equal(t, []string{"a", "b"}, fx.backend.consumed)

	docs, err := fx.docStore.ListDocuments(ctx, "src-1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	task, err := fx.scheduleStore.GetTaskBySource(ctx, "src-1")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.False(t, task.LastRun.IsZero())
	assert.False(t, task.LastSuccess.IsZero())
	assert.Empty(t, task.LastError)
	assert.True(t, task.NextRun.After(task.LastRun))

	history, err := fx.scheduleStore.GetHistory(ctx, task.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, task.ID, history[0].TaskID)
}

func TestSourceScheduler_RunCheckConsumesMessageOnce(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := periodicSource("src-1", "5m")
	require.NoError(t, fx.sourceStore.Save(ctx, source))

	// Two files off one message, plus a second message. The medium
	// operation runs once per message, not once per file.
	fx.backend.staged = []stagedContent{
		{key: "uid-7", filename: "body.txt", content: "covering note"},
		{key: "uid-7", filename: "invoice.pdf", content: "attachment"},
		{key: "uid-8", filename: "other.txt", content: "other"},
	}

	result, err := fx.scheduler.RunCheck(ctx, "src-1", false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.FilesIngested)
	assert.Equal(t, []string{"uid-7", "uid-8"}, fx.backend.consumed)
}

func TestSourceScheduler_RunCheckRejectsOverlap(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := periodicSource("src-1", "5m")
	require.NoError(t, fx.sourceStore.Save(ctx, source))
	fx.backend.checkStarted = make(chan struct{})
	fx.backend.checkRelease = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := fx.scheduler.RunCheck(ctx, "src-1", false)
		done <- err
	}()
	<-fx.backend.checkStarted

	_, err := fx.scheduler.RunCheck(ctx, "src-1", false)
	assert.ErrorIs(t, err, domain.ErrCheckInProgress)

	close(fx.backend.checkRelease)
	require.NoError(t, <-done)

	// The slot frees once the first check returns.
	fx.backend.checkStarted = nil
	_, err = fx.scheduler.RunCheck(ctx, "src-1", false)
	require.NoError(t, err)
}

type failingOrchestrator struct{}

func (failingOrchestrator) Ingest(context.Context, driving.IngestRequest) ([]string, error) {
	return nil, errors.New("conversion crashed")
}

func TestSourceScheduler_IngestFailureReleasesStagedCopy(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	registry := NewBackendRegistry(driven.BackendDeps{SharedFiles: fx.sharedFiles})
	registry.Register(domain.BackendType{ID: "fakeperiodic", Name: "Fake"},
		func(source domain.Source, _ driven.BackendDeps) (driven.Backend, error) {
			fx.backend.source = source
			return fx.backend, nil
		})
	scheduler := NewSourceScheduler(
		fx.sourceStore, fx.logStore, fx.scheduleStore, fx.sharedFiles, registry, failingOrchestrator{},
	)

	source := periodicSource("src-1", "5m")
	require.NoError(t, fx.sourceStore.Save(ctx, source))
	fx.backend.staged = []stagedContent{{key: "a", filename: "doc.txt", content: "content"}}

	_, err := scheduler.RunCheck(ctx, "src-1", false)
	require.Error(t, err)
	assert.Empty(t, fx.backend.consumed)

	// The staged blob does not linger; the medium still has the
	// original and the next check stages it again.
	require.Len(t, fx.backend.created, 1)
	_, err = fx.sharedFiles.Get(ctx, fx.backend.created[0])
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceScheduler_RunCheckDryRun(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := periodicSource("src-1", "5m")
	require.NoError(t, fx.sourceStore.Save(ctx, source))
	fx.backend.staged = []stagedContent{{key: "a", filename: "doc.txt", content: "content"}}

	result, err := fx.scheduler.RunCheck(ctx, "src-1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIngested)
	assert.True(t, result.DryRun)

	// Ingestion is real; only medium consumption is suppressed.
	docs, err := fx.docStore.ListDocuments(ctx, "src-1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Empty(t, fx.backend.consumed)
}

func TestSourceScheduler_RunCheckDisabledSource(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := periodicSource("src-1", "5m")
	source.Enabled = false
	require.NoError(t, fx.sourceStore.Save(ctx, source))

	_, err := fx.scheduler.RunCheck(ctx, "src-1", false)
	assert.ErrorIs(t, err, domain.ErrSourceDisabled)
}

func TestSourceScheduler_RunCheckNotPeriodic(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := domain.Source{ID: "web-1", Type: "webform", Label: "upload form", Enabled: true}
	require.NoError(t, fx.sourceStore.Save(ctx, source))

	_, err := fx.scheduler.RunCheck(ctx, "web-1", false)
	assert.ErrorIs(t, err, domain.ErrNotPeriodic)
}

func TestSourceScheduler_RunCheckBackendErrorLogged(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()

	source := periodicSource("src-1", "5m")
	require.NoError(t, fx.sourceStore.Save(ctx, source))
	require.NoError(t, fx.scheduler.OnSourceCreated(ctx, source))
	fx.backend.checkErr = errors.New("mailbox unreachable")

	result, err := fx.scheduler.RunCheck(ctx, "src-1", false)
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "mailbox unreachable")

	entries, err := fx.logStore.List(ctx, "src-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "mailbox unreachable")

	task, err := fx.scheduleStore.GetTaskBySource(ctx, "src-1")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Contains(t, task.LastError, "mailbox unreachable")
}

func TestScheduler_EnqueuesSharedFilePrune(t *testing.T) {
	fx := newSchedulerFixture(t)
	ctx := context.Background()
	queue := memory.NewTaskQueue()
	loop := NewScheduler(fx.scheduleStore, fx.sourceStore, nil, fx.scheduler, queue)

	// Repeated calls within the spacing window submit one task.
	loop.maybeEnqueuePrune(ctx)
	loop.maybeEnqueuePrune(ctx)

	task, err := queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, driven.TaskSharedFilePrune, task.Name)
	assert.Equal(t, "86400", task.Payload["age_seconds"])

	task, err = queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestScheduler_NilQueueSkipsPrune(t *testing.T) {
	fx := newSchedulerFixture(t)
	loop := NewScheduler(fx.scheduleStore, fx.sourceStore, nil, fx.scheduler, nil)
	loop.maybeEnqueuePrune(context.Background())
}

func TestCheckInterval(t *testing.T) {
	assert.Equal(t, 5*time.Minute, checkInterval(periodicSource("s", "5m")))
	assert.Equal(t, domain.DefaultCheckInterval, checkInterval(periodicSource("s", "")))
	assert.Equal(t, domain.DefaultCheckInterval, checkInterval(periodicSource("s", "not-a-duration")))
	assert.Equal(t, domain.DefaultCheckInterval, checkInterval(periodicSource("s", "-5m")))
}
