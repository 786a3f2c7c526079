package sqlite

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	// Create a temporary directory for the test database
	tempDir, err := os.MkdirTemp("", "intake-test-*")
	require.NoError(t, err)

	// Create store in temp directory
	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	// Return cleanup function
	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestSource creates a test source row.
func createTestSource(t *testing.T, store *Store, sourceID string) {
	t.Helper()
	source := domain.Source{
		ID:      sourceID,
		Type:    "webform",
		Label:   "Test Source " + sourceID,
		Enabled: true,
		Config:  map[string]string{},
	}
	require.NoError(t, store.SourceStore().Save(context.Background(), source))
}

// createTestDocument creates a test document row.
func createTestDocument(t *testing.T, store *Store, docID, sourceID string) {
	t.Helper()
	doc := &domain.Document{
		ID:       docID,
		SourceID: sourceID,
		Label:    "doc " + docID,
	}
	require.NoError(t, store.DocumentStore().SaveDocument(context.Background(), doc))
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "intake-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, store.Path())
}

func TestMigrate_Idempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "intake-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	createTestSource(t, store, "source-1")
	require.NoError(t, store.Close())

	// Reopening must not re-apply migrations or lose data.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	source, err := store.SourceStore().Get(context.Background(), "source-1")
	require.NoError(t, err)
	assert.Equal(t, "webform", source.Type)
}

func TestSourceStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	source := domain.Source{
		ID:      "source-1",
		Type:    "imap",
		Label:   "Mail",
		Enabled: true,
		Config: map[string]string{
			"host":     "imap.example.com",
			"port":     "993",
			"username": "amy",
		},
	}
	require.NoError(t, store.SourceStore().Save(ctx, source))

	got, err := store.SourceStore().Get(ctx, "source-1")
	require.NoError(t, err)
	assert.Equal(t, source.ID, got.ID)
	assert.Equal(t, source.Type, got.Type)
	assert.Equal(t, source.Label, got.Label)
	assert.True(t, got.Enabled)
	assert.Equal(t, source.Config, got.Config)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSourceStore_GetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.SourceStore().Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceStore_Upsert(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	createTestSource(t, store, "source-1")

	first, err := store.SourceStore().Get(ctx, "source-1")
	require.NoError(t, err)

	first.Label = "Renamed"
	first.Enabled = false
	first.UpdatedAt = time.Now().UTC().Add(time.Minute)
	require.NoError(t, store.SourceStore().Save(ctx, *first))

	got, err := store.SourceStore().Get(ctx, "source-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Label)
	assert.False(t, got.Enabled)

	sources, err := store.SourceStore().List(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 1)
}

func TestSourceStore_ListOrderedByLabel(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, s := range []struct{ id, label string }{
		{"source-1", "zeta"},
		{"source-2", "alpha"},
		{"source-3", "mid"},
	} {
		require.NoError(t, store.SourceStore().Save(ctx, domain.Source{
			ID: s.id, Type: "webform", Label: s.label, Enabled: true,
			Config: map[string]string{},
		}))
	}

	sources, err := store.SourceStore().List(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "alpha", sources[0].Label)
	assert.Equal(t, "mid", sources[1].Label)
	assert.Equal(t, "zeta", sources[2].Label)
}

func TestSourceStore_Delete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	createTestSource(t, store, "source-1")

	require.NoError(t, store.SourceStore().Delete(ctx, "source-1"))

	_, err := store.SourceStore().Get(ctx, "source-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceLogStore_NewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	logs := store.SourceLogStore()

	require.NoError(t, logs.Append(ctx, "source-1", "first"))
	require.NoError(t, logs.Append(ctx, "source-1", "second"))
	require.NoError(t, logs.Append(ctx, "source-2", "other"))

	entries, err := logs.List(ctx, "source-1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "first", entries[1].Message)

	limited, err := logs.List(ctx, "source-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "second", limited[0].Message)

	require.NoError(t, logs.DeleteForSource(ctx, "source-1"))
	entries, err = logs.List(ctx, "source-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDocumentStore_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	doc := &domain.Document{
		ID:           "doc-1",
		SourceID:     "source-1",
		DocumentType: "invoice",
		Label:        "march.pdf",
		Language:     "en",
		Metadata:     map[string]string{"author": "amy"},
		Tags:         []string{"hr", "urgent"},
		Cabinets:     []string{"2026"},
	}
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Label, got.Label)
	assert.Equal(t, doc.Metadata, got.Metadata)
	assert.Equal(t, doc.Tags, got.Tags)
	assert.Equal(t, doc.Cabinets, got.Cabinets)
	assert.False(t, got.CreatedAt.IsZero())

	listed, err := docs.ListDocuments(ctx, "source-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestDocumentStore_FileContentRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "source-1")

	content := []byte("hello intake")
	file := &domain.DocumentFile{
		ID:         "file-1",
		DocumentID: "doc-1",
		Filename:   "hello.txt",
		MIMEType:   "text/plain",
		Size:       int64(len(content)),
		Checksum:   strings.Repeat("ab", 32),
		Content:    content,
	}
	require.NoError(t, docs.SaveFile(ctx, file))

	got, err := docs.GetFile(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, file.Checksum, got.Checksum)
	assert.Equal(t, file.Size, got.Size)

	files, err := docs.ListFiles(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDocumentStore_FindByChecksum(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "source-1")
	createTestDocument(t, store, "doc-2", "source-1")

	checksum := strings.Repeat("cd", 32)
	for _, id := range []string{"file-1", "file-2"} {
		docID := "doc-1"
		if id == "file-2" {
			docID = "doc-2"
		}
		require.NoError(t, docs.SaveFile(ctx, &domain.DocumentFile{
			ID: id, DocumentID: docID, Filename: id + ".txt",
			Checksum: checksum, Content: []byte(id),
		}))
	}

	matches, err := docs.FindByChecksum(ctx, checksum, "file-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"file-2"}, matches)

	none, err := docs.FindByChecksum(ctx, strings.Repeat("00", 32), "file-1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDocumentStore_SaveVersionDeactivatesOthers(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "source-1")

	require.NoError(t, docs.SaveVersion(ctx, &domain.DocumentVersion{
		ID: "ver-1", DocumentID: "doc-1", FileID: "file-1", Active: true,
	}))
	require.NoError(t, docs.SaveVersion(ctx, &domain.DocumentVersion{
		ID: "ver-2", DocumentID: "doc-1", FileID: "file-2", Active: true,
	}))

	versions, err := docs.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)

	active := map[string]bool{}
	for _, v := range versions {
		active[v.ID] = v.Active
	}
	assert.False(t, active["ver-1"])
	assert.True(t, active["ver-2"])
}

func TestDocumentStore_PagesWithTransformations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "source-1")
	require.NoError(t, docs.SaveVersion(ctx, &domain.DocumentVersion{
		ID: "ver-1", DocumentID: "doc-1", FileID: "file-1", Active: true,
	}))

	require.NoError(t, docs.SavePage(ctx, &domain.DocumentPage{
		ID: "page-2", VersionID: "ver-1", Number: 2,
	}))
	require.NoError(t, docs.SavePage(ctx, &domain.DocumentPage{
		ID: "page-1", VersionID: "ver-1", Number: 1,
		Transformations: []domain.Transformation{
			{Name: "rotate", Arguments: map[string]string{"degrees": "90"}},
		},
	}))

	pages, err := docs.ListPages(ctx, "ver-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 2, pages[1].Number)
	require.Len(t, pages[0].Transformations, 1)
	assert.Equal(t, "rotate", pages[0].Transformations[0].Name)
	assert.Equal(t, "90", pages[0].Transformations[0].Arguments["degrees"])
}

func TestDocumentStore_DeleteCascades(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "source-1")
	require.NoError(t, docs.SaveFile(ctx, &domain.DocumentFile{
		ID: "file-1", DocumentID: "doc-1", Filename: "a.txt", Content: []byte("a"),
	}))
	require.NoError(t, docs.SaveVersion(ctx, &domain.DocumentVersion{
		ID: "ver-1", DocumentID: "doc-1", FileID: "file-1", Active: true,
	}))
	require.NoError(t, docs.SavePage(ctx, &domain.DocumentPage{
		ID: "page-1", VersionID: "ver-1", Number: 1,
	}))

	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	_, err := docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = docs.GetFile(ctx, "file-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	versions, err := docs.ListVersions(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, versions)
	pages, err := docs.ListPages(ctx, "ver-1")
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestDocumentStore_EventsSurviveDelete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()
	createTestDocument(t, store, "doc-1", "source-1")

	require.NoError(t, docs.RecordEvent(ctx, &domain.EventRecord{
		Name: domain.EventDocumentCreated, DocumentID: "doc-1", UserID: "user-1",
	}))
	require.NoError(t, docs.RecordEvent(ctx, &domain.EventRecord{
		Name: domain.EventDocumentRolledBack, DocumentID: "doc-1",
	}))
	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	events, err := docs.ListEvents(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDocumentCreated, events[0].Name)
	assert.Equal(t, domain.EventDocumentRolledBack, events[1].Name)
	assert.Equal(t, "user-1", events[0].UserID)
	assert.Greater(t, events[1].ID, events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestDocumentStore_RecentEviction(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		require.NoError(t, docs.TouchRecent(ctx, "user-1", id, 2))
	}

	recent, err := docs.ListRecent(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "doc-3", recent[0].DocumentID)
	assert.Equal(t, "doc-2", recent[1].DocumentID)
	assert.False(t, recent[0].AccessedAt.IsZero())

	// Re-touching moves an entry back to the front.
	require.NoError(t, docs.TouchRecent(ctx, "user-1", "doc-2", 2))
	recent, err = docs.ListRecent(ctx, "user-1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "doc-2", recent[0].DocumentID)
}

func TestScheduleStore_SharedSchedules(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	schedules := store.ScheduleStore()

	first, err := schedules.GetOrCreateSchedule(ctx, 5*time.Minute)
	require.NoError(t, err)
	second, err := schedules.GetOrCreateSchedule(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5*time.Minute, second.Interval)

	other, err := schedules.GetOrCreateSchedule(ctx, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	count, err := schedules.CountSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = schedules.GetOrCreateSchedule(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScheduleStore_DeleteScheduleIfUnused(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	schedules := store.ScheduleStore()

	schedule, err := schedules.GetOrCreateSchedule(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, schedules.SaveTask(ctx, &domain.PeriodicTask{
		ID: "task-1", Name: "check source source-1",
		ScheduleID: schedule.ID, SourceID: "source-1", Enabled: true,
	}))

	// Still referenced.
	deleted, err := schedules.DeleteScheduleIfUnused(ctx, schedule.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, schedules.DeleteTask(ctx, "task-1"))
	deleted, err = schedules.DeleteScheduleIfUnused(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	count, err := schedules.CountSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestScheduleStore_TaskRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	schedules := store.ScheduleStore()

	schedule, err := schedules.GetOrCreateSchedule(ctx, time.Hour)
	require.NoError(t, err)

	lastRun := time.Now().UTC().Truncate(time.Second)
	task := &domain.PeriodicTask{
		ID:         "task-1",
		Name:       "check source source-1",
		ScheduleID: schedule.ID,
		SourceID:   "source-1",
		LastRun:    lastRun,
		NextRun:    lastRun.Add(time.Hour),
		LastError:  "connect refused",
		Enabled:    true,
	}
	require.NoError(t, schedules.SaveTask(ctx, task))

	got, err := schedules.GetTaskBySource(ctx, "source-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.Name, got.Name)
	assert.True(t, got.LastRun.Equal(lastRun))
	assert.True(t, got.NextRun.Equal(lastRun.Add(time.Hour)))
	assert.Equal(t, "connect refused", got.LastError)
	assert.True(t, got.LastSuccess.IsZero())
	assert.True(t, got.Enabled)

	// No task for an unknown source is not an error.
	missing, err := schedules.GetTaskBySource(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	tasks, err := schedules.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	count, err := schedules.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestScheduleStore_History(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	schedules := store.ScheduleStore()

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		result := &domain.CheckResult{
			TaskID:        "task-1",
			SourceID:      "source-1",
			StartedAt:     now,
			EndedAt:       now.Add(time.Second),
			Success:       i != 1,
			FilesIngested: i,
		}
		if !result.Success {
			result.Error = "boom"
		}
		require.NoError(t, schedules.RecordResult(ctx, result))
	}

	history, err := schedules.GetHistory(ctx, "task-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Newest first.
	assert.Equal(t, 2, history[0].FilesIngested)
	assert.Equal(t, 0, history[2].FilesIngested)
	assert.False(t, history[1].Success)
	assert.Equal(t, "boom", history[1].Error)
	assert.True(t, history[0].StartedAt.Equal(now))

	limited, err := schedules.GetHistory(ctx, "task-1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestScheduleStore_PruneHistoryPerTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	schedules := store.ScheduleStore()

	now := time.Now().UTC()
	for _, taskID := range []string{"task-1", "task-2"} {
		for i := 0; i < 4; i++ {
			require.NoError(t, schedules.RecordResult(ctx, &domain.CheckResult{
				TaskID: taskID, SourceID: "source-1",
				StartedAt: now, EndedAt: now,
				Success: true, FilesIngested: i,
			}))
		}
	}

	require.NoError(t, schedules.PruneHistory(ctx, 2))

	for _, taskID := range []string{"task-1", "task-2"} {
		history, err := schedules.GetHistory(ctx, taskID, 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		// The newest results survive.
		assert.Equal(t, 3, history[0].FilesIngested)
		assert.Equal(t, 2, history[1].FilesIngested)
	}
}

func TestScheduleStore_DeleteTaskRemovesHistory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	schedules := store.ScheduleStore()

	require.NoError(t, schedules.SaveTask(ctx, &domain.PeriodicTask{
		ID: "task-1", Name: "check source source-1",
		ScheduleID: "sched-1", SourceID: "source-1", Enabled: true,
	}))
	now := time.Now().UTC()
	require.NoError(t, schedules.RecordResult(ctx, &domain.CheckResult{
		TaskID: "task-1", SourceID: "source-1",
		StartedAt: now, EndedAt: now, Success: true,
	}))

	require.NoError(t, schedules.DeleteTask(ctx, "task-1"))

	history, err := schedules.GetHistory(ctx, "task-1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTaskQueue_ClaimAckCycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.TaskQueue()

	require.NoError(t, queue.Enqueue(ctx, driven.TaskFileProcess, map[string]string{
		"document_id": "doc-1", "file_id": "file-1",
	}))
	require.NoError(t, queue.Enqueue(ctx, driven.TaskDocumentDuplicates, map[string]string{
		"document_id": "doc-1",
	}))

	// FIFO order.
	task, err := queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, driven.TaskFileProcess, task.Name)
	assert.Equal(t, "file-1", task.Payload["file_id"])
	assert.Equal(t, 1, task.Attempts)

	// The claimed task is invisible; the second one comes next.
	second, err := queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, driven.TaskDocumentDuplicates, second.Name)

	empty, err := queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, empty)

	require.NoError(t, queue.Ack(ctx, task.ID))
	require.NoError(t, queue.Ack(ctx, second.ID))

	empty, err = queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestTaskQueue_NackRestoresVisibility(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	queue := store.TaskQueue()

	require.NoError(t, queue.Enqueue(ctx, driven.TaskSharedFilePrune, map[string]string{
		"age_seconds": "3600",
	}))

	task, err := queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, task)

	// Immediate redelivery with a zero delay.
	require.NoError(t, queue.Nack(ctx, task.ID, 0))

	again, err := queue.Claim(ctx, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, task.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)
	assert.Equal(t, "3600", again.Payload["age_seconds"])
}

func TestSharedFileStore_RoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	shared := store.SharedFileStore()

	handle, err := shared.Create(ctx, "scan.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID)
	assert.Equal(t, "scan.pdf", handle.Filename)
	assert.Equal(t, int64(len("pdf bytes")), handle.Size)
	assert.False(t, handle.CreatedAt.IsZero())

	got, err := shared.Get(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, handle.Filename, got.Filename)

	reader, err := shared.Open(ctx, handle.ID)
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, "pdf bytes", string(content))

	require.NoError(t, shared.Delete(ctx, handle.ID))
	_, err = shared.Get(ctx, handle.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, shared.Delete(ctx, handle.ID), domain.ErrNotFound)
}

func TestSharedFileStore_DeleteOlderThan(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	shared := store.SharedFileStore()

	stale, err := shared.Create(ctx, "stale.txt", strings.NewReader("old"))
	require.NoError(t, err)
	// Backdate the stale handle past the prune cutoff.
	_, err = store.db.Exec(
		"UPDATE shared_uploaded_files SET created_at = ? WHERE id = ?",
		time.Now().UTC().Add(-2*time.Hour).UnixNano(), stale.ID)
	require.NoError(t, err)

	fresh, err := shared.Create(ctx, "fresh.txt", strings.NewReader("new"))
	require.NoError(t, err)

	removed, err := shared.DeleteOlderThan(ctx, 3600)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = shared.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = shared.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
