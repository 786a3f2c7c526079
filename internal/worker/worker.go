// Package worker executes queued background tasks: page derivation for
// ingested files, duplicate scans, and shared file pruning.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/logger"
)

const (
	defaultVisibility = 5 * time.Minute
	defaultNackDelay  = 30 * time.Second
	defaultIdleSleep  = time.Second
	maxAttempts       = 3
)

// Worker claims tasks from the queue and runs them until its context is
// cancelled. A task that keeps failing is dropped after maxAttempts so
// a poisoned payload cannot wedge the queue.
type Worker struct {
	queue       driven.TaskQueue
	docStore    driven.DocumentStore
	sourceStore driven.SourceStore
	sharedFiles driven.SharedUploadedFileStore

	visibility time.Duration
	nackDelay  time.Duration
	idleSleep  time.Duration
}

// New creates a worker over the task queue.
func New(
	queue driven.TaskQueue,
	docStore driven.DocumentStore,
	sourceStore driven.SourceStore,
	sharedFiles driven.SharedUploadedFileStore,
) *Worker {
	return &Worker{
		queue:       queue,
		docStore:    docStore,
		sourceStore: sourceStore,
		sharedFiles: sharedFiles,
		visibility:  defaultVisibility,
		nackDelay:   defaultNackDelay,
		idleSleep:   defaultIdleSleep,
	}
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !w.RunOnce(ctx) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.idleSleep):
			}
		}
	}
}

// RunOnce claims and executes at most one task. Returns false when the
// queue was empty.
func (w *Worker) RunOnce(ctx context.Context) bool {
	task, err := w.queue.Claim(ctx, w.visibility)
	if err != nil {
		log.Printf("worker: claim failed: %v", err)
		return false
	}
	if task == nil {
		return false
	}

	if err := w.execute(ctx, task); err != nil {
		log.Printf("worker: task %s (%s) failed: %v", task.ID, task.Name, err)
		if task.Attempts >= maxAttempts {
			log.Printf("worker: dropping task %s after %d attempts", task.ID, task.Attempts)
			//nolint:errcheck // dropped tasks have nowhere left to go
			_ = w.queue.Ack(ctx, task.ID)
			return true
		}
		//nolint:errcheck // the task reappears after its visibility window anyway
		_ = w.queue.Nack(ctx, task.ID, w.nackDelay)
		return true
	}

	if err := w.queue.Ack(ctx, task.ID); err != nil {
		log.Printf("worker: ack of task %s failed: %v", task.ID, err)
	}
	return true
}

func (w *Worker) execute(ctx context.Context, task *driven.QueuedTask) error {
	switch task.Name {
	case driven.TaskFileProcess:
		return w.processFile(ctx, task.Payload)
	case driven.TaskDocumentDuplicates:
		return w.scanDuplicates(ctx, task.Payload)
	case driven.TaskSharedFilePrune:
		return w.pruneSharedFiles(ctx, task.Payload)
	default:
		return fmt.Errorf("unknown task %q", task.Name)
	}
}

// processFile derives the version and page rows for a stored file and
// completes the creation event chain. A failure here rolls the whole
// document back so no half-processed document survives.
func (w *Worker) processFile(ctx context.Context, payload map[string]string) error {
	documentID := payload["document_id"]
	fileID := payload["file_id"]
	userID := payload["user_id"]

	file, err := w.docStore.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("get file %s: %w", fileID, err)
	}

	pages, err := countPages(file)
	if err != nil {
		w.rollback(ctx, documentID, userID)
		return fmt.Errorf("count pages of %q: %w", file.Filename, err)
	}
	transformations, err := w.sourceTransformations(ctx, payload["source_id"])
	if err != nil {
		return err
	}

	version := &domain.DocumentVersion{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		FileID:     fileID,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := w.docStore.SaveVersion(ctx, version); err != nil {
		w.rollback(ctx, documentID, userID)
		return fmt.Errorf("save version: %w", err)
	}
	w.recordEvent(ctx, domain.EventVersionCreated, documentID, version.ID, userID)

	for number := 1; number <= pages; number++ {
		page := &domain.DocumentPage{
			ID:              uuid.NewString(),
			VersionID:       version.ID,
			Number:          number,
			Transformations: transformations,
		}
		if err := w.docStore.SavePage(ctx, page); err != nil {
			w.rollback(ctx, documentID, userID)
			return fmt.Errorf("save page %d: %w", number, err)
		}
		w.recordEvent(ctx, domain.EventPageCreated, documentID, page.ID, userID)
	}

	logger.Debug("Derived %d page(s) for document %s", pages, documentID)

	return w.queue.Enqueue(ctx, driven.TaskDocumentDuplicates, map[string]string{
		"document_id": documentID,
		"file_id":     fileID,
	})
}

// scanDuplicates finds other documents holding a file with the same
// checksum. Findings are informational.
func (w *Worker) scanDuplicates(ctx context.Context, payload map[string]string) error {
	fileID := payload["file_id"]
	file, err := w.docStore.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("get file %s: %w", fileID, err)
	}

	duplicates, err := w.docStore.FindByChecksum(ctx, file.Checksum, fileID)
	if err != nil {
		return fmt.Errorf("find duplicates: %w", err)
	}
	if len(duplicates) > 0 {
		logger.Info("Document %s duplicates %s", payload["document_id"], strings.Join(duplicates, ", "))
	}
	return nil
}

// pruneSharedFiles reclaims shared upload handles orphaned by crashed
// tasks.
func (w *Worker) pruneSharedFiles(ctx context.Context, payload map[string]string) error {
	ageSeconds, err := strconv.ParseInt(payload["age_seconds"], 10, 64)
	if err != nil || ageSeconds <= 0 {
		return fmt.Errorf("%w: bad age_seconds %q", domain.ErrInvalidInput, payload["age_seconds"])
	}
	pruned, err := w.sharedFiles.DeleteOlderThan(ctx, ageSeconds)
	if err != nil {
		return fmt.Errorf("prune shared files: %w", err)
	}
	if pruned > 0 {
		logger.Info("Pruned %d orphaned shared upload(s)", pruned)
	}
	return nil
}

// sourceTransformations loads the saved page transformations configured
// on the producing source, when there is one.
func (w *Worker) sourceTransformations(ctx context.Context, sourceID string) ([]domain.Transformation, error) {
	if sourceID == "" {
		return nil, nil
	}
	source, err := w.sourceStore.Get(ctx, sourceID)
	if err != nil {
		// The source may have been removed since the upload.
		return nil, nil //nolint:nilerr
	}
	encoded := source.ConfigValue("transformations", "")
	if encoded == "" {
		return nil, nil
	}
	transformations, err := domain.ParseTransformations(encoded)
	if err != nil {
		return nil, fmt.Errorf("source %s transformations: %w", sourceID, err)
	}
	return transformations, nil
}

// countPages returns the page count of a stored file. PDFs are counted
// through their cross-reference table; everything else is one page.
func countPages(file *domain.DocumentFile) (int, error) {
	if file.MIMEType != "application/pdf" && !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		return 1, nil
	}
	count, err := api.PageCount(bytes.NewReader(file.Content), nil)
	if err != nil {
		return 0, err
	}
	if count < 1 {
		return 1, nil
	}
	return count, nil
}

func (w *Worker) rollback(ctx context.Context, documentID, userID string) {
	if err := w.docStore.DeleteDocument(ctx, documentID); err != nil {
		log.Printf("worker: rollback of document %s failed: %v", documentID, err)
		return
	}
	w.recordEvent(ctx, domain.EventDocumentRolledBack, documentID, documentID, userID)
}

func (w *Worker) recordEvent(ctx context.Context, name, documentID, targetID, userID string) {
	err := w.docStore.RecordEvent(ctx, &domain.EventRecord{
		Name:       name,
		DocumentID: documentID,
		TargetID:   targetID,
		UserID:     userID,
	})
	if err != nil {
		log.Printf("worker: recording %s for document %s failed: %v", name, documentID, err)
	}
}
