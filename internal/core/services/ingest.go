package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/archive"
	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intake-cli/internal/logger"
)

// recentDocumentCount bounds the per-user recent document registry.
const recentDocumentCount = 40

// Ensure IngestOrchestrator implements the interface.
var _ driving.IngestOrchestrator = (*IngestOrchestrator)(nil)

// IngestOrchestrator turns candidate byte streams into documents.
// Document and file rows plus their events are written synchronously;
// version and page derivation runs in the worker via the task queue.
type IngestOrchestrator struct {
	docStore driven.DocumentStore
	queue    driven.TaskQueue
}

// NewIngestOrchestrator creates a new ingest orchestrator.
func NewIngestOrchestrator(docStore driven.DocumentStore, queue driven.TaskQueue) *IngestOrchestrator {
	return &IngestOrchestrator{
		docStore: docStore,
		queue:    queue,
	}
}

// Ingest processes one candidate and returns the IDs of the documents
// it produced.
func (o *IngestOrchestrator) Ingest(ctx context.Context, req driving.IngestRequest) ([]string, error) {
	content, err := io.ReadAll(req.Reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(content) == 0 {
		return nil, domain.ErrEmptyFile
	}

	if req.Expand && archive.IsArchive(content) {
		return o.ingestArchive(ctx, req, content)
	}
	if req.AppendToDocumentID != "" {
		return o.appendRevision(ctx, req, content)
	}
	return o.createDocument(ctx, req, content)
}

// ingestArchive recurses per member. The container itself produces no
// document; zero-byte members are skipped.
func (o *IngestOrchestrator) ingestArchive(ctx context.Context, req driving.IngestRequest, content []byte) ([]string, error) {
	members, err := archive.List(content)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	var created []string
	for i := range members {
		member := &members[i]
		reader, err := member.Open()
		if err != nil {
			return created, fmt.Errorf("open member %q: %w", member.Name, err)
		}
		memberContent, err := io.ReadAll(reader)
		reader.Close() //nolint:errcheck
		if err != nil {
			return created, fmt.Errorf("read member %q: %w", member.Name, err)
		}
		if len(memberContent) == 0 {
			logger.Debug("Skipping empty archive member %q", member.Name)
			continue
		}

		memberReq := req
		memberReq.Reader = bytes.NewReader(memberContent)
		memberReq.Expand = false
		memberReq.Label = member.Name
		ids, err := o.Ingest(ctx, memberReq)
		if err != nil {
			return created, fmt.Errorf("ingest member %q: %w", member.Name, err)
		}
		created = append(created, ids...)
	}
	return created, nil
}

// createDocument is the single-document path: one Document row, one
// first DocumentFile, the creation events, and the queued derivation
// task.
func (o *IngestOrchestrator) createDocument(ctx context.Context, req driving.IngestRequest, content []byte) ([]string, error) {
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:           uuid.NewString(),
		SourceID:     req.SourceID,
		DocumentType: req.DocumentType,
		Label:        req.Label,
		Description:  req.Description,
		Language:     req.Language,
		Metadata:     req.Metadata,
		Tags:         req.Tags,
		Cabinets:     req.Cabinets,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if doc.Label == "" {
		doc.Label = "upload"
	}
	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	file, err := o.storeFile(ctx, doc, req, content)
	if err != nil {
		o.rollback(ctx, doc.ID, req.UserID)
		return nil, err
	}

	o.recordEvent(ctx, domain.EventDocumentCreated, doc.ID, doc.ID, req.UserID)
	o.recordEvent(ctx, domain.EventFileCreated, doc.ID, file.ID, req.UserID)
	o.recordEvent(ctx, domain.EventFileEdited, doc.ID, file.ID, req.UserID)

	if req.UserID != "" {
		//nolint:errcheck // recent registry is advisory
		_ = o.docStore.TouchRecent(ctx, req.UserID, doc.ID, recentDocumentCount)
	}
	if err := o.enqueueProcess(ctx, doc, file, req.UserID); err != nil {
		o.rollback(ctx, doc.ID, req.UserID)
		return nil, err
	}

	logger.Info("Ingested %q as document %s", doc.Label, doc.ID)
	return []string{doc.ID}, nil
}

// appendRevision stores the stream as a new file revision of an
// existing document.
func (o *IngestOrchestrator) appendRevision(ctx context.Context, req driving.IngestRequest, content []byte) ([]string, error) {
	doc, err := o.docStore.GetDocument(ctx, req.AppendToDocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	file, err := o.storeFile(ctx, doc, req, content)
	if err != nil {
		return nil, err
	}

	doc.UpdatedAt = time.Now().UTC()
	if err := o.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	o.recordEvent(ctx, domain.EventFileCreated, doc.ID, file.ID, req.UserID)
	o.recordEvent(ctx, domain.EventFileEdited, doc.ID, file.ID, req.UserID)

	if err := o.enqueueProcess(ctx, doc, file, req.UserID); err != nil {
		return nil, err
	}
	return []string{doc.ID}, nil
}

func (o *IngestOrchestrator) storeFile(ctx context.Context, doc *domain.Document, req driving.IngestRequest, content []byte) (*domain.DocumentFile, error) {
	checksum := sha256.Sum256(content)
	filename := req.Label
	if filename == "" {
		filename = doc.Label
	}
	file := &domain.DocumentFile{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Filename:   filename,
		MIMEType:   http.DetectContentType(content),
		Size:       int64(len(content)),
		Checksum:   hex.EncodeToString(checksum[:]),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.docStore.SaveFile(ctx, file); err != nil {
		return nil, fmt.Errorf("save file: %w", err)
	}
	return file, nil
}

func (o *IngestOrchestrator) enqueueProcess(ctx context.Context, doc *domain.Document, file *domain.DocumentFile, userID string) error {
	err := o.queue.Enqueue(ctx, driven.TaskFileProcess, map[string]string{
		"document_id": doc.ID,
		"file_id":     file.ID,
		"source_id":   doc.SourceID,
		"user_id":     userID,
	})
	if err != nil {
		return fmt.Errorf("enqueue processing: %w", err)
	}
	return nil
}

// rollback hard-deletes a document whose creation did not complete.
func (o *IngestOrchestrator) rollback(ctx context.Context, documentID, userID string) {
	if err := o.docStore.DeleteDocument(ctx, documentID); err != nil {
		logger.Warn("Rollback of document %s failed: %v", documentID, err)
		return
	}
	o.recordEvent(ctx, domain.EventDocumentRolledBack, documentID, documentID, userID)
}

func (o *IngestOrchestrator) recordEvent(ctx context.Context, name, documentID, targetID, userID string) {
	err := o.docStore.RecordEvent(ctx, &domain.EventRecord{
		Name:       name,
		DocumentID: documentID,
		TargetID:   targetID,
		UserID:     userID,
	})
	if err != nil {
		logger.Warn("Recording %s for document %s failed: %v", name, documentID, err)
	}
}
