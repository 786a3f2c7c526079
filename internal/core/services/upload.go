package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intake-cli/internal/logger"
)

// Ensure UploadService implements the interface.
var _ driving.UploadService = (*UploadService)(nil)

// UploadService performs interactive uploads through a source backend.
type UploadService struct {
	sourceStore  driven.SourceStore
	docStore     driven.DocumentStore
	registry     *BackendRegistry
	orchestrator driving.IngestOrchestrator
	wizard       driving.WizardService
}

// NewUploadService creates a new interactive upload service. The wizard
// is optional; without one, post-upload hooks do not run.
func NewUploadService(
	sourceStore driven.SourceStore,
	docStore driven.DocumentStore,
	registry *BackendRegistry,
	orchestrator driving.IngestOrchestrator,
	wizard driving.WizardService,
) *UploadService {
	return &UploadService{
		sourceStore:  sourceStore,
		docStore:     docStore,
		registry:     registry,
		orchestrator: orchestrator,
		wizard:       wizard,
	}
}

// Upload performs one upload and returns the produced document IDs.
func (s *UploadService) Upload(ctx context.Context, req driving.UploadRequest) ([]string, error) {
	source, err := s.sourceStore.Get(ctx, req.SourceID)
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
	interactive, ok := backend.(driven.InteractiveBackend)
	if !ok {
		return nil, fmt.Errorf("%w: source %s", domain.ErrNotInteractive, req.SourceID)
	}

	file, err := interactive.UploadFile(ctx, req.Args)
	if err != nil {
		return nil, err
	}

	metadata, tags, cabinets := DecodeWizardQuery(req.Query)
	docIDs, err := s.orchestrator.Ingest(ctx, driving.IngestRequest{
		Reader:       bytes.NewReader(file.Content),
		SourceID:     source.ID,
		DocumentType: req.DocumentType,
		Expand:       s.resolveExpand(source, req.Args),
		Label:        file.Filename,
		Description:  req.Description,
		Language:     req.Language,
		Metadata:     metadata,
		Tags:         tags,
		Cabinets:     cabinets,
		UserID:       req.UserID,
	})
	if err != nil {
		return nil, err
	}

	for _, docID := range docIDs {
		s.postUpload(ctx, backend, docID, req)
	}
	return docIDs, nil
}

// resolveExpand applies the source's uncompress policy; "ask" defers to
// the per-upload expand argument.
func (s *UploadService) resolveExpand(source *domain.Source, args domain.ActionArgs) bool {
	switch source.ConfigValue("uncompress", domain.UncompressNever) {
	case domain.UncompressAlways:
		return true
	case domain.UncompressAsk:
		return args.Value("expand") == "true"
	default:
		return false
	}
}

// postUpload runs the wizard hooks and the backend callback for one
// created document. Hook failures are logged, not raised: the document
// exists and the upload succeeded.
func (s *UploadService) postUpload(ctx context.Context, backend driven.Backend, docID string, req driving.UploadRequest) {
	doc, err := s.docStore.GetDocument(ctx, docID)
	if err != nil {
		logger.Warn("Post-upload lookup of document %s failed: %v", docID, err)
		return
	}

	if s.wizard != nil {
		if err := s.wizard.PostUpload(ctx, doc, req.Query); err != nil {
			logger.Warn("Wizard post-upload for document %s failed: %v", docID, err)
		}
	}

	callback, ok := backend.(driven.CallbackBackend)
	if !ok {
		return
	}
	fileID := ""
	if files, err := s.docStore.ListFiles(ctx, docID); err == nil && len(files) > 0 {
		fileID = files[len(files)-1].ID
	}
	staged := domain.StagedFile{Key: req.Args.Value("file"), Filename: doc.Label}
	if err := callback.Callback(ctx, fileID, staged); err != nil {
		logger.Warn("Backend callback for document %s failed: %v", docID, err)
	}
}
