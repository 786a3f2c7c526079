package driving

import (
	"context"
	"net/url"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// UploadRequest carries one interactive upload through a source.
type UploadRequest struct {
	// SourceID is the interactive source performing the upload.
	SourceID string

	// Args are the backend action arguments: the posted file for web
	// forms, the selected staging key, scan options.
	Args domain.ActionArgs

	// DocumentType classifies the produced documents.
	DocumentType string

	// Description and Language are copied onto the documents.
	Description string
	Language    string

	// Query is the wizard's merged query set (metadata, tags,
	// cabinets), empty when the wizard was skipped.
	Query url.Values

	// UserID is the acting user.
	UserID string
}

// UploadService is the interactive upload entry point: it resolves the
// candidate through the source's backend, runs it through the
// orchestrator, and fires the post-creation hooks.
type UploadService interface {
	// Upload performs one upload and returns the produced document IDs.
	Upload(ctx context.Context, req UploadRequest) ([]string, error)
}
