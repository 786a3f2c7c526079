package driving

import (
	"context"
	"io"
)

// IngestRequest carries one candidate byte stream into the orchestrator.
type IngestRequest struct {
	// Reader supplies the candidate's bytes.
	Reader io.Reader

	// SourceID is the producing source, empty for direct API uploads.
	SourceID string

	// DocumentType classifies the resulting documents.
	DocumentType string

	// Expand requests archive expansion: a recognised archive yields
	// one document per member instead of one for the container.
	Expand bool

	// Label is the document label; member names override it during
	// expansion.
	Label string

	// Description is optional free text copied onto the documents.
	Description string

	// Language is an optional ISO 639 hint.
	Language string

	// Metadata, Tags and Cabinets are applied to every produced
	// document (wizard output or email-level metadata).
	Metadata map[string]string
	Tags     []string
	Cabinets []string

	// UserID is the acting user, empty for background ingestion.
	UserID string

	// AppendToDocumentID, when set, stores the stream as a new file
	// revision of an existing document instead of creating one.
	AppendToDocumentID string
}

// IngestOrchestrator turns candidate byte streams into documents.
type IngestOrchestrator interface {
	// Ingest processes one candidate and returns the IDs of the
	// documents it produced (>1 only when an archive was expanded,
	// 0 when every member was skipped).
	Ingest(ctx context.Context, req IngestRequest) ([]string, error)
}
