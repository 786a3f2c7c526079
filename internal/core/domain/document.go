package domain

import "time"

// Document is the stable identity for a business document. It owns an
// ordered list of DocumentFile revisions; ingestion creates the first
// file (or appends a new revision) and never deletes documents except
// to roll back a failed creation.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// SourceID links to the Source that produced this document.
	// Empty when the document was created outside the pipeline.
	SourceID string

	// DocumentType classifies the document (invoice, contract, ...).
	DocumentType string

	// Label is the human-readable title, usually the upload filename.
	Label string

	// Description is optional free text.
	Description string

	// Language is an ISO 639 language hint for downstream processing.
	Language string

	// Metadata contains applied metadata-type name/value pairs.
	Metadata map[string]string

	// Tags are attached tag names.
	Tags []string

	// Cabinets are attached cabinet names.
	Cabinets []string

	// CreatedAt is when the document was created.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// DocumentFile is one stored revision of a document's content.
type DocumentFile struct {
	// ID is the unique identifier for the file.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Filename is the name the content arrived under.
	Filename string

	// MIMEType is the detected content type.
	MIMEType string

	// Size is the stored byte size.
	Size int64

	// Checksum is the SHA-256 hex digest of the content, used for
	// duplicate detection.
	Checksum string

	// Content is the raw bytes. Loaded on demand by stores.
	Content []byte

	// CreatedAt is when the file was stored.
	CreatedAt time.Time
}

// DocumentVersion maps a file revision into the document's page sequence.
type DocumentVersion struct {
	// ID is the unique identifier for the version.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// FileID links to the DocumentFile this version derives from.
	FileID string

	// Active marks the version currently presented for the document.
	Active bool

	// Comment is an optional revision note.
	Comment string

	// CreatedAt is when the version was created.
	CreatedAt time.Time
}

// DocumentPage is one page of a version.
type DocumentPage struct {
	// ID is the unique identifier for the page.
	ID string

	// VersionID links to the owning DocumentVersion.
	VersionID string

	// Number is the 1-based page ordinal.
	Number int

	// Transformations are applied page transformations in order.
	Transformations []Transformation
}

// Transformation is a named page operation with primitive arguments
// (rotate, crop, zoom). Sources may carry saved transformations that are
// copied onto every page they produce.
type Transformation struct {
	// Name identifies the operation (e.g., "rotate").
	Name string

	// Arguments are operation-specific primitive values.
	Arguments map[string]string
}

// RecentDocument records a user's interaction with a document.
// The registry is bounded; older entries are evicted.
type RecentDocument struct {
	UserID     string
	DocumentID string
	AccessedAt time.Time
}
