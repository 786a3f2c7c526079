package domain

import "time"

// Event names fired during document creation, in the order they occur
// for a successfully ingested file.
const (
	EventDocumentCreated    = "document.created"
	EventFileCreated        = "document.file.created"
	EventFileEdited         = "document.file.edited"
	EventVersionCreated     = "document.version.created"
	EventPageCreated        = "document.version.page.created"
	EventDocumentRolledBack = "document.rolled_back"
)

// CreationEventSequence is the fixed event chain for one ingested file.
// It runs exactly once per file, including per archive member when a
// compressed upload is expanded.
var CreationEventSequence = []string{
	EventDocumentCreated,
	EventFileCreated,
	EventFileEdited,
	EventVersionCreated,
	EventPageCreated,
}

// EventRecord is one emitted event, persisted for audit and testing.
type EventRecord struct {
	// ID is the unique identifier for the record.
	ID int64

	// Name is the event name.
	Name string

	// DocumentID is the subject document.
	DocumentID string

	// TargetID is the concrete subject (file, version, page) when it
	// differs from the document.
	TargetID string

	// UserID is the acting user, empty for background activity.
	UserID string

	// CreatedAt is when the event was emitted.
	CreatedAt time.Time
}
