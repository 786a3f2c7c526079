package driven

import (
	"context"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// DocumentStore persists the document revision hierarchy.
// Backed by SQLite.
type DocumentStore interface {
	// SaveDocument stores or updates a document row.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument hard-deletes a document and everything under it.
	// Used by creation rollback; documents are otherwise never removed
	// by the pipeline.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns documents for a source, creation order.
	ListDocuments(ctx context.Context, sourceID string) ([]domain.Document, error)

	// SaveFile stores a file revision including its content.
	SaveFile(ctx context.Context, file *domain.DocumentFile) error

	// GetFile retrieves a file by ID, content included.
	GetFile(ctx context.Context, id string) (*domain.DocumentFile, error)

	// ListFiles returns a document's files in revision order.
	ListFiles(ctx context.Context, documentID string) ([]domain.DocumentFile, error)

	// FindByChecksum returns IDs of files sharing a checksum,
	// excluding the given file. Used by the duplicate scan.
	FindByChecksum(ctx context.Context, checksum, excludeFileID string) ([]string, error)

	// SaveVersion stores a version row. Saving an active version
	// deactivates the document's other versions.
	SaveVersion(ctx context.Context, version *domain.DocumentVersion) error

	// ListVersions returns a document's versions in creation order.
	ListVersions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error)

	// SavePage stores a page row.
	SavePage(ctx context.Context, page *domain.DocumentPage) error

	// ListPages returns a version's pages ordered by number.
	ListPages(ctx context.Context, versionID string) ([]domain.DocumentPage, error)

	// RecordEvent appends an event record.
	RecordEvent(ctx context.Context, event *domain.EventRecord) error

	// ListEvents returns a document's events in emission order.
	ListEvents(ctx context.Context, documentID string) ([]domain.EventRecord, error)

	// TouchRecent registers a user's access to a document, evicting
	// entries beyond the per-user bound.
	TouchRecent(ctx context.Context, userID, documentID string, keep int) error

	// ListRecent returns a user's recent documents, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.RecentDocument, error)
}
