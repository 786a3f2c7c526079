package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// Backend is the capability set every ingestion source implements.
// A Backend instance is constructed lazily for one Source record and is
// not persisted; the Source's Config map is its only state.
type Backend interface {
	// Type returns the backend type identifier.
	Type() string

	// Setup returns the declarative configuration field schema used to
	// render and validate the source form. No side effects.
	Setup() []domain.ConfigKey

	// Clean validates backend-specific configuration invariants beyond
	// per-field presence (e.g., the configured directory must exist).
	// Returns a *domain.ValidationError on violation. Called before
	// every save.
	Clean(ctx context.Context) error

	// Actions returns the named operations this backend exposes to the
	// API layer. Empty for backends with no control surface.
	Actions() []domain.Action

	// ExecuteAction dispatches a declared action by name.
	// Returns domain.ErrUnknownAction for undeclared names.
	ExecuteAction(ctx context.Context, name string, args domain.ActionArgs) (any, error)
}

// InteractiveBackend accepts one user-submitted file per upload
// (web form, staging folder selection, scanner run).
type InteractiveBackend interface {
	Backend

	// UploadFile extracts the single candidate from validated form
	// data: the posted bytes, the selected staging file, or a freshly
	// scanned image.
	UploadFile(ctx context.Context, args domain.ActionArgs) (*domain.UploadedFile, error)
}

// PeriodicBackend is polled on a schedule without user interaction
// (watch folder, mailbox).
type PeriodicBackend interface {
	Backend

	// CheckFiles contacts the external medium and returns zero or more
	// new candidate files with their bytes already persisted as shared
	// uploaded files. It must be idempotent against reprocessing:
	// consumption side effects happen only in Consume. dryRun is
	// threaded through so backends can skip mutating commands that
	// cannot be deferred (IMAP store flags).
	CheckFiles(ctx context.Context, dryRun bool) ([]domain.StagedFile, error)

	// Consume removes or marks a candidate on the external medium after
	// its ingestion succeeded (delete the file, DELE the message,
	// store/expunge the UID). Never called under dry run.
	Consume(ctx context.Context, staged domain.StagedFile) error
}

// WakeupBackend can push a hint that new candidates appeared, letting
// the scheduler run a check before the next interval tick. The hint is
// advisory: the periodic tick remains the source of truth.
type WakeupBackend interface {
	// Wakeups returns a channel that receives a signal per change
	// burst. The channel closes when ctx is cancelled.
	Wakeups(ctx context.Context) (<-chan struct{}, error)
}

// CallbackBackend is notified after a document file is durably created
// from one of its candidates, for cleanup it could not safely do
// earlier.
type CallbackBackend interface {
	// Callback receives the created document file's ID plus the staged
	// candidate it came from.
	Callback(ctx context.Context, fileID string, staged domain.StagedFile) error
}

// BackendBuilder constructs a Backend for one source. Deps carries the
// infrastructure a backend may need; unused fields are nil.
type BackendBuilder func(source domain.Source, deps BackendDeps) (Backend, error)

// BackendDeps bundles the driven ports handed to backends at
// construction time.
type BackendDeps struct {
	SharedFiles SharedUploadedFileStore
	Previews    PreviewCache
}

// SharedUploadedFileStore persists upload bytes across the
// request/worker boundary.
type SharedUploadedFileStore interface {
	// Create persists the content and returns its handle.
	Create(ctx context.Context, filename string, content io.Reader) (*domain.SharedUploadedFile, error)

	// Get retrieves a handle by ID.
	Get(ctx context.Context, id string) (*domain.SharedUploadedFile, error)

	// Open returns a reader over the persisted content.
	Open(ctx context.Context, id string) (io.ReadCloser, error)

	// Delete removes the handle and its content.
	Delete(ctx context.Context, id string) error

	// DeleteOlderThan prunes handles orphaned by crashed tasks.
	// Returns the number removed.
	DeleteOlderThan(ctx context.Context, ageSeconds int64) (int, error)
}

// PreviewCache stores derived preview images for staging files, keyed
// by source ID and encoded filename.
type PreviewCache interface {
	// Put stores preview bytes for a staging file.
	Put(sourceID, encodedFilename string, content []byte) error

	// Get retrieves cached preview bytes.
	// Returns domain.ErrNotFound when absent.
	Get(sourceID, encodedFilename string) ([]byte, error)

	// Delete invalidates a staging file's cached preview.
	Delete(sourceID, encodedFilename string) error
}
