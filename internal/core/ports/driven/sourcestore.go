package driven

import (
	"context"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// SourceStore persists source configurations.
type SourceStore interface {
	// Save stores or updates a source.
	Save(ctx context.Context, source domain.Source) error

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// Delete removes a source.
	Delete(ctx context.Context, id string) error

	// List returns all configured sources ordered by label.
	List(ctx context.Context) ([]domain.Source, error)
}

// SourceLogStore persists append-only per-source diagnostics.
type SourceLogStore interface {
	// Append records a diagnostic message for a source.
	Append(ctx context.Context, sourceID, message string) error

	// List returns recent entries for a source, newest first.
	List(ctx context.Context, sourceID string, limit int) ([]domain.SourceLogEntry, error)

	// DeleteForSource removes all entries for a source.
	DeleteForSource(ctx context.Context, sourceID string) error
}
