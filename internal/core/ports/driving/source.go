package driving

import (
	"context"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// SourceService manages source configurations.
type SourceService interface {
	// Add creates a new source configuration and returns it with the
	// generated ID and timestamps filled in. The config is validated
	// against the backend's field schema and Clean before persisting;
	// scheduling bookkeeping for periodic backends happens after.
	Add(ctx context.Context, source domain.Source) (*domain.Source, error)

	// Get retrieves a source by ID.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// List returns all configured sources.
	List(ctx context.Context) ([]domain.Source, error)

	// Update modifies an existing source configuration, re-validating
	// and refreshing its periodic task.
	Update(ctx context.Context, source domain.Source) error

	// Remove deletes a source, its log, and its periodic task.
	Remove(ctx context.Context, id string) error

	// Log returns recent diagnostic entries for a source, newest first.
	Log(ctx context.Context, id string, limit int) ([]domain.SourceLogEntry, error)

	// ExecuteAction dispatches a backend-declared action for a source.
	ExecuteAction(ctx context.Context, id, action string, args domain.ActionArgs) (any, error)
}

// BackendRegistry provides information about available backend types.
type BackendRegistry interface {
	// List returns all available backend types.
	List() []domain.BackendType

	// Get returns a specific backend type by ID.
	Get(id string) (*domain.BackendType, error)

	// ValidateConfig validates per-field configuration for a backend
	// type. Returns a *domain.ValidationError naming missing fields.
	ValidateConfig(backendID string, config map[string]string) error
}
