package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
)

// Ensure SourceService implements the interface.
var _ driving.SourceService = (*SourceService)(nil)

// SourceService manages source configurations.
type SourceService struct {
	sourceStore driven.SourceStore
	logStore    driven.SourceLogStore
	registry    *BackendRegistry
	scheduler   driving.SourceScheduler
}

// NewSourceService creates a new source service.
func NewSourceService(
	sourceStore driven.SourceStore,
	logStore driven.SourceLogStore,
	registry *BackendRegistry,
) *SourceService {
	return &SourceService{
		sourceStore: sourceStore,
		logStore:    logStore,
		registry:    registry,
	}
}

// SetScheduler sets the scheduler notified of source lifecycle changes.
func (s *SourceService) SetScheduler(scheduler driving.SourceScheduler) {
	s.scheduler = scheduler
}

// Add creates a new source configuration and returns the stored copy,
// ID included, so callers can address the resource they just created.
func (s *SourceService) Add(ctx context.Context, source domain.Source) (*domain.Source, error) {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	existing, err := s.sourceStore.Get(ctx, source.ID)
	if err == nil && existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	if err := s.validate(ctx, &source); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	source.CreatedAt = now
	source.UpdatedAt = now
	if err := s.sourceStore.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("save source: %w", err)
	}

	if s.scheduler != nil && s.isPeriodic(source.Type) {
		if err := s.scheduler.OnSourceCreated(ctx, source); err != nil {
			return nil, fmt.Errorf("schedule source: %w", err)
		}
	}
	return &source, nil
}

// Get retrieves a source by ID.
func (s *SourceService) Get(ctx context.Context, id string) (*domain.Source, error) {
	return s.sourceStore.Get(ctx, id)
}

// List returns all configured sources.
func (s *SourceService) List(ctx context.Context) ([]domain.Source, error) {
	return s.sourceStore.List(ctx)
}

// Update modifies an existing source configuration.
func (s *SourceService) Update(ctx context.Context, source domain.Source) error {
	if source.ID == "" {
		return domain.ErrInvalidInput
	}
	existing, err := s.sourceStore.Get(ctx, source.ID)
	if err != nil {
		return err
	}

	if err := s.validate(ctx, &source); err != nil {
		return err
	}

	source.CreatedAt = existing.CreatedAt
	source.UpdatedAt = time.Now().UTC()
	if err := s.sourceStore.Save(ctx, source); err != nil {
		return fmt.Errorf("save source: %w", err)
	}

	if s.scheduler != nil && s.isPeriodic(source.Type) {
		if err := s.scheduler.OnSourceUpdated(ctx, source); err != nil {
			return fmt.Errorf("reschedule source: %w", err)
		}
	}
	return nil
}

// Remove deletes a source, its log, and its periodic task.
func (s *SourceService) Remove(ctx context.Context, id string) error {
	source, err := s.sourceStore.Get(ctx, id)
	if err != nil {
		return err
	}

	if s.scheduler != nil && s.isPeriodic(source.Type) {
		if err := s.scheduler.OnSourceDeleted(ctx, id); err != nil {
			return fmt.Errorf("unschedule source: %w", err)
		}
	}
	if s.logStore != nil {
		//nolint:errcheck // continue cleanup on log deletion failure
		_ = s.logStore.DeleteForSource(ctx, id)
	}
	return s.sourceStore.Delete(ctx, id)
}

// Log returns recent diagnostic entries for a source, newest first.
func (s *SourceService) Log(ctx context.Context, id string, limit int) ([]domain.SourceLogEntry, error) {
	if _, err := s.sourceStore.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.logStore.List(ctx, id, limit)
}

// ExecuteAction dispatches a backend-declared action for a source.
func (s *SourceService) ExecuteAction(ctx context.Context, id, action string, args domain.ActionArgs) (any, error) {
	source, err := s.sourceStore.Get(ctx, id)
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
	for _, declared := range backend.Actions() {
		if declared.Name == action {
			return backend.ExecuteAction(ctx, action, args)
		}
	}
	return nil, domain.ErrUnknownAction
}

// validate runs the per-field schema check followed by the backend's
// own Clean. Field errors from both are surfaced as one
// ValidationError.
func (s *SourceService) validate(ctx context.Context, source *domain.Source) error {
	if _, err := s.registry.Get(source.Type); err != nil {
		return fmt.Errorf("unknown backend type %q: %w", source.Type, err)
	}
	if err := s.registry.ValidateConfig(source.Type, source.Config); err != nil {
		return err
	}

	backend, err := s.registry.Build(*source)
	if err != nil {
		return err
	}
	if err := backend.Clean(ctx); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

func (s *SourceService) isPeriodic(backendType string) bool {
	typeInfo, err := s.registry.Get(backendType)
	if err != nil {
		return false
	}
	return !typeInfo.Interactive
}
