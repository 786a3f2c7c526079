package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure SourceStore implements the interface.
var _ driven.SourceStore = (*SourceStore)(nil)

// SourceStore is an in-memory implementation of driven.SourceStore.
type SourceStore struct {
	mu      sync.RWMutex
	sources map[string]domain.Source
}

// NewSourceStore creates a new in-memory source store.
func NewSourceStore() *SourceStore {
	return &SourceStore{
		sources: make(map[string]domain.Source),
	}
}

// Save stores or updates a source.
func (s *SourceStore) Save(_ context.Context, source domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.ID] = source
	return nil
}

// Get retrieves a source by ID.
func (s *SourceStore) Get(_ context.Context, id string) (*domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	source, ok := s.sources[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &source, nil
}

// Delete removes a source.
func (s *SourceStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
	return nil
}

// List returns all configured sources ordered by label.
func (s *SourceStore) List(_ context.Context) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Source, 0, len(s.sources))
	for _, source := range s.sources {
		result = append(result, source)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Label < result[j].Label })
	return result, nil
}

// Ensure SourceLogStore implements the interface.
var _ driven.SourceLogStore = (*SourceLogStore)(nil)

// SourceLogStore is an in-memory implementation of driven.SourceLogStore.
type SourceLogStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.SourceLogEntry
	now     func() time.Time
}

// NewSourceLogStore creates a new in-memory source log store.
func NewSourceLogStore() *SourceLogStore {
	return &SourceLogStore{nextID: 1, now: time.Now}
}

// Append records a diagnostic message for a source.
func (s *SourceLogStore) Append(_ context.Context, sourceID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.SourceLogEntry{
		ID:        s.nextID,
		SourceID:  sourceID,
		Message:   message,
		CreatedAt: s.now().UTC(),
	})
	s.nextID++
	return nil
}

// List returns recent entries for a source, newest first.
func (s *SourceLogStore) List(_ context.Context, sourceID string, limit int) ([]domain.SourceLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.SourceLogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].SourceID != sourceID {
			continue
		}
		result = append(result, s.entries[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// DeleteForSource removes all entries for a source.
func (s *SourceLogStore) DeleteForSource(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.SourceID != sourceID {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
	return nil
}
