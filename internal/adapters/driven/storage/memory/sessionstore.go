package memory

import (
	"sync"
	"time"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure SessionStore implements the interface.
var _ driven.SessionStore = (*SessionStore)(nil)

type sessionEntry struct {
	value     []byte
	expiresAt time.Time
}

// SessionStore is an in-memory implementation of driven.SessionStore.
// Expired entries are dropped lazily on access.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	now     func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		entries: make(map[string]sessionEntry),
		now:     time.Now,
	}
}

// Put stores a value under the session key with a TTL.
func (s *SessionStore) Put(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.entries[key] = sessionEntry{value: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get retrieves a value.
func (s *SessionStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, domain.ErrNotFound
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Delete removes a key.
func (s *SessionStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
