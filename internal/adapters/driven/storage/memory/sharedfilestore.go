package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure SharedUploadedFileStore implements the interface.
var _ driven.SharedUploadedFileStore = (*SharedUploadedFileStore)(nil)

type sharedFile struct {
	handle  domain.SharedUploadedFile
	content []byte
}

// SharedUploadedFileStore is an in-memory implementation of
// driven.SharedUploadedFileStore.
type SharedUploadedFileStore struct {
	mu    sync.RWMutex
	files map[string]sharedFile
	now   func() time.Time
}

// NewSharedUploadedFileStore creates a new in-memory shared file store.
func NewSharedUploadedFileStore() *SharedUploadedFileStore {
	return &SharedUploadedFileStore{
		files: make(map[string]sharedFile),
		now:   time.Now,
	}
}

// Create persists the content and returns its handle.
func (s *SharedUploadedFileStore) Create(_ context.Context, filename string, content io.Reader) (*domain.SharedUploadedFile, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	handle := domain.SharedUploadedFile{
		ID:        uuid.NewString(),
		Filename:  filename,
		Size:      int64(len(data)),
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[handle.ID] = sharedFile{handle: handle, content: data}
	return &handle, nil
}

// Get retrieves a handle by ID.
func (s *SharedUploadedFileStore) Get(_ context.Context, id string) (*domain.SharedUploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	handle := file.handle
	return &handle, nil
}

// Open returns a reader over the persisted content.
func (s *SharedUploadedFileStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(file.content)), nil
}

// Delete removes the handle and its content.
func (s *SharedUploadedFileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

// DeleteOlderThan prunes handles older than the given age.
func (s *SharedUploadedFileStore) DeleteOlderThan(_ context.Context, ageSeconds int64) (int, error) {
	cutoff := s.now().UTC().Add(-time.Duration(ageSeconds) * time.Second)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, file := range s.files {
		if file.handle.CreatedAt.Before(cutoff) {
			delete(s.files, id)
			removed++
		}
	}
	return removed, nil
}
