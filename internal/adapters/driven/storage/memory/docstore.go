package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	docOrder  []string
	files     map[string]domain.DocumentFile
	fileOrder []string
	versions  map[string]domain.DocumentVersion
	verOrder  []string
	pages     map[string][]domain.DocumentPage
	events    []domain.EventRecord
	nextEvent int64
	recent    map[string][]domain.RecentDocument
	now       func() time.Time
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		files:     make(map[string]domain.DocumentFile),
		versions:  make(map[string]domain.DocumentVersion),
		pages:     make(map[string][]domain.DocumentPage),
		recent:    make(map[string][]domain.RecentDocument),
		nextEvent: 1,
		now:       time.Now,
	}
}

// SaveDocument stores or updates a document row.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	if _, ok := s.documents[doc.ID]; !ok {
		s.docOrder = append(s.docOrder, doc.ID)
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// DeleteDocument removes a document and everything under it.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	for fileID, file := range s.files {
		if file.DocumentID == id {
			delete(s.files, fileID)
		}
	}
	for verID, version := range s.versions {
		if version.DocumentID == id {
			delete(s.versions, verID)
			delete(s.pages, verID)
		}
	}
	return nil
}

// ListDocuments returns documents for a source in creation order.
func (s *DocumentStore) ListDocuments(_ context.Context, sourceID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for _, id := range s.docOrder {
		doc, ok := s.documents[id]
		if ok && doc.SourceID == sourceID {
			result = append(result, doc)
		}
	}
	return result, nil
}

// SaveFile stores a file revision including its content.
func (s *DocumentStore) SaveFile(_ context.Context, file *domain.DocumentFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; !ok {
		s.fileOrder = append(s.fileOrder, file.ID)
	}
	s.files[file.ID] = *file
	return nil
}

// GetFile retrieves a file by ID, content included.
func (s *DocumentStore) GetFile(_ context.Context, id string) (*domain.DocumentFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &file, nil
}

// ListFiles returns a document's files in revision order.
func (s *DocumentStore) ListFiles(_ context.Context, documentID string) ([]domain.DocumentFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.DocumentFile
	for _, id := range s.fileOrder {
		file, ok := s.files[id]
		if ok && file.DocumentID == documentID {
			result = append(result, file)
		}
	}
	return result, nil
}

// FindByChecksum returns IDs of files sharing a checksum, excluding the
// given file.
func (s *DocumentStore) FindByChecksum(_ context.Context, checksum, excludeFileID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []string
	for _, id := range s.fileOrder {
		file, ok := s.files[id]
		if ok && file.Checksum == checksum && file.ID != excludeFileID {
			result = append(result, file.ID)
		}
	}
	return result, nil
}

// SaveVersion stores a version row. Saving an active version
// deactivates the document's other versions.
func (s *DocumentStore) SaveVersion(_ context.Context, version *domain.DocumentVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version.Active {
		for id, other := range s.versions {
			if other.DocumentID == version.DocumentID && other.ID != version.ID && other.Active {
				other.Active = false
				s.versions[id] = other
			}
		}
	}
	if _, ok := s.versions[version.ID]; !ok {
		s.verOrder = append(s.verOrder, version.ID)
	}
	s.versions[version.ID] = *version
	return nil
}

// ListVersions returns a document's versions in creation order.
func (s *DocumentStore) ListVersions(_ context.Context, documentID string) ([]domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.DocumentVersion
	for _, id := range s.verOrder {
		version, ok := s.versions[id]
		if ok && version.DocumentID == documentID {
			result = append(result, version)
		}
	}
	return result, nil
}

// SavePage stores a page row.
func (s *DocumentStore) SavePage(_ context.Context, page *domain.DocumentPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := s.pages[page.VersionID]
	for i, existing := range pages {
		if existing.ID == page.ID {
			pages[i] = *page
			return nil
		}
	}
	s.pages[page.VersionID] = append(pages, *page)
	return nil
}

// ListPages returns a version's pages ordered by number.
func (s *DocumentStore) ListPages(_ context.Context, versionID string) ([]domain.DocumentPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.DocumentPage, len(s.pages[versionID]))
	copy(result, s.pages[versionID])
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

// RecordEvent appends an event record.
func (s *DocumentStore) RecordEvent(_ context.Context, event *domain.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := *event
	record.ID = s.nextEvent
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	s.nextEvent++
	s.events = append(s.events, record)
	return nil
}

// ListEvents returns a document's events in emission order.
func (s *DocumentStore) ListEvents(_ context.Context, documentID string) ([]domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.EventRecord
	for _, event := range s.events {
		if event.DocumentID == documentID {
			result = append(result, event)
		}
	}
	return result, nil
}

// TouchRecent registers a user's access to a document, evicting entries
// beyond the per-user bound.
func (s *DocumentStore) TouchRecent(_ context.Context, userID, documentID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.recent[userID]
	kept := entries[:0]
	for _, entry := range entries {
		if entry.DocumentID != documentID {
			kept = append(kept, entry)
		}
	}
	kept = append(kept, domain.RecentDocument{
		UserID:     userID,
		DocumentID: documentID,
		AccessedAt: s.now().UTC(),
	})
	if keep > 0 && len(kept) > keep {
		kept = kept[len(kept)-keep:]
	}
	s.recent[userID] = kept
	return nil
}

// ListRecent returns a user's recent documents, newest first.
func (s *DocumentStore) ListRecent(_ context.Context, userID string, limit int) ([]domain.RecentDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.recent[userID]
	var result []domain.RecentDocument
	for i := len(entries) - 1; i >= 0; i-- {
		result = append(result, entries[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}
