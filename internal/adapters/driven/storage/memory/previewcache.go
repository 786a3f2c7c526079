package memory

import (
	"sync"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure PreviewCache implements the interface.
var _ driven.PreviewCache = (*PreviewCache)(nil)

// PreviewCache is an in-memory implementation of driven.PreviewCache.
type PreviewCache struct {
	mu       sync.RWMutex
	previews map[string][]byte
}

// NewPreviewCache creates a new in-memory preview cache.
func NewPreviewCache() *PreviewCache {
	return &PreviewCache{previews: make(map[string][]byte)}
}

func previewKey(sourceID, encodedFilename string) string {
	return sourceID + "-" + encodedFilename
}

// Put stores preview bytes for a staging file.
func (c *PreviewCache) Put(sourceID, encodedFilename string, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(content))
	copy(stored, content)
	c.previews[previewKey(sourceID, encodedFilename)] = stored
	return nil
}

// Get retrieves cached preview bytes.
func (c *PreviewCache) Get(sourceID, encodedFilename string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.previews[previewKey(sourceID, encodedFilename)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return content, nil
}

// Delete invalidates a staging file's cached preview.
func (c *PreviewCache) Delete(sourceID, encodedFilename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.previews, previewKey(sourceID, encodedFilename))
	return nil
}
