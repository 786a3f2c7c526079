package file

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// Ensure PreviewCache implements the interface.
var _ driven.PreviewCache = (*PreviewCache)(nil)

// PreviewCache is a file-based implementation of driven.PreviewCache.
// Previews are stored under one directory per source; filenames are
// hashed so arbitrary staged names cannot escape the cache directory.
type PreviewCache struct {
	dir string
}

// NewPreviewCache creates a file-based preview cache rooted at dir.
// If dir is empty, defaults to ~/.intake/previews.
func NewPreviewCache(dir string) (*PreviewCache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".intake", "previews")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &PreviewCache{dir: dir}, nil
}

func (c *PreviewCache) previewPath(sourceID, encodedFilename string) string {
	sum := sha256.Sum256([]byte(encodedFilename))
	return filepath.Join(c.dir, sourceID, hex.EncodeToString(sum[:16]))
}

// Put stores preview bytes for a staging file.
func (c *PreviewCache) Put(sourceID, encodedFilename string, content []byte) error {
	path := c.previewPath(sourceID, encodedFilename)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0600)
}

// Get retrieves cached preview bytes.
func (c *PreviewCache) Get(sourceID, encodedFilename string) ([]byte, error) {
	content, err := os.ReadFile(c.previewPath(sourceID, encodedFilename))
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// Delete invalidates a staging file's cached preview.
func (c *PreviewCache) Delete(sourceID, encodedFilename string) error {
	err := os.Remove(c.previewPath(sourceID, encodedFilename))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
