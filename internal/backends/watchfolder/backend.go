// Package watchfolder implements the periodic filesystem source: files
// appearing in a configured directory are ingested and then removed.
package watchfolder

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// BackendTypeID identifies this backend.
const BackendTypeID = "watchfolder"

// Ensure Backend implements the interfaces.
var (
	_ driven.Backend         = (*Backend)(nil)
	_ driven.PeriodicBackend = (*Backend)(nil)
)

// Backend lists and consumes files from a watched directory. Each
// candidate is read under an advisory lock; files locked by another
// process are skipped and picked up on a later tick.
type Backend struct {
	source domain.Source
	shared driven.SharedUploadedFileStore
}

// New creates a watchfolder backend for a source.
func New(source domain.Source, deps driven.BackendDeps) (driven.Backend, error) {
	return &Backend{source: source, shared: deps.SharedFiles}, nil
}

// Type returns the backend type identifier.
func (b *Backend) Type() string { return BackendTypeID }

// Setup returns the configuration field schema.
func (b *Backend) Setup() []domain.ConfigKey {
	return ConfigKeys()
}

// ConfigKeys declares the watch folder configuration fields.
func ConfigKeys() []domain.ConfigKey {
	return []domain.ConfigKey{
		{
			Key:         "path",
			Label:       "Watched directory",
			Description: "Absolute path of the directory to watch",
			Required:    true,
		},
		{
			Key:         "include_subdirectories",
			Label:       "Include subdirectories",
			Description: "Also ingest files in nested directories (true/false)",
			Default:     "false",
		},
		{
			Key:         "interval",
			Label:       "Check interval",
			Description: "How often to check, as a Go duration (e.g. 10m)",
			Default:     "10m",
		},
		{
			Key:         "uncompress",
			Label:       "Expand compressed files",
			Description: "Archive handling: always or never",
			Default:     domain.UncompressNever,
		},
	}
}

// Clean validates backend-specific configuration invariants.
func (b *Backend) Clean(_ context.Context) error {
	path := b.source.ConfigValue("path", "")
	if path == "" {
		return domain.NewValidationError("path", "required")
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return domain.NewValidationError("path", "directory does not exist")
	}
	if interval := b.source.ConfigValue("interval", ""); interval != "" {
		if d, parseErr := time.ParseDuration(interval); parseErr != nil || d <= 0 {
			return domain.NewValidationError("interval", "must be a positive duration")
		}
	}
	switch b.source.ConfigValue("uncompress", domain.UncompressNever) {
	case domain.UncompressAlways, domain.UncompressNever:
		return nil
	default:
		// Periodic sources have no user to ask.
		return domain.NewValidationError("uncompress", "must be always or never")
	}
}

// Actions returns the declared backend actions.
func (b *Backend) Actions() []domain.Action { return nil }

// ExecuteAction dispatches a declared action by name.
func (b *Backend) ExecuteAction(_ context.Context, _ string, _ domain.ActionArgs) (any, error) {
	return nil, domain.ErrUnknownAction
}

// CheckFiles lists candidate files and persists their bytes as shared
// uploaded files. Consumption (deletion) happens only in Consume, so
// the check itself is idempotent.
func (b *Backend) CheckFiles(ctx context.Context, _ bool) ([]domain.StagedFile, error) {
	paths, err := b.listCandidates()
	if err != nil {
		return nil, domain.NewSourceError(b.source.ID, "listing watched directory", err)
	}

	var staged []domain.StagedFile
	for _, path := range paths {
		content, ok, err := b.readLocked(path)
		if err != nil {
			return staged, domain.NewSourceError(b.source.ID, "reading candidate file", err)
		}
		if !ok {
			// Another writer holds the file; next tick retries.
			continue
		}

		handle, err := b.shared.Create(ctx, filepath.Base(path), bytes.NewReader(content))
		if err != nil {
			return staged, err
		}
		staged = append(staged, domain.StagedFile{
			Key:          path,
			Filename:     filepath.Base(path),
			Size:         int64(len(content)),
			SharedFileID: handle.ID,
		})
	}
	return staged, nil
}

// Consume deletes an ingested candidate from the directory.
func (b *Backend) Consume(_ context.Context, staged domain.StagedFile) error {
	if err := os.Remove(staged.Key); err != nil && !os.IsNotExist(err) {
		return domain.NewSourceError(b.source.ID, "removing consumed file", err)
	}
	return nil
}

// listCandidates returns candidate paths in listing order.
func (b *Backend) listCandidates() ([]string, error) {
	root := b.source.ConfigValue("path", "")

	if !b.source.ConfigBool("include_subdirectories") {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		var paths []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(root, entry.Name()))
		}
		return paths, nil
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// readLocked reads a candidate under an advisory lock. Returns ok=false
// when the lock is held elsewhere.
func (b *Backend) readLocked(path string) ([]byte, bool, error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !locked {
		return nil, false, nil
	}
	defer lock.Unlock() //nolint:errcheck // Unlock failure leaves the flock to process exit

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}
