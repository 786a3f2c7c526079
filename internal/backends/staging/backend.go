// Package staging implements the staging-folder source: files already
// resident in a server-side directory, awaiting explicit user selection.
package staging

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// BackendTypeID identifies this backend.
const BackendTypeID = "staging"

// Ensure Backend implements the interfaces.
var (
	_ driven.Backend            = (*Backend)(nil)
	_ driven.InteractiveBackend = (*Backend)(nil)
	_ driven.CallbackBackend    = (*Backend)(nil)
)

// Backend lists and serves files from a configured staging directory.
type Backend struct {
	source   domain.Source
	previews driven.PreviewCache
}

// New creates a staging backend for a source.
func New(source domain.Source, deps driven.BackendDeps) (driven.Backend, error) {
	return &Backend{source: source, previews: deps.Previews}, nil
}

// Type returns the backend type identifier.
func (b *Backend) Type() string { return BackendTypeID }

// Setup returns the configuration field schema.
func (b *Backend) Setup() []domain.ConfigKey {
	return ConfigKeys()
}

// ConfigKeys declares the staging folder configuration fields.
func ConfigKeys() []domain.ConfigKey {
	return []domain.ConfigKey{
		{
			Key:         "path",
			Label:       "Staging directory",
			Description: "Absolute path of the directory holding staged files",
			Required:    true,
		},
		{
			Key:         "delete_after_upload",
			Label:       "Delete after upload",
			Description: "Remove the staged file once its document is created (true/false)",
			Default:     "true",
		},
		{
			Key:         "uncompress",
			Label:       "Expand compressed files",
			Description: "Archive handling: always, never, or ask per upload",
			Default:     domain.UncompressAsk,
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
	switch b.source.ConfigValue("uncompress", domain.UncompressAsk) {
	case domain.UncompressAlways, domain.UncompressNever, domain.UncompressAsk:
	default:
		return domain.NewValidationError("uncompress", "must be always, never or ask")
	}
	return nil
}

// Actions returns the declared backend actions.
func (b *Backend) Actions() []domain.Action {
	return []domain.Action{
		{Name: "file_list", Description: "List staged files"},
		{Name: "file_image", Description: "Preview image for a staged file"},
		{Name: "file_delete", Description: "Delete a staged file", Confirmation: true},
		{Name: "file_upload", Description: "Ingest a staged file", Confirmation: true},
	}
}

// ExecuteAction dispatches a declared action by name.
func (b *Backend) ExecuteAction(ctx context.Context, name string, args domain.ActionArgs) (any, error) {
	switch name {
	case "file_list":
		return b.ListFiles(ctx)
	case "file_image":
		return b.FileImage(ctx, args.Value("file"))
	case "file_delete":
		return nil, b.DeleteFile(ctx, args.Value("file"))
	case "file_upload":
		return b.UploadFile(ctx, args)
	default:
		return nil, domain.ErrUnknownAction
	}
}

// ListFiles returns the staged files in name order. Listing is a pure
// read: repeated calls without mutation return the same ordered set.
func (b *Backend) ListFiles(_ context.Context) ([]domain.StagedFile, error) {
	dir := b.source.ConfigValue("path", "")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.NewSourceError(b.source.ID, "listing staging directory", err)
	}

	var files []domain.StagedFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, domain.StagedFile{
			Key:      EncodeFilename(entry.Name()),
			Filename: entry.Name(),
			Size:     info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// FileImage returns the preview bytes for a staged file, generating and
// caching them on first access.
func (b *Backend) FileImage(_ context.Context, key string) ([]byte, error) {
	filename, err := DecodeFilename(key)
	if err != nil {
		return nil, domain.NewValidationError("file", "invalid file key")
	}

	if b.previews != nil {
		if cached, cacheErr := b.previews.Get(b.source.ID, key); cacheErr == nil {
			return cached, nil
		}
	}

	content, err := b.readStaged(filename)
	if err != nil {
		return nil, err
	}

	if b.previews != nil {
		// Cache miss population is best effort.
		_ = b.previews.Put(b.source.ID, key, content)
	}
	return content, nil
}

// DeleteFile removes a staged file and invalidates its cached preview.
func (b *Backend) DeleteFile(_ context.Context, key string) error {
	filename, err := DecodeFilename(key)
	if err != nil {
		return domain.NewValidationError("file", "invalid file key")
	}
	if err := os.Remove(b.stagedPath(filename)); err != nil {
		return domain.NewSourceError(b.source.ID, "deleting staged file", err)
	}
	if b.previews != nil {
		_ = b.previews.Delete(b.source.ID, key)
	}
	return nil
}

// UploadFile resolves the selected staged file from validated form data.
func (b *Backend) UploadFile(_ context.Context, args domain.ActionArgs) (*domain.UploadedFile, error) {
	key := args.Value("file")
	if key == "" {
		return nil, domain.NewValidationError("file", "a staged file must be selected")
	}
	filename, err := DecodeFilename(key)
	if err != nil {
		return nil, domain.NewValidationError("file", "invalid file key")
	}
	content, err := b.readStaged(filename)
	if err != nil {
		return nil, err
	}
	return &domain.UploadedFile{Filename: filename, Content: content}, nil
}

// Callback deletes the staged file after its document file is durably
// created, when the source is configured to do so.
func (b *Backend) Callback(ctx context.Context, _ string, staged domain.StagedFile) error {
	if !b.deleteAfterUpload() {
		return nil
	}
	return b.DeleteFile(ctx, staged.Key)
}

func (b *Backend) deleteAfterUpload() bool {
	// Default is true; only an explicit false disables deletion.
	return b.source.ConfigValue("delete_after_upload", "true") != "false"
}

func (b *Backend) stagedPath(filename string) string {
	// Base-name only: staged files never leave the configured directory.
	return filepath.Join(b.source.ConfigValue("path", ""), filepath.Base(filename))
}

func (b *Backend) readStaged(filename string) ([]byte, error) {
	content, err := os.ReadFile(b.stagedPath(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: staged file %s", domain.ErrNotFound, filename)
		}
		return nil, domain.NewSourceError(b.source.ID, "reading staged file", err)
	}
	return content, nil
}

// EncodeFilename converts a staged filename into its URL-safe key, the
// same key that names its preview cache entry.
func EncodeFilename(filename string) string {
	return base64.URLEncoding.EncodeToString([]byte(filename))
}

// DecodeFilename reverses EncodeFilename.
func DecodeFilename(key string) (string, error) {
	decoded, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
