// Package webform implements the interactive HTTP upload source.
package webform

import (
	"context"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
)

// BackendTypeID identifies this backend.
const BackendTypeID = "webform"

// Ensure Backend implements the interfaces.
var (
	_ driven.Backend            = (*Backend)(nil)
	_ driven.InteractiveBackend = (*Backend)(nil)
)

// Backend accepts a single HTTP-posted file per upload.
type Backend struct {
	source domain.Source
}

// New creates a webform backend for a source.
func New(source domain.Source, _ driven.BackendDeps) (driven.Backend, error) {
	return &Backend{source: source}, nil
}

// Type returns the backend type identifier.
func (b *Backend) Type() string { return BackendTypeID }

// Setup returns the configuration field schema.
func (b *Backend) Setup() []domain.ConfigKey {
	return ConfigKeys()
}

// ConfigKeys declares the webform configuration fields.
func ConfigKeys() []domain.ConfigKey {
	return []domain.ConfigKey{
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
	switch b.source.ConfigValue("uncompress", domain.UncompressAsk) {
	case domain.UncompressAlways, domain.UncompressNever, domain.UncompressAsk:
		return nil
	default:
		return domain.NewValidationError("uncompress", "must be always, never or ask")
	}
}

// Actions returns the declared backend actions.
func (b *Backend) Actions() []domain.Action {
	return []domain.Action{
		{
			Name:         "upload",
			Description:  "Upload a document file",
			AcceptsFiles: true,
			Confirmation: true,
		},
	}
}

// ExecuteAction dispatches a declared action by name.
func (b *Backend) ExecuteAction(ctx context.Context, name string, args domain.ActionArgs) (any, error) {
	switch name {
	case "upload":
		return b.UploadFile(ctx, args)
	default:
		return nil, domain.ErrUnknownAction
	}
}

// UploadFile extracts the posted file from validated form data.
func (b *Backend) UploadFile(_ context.Context, args domain.ActionArgs) (*domain.UploadedFile, error) {
	if args.File == nil || len(args.File.Content) == 0 {
		return nil, domain.NewValidationError("file", "a file is required")
	}
	return args.File, nil
}
