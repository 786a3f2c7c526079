package services

import (
	"sort"

	"github.com/custodia-labs/intake-cli/internal/backends/imapmail"
	"github.com/custodia-labs/intake-cli/internal/backends/popmail"
	"github.com/custodia-labs/intake-cli/internal/backends/scanner"
	"github.com/custodia-labs/intake-cli/internal/backends/staging"
	"github.com/custodia-labs/intake-cli/internal/backends/watchfolder"
	"github.com/custodia-labs/intake-cli/internal/backends/webform"
	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
)

// Ensure BackendRegistry implements the interface.
var _ driving.BackendRegistry = (*BackendRegistry)(nil)

type backendRegistration struct {
	typeInfo domain.BackendType
	builder  driven.BackendBuilder
}

// BackendRegistry provides information about available backend types and
// constructs backend instances for sources.
type BackendRegistry struct {
	backends map[string]backendRegistration
	deps     driven.BackendDeps
}

// NewBackendRegistry creates a new backend registry with built-in backends.
func NewBackendRegistry(deps driven.BackendDeps) *BackendRegistry {
	r := &BackendRegistry{
		backends: make(map[string]backendRegistration),
		deps:     deps,
	}
	r.registerBuiltinBackends()
	return r
}

func (r *BackendRegistry) registerBuiltinBackends() {
	r.registerWebForm()
	r.registerStaging()
	r.registerWatchFolder()
	r.registerIMAP()
	r.registerPOP3()
	r.registerScanner()
}

// Register adds a backend type with its builder. Later registrations for
// the same ID replace earlier ones.
func (r *BackendRegistry) Register(typeInfo domain.BackendType, builder driven.BackendBuilder) {
	r.backends[typeInfo.ID] = backendRegistration{typeInfo: typeInfo, builder: builder}
}

func (r *BackendRegistry) registerWebForm() {
	r.Register(domain.BackendType{
		ID:          webform.BackendTypeID,
		Name:        "Web Form",
		Description: "Accept documents posted through the upload form",
		Interactive: true,
		ConfigKeys:  configKeysFor(webform.New),
	}, webform.New)
}

func (r *BackendRegistry) registerStaging() {
	r.Register(domain.BackendType{
		ID:          staging.BackendTypeID,
		Name:        "Staging Folder",
		Description: "Let users pick pre-scanned files from a server-side folder",
		Interactive: true,
		ConfigKeys:  configKeysFor(staging.New),
	}, staging.New)
}

func (r *BackendRegistry) registerWatchFolder() {
	r.Register(domain.BackendType{
		ID:          watchfolder.BackendTypeID,
		Name:        "Watch Folder",
		Description: "Ingest files dropped into a monitored directory",
		ConfigKeys:  configKeysFor(watchfolder.New),
	}, watchfolder.New)
}

func (r *BackendRegistry) registerIMAP() {
	r.Register(domain.BackendType{
		ID:          imapmail.BackendTypeID,
		Name:        "IMAP Mailbox",
		Description: "Ingest attachments from an IMAP mailbox",
		ConfigKeys:  configKeysFor(imapmail.New),
	}, imapmail.New)
}

func (r *BackendRegistry) registerPOP3() {
	r.Register(domain.BackendType{
		ID:          popmail.BackendTypeID,
		Name:        "POP3 Mailbox",
		Description: "Ingest attachments from a POP3 mailbox",
		ConfigKeys:  configKeysFor(popmail.New),
	}, popmail.New)
}

func (r *BackendRegistry) registerScanner() {
	r.Register(domain.BackendType{
		ID:          scanner.BackendTypeID,
		Name:        "Document Scanner",
		Description: "Acquire pages from a locally attached SANE scanner",
		Interactive: true,
		ConfigKeys:  configKeysFor(scanner.New),
	}, scanner.New)
}

// configKeysFor reads the declared field schema off a throwaway
// instance. Setup has no side effects, so an empty source is safe.
func configKeysFor(builder driven.BackendBuilder) []domain.ConfigKey {
	backend, err := builder(domain.Source{}, driven.BackendDeps{})
	if err != nil {
		return nil
	}
	return backend.Setup()
}

// List returns all available backend types ordered by ID.
func (r *BackendRegistry) List() []domain.BackendType {
	result := make([]domain.BackendType, 0, len(r.backends))
	for _, reg := range r.backends {
		result = append(result, reg.typeInfo)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get returns a specific backend type by ID.
func (r *BackendRegistry) Get(id string) (*domain.BackendType, error) {
	reg, ok := r.backends[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	typeInfo := reg.typeInfo
	return &typeInfo, nil
}

// ValidateConfig validates per-field configuration for a backend type.
func (r *BackendRegistry) ValidateConfig(backendID string, config map[string]string) error {
	reg, ok := r.backends[backendID]
	if !ok {
		return domain.ErrNotFound
	}

	var verr *domain.ValidationError
	for _, key := range reg.typeInfo.ConfigKeys {
		if !key.Required {
			continue
		}
		if val, exists := config[key.Key]; !exists || val == "" {
			if verr == nil {
				verr = domain.NewValidationError(key.Key, "required")
			} else {
				verr.Add(key.Key, "required")
			}
		}
	}
	if verr != nil {
		return verr
	}
	return nil
}

// Build constructs a backend instance for a source.
func (r *BackendRegistry) Build(source domain.Source) (driven.Backend, error) {
	reg, ok := r.backends[source.Type]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return reg.builder(source, r.deps)
}
