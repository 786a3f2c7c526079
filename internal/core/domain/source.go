package domain

import (
	"fmt"
	"strings"
	"time"
)

// Uncompress policies for archive-capable sources.
const (
	// UncompressAlways expands recognised archives without asking.
	UncompressAlways = "always"
	// UncompressNever ingests archives as opaque files.
	UncompressNever = "never"
	// UncompressAsk lets the uploader choose per upload (interactive only).
	UncompressAsk = "ask"
)

// Source represents a configured origin of incoming documents.
// Each source produces candidate files via a backend identified by Type.
type Source struct {
	// ID is the unique identifier for the source.
	ID string

	// Type identifies the backend type (e.g., "watchfolder", "imap").
	Type string

	// Label is the human-readable name for this source.
	Label string

	// Enabled gates both interactive listing and periodic checks.
	Enabled bool

	// Config contains backend-specific configuration.
	// It must validate against the backend's declared ConfigKeys
	// before the source is persisted.
	Config map[string]string

	// CreatedAt is when the source was created.
	CreatedAt time.Time

	// UpdatedAt is when the source was last updated.
	UpdatedAt time.Time
}

// DisplayName returns the label with the backend type when the label
// alone is ambiguous.
func (s *Source) DisplayName() string {
	if s.Label == "" {
		return s.Type
	}
	if strings.Contains(strings.ToLower(s.Label), s.Type) {
		return s.Label
	}
	return fmt.Sprintf("%s (%s)", s.Label, s.Type)
}

// ConfigValue returns a config entry, or the fallback when unset.
func (s *Source) ConfigValue(key, fallback string) string {
	if v, ok := s.Config[key]; ok && v != "" {
		return v
	}
	return fallback
}

// ConfigBool interprets a config entry as a boolean flag.
func (s *Source) ConfigBool(key string) bool {
	v := strings.ToLower(s.Config[key])
	return v == "true" || v == "1" || v == "yes"
}

// CloneConfig returns a copy of the backend configuration so callers
// can mutate without aliasing the stored map.
func (s *Source) CloneConfig() map[string]string {
	if s.Config == nil {
		return nil
	}
	out := make(map[string]string, len(s.Config))
	for k, v := range s.Config {
		out[k] = v
	}
	return out
}

// SourceLogEntry is an append-only diagnostic message for a source.
// Entries are written by backend error paths and never mutated.
type SourceLogEntry struct {
	// ID is the unique identifier for the entry.
	ID int64

	// SourceID links to the Source.
	SourceID string

	// Message is the human-readable diagnostic text.
	Message string

	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time
}

// StagedFile is one candidate produced by a backend listing or check.
// For periodic backends the handle must already be consumable: the
// backend marks/deletes what it returned only after ingestion succeeds.
type StagedFile struct {
	// Key identifies the candidate within its backend (file path,
	// message UID, encoded staging name).
	Key string

	// Filename is the label the resulting document will carry.
	Filename string

	// Size is the candidate's byte size, when the medium reports one.
	Size int64

	// SharedFileID references the persisted SharedUploadedFile holding
	// the candidate's bytes, set once the backend has fetched them.
	SharedFileID string

	// Metadata carries candidate-level metadata extracted by the
	// backend (email metadata attachment, message headers). Applied to
	// every document the candidate produces.
	Metadata map[string]string
}
