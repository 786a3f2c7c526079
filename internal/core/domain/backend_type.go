package domain

// BackendType describes a supported source backend.
type BackendType struct {
	// ID is the unique identifier (e.g., "webform", "staging", "imap").
	ID string

	// Name is the human-readable display name.
	Name string

	// Description provides a brief explanation of the backend.
	Description string

	// Interactive is true for backends that require a live user per
	// upload (web form, staging folder, scanner). Periodic backends
	// (watch folder, email) are checked on a schedule instead.
	Interactive bool

	// ConfigKeys lists the configuration fields declared by this backend.
	ConfigKeys []ConfigKey
}

// ConfigKey describes a configuration field for a backend.
type ConfigKey struct {
	// Key is the configuration key name.
	Key string

	// Label is the human-readable label for UI display.
	Label string

	// Description explains what this field is for.
	Description string

	// Default is the default value for this field (shown in placeholder).
	Default string

	// Required indicates whether this field must be provided.
	Required bool

	// Secret indicates whether this field should be masked in UI
	// (e.g., mailbox passwords).
	Secret bool
}

// Action is a named operation a backend exposes to the API layer beyond
// plain upload (list, delete, preview-image).
type Action struct {
	// Name is the action identifier used in dispatch URLs.
	Name string

	// Description explains what the action does.
	Description string

	// AcceptsFiles indicates the action takes a file payload
	// (multipart upload).
	AcceptsFiles bool

	// Confirmation indicates the action mutates state and must be
	// requested with an unsafe HTTP verb.
	Confirmation bool
}

// ActionArgs carries the arguments for a backend action invocation.
// Values are primitives decoded from the request; File holds the raw
// payload for file-accepting actions.
type ActionArgs struct {
	Values map[string]string
	File   *UploadedFile
}

// Value returns a named argument, or empty string.
func (a ActionArgs) Value(key string) string {
	if a.Values == nil {
		return ""
	}
	return a.Values[key]
}

// UploadedFile is an in-flight upload: a filename plus its bytes.
// It exists only within a single request; crossing the task boundary
// requires persisting it as a SharedUploadedFile first.
type UploadedFile struct {
	Filename string
	Content  []byte
}
