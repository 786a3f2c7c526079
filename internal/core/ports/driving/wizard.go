package driving

import (
	"context"
	"net/url"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// WizardState is one in-progress multi-step upload session.
type WizardState struct {
	// SessionID identifies the session in the session store.
	SessionID string

	// CurrentStep is the active step name, empty when Done.
	CurrentStep string

	// Done is true once every applicable step has been submitted.
	Done bool

	// StepData holds each submitted step's partial result.
	StepData map[string]url.Values
}

// WizardService drives the multi-step interactive upload flow.
type WizardService interface {
	// Begin creates a session positioned at the first applicable step.
	Begin(ctx context.Context) (*WizardState, error)

	// Submit records validated form data for the current step and
	// advances past steps whose predicate does not apply.
	Submit(ctx context.Context, sessionID string, data url.Values) (*WizardState, error)

	// Result merges every step's partial result into the combined
	// query parameter set handed to the upload entry point.
	// Only valid once the session is Done.
	Result(ctx context.Context, sessionID string) (url.Values, error)

	// PostUpload invokes each registered step's post-upload hook in
	// registration order for a created document.
	PostUpload(ctx context.Context, doc *domain.Document, query url.Values) error
}
