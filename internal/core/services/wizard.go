package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
)

// wizardSessionTTL bounds how long an idle wizard session survives.
const wizardSessionTTL = 30 * time.Minute

// WizardStep is one registered step of the upload wizard. Steps are
// visited in ordinal order; a step whose Applies predicate returns
// false is skipped for the session.
type WizardStep struct {
	// Name uniquely identifies the step.
	Name string

	// Ordinal fixes the step's position in the flow.
	Ordinal int

	// Applies reports whether the step participates. Nil means always.
	Applies func(ctx context.Context) bool

	// ExtractResult maps the submitted form data to the step's
	// contribution to the combined query set. Nil passes data through.
	ExtractResult func(data url.Values) url.Values

	// PostUpload runs after a document was created from the wizard's
	// output. Nil for steps without a hook.
	PostUpload func(ctx context.Context, doc *domain.Document, query url.Values) error
}

// Ensure WizardService implements the interface.
var _ driving.WizardService = (*WizardService)(nil)

// WizardService drives the multi-step interactive upload flow. The step
// registry is mutable at runtime and fully reversible, so deployments
// and tests can install or remove steps without restarts.
type WizardService struct {
	sessions driven.SessionStore

	mu    sync.RWMutex
	steps []WizardStep
}

// NewWizardService creates a wizard service with no steps registered.
func NewWizardService(sessions driven.SessionStore) *WizardService {
	return &WizardService{sessions: sessions}
}

// Register adds a step. The name must be unused.
func (s *WizardService) Register(step WizardStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.steps {
		if existing.Name == step.Name {
			return fmt.Errorf("%w: step %q", domain.ErrAlreadyExists, step.Name)
		}
	}
	s.steps = append(s.steps, step)
	sort.SliceStable(s.steps, func(i, j int) bool { return s.steps[i].Ordinal < s.steps[j].Ordinal })
	return nil
}

// Deregister removes a step by name, undoing its registration.
func (s *WizardService) Deregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.steps {
		if existing.Name == name {
			s.steps = append(s.steps[:i], s.steps[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: step %q", domain.ErrNotFound, name)
}

// Steps returns the registered step names in flow order.
func (s *WizardService) Steps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.steps))
	for _, step := range s.steps {
		names = append(names, step.Name)
	}
	return names
}

// Begin creates a session positioned at the first applicable step.
func (s *WizardService) Begin(ctx context.Context) (*driving.WizardState, error) {
	state := &driving.WizardState{
		SessionID: uuid.NewString(),
		StepData:  make(map[string]url.Values),
	}
	first := s.nextStep(ctx, "")
	if first == "" {
		state.Done = true
	} else {
		state.CurrentStep = first
	}
	if err := s.saveState(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Submit records validated form data for the current step and advances
// past steps whose predicate does not apply.
func (s *WizardService) Submit(ctx context.Context, sessionID string, data url.Values) (*driving.WizardState, error) {
	state, err := s.loadState(sessionID)
	if err != nil {
		return nil, err
	}
	if state.Done {
		return nil, fmt.Errorf("%w: wizard session already complete", domain.ErrInvalidInput)
	}

	step, err := s.step(state.CurrentStep)
	if err != nil {
		return nil, err
	}
	result := data
	if step.ExtractResult != nil {
		result = step.ExtractResult(data)
	}
	state.StepData[step.Name] = result

	next := s.nextStep(ctx, step.Name)
	if next == "" {
		state.Done = true
		state.CurrentStep = ""
	} else {
		state.CurrentStep = next
	}
	if err := s.saveState(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Result merges every step's partial result into the combined query
// parameter set handed to the upload entry point.
func (s *WizardService) Result(_ context.Context, sessionID string) (url.Values, error) {
	state, err := s.loadState(sessionID)
	if err != nil {
		return nil, err
	}
	if !state.Done {
		return nil, fmt.Errorf("%w: wizard session not complete", domain.ErrInvalidInput)
	}

	merged := make(url.Values)
	s.mu.RLock()
	for _, step := range s.steps {
		for key, values := range state.StepData[step.Name] {
			merged[key] = append(merged[key], values...)
		}
	}
	s.mu.RUnlock()

	//nolint:errcheck // expired sessions vanish on their own
	_ = s.sessions.Delete(sessionID)
	return merged, nil
}

// PostUpload invokes each registered step's post-upload hook in flow
// order for a created document.
func (s *WizardService) PostUpload(ctx context.Context, doc *domain.Document, query url.Values) error {
	s.mu.RLock()
	steps := make([]WizardStep, len(s.steps))
	copy(steps, s.steps)
	s.mu.RUnlock()

	for _, step := range steps {
		if step.PostUpload == nil {
			continue
		}
		if err := step.PostUpload(ctx, doc, query); err != nil {
			return fmt.Errorf("step %q post-upload: %w", step.Name, err)
		}
	}
	return nil
}

// nextStep returns the first applicable step after the named one, or
// the first applicable step overall when after is empty.
func (s *WizardService) nextStep(ctx context.Context, after string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	passed := after == ""
	for _, step := range s.steps {
		if !passed {
			if step.Name == after {
				passed = true
			}
			continue
		}
		if step.Applies == nil || step.Applies(ctx) {
			return step.Name
		}
	}
	return ""
}

func (s *WizardService) step(name string) (*WizardStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.steps {
		if s.steps[i].Name == name {
			step := s.steps[i]
			return &step, nil
		}
	}
	return nil, fmt.Errorf("%w: step %q", domain.ErrNotFound, name)
}

func (s *WizardService) saveState(state *driving.WizardState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.sessions.Put(state.SessionID, encoded, wizardSessionTTL)
}

func (s *WizardService) loadState(sessionID string) (*driving.WizardState, error) {
	encoded, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	var state driving.WizardState
	if err := json.Unmarshal(encoded, &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &state, nil
}

// RegisterBuiltinSteps installs the standard wizard flow: document
// metadata entry, tag attachment, and cabinet selection. knownCabinets
// supplies the selectable cabinet names; the cabinet step is skipped
// while none exist.
func RegisterBuiltinSteps(wizard *WizardService, knownCabinets func(ctx context.Context) []string) error {
	steps := []WizardStep{
		{
			Name:    "document_metadata",
			Ordinal: 10,
			ExtractResult: func(data url.Values) url.Values {
				result := make(url.Values)
				for key, values := range data {
					if strings.HasPrefix(key, "metadata_") {
						result[key] = values
					}
				}
				return result
			},
		},
		{
			Name:    "document_tags",
			Ordinal: 20,
			ExtractResult: func(data url.Values) url.Values {
				result := make(url.Values)
				result["tags"] = data["tags"]
				return result
			},
		},
		{
			Name:    "document_cabinets",
			Ordinal: 30,
			Applies: func(ctx context.Context) bool {
				return knownCabinets != nil && len(knownCabinets(ctx)) > 0
			},
			ExtractResult: func(data url.Values) url.Values {
				result := make(url.Values)
				result["cabinets"] = data["cabinets"]
				return result
			},
		},
	}
	for _, step := range steps {
		if err := wizard.Register(step); err != nil {
			return err
		}
	}
	return nil
}

// DecodeWizardQuery splits the merged wizard query set back into the
// document attributes the ingest request carries.
func DecodeWizardQuery(query url.Values) (metadata map[string]string, tags, cabinets []string) {
	for key, values := range query {
		if !strings.HasPrefix(key, "metadata_") || len(values) == 0 {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]string)
		}
		metadata[strings.TrimPrefix(key, "metadata_")] = values[0]
	}
	tags = splitList(query["tags"])
	cabinets = splitList(query["cabinets"])
	return metadata, tags, cabinets
}

func splitList(values []string) []string {
	var result []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}
