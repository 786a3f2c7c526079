package services

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intake-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

func newTestWizard() *WizardService {
	return NewWizardService(memory.NewSessionStore())
}

func TestWizard_RegisterDeregister(t *testing.T) {
	wizard := newTestWizard()

	require.NoError(t, wizard.Register(WizardStep{Name: "second", Ordinal: 20}))
	require.NoError(t, wizard.Register(WizardStep{Name: "first", Ordinal: 10}))
	assert.Equal(t, []string{"first", "second"}, wizard.Steps())

	err := wizard.Register(WizardStep{Name: "first", Ordinal: 5})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	require.NoError(t, wizard.Deregister("first"))
	assert.Equal(t, []string{"second"}, wizard.Steps())

	err = wizard.Deregister("first")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Re-registering after removal restores the original flow.
	require.NoError(t, wizard.Register(WizardStep{Name: "first", Ordinal: 10}))
	assert.Equal(t, []string{"first", "second"}, wizard.Steps())
}

func TestWizard_FlowAndResult(t *testing.T) {
	wizard := newTestWizard()
	ctx := context.Background()

	require.NoError(t, wizard.Register(WizardStep{
		Name:    "tags",
		Ordinal: 20,
		ExtractResult: func(data url.Values) url.Values {
			return url.Values{"tags": data["tags"]}
		},
	}))
	require.NoError(t, wizard.Register(WizardStep{Name: "details", Ordinal: 10}))

	state, err := wizard.Begin(ctx)
	require.NoError(t, err)
	assert.False(t, state.Done)
	assert.Equal(t, "details", state.CurrentStep)

	state, err = wizard.Submit(ctx, state.SessionID, url.Values{"metadata_title": {"Q3 report"}})
	require.NoError(t, err)
	assert.Equal(t, "tags", state.CurrentStep)

	state, err = wizard.Submit(ctx, state.SessionID, url.Values{
		"tags":     {"finance"},
		"ignored":  {"dropped by extraction"},
		"metadata": {"also dropped"},
	})
	require.NoError(t, err)
	assert.True(t, state.Done)

	_, err = wizard.Submit(ctx, state.SessionID, url.Values{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	merged, err := wizard.Result(ctx, state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Q3 report", merged.Get("metadata_title"))
	assert.Equal(t, "finance", merged.Get("tags"))
	assert.Empty(t, merged.Get("ignored"))

	// Result consumes the session.
	_, err = wizard.Result(ctx, state.SessionID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWizard_ResultBeforeDone(t *testing.T) {
	wizard := newTestWizard()
	ctx := context.Background()

	require.NoError(t, wizard.Register(WizardStep{Name: "details", Ordinal: 10}))
	state, err := wizard.Begin(ctx)
	require.NoError(t, err)

	_, err = wizard.Result(ctx, state.SessionID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWizard_SkipsInapplicableSteps(t *testing.T) {
	wizard := newTestWizard()
	ctx := context.Background()

	require.NoError(t, wizard.Register(WizardStep{Name: "details", Ordinal: 10}))
	require.NoError(t, wizard.Register(WizardStep{
		Name:    "cabinets",
		Ordinal: 20,
		Applies: func(context.Context) bool { return false },
	}))
	require.NoError(t, wizard.Register(WizardStep{Name: "confirm", Ordinal: 30}))

	state, err := wizard.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "details", state.CurrentStep)

	state, err = wizard.Submit(ctx, state.SessionID, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, "confirm", state.CurrentStep)
}

func TestWizard_BeginWithNoApplicableSteps(t *testing.T) {
	wizard := newTestWizard()

	state, err := wizard.Begin(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Done)
	assert.Empty(t, state.CurrentStep)
}

func TestWizard_PostUploadHooksRunInOrder(t *testing.T) {
	wizard := newTestWizard()

	var order []string
	hook := func(name string) func(context.Context, *domain.Document, url.Values) error {
		return func(context.Context, *domain.Document, url.Values) error {
			order = append(order, name)
			return nil
		}
	}
	require.NoError(t, wizard.Register(WizardStep{Name: "late", Ordinal: 30, PostUpload: hook("late")}))
	require.NoError(t, wizard.Register(WizardStep{Name: "early", Ordinal: 10, PostUpload: hook("early")}))
	require.NoError(t, wizard.Register(WizardStep{Name: "silent", Ordinal: 20}))

	doc := &domain.Document{ID: "doc-1"}
	require.NoError(t, wizard.PostUpload(context.Background(), doc, url.Values{}))
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestRegisterBuiltinSteps(t *testing.T) {
	wizard := newTestWizard()
	require.NoError(t, RegisterBuiltinSteps(wizard, func(context.Context) []string { return nil }))
	assert.Equal(t, []string{"document_metadata", "document_tags", "document_cabinets"}, wizard.Steps())

	// Cabinet step is skipped while no cabinets exist.
	ctx := context.Background()
	state, err := wizard.Begin(ctx)
	require.NoError(t, err)
	state, err = wizard.Submit(ctx, state.SessionID, url.Values{"metadata_author": {"amy"}})
	require.NoError(t, err)
	state, err = wizard.Submit(ctx, state.SessionID, url.Values{"tags": {"hr,urgent"}})
	require.NoError(t, err)
	assert.True(t, state.Done)

	merged, err := wizard.Result(ctx, state.SessionID)
	require.NoError(t, err)

	metadata, tags, cabinets := DecodeWizardQuery(merged)
	assert.Equal(t, map[string]string{"author": "amy"}, metadata)
	assert.Equal(t, []string{"hr", "urgent"}, tags)
	assert.Empty(t, cabinets)
}

func TestDecodeWizardQuery_Empty(t *testing.T) {
	metadata, tags, cabinets := DecodeWizardQuery(url.Values{})
	assert.Nil(t, metadata)
	assert.Empty(t, tags)
	assert.Empty(t, cabinets)
}
