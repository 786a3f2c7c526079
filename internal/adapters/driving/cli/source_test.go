package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/intake-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/services"
	"github.com/custodia-labs/intake-cli/internal/worker"
)

// configureTestServices wires the command tree to in-memory services
// and restores the empty configuration afterwards.
func configureTestServices(t *testing.T) *memory.DocumentStore {
	t.Helper()

	sourceStore := memory.NewSourceStore()
	logStore := memory.NewSourceLogStore()
	docStore := memory.NewDocumentStore()
	queue := memory.NewTaskQueue()
	scheduleStore := memory.NewScheduleStore()
	sharedFiles := memory.NewSharedUploadedFileStore()

	registry := services.NewBackendRegistry(driven.BackendDeps{
		SharedFiles: sharedFiles,
		Previews:    memory.NewPreviewCache(),
	})
	orchestrator := services.NewIngestOrchestrator(docStore, queue)
	wizard := services.NewWizardService(memory.NewSessionStore())
	require.NoError(t, services.RegisterBuiltinSteps(wizard, func(context.Context) []string {
		return nil
	}))

	sourceSvc := services.NewSourceService(sourceStore, logStore, registry)
	scheduler := services.NewSourceScheduler(
		sourceStore, logStore, scheduleStore, sharedFiles, registry, orchestrator)
	sourceSvc.SetScheduler(scheduler)

	Configure(Deps{
		Sources:   sourceSvc,
		Backends:  registry,
		Uploads:   services.NewUploadService(sourceStore, docStore, registry, orchestrator, wizard),
		Wizard:    wizard,
		Scheduler: scheduler,
		Loop:      services.NewScheduler(scheduleStore, sourceStore, registry, scheduler, queue),
		Documents: docStore,
		Worker:    worker.New(queue, docStore, sourceStore, sharedFiles),
	})
	t.Cleanup(func() { Configure(Deps{}) })

	return docStore
}

// execCLI runs the root command with args and returns the combined
// output. Flag variables are reset so tests stay independent.
func execCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	sourceLabel = ""
	sourceEnabled = false
	sourceDisabled = false
	sourceConfigs = nil
	sourceLogLimit = 20
	checkDryRun = false
	uploadType = ""
	uploadLanguage = ""
	uploadExpand = false
	uploadTags = nil
	uploadMetadata = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSourceCmd_Use(t *testing.T) {
	assert.Equal(t, "source", sourceCmd.Use)
}

func TestSourceCmd_HasSubcommands(t *testing.T) {
	commands := sourceCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "add")
	assert.Contains(t, commandNames, "list")
	assert.Contains(t, commandNames, "show")
	assert.Contains(t, commandNames, "edit")
	assert.Contains(t, commandNames, "remove")
	assert.Contains(t, commandNames, "log")
}

func TestSourceAddCmd_ErrorsWithoutServices(t *testing.T) {
	_, err := execCLI(t, "source", "add", "webform")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSourceAdd_ListsBackendTypesWithoutArgs(t *testing.T) {
	configureTestServices(t)

	out, err := execCLI(t, "source", "add")

	require.NoError(t, err)
	assert.Contains(t, out, "webform")
	assert.Contains(t, out, "watchfolder")
	assert.Contains(t, out, "imap")
}

func TestSourceAdd_UnknownBackend(t *testing.T) {
	configureTestServices(t)

	_, err := execCLI(t, "source", "add", "carrier-pigeon")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend type")
}

func TestSourceAddAndList(t *testing.T) {
	configureTestServices(t)

	out, err := execCLI(t, "source", "add", "webform",
		"--label", "Browser uploads", "-c", "uncompress=never")
	require.NoError(t, err)
	assert.Contains(t, out, "Added webform source: Browser uploads")

	sources, err := sourceService.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Contains(t, out, "ID: "+sources[0].ID)

	out, err = execCLI(t, "source", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Browser uploads")
	assert.Contains(t, out, "Total: 1 sources")
}

func TestSourceAdd_ValidationFailure(t *testing.T) {
	configureTestServices(t)

	// Staging requires a path.
	_, err := execCLI(t, "source", "add", "staging",
		"--label", "Scans", "-c", "uncompress=never")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestSourceEditAndShow(t *testing.T) {
	configureTestServices(t)

	_, err := execCLI(t, "source", "add", "webform", "--label", "Uploads",
		"-c", "uncompress=never")
	require.NoError(t, err)

	sources, err := sourceService.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	id := sources[0].ID

	out, err := execCLI(t, "source", "edit", id, "--label", "Renamed", "--disable")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated source")

	out, err = execCLI(t, "source", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Renamed")
	assert.Contains(t, out, "Enabled:  false")
}

func TestSourceEdit_ConflictingFlags(t *testing.T) {
	configureTestServices(t)

	_, err := execCLI(t, "source", "edit", "some-id", "--enable", "--disable")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestSourceRemove(t *testing.T) {
	configureTestServices(t)

	_, err := execCLI(t, "source", "add", "webform", "--label", "Uploads",
		"-c", "uncompress=never")
	require.NoError(t, err)

	sources, err := sourceService.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)

	out, err := execCLI(t, "source", "remove", sources[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed source")

	sources, err = sourceService.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestSourceLog_Empty(t *testing.T) {
	configureTestServices(t)

	_, err := execCLI(t, "source", "add", "webform", "--label", "Uploads",
		"-c", "uncompress=never")
	require.NoError(t, err)

	sources, err := sourceService.List(context.Background())
	require.NoError(t, err)

	out, err := execCLI(t, "source", "log", sources[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "No log entries")
}

func TestParseConfigFlags(t *testing.T) {
	config, err := parseConfigFlags([]string{"host=imap.example.com", "port=993"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"host": "imap.example.com", "port": "993"}, config)

	_, err = parseConfigFlags([]string{"no-equals"})
	assert.Error(t, err)

	_, err = parseConfigFlags([]string{"=value"})
	assert.Error(t, err)
}
