// Command intake is a document ingestion tool. It pulls files from
// configurable sources and runs them through a common pipeline.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/intake-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/intake-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intake-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/intake-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/services"
	"github.com/custodia-labs/intake-cli/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store, err := sqlite.NewStore(config.GetString("data_dir"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	previews, err := file.NewPreviewCache(config.GetString("preview_dir"))
	if err != nil {
		return fmt.Errorf("opening preview cache: %w", err)
	}

	registry := services.NewBackendRegistry(driven.BackendDeps{
		SharedFiles: store.SharedFileStore(),
		Previews:    previews,
	})
	orchestrator := services.NewIngestOrchestrator(store.DocumentStore(), store.TaskQueue())

	// Wizard sessions are short-lived; they live in memory only.
	wizard := services.NewWizardService(memory.NewSessionStore())
	if err := services.RegisterBuiltinSteps(wizard, func(context.Context) []string {
		return config.GetStringSlice("cabinets")
	}); err != nil {
		return fmt.Errorf("registering wizard steps: %w", err)
	}

	sourceService := services.NewSourceService(store.SourceStore(), store.SourceLogStore(), registry)
	scheduler := services.NewSourceScheduler(
		store.SourceStore(), store.SourceLogStore(), store.ScheduleStore(),
		store.SharedFileStore(), registry, orchestrator)
	sourceService.SetScheduler(scheduler)

	cli.Configure(cli.Deps{
		Sources:   sourceService,
		Backends:  registry,
		Uploads:   services.NewUploadService(store.SourceStore(), store.DocumentStore(), registry, orchestrator, wizard),
		Wizard:    wizard,
		Scheduler: scheduler,
		Loop:      services.NewScheduler(store.ScheduleStore(), store.SourceStore(), registry, scheduler, store.TaskQueue()),
		Documents: store.DocumentStore(),
		Worker:    worker.New(store.TaskQueue(), store.DocumentStore(), store.SourceStore(), store.SharedFileStore()),
	})

	return cli.Execute()
}
