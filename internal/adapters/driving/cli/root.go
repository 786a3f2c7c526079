// Package cli provides the cobra command tree for the intake tool.
// Commands dispatch to the core services; wiring happens at startup
// through Configure.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intake-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
	"github.com/custodia-labs/intake-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services injected at startup. Commands check for nil so the tree
// stays testable without full wiring.
var (
	sourceService   driving.SourceService
	backendRegistry driving.BackendRegistry
	uploadService   driving.UploadService
	wizardService   driving.WizardService
	sourceScheduler driving.SourceScheduler
	schedulerLoop   driving.Scheduler
	documentStore   driven.DocumentStore
	workerRunner    WorkerRunner
)

// WorkerRunner runs the background task worker loop.
type WorkerRunner interface {
	Run(ctx context.Context) error
}

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Document ingestion pipeline",
	Long: `Intake ingests documents from configurable sources: web form
uploads, staging and watched folders, mailboxes, and scanners.

Documents flow through a common pipeline: archive expansion, checksum
computation, page derivation, and duplicate detection.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"Enable verbose logging")
}

// Deps bundles everything the command tree needs at startup.
type Deps struct {
	Sources   driving.SourceService
	Backends  driving.BackendRegistry
	Uploads   driving.UploadService
	Wizard    driving.WizardService
	Scheduler driving.SourceScheduler
	Loop      driving.Scheduler
	Documents driven.DocumentStore
	Worker    WorkerRunner
}

// Configure injects the wired services into the command tree.
func Configure(deps Deps) {
	sourceService = deps.Sources
	backendRegistry = deps.Backends
	uploadService = deps.Uploads
	wizardService = deps.Wizard
	sourceScheduler = deps.Scheduler
	schedulerLoop = deps.Loop
	documentStore = deps.Documents
	workerRunner = deps.Worker
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
