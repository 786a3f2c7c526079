package driving

import (
	"context"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
)

// SourceScheduler owns the one-to-one mapping between a periodic source
// and its recurring check task. Bookkeeping is an explicit application
// service invoked by the source service, not a persistence hook.
type SourceScheduler interface {
	// OnSourceCreated registers a periodic task for the source,
	// reusing an existing interval schedule when one matches.
	OnSourceCreated(ctx context.Context, source domain.Source) error

	// OnSourceUpdated deletes and recreates the source's task,
	// garbage-collecting the old interval schedule if now unused.
	OnSourceUpdated(ctx context.Context, source domain.Source) error

	// OnSourceDeleted removes the source's task and garbage-collects
	// its interval schedule when no other task references it.
	OnSourceDeleted(ctx context.Context, sourceID string) error

	// RunCheck executes one check tick for a source immediately.
	// Under dryRun, medium consumption is suppressed but ingestion
	// still runs, so configurations can be tested safely.
	RunCheck(ctx context.Context, sourceID string, dryRun bool) (*domain.CheckResult, error)
}

// Scheduler runs due periodic tasks. Ticks for different sources run
// concurrently; a stuck source does not block others.
type Scheduler interface {
	// Start begins the scheduler loop.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops, waiting for in-flight ticks.
	Stop() error
}
