// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Backend: Produces candidate files for one configured source
//   - SourceStore: Source configuration persistence
//   - SourceLogStore: Append-only per-source diagnostics
//   - DocumentStore: Document/file/version/page persistence
//   - SharedUploadedFileStore: Cross-task upload handle persistence
//   - ScheduleStore: Interval schedule and periodic task bookkeeping
//   - TaskQueue: Background work hand-off
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - PreviewCache: Staging-file preview images. Without it, the staging
//     file_image action returns the raw file bytes.
//   - SessionStore: Wizard session state. Without it, only direct
//     uploads (no wizard) are available.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or backend package
package driven
