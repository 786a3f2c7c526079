// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - SourceStore: Source configuration persistence
//   - SourceLogStore: Per-source activity log persistence
//   - DocumentStore: Document, file, version, page and event persistence
//   - ScheduleStore: Interval schedules, periodic tasks and check history
//   - TaskQueue: Visibility-timeout queue for background tasks
//   - SharedUploadedFileStore: Cross-task upload handle persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory as numbered .up.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.intake/data/intake.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
