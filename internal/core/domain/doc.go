// Package domain defines the core business entities for Intake.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Source: A configured origin of incoming documents
//   - Document / DocumentFile / DocumentVersion / DocumentPage: the
//     revision hierarchy the ingestion pipeline populates
//   - SharedUploadedFile: a persisted handle passing upload bytes across
//     the task boundary
//   - IntervalSchedule / PeriodicTask: periodic source check bookkeeping
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
