package domain

import "time"

// SharedUploadedFile is a short-lived handle wrapping a persisted byte
// blob, used to pass an upload's content across the request/worker
// boundary without re-sending bytes. The creating task owns it until
// hand-off; the consuming task deletes it when done (or on error
// cleanup).
type SharedUploadedFile struct {
	// ID is the unique identifier for the handle.
	ID string

	// Filename is the name the content arrived under.
	Filename string

	// Size is the persisted byte size.
	Size int64

	// CreatedAt is when the handle was persisted. Prune paths use it
	// to reclaim handles orphaned by crashed tasks.
	CreatedAt time.Time
}
