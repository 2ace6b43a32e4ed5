package ui

import "github.com/bamsammich/mirrorsync/internal/event"

// Event is re-exported for convenience.
type Event = event.Event

// Re-export event types for convenience.
const (
	ListStarted        = event.ListStarted
	ListCompleted      = event.ListCompleted
	DiffCompleted      = event.DiffCompleted
	TaskStarted        = event.TaskStarted
	Uploaded           = event.Uploaded
	Downloaded         = event.Downloaded
	Deleted            = event.Deleted
	DirCreated         = event.DirCreated
	Skipped            = event.Skipped
	TaskFailed         = event.TaskFailed
	SnapshotSaved      = event.SnapshotSaved
	SnapshotLoadFailed = event.SnapshotLoadFailed
	VerifyOK           = event.VerifyOK
	VerifyFailed       = event.VerifyFailed
)
