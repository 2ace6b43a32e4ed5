package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ListStarted Type = iota + 1
	ListCompleted
	DiffCompleted
	TaskStarted
	Uploaded
	Downloaded
	Deleted
	DirCreated
	Skipped
	TaskFailed
	SnapshotSaved
	SnapshotLoadFailed
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	ListStarted:        "ListStarted",
	ListCompleted:      "ListCompleted",
	DiffCompleted:      "DiffCompleted",
	TaskStarted:        "TaskStarted",
	Uploaded:           "Uploaded",
	Downloaded:         "Downloaded",
	Deleted:            "Deleted",
	DirCreated:         "DirCreated",
	Skipped:            "Skipped",
	TaskFailed:         "TaskFailed",
	SnapshotSaved:      "SnapshotSaved",
	SnapshotLoadFailed: "SnapshotLoadFailed",
	VerifyOK:           "VerifyOK",
	VerifyFailed:       "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // workspace path ("/a/b")
	Action    string // task action, for TaskStarted and TaskFailed
	Size      int64  // bytes moved, or entry count for ListCompleted
	Total     int64  // worklist length (DiffCompleted, TaskStarted)
	Error     error
}
