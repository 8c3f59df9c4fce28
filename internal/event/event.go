// Package event defines the progress events emitted by the batch engine.
package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	BatchStarted Type = iota + 1
	FileStarted
	FileProgress
	FileCompleted
	FileFailed
	FileSkipped
	ConflictResolved
	BackupCreated
	BatchCompleted
)

var typeNames = [...]string{
	BatchStarted:     "BatchStarted",
	FileStarted:      "FileStarted",
	FileProgress:     "FileProgress",
	FileCompleted:    "FileCompleted",
	FileFailed:       "FileFailed",
	FileSkipped:      "FileSkipped",
	ConflictResolved: "ConflictResolved",
	BackupCreated:    "BackupCreated",
	BatchCompleted:   "BatchCompleted",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && t > 0 {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine. Events are
// side-effect only; consumers never influence engine control flow.
type Event struct {
	Type       Type
	Timestamp  time.Time
	Path       string // input path of the file the event concerns
	OutputPath string
	BytesDone  int64
	BytesTotal int64
	Streamed   bool
	Error      error
}
