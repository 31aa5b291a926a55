package core

import "time"

// EventType names a pipeline lifecycle transition.
type EventType string

const (
	EventStarted   EventType = "started"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventStopped   EventType = "stopped"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event is a lifecycle notification emitted by a pipeline.
// Message is set for EventError only.
type Event struct {
	Type    EventType
	RunID   string
	Message string
	Time    time.Time
}
