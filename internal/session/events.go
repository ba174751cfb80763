package session

import (
	"github.com/proctorly/assessment-backend/internal/model"
)

// EventType enumerates notices the engine pushes to the UI layer.
type EventType string

const (
	EventState        EventType = "state"
	EventTick         EventType = "tick"
	EventPaused       EventType = "paused"
	EventResumed      EventType = "resumed"
	EventWarning      EventType = "warning"
	EventConfirmLeave EventType = "confirm_leave"
	EventSubmitted    EventType = "submitted"
)

// Event is one outbound notice. Only the fields relevant to its type are set.
type Event struct {
	Type        EventType
	Message     string
	SecondsLeft int
	View        *model.SessionView
	Submission  *model.Submission
}

// Sink receives engine events for delivery to the client. Implementations
// must be safe for concurrent use and must not call back into the engine.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// NopSink discards all events. Used when no client is attached.
type NopSink struct{}

func (NopSink) Publish(Event) {}
