package websocket

import (
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer      Action = "answer"
	ActionMark        Action = "mark"
	ActionNavigate    Action = "navigate"
	ActionCameraUp    Action = "camera_up"
	ActionCameraDown  Action = "camera_down"
	ActionCameraState Action = "camera_state"
	ActionFrame       Action = "frame"
	ActionEnv         Action = "env"
	ActionSubmit      Action = "submit"
	ActionPing        Action = "ping"
)

// ClientMessage is the single inbound message shape; only the fields
// relevant to the action are set.
type ClientMessage struct {
	Action Action `json:"action"`

	// answer / mark
	QID    string  `json:"q_id,omitempty"`
	Choice *int    `json:"choice,omitempty"`
	Text   *string `json:"text,omitempty"`

	// navigate
	Index *int `json:"index,omitempty"`

	// camera_state: live capture track count reported by the client
	LiveTracks *int `json:"live_tracks,omitempty"`

	// frame: base64-encoded still from the client camera feed
	Frame string `json:"frame,omitempty"`

	// env: environment event classification
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventTick         Event = "tick"
	EventPaused       Event = "paused"
	EventResumed      Event = "resumed"
	EventWarning      Event = "warning"
	EventConfirmLeave Event = "confirm_leave"
	EventSubmitted    Event = "submitted"
	EventEnvResult    Event = "env_result"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// ServerEvent is the single outbound message shape; only the fields
// relevant to the event are set.
type ServerEvent struct {
	Event       Event                `json:"event"`
	Message     string               `json:"message,omitempty"`
	SecondsLeft *int                 `json:"seconds_left,omitempty"`
	State       *model.SessionView   `json:"state,omitempty"`
	Submission  *model.Submission    `json:"submission,omitempty"`
	Disposition *session.Disposition `json:"disposition,omitempty"`
}

// FromEngineEvent converts an engine notice to the wire shape.
func FromEngineEvent(ev session.Event) ServerEvent {
	out := ServerEvent{
		Message:    ev.Message,
		State:      ev.View,
		Submission: ev.Submission,
	}

	switch ev.Type {
	case session.EventState:
		out.Event = EventState
	case session.EventTick:
		out.Event = EventTick
		left := ev.SecondsLeft
		out.SecondsLeft = &left
	case session.EventPaused:
		out.Event = EventPaused
	case session.EventResumed:
		out.Event = EventResumed
	case session.EventWarning:
		out.Event = EventWarning
	case session.EventConfirmLeave:
		out.Event = EventConfirmLeave
	case session.EventSubmitted:
		out.Event = EventSubmitted
	default:
		out.Event = EventError
	}
	return out
}
