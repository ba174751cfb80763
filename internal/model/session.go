package model

// Progress summarizes answering activity for the palette/header UI.
type Progress struct {
	Attempted int `json:"attempted"`
	Marked    int `json:"marked"`
	Percent   int `json:"percent"`
}

// SessionView is a read-only snapshot of session state handed to the UI
// layer for rendering. It never carries grading data.
type SessionView struct {
	Status        string            `json:"status"`
	Current       int               `json:"current"`
	Answers       map[string]Answer `json:"answers"`
	Marks         map[string]bool   `json:"marked"`
	SnapshotCount int               `json:"snapshot_count"`
	SecondsLeft   int               `json:"seconds_left"`
	Paused        bool              `json:"paused"`
	PauseReason   string            `json:"pause_reason,omitempty"`
	Submitted     bool              `json:"submitted"`
	Progress      Progress          `json:"progress"`
}
