package model

import "time"

// ViolationKind classifies integrity-risk events observed during a session.
type ViolationKind string

const (
	ViolationVisibilityLost ViolationKind = "VISIBILITY_LOST"
	ViolationCameraLost     ViolationKind = "CAMERA_LOST"
	ViolationKeyChord       ViolationKind = "KEY_CHORD"
	ViolationClipboard      ViolationKind = "CLIPBOARD"
	ViolationContextMenu    ViolationKind = "CONTEXT_MENU"
	ViolationUnloadAttempt  ViolationKind = "UNLOAD_ATTEMPT"
)

// Violation is one recorded integrity event, archived for proctoring review.
type Violation struct {
	Kind          ViolationKind `json:"kind"`
	Detail        string        `json:"detail,omitempty"`
	QuestionIndex int           `json:"q"`
	At            time.Time     `json:"at"`
}
