package session

import (
	"strings"
	"sync"

	"github.com/proctorly/assessment-backend/internal/model"
)

// EnvEventKind classifies environment-level signals forwarded by the client.
type EnvEventKind string

const (
	EnvVisibilityHidden EnvEventKind = "visibility_hidden"
	EnvKeyChord         EnvEventKind = "key_chord"
	EnvCopy             EnvEventKind = "copy"
	EnvCut              EnvEventKind = "cut"
	EnvPaste            EnvEventKind = "paste"
	EnvContextMenu      EnvEventKind = "context_menu"
	EnvUnloadAttempt    EnvEventKind = "unload_attempt"
)

// EnvEvent is one observed environment signal. Detail carries the key chord
// (e.g. "ctrl+shift+i") for EnvKeyChord events.
type EnvEvent struct {
	Kind   EnvEventKind `json:"kind"`
	Detail string       `json:"detail,omitempty"`
}

// Disposition instructs the client what to do with the intercepted action.
type Disposition string

const (
	// DispositionAllow lets the action through (e.g. typing new text).
	DispositionAllow Disposition = "allow"
	// DispositionSuppress blocks the action silently.
	DispositionSuppress Disposition = "suppress"
	// DispositionWarn blocks the action and shows a warning notice.
	DispositionWarn Disposition = "warn"
	// DispositionPause blocks and the session has been paused.
	DispositionPause Disposition = "pause"
	// DispositionConfirm asks the user to confirm before leaving the page.
	DispositionConfirm Disposition = "confirm"
)

// disallowedChords are suppressed and reported as non-pausing warnings:
// developer tools toggles plus copy/select/save/print/view-source shortcuts.
var disallowedChords = map[string]bool{
	"f12":          true,
	"ctrl+shift+i": true,
	"ctrl+c":       true,
	"ctrl+v":       true,
	"ctrl+x":       true,
	"ctrl+a":       true,
	"ctrl+s":       true,
	"ctrl+p":       true,
	"ctrl+u":       true,
}

// Watcher classifies environment events into suppressions, warnings, and
// pausing violations. It is bound once per session and torn down with it;
// events arriving on an unbound watcher are allowed through untouched.
type Watcher struct {
	mu    sync.Mutex
	bound bool

	// unsubmitted reports whether the session can still lose progress.
	unsubmitted func() bool
	onViolation func(kind model.ViolationKind, reason string)
	onWarning   func(kind model.ViolationKind, detail, message string)
	onSuppress  func(kind model.ViolationKind, detail string)
}

// NewWatcher creates an unbound watcher. Callbacks are invoked synchronously
// from Handle without internal locks held.
func NewWatcher(
	unsubmitted func() bool,
	onViolation func(model.ViolationKind, string),
	onWarning func(model.ViolationKind, string, string),
	onSuppress func(model.ViolationKind, string),
) *Watcher {
	return &Watcher{
		unsubmitted: unsubmitted,
		onViolation: onViolation,
		onWarning:   onWarning,
		onSuppress:  onSuppress,
	}
}

// Bind activates the watcher for the session's lifetime.
func (w *Watcher) Bind() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bound = true
}

// Unbind deactivates the watcher. Idempotent.
func (w *Watcher) Unbind() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bound = false
}

// Bound reports whether the watcher is installed.
func (w *Watcher) Bound() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bound
}

// Handle classifies one environment event and returns the client disposition.
func (w *Watcher) Handle(ev EnvEvent) Disposition {
	w.mu.Lock()
	bound := w.bound
	w.mu.Unlock()
	if !bound {
		return DispositionAllow
	}

	switch ev.Kind {
	case EnvContextMenu:
		w.onSuppress(model.ViolationContextMenu, ev.Detail)
		return DispositionSuppress

	case EnvCopy, EnvCut, EnvPaste:
		w.onSuppress(model.ViolationClipboard, string(ev.Kind))
		return DispositionSuppress

	case EnvKeyChord:
		chord := strings.ToLower(strings.TrimSpace(ev.Detail))
		if !disallowedChords[chord] {
			return DispositionAllow
		}
		w.onWarning(model.ViolationKeyChord, chord,
			"Keyboard shortcuts are disabled during the assessment.")
		return DispositionWarn

	case EnvVisibilityHidden:
		w.onViolation(model.ViolationVisibilityLost,
			"Test paused: you switched tabs or minimized the window. Please return and restart camera.")
		return DispositionPause

	case EnvUnloadAttempt:
		if w.unsubmitted() {
			w.onSuppress(model.ViolationUnloadAttempt, ev.Detail)
			return DispositionConfirm
		}
		return DispositionAllow
	}

	return DispositionAllow
}
