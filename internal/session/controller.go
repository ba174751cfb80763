// Package session implements the proctored assessment session engine: the
// state machine coordinating the countdown timer, the camera monitor, the
// anti-cheat watcher, and the persistence store into one consistent state.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/scoring"
	"github.com/proctorly/assessment-backend/internal/store"
	"github.com/rs/zerolog"
)

// State enumerates the session lifecycle. Submitted is terminal.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateActive     State = "ACTIVE"
	StatePaused     State = "PAUSED"
	StateSubmitted  State = "SUBMITTED"
)

// ErrCameraInactive rejects a manual submission attempted without a live
// camera. Timeout submissions bypass this check.
var ErrCameraInactive = errors.New("camera must be active for manual submission")

// Config carries the session timing knobs. Tests shrink the intervals.
type Config struct {
	Duration               time.Duration
	TimerTick              time.Duration
	SnapshotInterval       time.Duration
	BootstrapSnapshotDelay time.Duration
	LivenessInterval       time.Duration
}

// FromConfig extracts session timing from the application configuration.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Duration:               cfg.Duration,
		TimerTick:              cfg.TimerTick,
		SnapshotInterval:       cfg.SnapshotInterval,
		BootstrapSnapshotDelay: cfg.BootstrapSnapshotDelay,
		LivenessInterval:       cfg.LivenessInterval,
	}
}

// Controller is the single authority for one candidate's session state.
// Every mutation — UI request, timer tick, capture cadence, environment
// event — is applied atomically under one lock; callbacks scheduled before
// a pause or submission are discarded by state checks under that lock.
type Controller struct {
	mu   sync.Mutex
	log  zerolog.Logger
	now  func() time.Time
	ref  store.SessionRef
	cand model.Candidate
	bank *model.Bank
	st   store.Store
	sink Sink

	state       State
	current     int
	answers     map[string]model.Answer
	marks       map[string]bool
	snapshots   []model.Snapshot
	pauseReason string
	submission  *model.Submission

	timer   *Timer
	camera  *CameraMonitor
	watcher *Watcher
}

// New creates a session controller in the NotStarted state, merging any
// previously saved artifacts from the store (absence is not an error). A
// previously saved submission makes the session Submitted immediately.
func New(
	log zerolog.Logger,
	cfg Config,
	assessmentID string,
	cand model.Candidate,
	bank *model.Bank,
	st store.Store,
	dev Device,
	sink Sink,
) *Controller {
	if sink == nil {
		sink = NopSink{}
	}

	c := &Controller{
		log: log.With().
			Str("component", "session").
			Int("candidate_id", cand.ID).
			Logger(),
		now:     time.Now,
		ref:     store.SessionRef{AssessmentID: assessmentID, CandidateID: cand.ID},
		cand:    cand,
		bank:    bank,
		st:      st,
		sink:    sink,
		state:   StateNotStarted,
		answers: make(map[string]model.Answer),
		marks:   make(map[string]bool),
	}

	c.restore()

	c.timer = NewTimer(cfg.Duration, cfg.TimerTick, c.now, c.handleTick, c.handleExpiry)
	c.camera = NewCameraMonitor(
		c.log, dev,
		cfg.SnapshotInterval, cfg.BootstrapSnapshotDelay, cfg.LivenessInterval,
		c.now,
		c.currentIndex, c.addSnapshot, c.handleCameraLost,
	)
	c.watcher = NewWatcher(c.unsubmitted, c.handleViolation, c.handleWarning, c.handleSuppressed)

	return c
}

// restore merges prior artifacts into the fresh in-memory state.
// Best-effort: failures are logged and the session starts empty.
func (c *Controller) restore() {
	ctx := context.Background()

	if answers, err := c.st.LoadAnswers(ctx, c.ref); err != nil {
		c.log.Warn().Err(err).Msg("Answer restore failed")
	} else {
		for qid, ans := range answers {
			c.answers[qid] = ans
		}
	}

	if marks, err := c.st.LoadMarks(ctx, c.ref); err != nil {
		c.log.Warn().Err(err).Msg("Mark restore failed")
	} else {
		for qid, marked := range marks {
			c.marks[qid] = marked
		}
	}

	if snaps, err := c.st.LoadSnapshots(ctx, c.ref); err != nil {
		c.log.Warn().Err(err).Msg("Snapshot restore failed")
	} else {
		c.snapshots = snaps
	}

	if sub, err := c.st.LoadSubmission(ctx, c.ref); err != nil {
		c.log.Warn().Err(err).Msg("Submission restore failed")
	} else if sub != nil {
		c.submission = sub
		c.state = StateSubmitted
	}
}

// ─── UI operations ─────────────────────────────────────────────────

// StartCamera starts (or restarts) the capture device. From NotStarted a
// successful start activates the session; from Paused it resumes. Returns
// false when device access fails — the session state is unchanged.
func (c *Controller) StartCamera(ctx context.Context) bool {
	c.mu.Lock()

	switch c.state {
	case StateSubmitted:
		c.mu.Unlock()
		return false

	case StateActive:
		ok := c.camera.Start(ctx)
		c.mu.Unlock()
		return ok

	case StatePaused:
		return c.resumeLocked(ctx)

	default: // NotStarted
		if !c.camera.Start(ctx) {
			c.mu.Unlock()
			return false
		}
		c.state = StateActive
		c.timer.Start()
		c.watcher.Bind()
		view := c.viewLocked()
		c.mu.Unlock()

		c.publish(
			Event{Type: EventResumed, Message: "Camera started, assessment is now active"},
			Event{Type: EventState, View: &view},
		)
		return true
	}
}

// StopCamera releases the device on the candidate's request and pauses the
// session, since proof-of-presence is interrupted.
func (c *Controller) StopCamera() {
	c.mu.Lock()
	if c.state != StateActive {
		c.camera.Stop()
		c.mu.Unlock()
		return
	}
	c.camera.Stop()
	evs := c.pauseLocked("Test paused: camera stopped. Please restart camera to resume.")
	c.mu.Unlock()
	c.publish(evs...)
}

// RecordAnswer upserts an answer and writes it through to the store.
// No-op after submission or for unknown questions / malformed values.
func (c *Controller) RecordAnswer(questionID string, ans model.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitted {
		return
	}
	if !c.bank.Contains(questionID) || !ans.Valid() {
		return
	}

	c.answers[questionID] = ans
	if err := c.st.SaveAnswer(context.Background(), c.ref, questionID, ans); err != nil {
		c.log.Warn().Err(err).Str("question_id", questionID).Msg("Answer save failed")
	}
}

// ToggleMark flips the review flag for a question. No-op after submission.
func (c *Controller) ToggleMark(questionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitted || !c.bank.Contains(questionID) {
		return
	}

	c.marks[questionID] = !c.marks[questionID]
	if err := c.st.SaveMark(context.Background(), c.ref, questionID, c.marks[questionID]); err != nil {
		c.log.Warn().Err(err).Str("question_id", questionID).Msg("Mark save failed")
	}
}

// Navigate moves the current question index. Rejected (no-op) when
// submitted or out of bounds.
func (c *Controller) Navigate(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSubmitted || index < 0 || index >= c.bank.Len() {
		return
	}
	c.current = index
}

// Pause suspends the session with a human-readable reason. Allowed only
// from Active; idempotent when already paused.
func (c *Controller) Pause(reason string) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	evs := c.pauseLocked(reason)
	c.mu.Unlock()
	c.publish(evs...)
}

// Resume restarts the timer and camera from Paused. Returns false when the
// camera cannot be restarted — the session remains paused.
func (c *Controller) Resume(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return false
	}
	return c.resumeLocked(ctx)
}

// Submit finalizes the session. Idempotent: a submitted session returns the
// same record again with no second scoring pass. Manual submission requires
// a live camera; timeout submission bypasses that check.
func (c *Controller) Submit(trigger model.SubmitTrigger) (*model.Submission, error) {
	c.mu.Lock()
	sub, evs, err := c.submitLocked(trigger)
	c.mu.Unlock()
	c.publish(evs...)
	return sub, err
}

// View returns a read-only snapshot of the session state for rendering.
func (c *Controller) View() model.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submission returns the final record, or nil while unsubmitted.
func (c *Controller) Submission() *model.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submission
}

// CameraActive reports whether the capture device is currently held.
func (c *Controller) CameraActive() bool {
	return c.camera.Active()
}

// HandleEnv feeds one environment event through the anti-cheat watcher and
// returns the disposition for the client.
func (c *Controller) HandleEnv(ev EnvEvent) Disposition {
	return c.watcher.Handle(ev)
}

// Rebind attaches a new device and sink after a client reconnect.
func (c *Controller) Rebind(dev Device, sink Sink) {
	if sink == nil {
		sink = NopSink{}
	}
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
	c.camera.SetDevice(dev)
}

// Teardown cancels all periodic work and releases the device. Used on
// server shutdown; the session may be resumed later from the store.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.timer.Pause()
	c.watcher.Unbind()
	c.mu.Unlock()
	c.camera.Stop()
}

// ─── Internal transitions (lock held) ──────────────────────────────

func (c *Controller) pauseLocked(reason string) []Event {
	c.state = StatePaused
	c.pauseReason = reason
	c.timer.Pause()
	c.camera.Stop()

	view := c.viewLocked()
	return []Event{
		{Type: EventPaused, Message: reason},
		{Type: EventState, View: &view},
	}
}

// resumeLocked restarts camera and timer. Takes ownership of the held lock
// and releases it before publishing.
func (c *Controller) resumeLocked(ctx context.Context) bool {
	if !c.camera.Start(ctx) {
		c.mu.Unlock()
		c.publish(Event{
			Type:    EventWarning,
			Message: "Camera access is required to resume. Please allow camera permissions and try again.",
		})
		return false
	}

	c.state = StateActive
	c.pauseReason = ""
	c.timer.Start()
	view := c.viewLocked()
	c.mu.Unlock()

	c.publish(
		Event{Type: EventResumed, Message: "Assessment resumed"},
		Event{Type: EventState, View: &view},
	)
	return true
}

func (c *Controller) submitLocked(trigger model.SubmitTrigger) (*model.Submission, []Event, error) {
	if c.state == StateSubmitted {
		return c.submission, nil, nil
	}
	if trigger == model.TriggerManual && !c.camera.Active() {
		return nil, nil, ErrCameraInactive
	}

	c.timer.Pause()

	answers := make(map[string]model.Answer, len(c.answers))
	for qid, ans := range c.answers {
		answers[qid] = ans
	}
	marks := make(map[string]bool, len(c.marks))
	for qid, marked := range c.marks {
		marks[qid] = marked
	}
	snapshots := make([]model.Snapshot, len(c.snapshots))
	copy(snapshots, c.snapshots)

	sub := &model.Submission{
		ID:           uuid.New(),
		AssessmentID: c.ref.AssessmentID,
		Candidate:    c.cand,
		Answers:      answers,
		Marks:        marks,
		Snapshots:    snapshots,
		Score:        scoring.Score(c.bank, answers),
		Trigger:      trigger,
		SubmittedAt:  c.now().UTC(),
	}

	if err := c.st.SaveSubmission(context.Background(), c.ref, sub); err != nil {
		c.log.Warn().Err(err).Msg("Submission save failed")
	}

	c.state = StateSubmitted
	c.submission = sub
	c.camera.Stop()
	c.watcher.Unbind()

	c.log.Info().
		Str("trigger", string(trigger)).
		Int("score", sub.Score.Earned).
		Int("max", sub.Score.Max).
		Msg("Session submitted")

	return sub, []Event{{Type: EventSubmitted, Submission: sub}}, nil
}

func (c *Controller) viewLocked() model.SessionView {
	answers := make(map[string]model.Answer, len(c.answers))
	for qid, ans := range c.answers {
		answers[qid] = ans
	}
	marks := make(map[string]bool, len(c.marks))
	markedCount := 0
	for qid, marked := range c.marks {
		marks[qid] = marked
		if marked {
			markedCount++
		}
	}

	percent := 0
	if c.bank.Len() > 0 {
		percent = len(c.answers) * 100 / c.bank.Len()
	}

	return model.SessionView{
		Status:        string(c.state),
		Current:       c.current,
		Answers:       answers,
		Marks:         marks,
		SnapshotCount: len(c.snapshots),
		SecondsLeft:   c.timer.Seconds(),
		Paused:        c.state == StatePaused,
		PauseReason:   c.pauseReason,
		Submitted:     c.state == StateSubmitted,
		Progress: model.Progress{
			Attempted: len(c.answers),
			Marked:    markedCount,
			Percent:   percent,
		},
	}
}

// ─── Timer callbacks ───────────────────────────────────────────────

// handleTick forwards the countdown to the client. A tick that fires after
// a pause or submission is discarded here, never mutating session state.
func (c *Controller) handleTick(secondsLeft int) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.publish(Event{Type: EventTick, SecondsLeft: secondsLeft})
}

// handleExpiry resolves time running out to an automatic submission, which
// bypasses the live-camera precondition.
func (c *Controller) handleExpiry() {
	c.mu.Lock()
	if c.state == StateSubmitted {
		c.mu.Unlock()
		return
	}
	_, evs, err := c.submitLocked(model.TriggerTimeout)
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("Timeout submission failed")
		return
	}
	c.publish(append(evs, Event{
		Type:    EventWarning,
		Message: "Time expired - Assessment auto-submitted",
	})...)
}

// ─── Camera callbacks ──────────────────────────────────────────────

func (c *Controller) currentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// addSnapshot appends a captured frame. Snapshots arriving while the
// session is paused or submitted (a cadence racing a stop) are dropped.
func (c *Controller) addSnapshot(snap model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return
	}

	c.snapshots = append(c.snapshots, snap)
	if err := c.st.AppendSnapshot(context.Background(), c.ref, snap); err != nil {
		c.log.Warn().Err(err).Msg("Snapshot save failed")
	}
}

// handleCameraLost pauses an active session when liveness polling finds no
// live tracks. Loss observed while paused or submitted is ignored.
func (c *Controller) handleCameraLost(reason string) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.recordViolationLocked(model.ViolationCameraLost, "")
	c.camera.Stop()
	evs := c.pauseLocked(reason)
	c.mu.Unlock()
	c.publish(evs...)
}

// ─── Watcher callbacks ─────────────────────────────────────────────

func (c *Controller) unsubmitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateSubmitted
}

func (c *Controller) handleViolation(kind model.ViolationKind, reason string) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return
	}
	c.recordViolationLocked(kind, "")
	evs := c.pauseLocked(reason)
	c.mu.Unlock()
	c.publish(evs...)
}

func (c *Controller) handleWarning(kind model.ViolationKind, detail, message string) {
	c.mu.Lock()
	if c.state == StateSubmitted {
		c.mu.Unlock()
		return
	}
	c.recordViolationLocked(kind, detail)
	c.mu.Unlock()
	c.publish(Event{Type: EventWarning, Message: message})
}

func (c *Controller) handleSuppressed(kind model.ViolationKind, detail string) {
	c.mu.Lock()
	if c.state == StateSubmitted {
		c.mu.Unlock()
		return
	}
	c.recordViolationLocked(kind, detail)
	c.mu.Unlock()
}

func (c *Controller) recordViolationLocked(kind model.ViolationKind, detail string) {
	v := model.Violation{
		Kind:          kind,
		Detail:        detail,
		QuestionIndex: c.current,
		At:            c.now().UTC(),
	}
	if err := c.st.RecordViolation(context.Background(), c.ref, v); err != nil {
		c.log.Warn().Err(err).Str("kind", string(kind)).Msg("Violation record failed")
	}
}

// ─── Outbound ──────────────────────────────────────────────────────

func (c *Controller) publish(evs ...Event) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	for _, ev := range evs {
		sink.Publish(ev)
	}
}
