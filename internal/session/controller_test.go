package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/proctorly/assessment-backend/internal/store"
	"github.com/rs/zerolog"
)

// recordSink captures published events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordSink) count(t EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (s *recordSink) last(t EventType) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Type == t {
			return s.events[i], true
		}
	}
	return Event{}, false
}

func intPtr(i int) *int { return &i }

func testBank() *model.Bank {
	return model.NewBank([]model.Question{
		{ID: "q1", Section: "logic", Type: model.QuestionTypeChoice, Points: 2,
			Prompt: "Pick one", Choices: []string{"a", "b", "c"}, CorrectChoice: intPtr(1)},
		{ID: "q2", Section: "logic", Type: model.QuestionTypeChoice, Points: 1,
			Prompt: "Pick another", Choices: []string{"x", "y"}, CorrectChoice: intPtr(0)},
		{ID: "q3", Section: "essay", Type: model.QuestionTypeFreeText, Points: 3,
			Prompt: "Explain"},
	})
}

func testSessionConfig() Config {
	return Config{
		Duration:               60 * time.Second,
		TimerTick:              10 * time.Millisecond,
		SnapshotInterval:       15 * time.Millisecond,
		BootstrapSnapshotDelay: 3 * time.Millisecond,
		LivenessInterval:       10 * time.Millisecond,
	}
}

func testCandidate() model.Candidate {
	return model.Candidate{ID: 7, Email: "jo@example.com", Name: "Jo", Role: model.RoleCandidate}
}

func newTestController(cfg Config) (*Controller, *fakeDevice, *recordSink, *store.MemoryStore) {
	dev := newFakeDevice()
	sink := &recordSink{}
	mem := store.NewMemoryStore()
	c := New(zerolog.Nop(), cfg, "assessment-1", testCandidate(), testBank(), mem, dev, sink)
	return c, dev, sink, mem
}

func startActive(t *testing.T, c *Controller) {
	t.Helper()
	if !c.StartCamera(context.Background()) {
		t.Fatal("StartCamera failed with a healthy device")
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state after start = %q, want ACTIVE", got)
	}
}

func TestStartCameraActivatesSession(t *testing.T) {
	c, _, sink, _ := newTestController(testSessionConfig())
	defer c.Teardown()

	if got := c.State(); got != StateNotStarted {
		t.Fatalf("initial state = %q, want NOT_STARTED", got)
	}

	startActive(t, c)

	if !c.CameraActive() {
		t.Fatal("camera inactive after start")
	}
	if ev, ok := sink.last(EventState); !ok || ev.View == nil || ev.View.Status != string(StateActive) {
		t.Fatalf("no ACTIVE state event published: %+v", ev)
	}
	if _, ok := sink.last(EventResumed); !ok {
		t.Fatal("no activation notice published")
	}
}

func TestStartCameraFailureLeavesSessionUntouched(t *testing.T) {
	c, dev, _, _ := newTestController(testSessionConfig())
	defer c.Teardown()
	dev.setOpenErr(errors.New("permission denied"))

	if c.StartCamera(context.Background()) {
		t.Fatal("StartCamera succeeded despite device failure")
	}
	if got := c.State(); got != StateNotStarted {
		t.Fatalf("state after failed start = %q, want NOT_STARTED", got)
	}

	view := c.View()
	if view.SecondsLeft != 60 {
		t.Fatalf("countdown started on failed camera start: %d", view.SecondsLeft)
	}
}

func TestRecordAnswerLastWriteWins(t *testing.T) {
	c, _, _, mem := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	c.RecordAnswer("q1", model.ChoiceAnswer(0))
	c.RecordAnswer("q1", model.ChoiceAnswer(2))
	c.RecordAnswer("q3", model.TextAnswer("first"))
	c.RecordAnswer("q3", model.TextAnswer("second"))

	// Unknown question and malformed value are both dropped.
	c.RecordAnswer("q99", model.ChoiceAnswer(0))
	c.RecordAnswer("q2", model.Answer{})

	view := c.View()
	if got := view.Answers["q1"].Choice; got == nil || *got != 2 {
		t.Fatalf("q1 answer = %v, want choice 2", got)
	}
	if got := view.Answers["q3"].Text; got == nil || *got != "second" {
		t.Fatalf("q3 answer = %v, want latest text", got)
	}
	if _, ok := view.Answers["q99"]; ok {
		t.Fatal("unknown question answer recorded")
	}
	if _, ok := view.Answers["q2"]; ok {
		t.Fatal("malformed answer recorded")
	}

	saved, err := mem.LoadAnswers(context.Background(), store.SessionRef{AssessmentID: "assessment-1", CandidateID: 7})
	if err != nil {
		t.Fatalf("LoadAnswers: %v", err)
	}
	if got := saved["q1"].Choice; got == nil || *got != 2 {
		t.Fatalf("persisted q1 = %v, want choice 2", got)
	}
}

func TestToggleMarkKeepsAnswer(t *testing.T) {
	c, _, _, _ := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	c.RecordAnswer("q1", model.ChoiceAnswer(1))
	c.ToggleMark("q1")

	view := c.View()
	if !view.Marks["q1"] {
		t.Fatal("q1 not marked after toggle")
	}
	if view.Progress.Marked != 1 {
		t.Fatalf("marked count = %d, want 1", view.Progress.Marked)
	}

	c.ToggleMark("q1")
	view = c.View()
	if view.Marks["q1"] {
		t.Fatal("q1 still marked after second toggle")
	}
	if got := view.Answers["q1"].Choice; got == nil || *got != 1 {
		t.Fatal("unmarking dropped the recorded answer")
	}
}

func TestNavigateBounds(t *testing.T) {
	c, _, _, _ := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	c.Navigate(2)
	if got := c.View().Current; got != 2 {
		t.Fatalf("current = %d, want 2", got)
	}

	c.Navigate(-1)
	c.Navigate(3)
	if got := c.View().Current; got != 2 {
		t.Fatalf("out-of-bounds navigation moved current to %d", got)
	}
}

func TestSubmitScoresAndIsIdempotent(t *testing.T) {
	c, _, sink, mem := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	c.RecordAnswer("q1", model.ChoiceAnswer(1))        // correct, 2 pts
	c.RecordAnswer("q2", model.ChoiceAnswer(1))        // wrong
	c.RecordAnswer("q3", model.TextAnswer("an essay")) // ungraded

	sub, err := c.Submit(model.TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Score.Earned != 2 || sub.Score.Max != 3 {
		t.Fatalf("score = %d/%d, want 2/3", sub.Score.Earned, sub.Score.Max)
	}
	if sub.Trigger != model.TriggerManual {
		t.Fatalf("trigger = %q, want manual", sub.Trigger)
	}
	if got := c.State(); got != StateSubmitted {
		t.Fatalf("state after submit = %q, want SUBMITTED", got)
	}
	if c.CameraActive() {
		t.Fatal("camera still held after submission")
	}

	again, err := c.Submit(model.TriggerManual)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if again != sub {
		t.Fatal("second Submit produced a different record")
	}

	if sink.count(EventSubmitted) != 1 {
		t.Fatalf("submitted events = %d, want 1", sink.count(EventSubmitted))
	}

	saved, err := mem.LoadSubmission(context.Background(), store.SessionRef{AssessmentID: "assessment-1", CandidateID: 7})
	if err != nil || saved == nil {
		t.Fatalf("submission not persisted: %v", err)
	}
	if saved.ID != sub.ID {
		t.Fatal("persisted submission differs from returned record")
	}
}

func TestManualSubmitRequiresLiveCamera(t *testing.T) {
	c, _, _, _ := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	c.StopCamera()
	if got := c.State(); got != StatePaused {
		t.Fatalf("state after StopCamera = %q, want PAUSED", got)
	}

	if _, err := c.Submit(model.TriggerManual); !errors.Is(err, ErrCameraInactive) {
		t.Fatalf("manual submit without camera: err = %v, want ErrCameraInactive", err)
	}
	if got := c.State(); got != StatePaused {
		t.Fatalf("rejected submit changed state to %q", got)
	}

	// Time running out must not be blocked by the camera precondition.
	sub, err := c.Submit(model.TriggerTimeout)
	if err != nil {
		t.Fatalf("timeout submit: %v", err)
	}
	if sub.Trigger != model.TriggerTimeout {
		t.Fatalf("trigger = %q, want timeout", sub.Trigger)
	}
}

func TestPauseStopsTicksAndSnapshots(t *testing.T) {
	c, _, sink, _ := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	waitFor(t, time.Second, func() bool {
		return c.View().SnapshotCount >= 2 && sink.count(EventTick) >= 1
	}, "ticks and snapshots flowing")

	c.Pause("Test paused: you switched tabs or minimized the window. Please return and restart camera.")
	if got := c.State(); got != StatePaused {
		t.Fatalf("state = %q, want PAUSED", got)
	}

	// Let in-flight callbacks drain, then verify everything is frozen.
	time.Sleep(30 * time.Millisecond)
	snaps := c.View().SnapshotCount
	ticks := sink.count(EventTick)
	seconds := c.View().SecondsLeft

	time.Sleep(80 * time.Millisecond)

	if got := c.View().SnapshotCount; got != snaps {
		t.Fatalf("snapshots grew while paused: %d -> %d", snaps, got)
	}
	if got := sink.count(EventTick); got != ticks {
		t.Fatalf("ticks flowed while paused: %d -> %d", ticks, got)
	}
	if got := c.View().SecondsLeft; got != seconds {
		t.Fatalf("countdown moved while paused: %d -> %d", seconds, got)
	}

	if ev, ok := sink.last(EventPaused); !ok || ev.Message == "" {
		t.Fatal("no pause notice published")
	}
}

func TestResumePreservesCountdownAndExpiryAutoSubmits(t *testing.T) {
	cfg := testSessionConfig()
	cfg.Duration = 2 * time.Second
	c, _, sink, _ := newTestController(cfg)
	defer c.Teardown()
	startActive(t, c)

	waitFor(t, 2*time.Second, func() bool { return c.View().SecondsLeft == 1 }, "countdown to 1")

	c.Pause("Test paused: camera stopped. Please restart camera to resume.")
	time.Sleep(300 * time.Millisecond)
	if got := c.View().SecondsLeft; got != 1 {
		t.Fatalf("countdown not preserved across pause: %d", got)
	}

	if !c.Resume(context.Background()) {
		t.Fatal("Resume failed with a healthy device")
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state after resume = %q, want ACTIVE", got)
	}

	// The remaining second elapses and the session auto-submits.
	waitFor(t, 3*time.Second, func() bool { return c.State() == StateSubmitted }, "expiry auto-submit")

	sub := c.Submission()
	if sub == nil || sub.Trigger != model.TriggerTimeout {
		t.Fatalf("auto-submission = %+v, want timeout trigger", sub)
	}
	if ev, ok := sink.last(EventWarning); !ok || ev.Message != "Time expired - Assessment auto-submitted" {
		t.Fatalf("expiry notice = %+v", ev)
	}
}

func TestCameraLossPausesSession(t *testing.T) {
	c, dev, sink, mem := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	waitFor(t, time.Second, func() bool { return c.View().SnapshotCount >= 1 }, "first snapshot")

	dev.setTracks(0)
	waitFor(t, time.Second, func() bool { return c.State() == StatePaused }, "pause on track loss")

	view := c.View()
	if view.PauseReason != "Camera disconnected. Test paused until camera resumes." {
		t.Fatalf("pause reason = %q", view.PauseReason)
	}

	time.Sleep(30 * time.Millisecond)
	snaps := c.View().SnapshotCount
	time.Sleep(60 * time.Millisecond)
	if got := c.View().SnapshotCount; got != snaps {
		t.Fatalf("snapshots grew after camera loss: %d -> %d", snaps, got)
	}

	ref := store.SessionRef{AssessmentID: "assessment-1", CandidateID: 7}
	found := false
	for _, v := range mem.Violations(ref) {
		if v.Kind == model.ViolationCameraLost {
			found = true
		}
	}
	if !found {
		t.Fatal("camera loss not recorded as a violation")
	}

	// Restarting the camera resumes the session.
	if !c.StartCamera(context.Background()) {
		t.Fatal("camera restart failed")
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state after restart = %q, want ACTIVE", got)
	}
	if _, ok := sink.last(EventResumed); !ok {
		t.Fatal("no resume notice published")
	}
}

func TestVisibilityLossPausesSession(t *testing.T) {
	c, _, _, mem := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	if got := c.HandleEnv(EnvEvent{Kind: EnvVisibilityHidden}); got != DispositionPause {
		t.Fatalf("visibility disposition = %q, want pause", got)
	}
	if got := c.State(); got != StatePaused {
		t.Fatalf("state = %q, want PAUSED", got)
	}

	view := c.View()
	if view.PauseReason != "Test paused: you switched tabs or minimized the window. Please return and restart camera." {
		t.Fatalf("pause reason = %q", view.PauseReason)
	}

	ref := store.SessionRef{AssessmentID: "assessment-1", CandidateID: 7}
	vs := mem.Violations(ref)
	if len(vs) != 1 || vs[0].Kind != model.ViolationVisibilityLost {
		t.Fatalf("violations = %v, want single visibility loss", vs)
	}
}

func TestKeyChordWarnsWithoutPausing(t *testing.T) {
	c, _, sink, _ := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	if got := c.HandleEnv(EnvEvent{Kind: EnvKeyChord, Detail: "ctrl+shift+i"}); got != DispositionWarn {
		t.Fatalf("chord disposition = %q, want warn", got)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("chord paused the session: %q", got)
	}
	if ev, ok := sink.last(EventWarning); !ok || ev.Message != "Keyboard shortcuts are disabled during the assessment." {
		t.Fatalf("chord warning = %+v", ev)
	}
}

func TestPostSubmissionEventsAreInert(t *testing.T) {
	c, dev, sink, _ := newTestController(testSessionConfig())
	defer c.Teardown()
	startActive(t, c)

	c.RecordAnswer("q1", model.ChoiceAnswer(1))
	sub, err := c.Submit(model.TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snaps := c.View().SnapshotCount

	// Environment events, device changes, and UI requests must all be no-ops.
	if got := c.HandleEnv(EnvEvent{Kind: EnvVisibilityHidden}); got != DispositionAllow {
		t.Fatalf("post-submission visibility disposition = %q, want allow", got)
	}
	c.RecordAnswer("q2", model.ChoiceAnswer(0))
	c.ToggleMark("q1")
	c.Navigate(2)
	c.Pause("ignored")
	dev.setTracks(0)
	if c.StartCamera(context.Background()) {
		t.Fatal("StartCamera succeeded after submission")
	}
	if c.Resume(context.Background()) {
		t.Fatal("Resume succeeded after submission")
	}

	time.Sleep(60 * time.Millisecond)

	if got := c.State(); got != StateSubmitted {
		t.Fatalf("state = %q, want SUBMITTED", got)
	}
	view := c.View()
	if _, ok := view.Answers["q2"]; ok {
		t.Fatal("answer recorded after submission")
	}
	if view.Marks["q1"] {
		t.Fatal("mark toggled after submission")
	}
	if view.Current != 0 {
		t.Fatalf("navigation moved after submission: %d", view.Current)
	}
	if view.SnapshotCount != snaps {
		t.Fatal("snapshots captured after submission")
	}
	if got := c.Submission(); got != sub {
		t.Fatal("submission record changed after the fact")
	}
	if sink.count(EventSubmitted) != 1 {
		t.Fatalf("submitted events = %d, want 1", sink.count(EventSubmitted))
	}
}

func TestRestoreFromStore(t *testing.T) {
	mem := store.NewMemoryStore()
	ref := store.SessionRef{AssessmentID: "assessment-1", CandidateID: 7}
	ctx := context.Background()

	if err := mem.SaveAnswer(ctx, ref, "q1", model.ChoiceAnswer(1)); err != nil {
		t.Fatal(err)
	}
	if err := mem.SaveMark(ctx, ref, "q1", true); err != nil {
		t.Fatal(err)
	}
	if err := mem.AppendSnapshot(ctx, ref, model.Snapshot{Ts: "2025-06-01T09:00:00Z", Data: "frame"}); err != nil {
		t.Fatal(err)
	}

	c := New(zerolog.Nop(), testSessionConfig(), "assessment-1", testCandidate(), testBank(), mem, newFakeDevice(), &recordSink{})
	defer c.Teardown()

	view := c.View()
	if got := view.Answers["q1"].Choice; got == nil || *got != 1 {
		t.Fatalf("restored q1 = %v, want choice 1", got)
	}
	if !view.Marks["q1"] {
		t.Fatal("restored mark missing")
	}
	if view.SnapshotCount != 1 {
		t.Fatalf("restored snapshot count = %d, want 1", view.SnapshotCount)
	}
	if got := c.State(); got != StateNotStarted {
		t.Fatalf("restored state = %q, want NOT_STARTED", got)
	}
}

func TestRestoreSubmittedSessionIsTerminal(t *testing.T) {
	mem := store.NewMemoryStore()
	ref := store.SessionRef{AssessmentID: "assessment-1", CandidateID: 7}
	prior := &model.Submission{AssessmentID: "assessment-1", Trigger: model.TriggerManual}
	if err := mem.SaveSubmission(context.Background(), ref, prior); err != nil {
		t.Fatal(err)
	}

	c := New(zerolog.Nop(), testSessionConfig(), "assessment-1", testCandidate(), testBank(), mem, newFakeDevice(), &recordSink{})
	defer c.Teardown()

	if got := c.State(); got != StateSubmitted {
		t.Fatalf("restored state = %q, want SUBMITTED", got)
	}
	if c.StartCamera(context.Background()) {
		t.Fatal("restored submitted session accepted a camera start")
	}
}

func TestManagerReattachesExistingSession(t *testing.T) {
	mem := store.NewMemoryStore()
	m := NewManager(zerolog.Nop(), testSessionConfig(), "assessment-1", testBank(), mem)
	defer m.Shutdown()

	cand := testCandidate()
	first := m.Attach(cand, newFakeDevice(), &recordSink{})
	startActive(t, first)
	first.RecordAnswer("q1", model.ChoiceAnswer(1))

	m.Detach(cand.ID)

	second := m.Attach(cand, newFakeDevice(), &recordSink{})
	if second != first {
		t.Fatal("reattach created a new session")
	}
	if got := second.View().Answers["q1"].Choice; got == nil || *got != 1 {
		t.Fatal("session state lost across reattach")
	}

	if _, ok := m.Get(cand.ID); !ok {
		t.Fatal("Get missed an attached session")
	}
	if _, ok := m.Get(999); ok {
		t.Fatal("Get returned a session for an unknown candidate")
	}
}
