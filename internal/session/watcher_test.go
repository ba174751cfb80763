package session

import (
	"sync"
	"testing"

	"github.com/proctorly/assessment-backend/internal/model"
)

// watcherRecorder captures the callback stream for assertions.
type watcherRecorder struct {
	mu          sync.Mutex
	violations  []model.ViolationKind
	warnings    []string
	suppressed  []model.ViolationKind
	unsubmitted bool
}

func (r *watcherRecorder) watcher() *Watcher {
	return NewWatcher(
		func() bool {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.unsubmitted
		},
		func(kind model.ViolationKind, _ string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.violations = append(r.violations, kind)
		},
		func(_ model.ViolationKind, detail, _ string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.warnings = append(r.warnings, detail)
		},
		func(kind model.ViolationKind, _ string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.suppressed = append(r.suppressed, kind)
		},
	)
}

func TestWatcherDispositions(t *testing.T) {
	cases := []struct {
		name string
		ev   EnvEvent
		want Disposition
	}{
		{"context menu", EnvEvent{Kind: EnvContextMenu}, DispositionSuppress},
		{"copy", EnvEvent{Kind: EnvCopy}, DispositionSuppress},
		{"cut", EnvEvent{Kind: EnvCut}, DispositionSuppress},
		{"paste", EnvEvent{Kind: EnvPaste}, DispositionSuppress},
		{"devtools key", EnvEvent{Kind: EnvKeyChord, Detail: "F12"}, DispositionWarn},
		{"devtools chord", EnvEvent{Kind: EnvKeyChord, Detail: "ctrl+shift+i"}, DispositionWarn},
		{"copy chord", EnvEvent{Kind: EnvKeyChord, Detail: "ctrl+c"}, DispositionWarn},
		{"save chord", EnvEvent{Kind: EnvKeyChord, Detail: "ctrl+s"}, DispositionWarn},
		{"print chord", EnvEvent{Kind: EnvKeyChord, Detail: "ctrl+p"}, DispositionWarn},
		{"harmless chord", EnvEvent{Kind: EnvKeyChord, Detail: "ctrl+b"}, DispositionAllow},
		{"plain key", EnvEvent{Kind: EnvKeyChord, Detail: "a"}, DispositionAllow},
		{"tab switch", EnvEvent{Kind: EnvVisibilityHidden}, DispositionPause},
		{"leave attempt", EnvEvent{Kind: EnvUnloadAttempt}, DispositionConfirm},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &watcherRecorder{unsubmitted: true}
			w := rec.watcher()
			w.Bind()

			if got := w.Handle(tc.ev); got != tc.want {
				t.Fatalf("Handle(%v) = %q, want %q", tc.ev, got, tc.want)
			}
		})
	}
}

func TestWatcherUnboundAllowsEverything(t *testing.T) {
	rec := &watcherRecorder{unsubmitted: true}
	w := rec.watcher()

	events := []EnvEvent{
		{Kind: EnvVisibilityHidden},
		{Kind: EnvKeyChord, Detail: "ctrl+c"},
		{Kind: EnvContextMenu},
		{Kind: EnvUnloadAttempt},
	}
	for _, ev := range events {
		if got := w.Handle(ev); got != DispositionAllow {
			t.Fatalf("unbound Handle(%v) = %q, want allow", ev, got)
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.violations)+len(rec.warnings)+len(rec.suppressed) != 0 {
		t.Fatal("unbound watcher invoked callbacks")
	}
}

func TestWatcherChordNormalization(t *testing.T) {
	rec := &watcherRecorder{unsubmitted: true}
	w := rec.watcher()
	w.Bind()

	if got := w.Handle(EnvEvent{Kind: EnvKeyChord, Detail: "  Ctrl+Shift+I "}); got != DispositionWarn {
		t.Fatalf("mixed-case chord disposition = %q, want warn", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.warnings) != 1 || rec.warnings[0] != "ctrl+shift+i" {
		t.Fatalf("warnings = %v, want normalized chord", rec.warnings)
	}
}

func TestWatcherUnloadAfterSubmission(t *testing.T) {
	rec := &watcherRecorder{unsubmitted: false}
	w := rec.watcher()
	w.Bind()

	if got := w.Handle(EnvEvent{Kind: EnvUnloadAttempt}); got != DispositionAllow {
		t.Fatalf("post-submission unload disposition = %q, want allow", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.suppressed) != 0 {
		t.Fatal("post-submission unload recorded a violation")
	}
}

func TestWatcherVisibilityRecordsViolation(t *testing.T) {
	rec := &watcherRecorder{unsubmitted: true}
	w := rec.watcher()
	w.Bind()

	w.Handle(EnvEvent{Kind: EnvVisibilityHidden})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.violations) != 1 || rec.violations[0] != model.ViolationVisibilityLost {
		t.Fatalf("violations = %v, want single visibility loss", rec.violations)
	}
}

func TestWatcherUnbindStopsClassification(t *testing.T) {
	rec := &watcherRecorder{unsubmitted: true}
	w := rec.watcher()
	w.Bind()
	w.Unbind()

	if got := w.Handle(EnvEvent{Kind: EnvVisibilityHidden}); got != DispositionAllow {
		t.Fatalf("unbound Handle = %q, want allow", got)
	}
	if w.Bound() {
		t.Fatal("watcher still bound after Unbind")
	}
}
