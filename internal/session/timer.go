package session

import (
	"sync"
	"time"
)

// Timer is the session countdown. Remaining time is derived from a deadline
// captured at start, not from counting ticks, so the displayed countdown
// stays accurate under scheduling jitter. Expiry fires exactly once.
type Timer struct {
	mu        sync.Mutex
	tick      time.Duration
	now       func() time.Time
	onTick    func(secondsLeft int)
	onExpire  func()
	remaining time.Duration
	deadline  time.Time
	running   bool
	expired   bool
	stop      chan struct{}
}

// NewTimer creates a stopped countdown with the full duration remaining.
// Callbacks are invoked from the timer goroutine without internal locks
// held; a callback that arrives after Pause is discarded by the caller's
// own state check.
func NewTimer(duration, tick time.Duration, now func() time.Time, onTick func(int), onExpire func()) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{
		tick:      tick,
		now:       now,
		onTick:    onTick,
		onExpire:  onExpire,
		remaining: duration,
	}
}

// Start begins (or resumes) ticking from the preserved remaining time.
// No-op if already running or expired.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.expired {
		return
	}

	t.deadline = t.now().Add(t.remaining)
	t.running = true
	t.stop = make(chan struct{})
	go t.run(t.stop)
}

// Pause stops ticking and preserves the remaining time. A tick already in
// flight when Pause returns will be discarded by the staleness check.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}

	left := t.deadline.Sub(t.now())
	if left < 0 {
		left = 0
	}
	t.remaining = left
	t.running = false
	close(t.stop)
	t.stop = nil
}

// Seconds returns the whole seconds left, rounded up.
func (t *Timer) Seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.expired {
		return 0
	}
	left := t.remaining
	if t.running {
		left = t.deadline.Sub(t.now())
	}
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// Expired reports whether the countdown has reached zero.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

func (t *Timer) run(stop chan struct{}) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			left, fire, ok := t.advance(stop)
			if !ok {
				return
			}
			if fire {
				t.onExpire()
				return
			}
			t.onTick(left)
		}
	}
}

// advance recomputes remaining time for one tick. Returns ok=false when this
// run has been superseded by a pause/restart.
func (t *Timer) advance(stop chan struct{}) (secondsLeft int, fire, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || t.stop != stop {
		return 0, false, false
	}

	left := t.deadline.Sub(t.now())
	if left <= 0 {
		t.remaining = 0
		t.running = false
		t.expired = true
		t.stop = nil
		return 0, true, true
	}

	t.remaining = left
	return int((left + time.Second - 1) / time.Second), false, true
}
