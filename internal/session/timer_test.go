package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock lets tests advance session time without real waiting; the
// ticker still fires on a short real cadence and recomputes from this clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

func TestTimerCountsDownFromDeadline(t *testing.T) {
	clock := newFakeClock()
	tm := NewTimer(90*time.Second, 5*time.Millisecond, clock.Now, func(int) {}, func() {})

	if got := tm.Seconds(); got != 90 {
		t.Fatalf("Seconds before start = %d, want 90", got)
	}

	tm.Start()
	defer tm.Pause()

	clock.Advance(30 * time.Second)
	waitFor(t, time.Second, func() bool { return tm.Seconds() == 60 }, "countdown to 60")
}

func TestTimerPausePreservesRemaining(t *testing.T) {
	clock := newFakeClock()
	var ticks atomic.Int64
	tm := NewTimer(90*time.Second, 5*time.Millisecond, clock.Now,
		func(int) { ticks.Add(1) }, func() {})

	tm.Start()
	clock.Advance(30 * time.Second)
	waitFor(t, time.Second, func() bool { return tm.Seconds() == 60 }, "countdown to 60")

	tm.Pause()

	// Let any in-flight tick drain, then verify the countdown is frozen.
	time.Sleep(20 * time.Millisecond)
	before := ticks.Load()
	clock.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)

	if got := ticks.Load(); got != before {
		t.Fatalf("ticks fired while paused: %d -> %d", before, got)
	}
	if got := tm.Seconds(); got != 60 {
		t.Fatalf("Seconds after pause = %d, want preserved 60", got)
	}

	// Resume continues from the preserved value, not a reset duration.
	tm.Start()
	defer tm.Pause()
	clock.Advance(10 * time.Second)
	waitFor(t, time.Second, func() bool { return tm.Seconds() == 50 }, "countdown resumes at 50")
}

func TestTimerExpiryFiresExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	var expiries atomic.Int64
	tm := NewTimer(5*time.Second, 5*time.Millisecond, clock.Now,
		func(int) {}, func() { expiries.Add(1) })

	tm.Start()
	clock.Advance(10 * time.Second)

	waitFor(t, time.Second, func() bool { return expiries.Load() == 1 }, "expiry fires")
	time.Sleep(50 * time.Millisecond)

	if got := expiries.Load(); got != 1 {
		t.Fatalf("expiry fired %d times, want 1", got)
	}
	if !tm.Expired() {
		t.Fatal("timer not marked expired")
	}
	if got := tm.Seconds(); got != 0 {
		t.Fatalf("Seconds after expiry = %d, want 0", got)
	}

	// Restarting an expired timer must not revive it.
	tm.Start()
	time.Sleep(20 * time.Millisecond)
	if got := expiries.Load(); got != 1 {
		t.Fatalf("expired timer re-fired: %d", got)
	}
}

func TestTimerStartIdempotentWhileRunning(t *testing.T) {
	clock := newFakeClock()
	tm := NewTimer(60*time.Second, 5*time.Millisecond, clock.Now, func(int) {}, func() {})

	tm.Start()
	defer tm.Pause()
	clock.Advance(20 * time.Second)
	waitFor(t, time.Second, func() bool { return tm.Seconds() == 40 }, "countdown to 40")

	// A second Start must not reset the deadline.
	tm.Start()
	if got := tm.Seconds(); got != 40 {
		t.Fatalf("Seconds after redundant Start = %d, want 40", got)
	}
}
