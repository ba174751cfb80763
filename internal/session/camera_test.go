package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/rs/zerolog"
)

// fakeDevice simulates the client-side capture feed.
type fakeDevice struct {
	mu      sync.Mutex
	openErr error
	tracks  int
	frames  int
	closes  int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{}
}

func (d *fakeDevice) Open(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	d.tracks = 1
	return nil
}

func (d *fakeDevice) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.tracks = 0
}

func (d *fakeDevice) LiveTracks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracks
}

func (d *fakeDevice) Capture() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames++
	return fmt.Sprintf("frame-%d", d.frames), nil
}

func (d *fakeDevice) setTracks(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracks = n
}

func (d *fakeDevice) setOpenErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// snapCollector gathers snapshots delivered by the monitor.
type snapCollector struct {
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (c *snapCollector) add(s model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

func (c *snapCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func (c *snapCollector) all() []model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Snapshot, len(c.snaps))
	copy(out, c.snaps)
	return out
}

func newTestMonitor(dev Device, col *snapCollector, onLost func(string)) *CameraMonitor {
	if onLost == nil {
		onLost = func(string) {}
	}
	return NewCameraMonitor(
		zerolog.Nop(), dev,
		15*time.Millisecond, // snapshot cadence
		3*time.Millisecond,  // bootstrap snapshot
		10*time.Millisecond, // liveness poll
		nil,
		func() int { return 4 },
		col.add,
		onLost,
	)
}

func TestCameraMonitorBootstrapAndPeriodicSnapshots(t *testing.T) {
	dev := newFakeDevice()
	col := &snapCollector{}
	m := newTestMonitor(dev, col, nil)

	if !m.Start(context.Background()) {
		t.Fatal("Start failed with a healthy device")
	}
	defer m.Stop()

	// Bootstrap plus at least two periodic captures.
	waitFor(t, time.Second, func() bool { return col.count() >= 3 }, "three snapshots")

	for _, s := range col.all() {
		if _, err := time.Parse(time.RFC3339, s.Ts); err != nil {
			t.Fatalf("snapshot timestamp %q not RFC3339: %v", s.Ts, err)
		}
		if s.QuestionIndex != 4 {
			t.Fatalf("snapshot question index = %d, want 4", s.QuestionIndex)
		}
		if s.Data == "" {
			t.Fatal("snapshot has empty frame data")
		}
	}
}

func TestCameraMonitorStartFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.setOpenErr(errors.New("permission denied"))
	col := &snapCollector{}
	m := newTestMonitor(dev, col, nil)

	if m.Start(context.Background()) {
		t.Fatal("Start succeeded despite device open failure")
	}
	if m.Active() {
		t.Fatal("monitor active after failed start")
	}

	time.Sleep(40 * time.Millisecond)
	if got := col.count(); got != 0 {
		t.Fatalf("captured %d snapshots after failed start", got)
	}
}

func TestCameraMonitorStopFreezesCaptures(t *testing.T) {
	dev := newFakeDevice()
	col := &snapCollector{}
	m := newTestMonitor(dev, col, nil)

	m.Start(context.Background())
	waitFor(t, time.Second, func() bool { return col.count() >= 2 }, "captures running")

	m.Stop()
	m.Stop() // idempotent

	time.Sleep(10 * time.Millisecond)
	frozen := col.count()
	time.Sleep(60 * time.Millisecond)

	if got := col.count(); got != frozen {
		t.Fatalf("snapshots kept arriving after Stop: %d -> %d", frozen, got)
	}
	if m.Active() {
		t.Fatal("monitor still active after Stop")
	}
	if dev.closeCount() == 0 {
		t.Fatal("device tracks not released on Stop")
	}
}

func TestCameraMonitorLivenessLoss(t *testing.T) {
	dev := newFakeDevice()
	col := &snapCollector{}

	var mu sync.Mutex
	var lostReason string
	m := newTestMonitor(dev, col, func(reason string) {
		mu.Lock()
		defer mu.Unlock()
		if lostReason == "" {
			lostReason = reason
		}
	})

	m.Start(context.Background())
	defer m.Stop()

	dev.setTracks(0)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lostReason != ""
	}, "track loss reported")

	mu.Lock()
	reason := lostReason
	mu.Unlock()
	if reason != "Camera disconnected. Test paused until camera resumes." {
		t.Fatalf("unexpected loss reason: %q", reason)
	}
}

func TestCameraMonitorDetachedDeviceIsTrackLoss(t *testing.T) {
	dev := newFakeDevice()
	col := &snapCollector{}

	var lost sync.Once
	lostCh := make(chan struct{})
	m := newTestMonitor(dev, col, func(string) {
		lost.Do(func() { close(lostCh) })
	})

	m.Start(context.Background())
	defer m.Stop()

	m.SetDevice(nil)

	select {
	case <-lostCh:
	case <-time.After(time.Second):
		t.Fatal("detached device not reported as track loss")
	}
}

func TestCameraMonitorStartIdempotent(t *testing.T) {
	dev := newFakeDevice()
	col := &snapCollector{}
	m := newTestMonitor(dev, col, nil)

	m.Start(context.Background())
	defer m.Stop()

	if !m.Start(context.Background()) {
		t.Fatal("second Start on active monitor returned false")
	}
	if !m.Active() {
		t.Fatal("monitor inactive after idempotent Start")
	}
}
