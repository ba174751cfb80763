package session

import (
	"context"
	"sync"
	"time"

	"github.com/proctorly/assessment-backend/internal/model"
	"github.com/rs/zerolog"
)

// Device is the media capture source owned by the CameraMonitor. The
// production device is the client's camera feed reported over the
// proctoring stream; tests use a fake.
type Device interface {
	// Open acquires the capture device. May take unbounded time (the user
	// permission prompt); returns an error when access is denied or the
	// device is unavailable.
	Open(ctx context.Context) error
	// Close releases all device tracks. Idempotent.
	Close()
	// LiveTracks reports how many capture tracks are currently live.
	LiveTracks() int
	// Capture encodes the current view as an opaque still frame.
	Capture() (string, error)
}

// CameraMonitor owns the capture device for one session: it takes a
// bootstrap snapshot shortly after start, periodic proof-of-presence
// snapshots, and polls track liveness on a shorter cadence.
type CameraMonitor struct {
	mu  sync.Mutex
	log zerolog.Logger

	dev           Device
	snapInterval  time.Duration
	bootstrapWait time.Duration
	liveInterval  time.Duration
	now           func() time.Time

	questionIndex func() int
	onSnapshot    func(model.Snapshot)
	onLost        func(reason string)

	active bool
	stop   chan struct{}
}

// NewCameraMonitor creates an inactive monitor. questionIndex supplies the
// currently displayed question for snapshot tagging; onSnapshot and onLost
// are invoked from the monitor goroutine without internal locks held.
func NewCameraMonitor(
	log zerolog.Logger,
	dev Device,
	snapInterval, bootstrapWait, liveInterval time.Duration,
	now func() time.Time,
	questionIndex func() int,
	onSnapshot func(model.Snapshot),
	onLost func(reason string),
) *CameraMonitor {
	if now == nil {
		now = time.Now
	}
	return &CameraMonitor{
		log:           log.With().Str("component", "camera_monitor").Logger(),
		dev:           dev,
		snapInterval:  snapInterval,
		bootstrapWait: bootstrapWait,
		liveInterval:  liveInterval,
		now:           now,
		questionIndex: questionIndex,
		onSnapshot:    onSnapshot,
		onLost:        onLost,
	}
}

// Start acquires the device and begins the snapshot and liveness cadences.
// Returns false (without error propagation) when device access fails.
// Idempotent if already active.
func (m *CameraMonitor) Start(ctx context.Context) bool {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return true
	}
	dev := m.dev
	m.mu.Unlock()

	if dev == nil {
		return false
	}
	if err := dev.Open(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Camera access failed")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return true
	}
	m.active = true
	m.stop = make(chan struct{})
	go m.run(m.stop)
	return true
}

// Stop cancels all cadences and releases the device tracks. Idempotent.
func (m *CameraMonitor) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	close(m.stop)
	m.stop = nil
	dev := m.dev
	m.mu.Unlock()

	if dev != nil {
		dev.Close()
	}
}

// Active reports whether the monitor currently holds the device.
func (m *CameraMonitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetDevice rebinds the capture source, e.g. after a client reconnect.
func (m *CameraMonitor) SetDevice(dev Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dev = dev
}

func (m *CameraMonitor) run(stop chan struct{}) {
	boot := time.NewTimer(m.bootstrapWait)
	snap := time.NewTicker(m.snapInterval)
	live := time.NewTicker(m.liveInterval)
	defer func() {
		boot.Stop()
		snap.Stop()
		live.Stop()
	}()

	for {
		select {
		case <-stop:
			return
		case <-boot.C:
			m.capture(stop)
		case <-snap.C:
			m.capture(stop)
		case <-live.C:
			m.checkLiveness(stop)
		}
	}
}

// capture takes one snapshot if this run is still current.
func (m *CameraMonitor) capture(stop chan struct{}) {
	m.mu.Lock()
	if !m.active || m.stop != stop {
		m.mu.Unlock()
		return
	}
	dev := m.dev
	m.mu.Unlock()

	if dev == nil {
		return
	}
	frame, err := dev.Capture()
	if err != nil {
		m.log.Warn().Err(err).Msg("Snapshot capture failed")
		return
	}

	m.onSnapshot(model.Snapshot{
		Ts:            m.now().UTC().Format(time.RFC3339),
		QuestionIndex: m.questionIndex(),
		Data:          frame,
	})
}

// checkLiveness raises a camera-loss violation when no track is live,
// independent of any explicit stop request.
func (m *CameraMonitor) checkLiveness(stop chan struct{}) {
	m.mu.Lock()
	if !m.active || m.stop != stop {
		m.mu.Unlock()
		return
	}
	dev := m.dev
	m.mu.Unlock()

	// A detached device counts as track loss: the feed is gone either way.
	if dev == nil || dev.LiveTracks() == 0 {
		m.onLost("Camera disconnected. Test paused until camera resumes.")
	}
}
