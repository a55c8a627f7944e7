package tracking

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"uptend/internal/config"
	"uptend/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(frame string) {
	c.frames <- []byte(frame)
}

// fakeDialer fails until a conn is armed via succeedWith.
type fakeDialer struct {
	mu    sync.Mutex
	next  *fakeConn
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.next == nil {
		return nil, errors.New("dial refused")
	}
	conn := d.next
	d.next = nil
	return conn, nil
}

func (d *fakeDialer) succeedWith(conn *fakeConn) {
	d.mu.Lock()
	d.next = conn
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeTimers records scheduled reconnects for manual firing.
type fakeTimers struct {
	mu        sync.Mutex
	delays    []time.Duration
	fns       []func()
	cancelled []bool
}

func (ft *fakeTimers) newTimer(d time.Duration, fn func()) func() {
	ft.mu.Lock()
	idx := len(ft.delays)
	ft.delays = append(ft.delays, d)
	ft.fns = append(ft.fns, fn)
	ft.cancelled = append(ft.cancelled, false)
	ft.mu.Unlock()

	return func() {
		ft.mu.Lock()
		ft.cancelled[idx] = true
		ft.mu.Unlock()
	}
}

func (ft *fakeTimers) count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.delays)
}

func (ft *fakeTimers) delay(i int) time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.delays[i]
}

// fire invokes the i-th scheduled callback even if cancelled, modelling a
// platform timer that already fired.
func (ft *fakeTimers) fire(i int) {
	ft.mu.Lock()
	fn := ft.fns[i]
	ft.mu.Unlock()
	fn()
}

func newTestTracker(t *testing.T, dialer *fakeDialer, timers *fakeTimers) *Tracker {
	t.Helper()
	logger := zerolog.New(io.Discard)
	cfg := config.SocketConfig{
		BaseURL:      "wss://api.uptend.test",
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
	tracker := NewTracker(cfg, "job-1", dialer, &logger, WithTimer(timers.newTimer))
	t.Cleanup(tracker.Stop)
	return tracker
}

func waitForTimers(t *testing.T, timers *fakeTimers, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return timers.count() >= n }, time.Second, time.Millisecond)
}

func waitConnected(t *testing.T, tracker *Tracker, want bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return tracker.Snapshot().IsConnected == want
	}, time.Second, time.Millisecond)
}

func TestBackoffDoublingAndReset(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	tracker.Start(context.Background())
	waitForTimers(t, timers, 1)
	assert.Equal(t, time.Second, timers.delay(0))

	timers.fire(0)
	waitForTimers(t, timers, 2)
	assert.Equal(t, 2*time.Second, timers.delay(1))

	timers.fire(1)
	waitForTimers(t, timers, 3)
	assert.Equal(t, 4*time.Second, timers.delay(2))

	// A successful open resets the delay to its floor.
	conn := newFakeConn()
	dialer.succeedWith(conn)
	go timers.fire(2)
	waitConnected(t, tracker, true)

	conn.Close()
	waitForTimers(t, timers, 4)
	assert.Equal(t, time.Second, timers.delay(3))
}

func TestBackoffCap(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	tracker.Start(context.Background())
	waitForTimers(t, timers, 1)

	for i := 0; i < 6; i++ {
		timers.fire(i)
		waitForTimers(t, timers, i+2)
	}

	// 1s 2s 4s 8s 16s then clamped.
	assert.Equal(t, 16*time.Second, timers.delay(4))
	assert.Equal(t, 30*time.Second, timers.delay(5))
	assert.Equal(t, 30*time.Second, timers.delay(6))
}

func TestMessageOverlay(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	conn := newFakeConn()
	dialer.succeedWith(conn)
	tracker.Start(context.Background())
	waitConnected(t, tracker, true)

	conn.push(`{"type":"job_started","job":{"id":"job-1"}}`)
	require.Eventually(t, func() bool {
		return tracker.Snapshot().Status == models.JobStatusInProgress
	}, time.Second, time.Millisecond)

	conn.push(`{"type":"location_updated","lat":28.54,"lng":-81.38}`)
	require.Eventually(t, func() bool {
		return tracker.Snapshot().ProLocation != nil
	}, time.Second, time.Millisecond)

	state := tracker.Snapshot()
	assert.Equal(t, models.JobStatusInProgress, state.Status, "location update must not clobber status")
	assert.InDelta(t, 28.54, state.ProLocation.Lat, 1e-9)
	assert.InDelta(t, -81.38, state.ProLocation.Lng, 1e-9)
	assert.Equal(t, "location_updated", state.LastUpdate["type"])
}

func TestNestedStatusProjection(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	conn := newFakeConn()
	dialer.succeedWith(conn)
	tracker.Start(context.Background())
	waitConnected(t, tracker, true)

	conn.push(`{"type":"job_update","job":{"status":"en_route"}}`)
	require.Eventually(t, func() bool {
		return tracker.Snapshot().Status == "en_route"
	}, time.Second, time.Millisecond)

	conn.push(`{"type":"job_accepted","job":{"status":"ignored_by_override"}}`)
	require.Eventually(t, func() bool {
		return tracker.Snapshot().Status == models.JobStatusAssigned
	}, time.Second, time.Millisecond, "typed message overrides the nested field")
}

func TestMalformedFramesIgnored(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	conn := newFakeConn()
	dialer.succeedWith(conn)
	tracker.Start(context.Background())
	waitConnected(t, tracker, true)

	conn.push(`{"type":"job_started"}`)
	require.Eventually(t, func() bool {
		return tracker.Snapshot().Status == models.JobStatusInProgress
	}, time.Second, time.Millisecond)

	conn.push(`this is not json`)
	conn.push(`{"unrelated":true}`)
	require.Eventually(t, func() bool {
		last := tracker.Snapshot().LastUpdate
		return last != nil && last["unrelated"] == true
	}, time.Second, time.Millisecond)

	state := tracker.Snapshot()
	assert.Equal(t, models.JobStatusInProgress, state.Status)
	assert.True(t, state.IsConnected)
}

func TestStateSurvivesReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	conn := newFakeConn()
	dialer.succeedWith(conn)
	tracker.Start(context.Background())
	waitConnected(t, tracker, true)

	conn.push(`{"type":"location_updated","lat":1,"lng":2}`)
	conn.push(`{"type":"job_started"}`)
	require.Eventually(t, func() bool {
		s := tracker.Snapshot()
		return s.Status == models.JobStatusInProgress && s.ProLocation != nil
	}, time.Second, time.Millisecond)

	conn.Close()
	waitConnected(t, tracker, false)

	state := tracker.Snapshot()
	assert.Equal(t, models.JobStatusInProgress, state.Status, "status persists across the drop")
	assert.NotNil(t, state.ProLocation, "location persists across the drop")
	assert.Equal(t, PhaseDisconnected, tracker.Phase())
}

func TestTeardownIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	tracker.Start(context.Background())
	waitForTimers(t, timers, 1)

	tracker.Stop()
	assert.NotPanics(t, tracker.Stop)
	assert.Equal(t, PhaseTerminated, tracker.Phase())

	timers.mu.Lock()
	assert.True(t, timers.cancelled[0], "pending reconnect timer cancelled")
	timers.mu.Unlock()

	// Even if the platform timer already fired, the callback is inert.
	dials := dialer.dialCount()
	timers.fire(0)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, dials, dialer.dialCount())
	assert.Equal(t, PhaseTerminated, tracker.Phase())
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	dialer := &fakeDialer{}
	timers := &fakeTimers{}
	tracker := newTestTracker(t, dialer, timers)

	var mu sync.Mutex
	var seen []models.JobTrackingState
	unsubscribe := tracker.Subscribe(func(s models.JobTrackingState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	conn := newFakeConn()
	dialer.succeedWith(conn)
	tracker.Start(context.Background())
	waitConnected(t, tracker, true)

	conn.push(`{"type":"job_completed"}`)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.True(t, seen[0].IsConnected)
	assert.Equal(t, models.JobStatusCompleted, seen[len(seen)-1].Status)
	mu.Unlock()

	unsubscribe()
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t,
		"wss://api.uptend.test/ws/jobs/job-9?role=customer",
		streamURL("wss://api.uptend.test/", "job-9", "customer"),
	)
}
