package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"uptend/internal/config"
	"uptend/internal/metrics"
	"uptend/internal/models"
	"uptend/internal/worker"

	"github.com/rs/zerolog"
)

// Phase is the tracker's connection lifecycle state.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseTerminated:
		return "terminated"
	}
	return "unknown"
}

// Conn is the receive-only transport under the tracker.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens a Conn to the job stream URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// timerFunc schedules fn after d and returns a cancel function.
type timerFunc func(d time.Duration, fn func()) (cancel func())

// Tracker maintains a best-effort live subscription to one job's event
// stream and projects incoming messages into a UI-consumable snapshot.
// Nothing in its lifecycle ever propagates an error to the caller:
// transport failures feed the reconnect loop and malformed frames are
// dropped at the parse boundary.
type Tracker struct {
	url      string
	dialer   Dialer
	newTimer timerFunc
	backoff  worker.RetryPolicy
	logger   zerolog.Logger

	mu          sync.Mutex
	phase       Phase
	conn        Conn
	cancelTimer func()
	attempt     int
	state       models.JobTrackingState
	subs        map[int]func(models.JobTrackingState)
	nextID      int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTimer replaces the reconnect timer, for tests.
func WithTimer(fn timerFunc) Option {
	return func(t *Tracker) { t.newTimer = fn }
}

// NewTracker builds a tracker for one job. The stream URL is derived from
// the configured base plus the job id and the fixed role parameter.
func NewTracker(cfg config.SocketConfig, jobID string, dialer Dialer, logger *zerolog.Logger, opts ...Option) *Tracker {
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = models.ReconnectInitialDelayMS * time.Millisecond
	}
	max := cfg.MaxDelay
	if max <= 0 {
		max = models.ReconnectMaxDelayMS * time.Millisecond
	}
	role := cfg.Role
	if role == "" {
		role = models.TrackingRole
	}

	t := &Tracker{
		url:    streamURL(cfg.BaseURL, jobID, role),
		dialer: dialer,
		newTimer: func(d time.Duration, fn func()) func() {
			timer := time.AfterFunc(d, fn)
			return func() { timer.Stop() }
		},
		backoff: worker.RetryPolicy{
			InitialDelay:  initial,
			MaxDelay:      max,
			BackoffFactor: 2,
		},
		logger:  logger.With().Str("component", "job-tracker").Str("job_id", jobID).Logger(),
		phase:   PhaseDisconnected,
		attempt: 1,
		subs:    make(map[int]func(models.JobTrackingState)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func streamURL(base, jobID, role string) string {
	return fmt.Sprintf("%s/ws/jobs/%s?role=%s", strings.TrimRight(base, "/"), jobID, role)
}

// Start moves the tracker out of its initial state and begins dialing.
// Calling it on a started or terminated tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.phase != PhaseDisconnected || t.cancelTimer != nil {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseConnecting
	t.mu.Unlock()

	go t.dialAndServe(ctx)
}

// Stop tears the tracker down: pending reconnect timers are cancelled,
// any live socket is closed, and no callback scheduled earlier may mutate
// state afterwards. Safe to call repeatedly.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.phase == PhaseTerminated {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseTerminated
	if t.cancelTimer != nil {
		t.cancelTimer()
		t.cancelTimer = nil
	}
	conn := t.conn
	t.conn = nil
	t.state.IsConnected = false
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	t.logger.Debug().Msg("Tracker terminated")
}

// Snapshot returns the current projected state.
func (t *Tracker) Snapshot() models.JobTrackingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Phase returns the lifecycle state, mainly for diagnostics.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Subscribe registers a listener for state snapshots. The returned
// function unsubscribes.
func (t *Tracker) Subscribe(fn func(models.JobTrackingState)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) dialAndServe(ctx context.Context) {
	conn, err := t.dialer.Dial(ctx, t.url)

	t.mu.Lock()
	if t.phase == PhaseTerminated {
		t.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		t.mu.Unlock()
		t.logger.Debug().Err(err).Msg("Dial failed")
		t.handleClose(ctx)
		return
	}

	t.conn = conn
	t.phase = PhaseConnected
	// Successful open resets the backoff to its floor.
	t.attempt = 1
	t.state.IsConnected = true
	snapshot := t.state
	t.mu.Unlock()

	t.logger.Debug().Msg("Stream connected")
	t.notify(snapshot)

	for {
		data, readErr := conn.ReadMessage()
		if readErr != nil {
			break
		}
		t.project(data)
	}

	t.handleClose(ctx)
}

// handleClose runs after any dial failure or read-loop exit. It schedules
// the next reconnect with the current backoff delay; Status and
// ProLocation survive, only IsConnected flips.
func (t *Tracker) handleClose(ctx context.Context) {
	t.mu.Lock()
	if t.phase == PhaseTerminated {
		t.mu.Unlock()
		return
	}

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.phase = PhaseDisconnected

	wasConnected := t.state.IsConnected
	t.state.IsConnected = false
	snapshot := t.state

	delay := t.backoff.NextDelay(t.attempt)
	t.attempt++
	t.cancelTimer = t.newTimer(delay, func() { t.reconnect(ctx) })
	t.mu.Unlock()

	metrics.IncReconnect()
	t.logger.Debug().Dur("delay", delay).Msg("Stream closed, reconnect scheduled")
	if wasConnected {
		t.notify(snapshot)
	}
}

func (t *Tracker) reconnect(ctx context.Context) {
	t.mu.Lock()
	if t.phase != PhaseDisconnected {
		t.mu.Unlock()
		return
	}
	t.phase = PhaseConnecting
	t.cancelTimer = nil
	t.mu.Unlock()

	t.dialAndServe(ctx)
}

// project applies one raw frame to the state. Non-JSON frames are ignored
// entirely. Fields overlay additively: a location update and a status
// update never clobber each other.
func (t *Tracker) project(data []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	t.mu.Lock()
	if t.phase == PhaseTerminated {
		t.mu.Unlock()
		return
	}

	msgType, _ := msg["type"].(string)

	if msgType == models.MsgLocationUpdated {
		lat, latOK := asFloat(msg["lat"])
		lng, lngOK := asFloat(msg["lng"])
		if latOK && lngOK {
			t.state.ProLocation = &models.ProLocation{Lat: lat, Lng: lng}
		}
	}

	if job, ok := msg["job"].(map[string]interface{}); ok {
		if status, ok := job["status"].(string); ok && status != "" {
			t.state.Status = status
		}
	}

	switch msgType {
	case models.MsgJobAccepted:
		t.state.Status = models.JobStatusAssigned
	case models.MsgJobStarted:
		t.state.Status = models.JobStatusInProgress
	case models.MsgJobCompleted:
		t.state.Status = models.JobStatusCompleted
	}

	// The raw message always lands last, whatever its shape.
	t.state.LastUpdate = msg
	snapshot := t.state
	t.mu.Unlock()

	t.notify(snapshot)
}

func (t *Tracker) notify(snapshot models.JobTrackingState) {
	t.mu.Lock()
	fns := make([]func(models.JobTrackingState), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
