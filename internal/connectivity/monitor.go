package connectivity

import (
	"context"
	"sync"

	"uptend/internal/domain"
	"uptend/internal/metrics"

	"github.com/rs/zerolog"
)

// Monitor mirrors the platform's reachability signal and drains the
// offline queue exactly once per offline-to-online transition. Raw
// listeners receive every reported event; only the drain hook is gated by
// the de-duplicated transition.
type Monitor struct {
	source domain.ConnectivitySource
	logger zerolog.Logger
	drain  func(ctx context.Context)

	mu        sync.Mutex
	online    bool
	listeners map[int]func(online bool)
	nextID    int
	stop      func()
	started   bool
}

// NewMonitor builds a monitor over a platform source. drain may be nil.
// The initial state is optimistically online.
func NewMonitor(source domain.ConnectivitySource, drain func(ctx context.Context), logger *zerolog.Logger) *Monitor {
	return &Monitor{
		source:    source,
		drain:     drain,
		logger:    logger.With().Str("component", "connectivity").Logger(),
		online:    true,
		listeners: make(map[int]func(online bool)),
	}
}

// Start begins watching the platform source. A missing or failing source
// degrades silently: the monitor keeps answering with its last known
// value and fires no further transitions.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	if m.source == nil {
		m.logger.Warn().Msg("No connectivity source, assuming online")
		return
	}

	stop, err := m.source.Watch(ctx, func(online bool) {
		m.handleEvent(ctx, online)
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("Connectivity source unavailable, assuming online")
		return
	}

	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()
}

// Stop detaches from the platform source. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Online returns the last reported reachability state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a listener invoked on every raw platform event, not
// just transitions. The returned function unsubscribes.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) handleEvent(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}

	if online == wasOnline {
		return
	}

	if online {
		metrics.IncTransition("online")
		m.logger.Info().Msg("Back online")
		if m.drain != nil {
			// Fire and forget; the listener path never waits on a replay.
			go m.drain(ctx)
		}
	} else {
		metrics.IncTransition("offline")
		m.logger.Info().Msg("Went offline")
	}
}
