package queue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"uptend/internal/domain"
	"uptend/internal/metrics"
	"uptend/internal/models"

	"github.com/rs/zerolog"
)

// ExecResult reports what happened to an immediate call. Queued means the
// action was deferred; Response is set when the call reached the server,
// whatever the status code.
type ExecResult struct {
	Queued   bool
	Response *http.Response
}

// SyncResult aggregates one replay cycle. Individual action failures are
// never surfaced beyond these counts.
type SyncResult struct {
	Synced int
	Failed int
}

// OfflineQueue guarantees that a mutating API call made while offline, or
// one whose immediate attempt dies at the transport level, is retried in
// FIFO order until it succeeds or exhausts its retry budget.
type OfflineQueue struct {
	store      domain.QueueStore
	client     domain.Doer
	online     func() bool
	deadLetter domain.DeadLetterSink
	maxRetries int
	logger     zerolog.Logger

	mu      sync.Mutex
	syncing atomic.Bool
}

// Option configures an OfflineQueue.
type Option func(*OfflineQueue)

// WithDeadLetter routes actions evicted at the retry cap to a sink.
// Callers of Sync still never see them.
func WithDeadLetter(sink domain.DeadLetterSink) Option {
	return func(q *OfflineQueue) { q.deadLetter = sink }
}

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(q *OfflineQueue) { q.maxRetries = n }
}

// New builds a queue. online reports current reachability; it must be
// cheap and non-blocking.
func New(store domain.QueueStore, client domain.Doer, online func() bool, logger *zerolog.Logger, opts ...Option) *OfflineQueue {
	q := &OfflineQueue{
		store:      store,
		client:     client,
		online:     online,
		maxRetries: models.MaxRetries,
		logger:     logger.With().Str("component", "offline-queue").Logger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends an action and persists the queue. Storage failures are
// logged and swallowed; there is no secondary durability store to retry
// against.
func (q *OfflineQueue) Enqueue(ctx context.Context, method, path string, body json.RawMessage) models.QueuedAction {
	action := models.NewQueuedAction(method, path, body)

	q.mu.Lock()
	defer q.mu.Unlock()

	actions, err := q.store.Load(ctx)
	if err != nil {
		q.logger.Error().Err(err).Msg("Load queue for enqueue failed, starting from empty")
		actions = nil
	}
	actions = append(actions, action)

	if err := q.store.Save(ctx, actions); err != nil {
		q.logger.Error().Err(err).Str("action_id", action.ID).Msg("Persist queue failed, action held in memory only")
	}

	metrics.IncEnqueued()
	metrics.SetQueueDepth(len(actions))
	q.logger.Debug().Str("action_id", action.ID).Str("method", method).Str("path", path).Msg("Action queued")

	return action
}

// ExecuteOrQueue attempts the call immediately when online. Only a
// transport-level error queues the action; any HTTP response, 4xx and 5xx
// included, is a completed attempt. Offline skips the attempt entirely.
func (q *OfflineQueue) ExecuteOrQueue(ctx context.Context, method, path string, body json.RawMessage) ExecResult {
	if !q.online() {
		q.Enqueue(ctx, method, path, body)
		return ExecResult{Queued: true}
	}

	resp, err := q.client.Do(ctx, method, path, body)
	if err != nil {
		q.logger.Warn().Err(err).Str("path", path).Msg("Immediate call failed, queueing")
		q.Enqueue(ctx, method, path, body)
		return ExecResult{Queued: true}
	}

	return ExecResult{Response: resp}
}

// Sync replays the queue once, strictly sequentially in enqueue order.
// A cycle already in flight, or an offline device, short-circuits to zero
// counts. Survivors keep their relative order with Retries incremented;
// actions at the cap are evicted permanently.
func (q *OfflineQueue) Sync(ctx context.Context) SyncResult {
	if !q.syncing.CompareAndSwap(false, true) {
		return SyncResult{}
	}
	defer q.syncing.Store(false)

	if !q.online() {
		return SyncResult{}
	}

	q.mu.Lock()
	snapshot, err := q.store.Load(ctx)
	q.mu.Unlock()
	if err != nil {
		q.logger.Error().Err(err).Msg("Load queue for sync failed")
		return SyncResult{}
	}
	if len(snapshot) == 0 {
		return SyncResult{}
	}

	var result SyncResult
	remaining := make([]models.QueuedAction, 0, len(snapshot))

	for _, action := range snapshot {
		if q.attempt(ctx, action) {
			result.Synced++
			continue
		}

		result.Failed++
		if action.Retries < q.maxRetries {
			action.Retries++
			remaining = append(remaining, action)
			continue
		}

		// Retry budget exhausted: the action is gone for good.
		metrics.IncDropped()
		q.logger.Warn().Str("action_id", action.ID).Int("retries", action.Retries).Msg("Action evicted at retry cap")
		if q.deadLetter != nil {
			q.deadLetter.Push(ctx, action)
		}
	}

	q.mu.Lock()
	if err := q.store.Save(ctx, remaining); err != nil {
		q.logger.Error().Err(err).Msg("Persist queue after sync failed")
	}
	q.mu.Unlock()

	metrics.AddSynced(result.Synced)
	metrics.SetQueueDepth(len(remaining))
	q.logger.Info().Int("synced", result.Synced).Int("failed", result.Failed).Int("remaining", len(remaining)).Msg("Sync cycle finished")

	return result
}

// attempt returns true only on a 2xx response.
func (q *OfflineQueue) attempt(ctx context.Context, action models.QueuedAction) bool {
	resp, err := q.client.Do(ctx, action.Method, action.Path, action.Body)
	if err != nil {
		q.logger.Debug().Err(err).Str("action_id", action.ID).Msg("Replay transport error")
		return false
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Size returns the persisted queue length.
func (q *OfflineQueue) Size(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	actions, err := q.store.Load(ctx)
	if err != nil {
		q.logger.Error().Err(err).Msg("Load queue for size failed")
		return 0
	}
	return len(actions)
}

// Entries returns a copy of the persisted queue, oldest first.
func (q *OfflineQueue) Entries(ctx context.Context) []models.QueuedAction {
	q.mu.Lock()
	defer q.mu.Unlock()

	actions, err := q.store.Load(ctx)
	if err != nil {
		q.logger.Error().Err(err).Msg("Load queue for listing failed")
		return nil
	}
	return actions
}

// Clear unconditionally empties the persisted queue.
func (q *OfflineQueue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Clear(ctx); err != nil {
		q.logger.Error().Err(err).Msg("Clear queue failed")
		return
	}
	metrics.SetQueueDepth(0)
}
