package domain

import (
	"context"
	"net/http"

	"uptend/internal/models"
)

// QueueStore persists the offline action queue as a whole. Implementations
// must read and write the entire array in one call; there are no partial
// updates.
type QueueStore interface {
	Load(ctx context.Context) ([]models.QueuedAction, error)
	Save(ctx context.Context, actions []models.QueuedAction) error
	Clear(ctx context.Context) error
}

// KVStore is the underlying key-value string store shared by the queue and
// the token source.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Doer executes a prepared HTTP request. A non-nil error means the request
// never completed at the transport level; any response, including 4xx/5xx,
// is a completed attempt.
type Doer interface {
	Do(ctx context.Context, method, path string, body []byte) (*http.Response, error)
}

// TokenSource yields the bearer token attached to outbound calls, or empty
// when no token is stored.
type TokenSource interface {
	Token(ctx context.Context) string
}

// DeadLetterSink receives actions evicted at the retry cap. Push failures
// are the sink's problem; the queue never reports them to callers.
type DeadLetterSink interface {
	Push(ctx context.Context, action models.QueuedAction)
	List(ctx context.Context) ([]models.QueuedAction, error)
}

// ConnectivitySource registers a callback for platform reachability events
// and returns a stop function. A source that cannot observe the platform
// returns an error; the monitor then degrades to its last known value.
type ConnectivitySource interface {
	Watch(ctx context.Context, onEvent func(online bool)) (stop func(), err error)
}
