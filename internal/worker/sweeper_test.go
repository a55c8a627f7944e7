package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"uptend/internal/queue"
	"uptend/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingDoer struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (d *countingDoer) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	d.calls.Add(1)
	if d.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func TestSweeperDrainsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(io.Discard)
	doer := &countingDoer{}
	store := repository.NewJSONQueueStore(repository.NewMemoryKV(), "q")
	q := queue.New(store, doer, func() bool { return true }, &logger)

	q.Enqueue(ctx, "POST", "/a", nil)
	q.Enqueue(ctx, "POST", "/b", nil)

	sweeper := NewSweeper(q, 5*time.Millisecond, &logger)
	go sweeper.Start(ctx)

	require.Eventually(t, func() bool {
		return q.Size(ctx) == 0
	}, time.Second, time.Millisecond)
	require.GreaterOrEqual(t, doer.calls.Load(), int32(2))
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	logger := zerolog.New(io.Discard)
	doer := &countingDoer{}
	doer.fail.Store(true)
	store := repository.NewJSONQueueStore(repository.NewMemoryKV(), "q")
	q := queue.New(store, doer, func() bool { return true }, &logger)
	q.Enqueue(ctx, "POST", "/a", nil)

	sweeper := NewSweeper(q, 5*time.Millisecond, &logger)
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return doer.calls.Load() > 0
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
