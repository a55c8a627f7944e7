package repository

import (
	"context"
	"testing"

	"uptend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	got, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, kv.Set(ctx, "k", "v"))
	got, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, kv.Delete(ctx, "k"))
	got, _ = kv.Get(ctx, "k")
	assert.Empty(t, got)
}

func TestMemoryDeadLetter(t *testing.T) {
	ctx := context.Background()
	sink := NewMemoryDeadLetter()

	sink.Push(ctx, models.QueuedAction{ID: "1"})
	sink.Push(ctx, models.QueuedAction{ID: "2"})

	got, err := sink.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)

	// List returns a copy; mutating it must not affect the sink.
	got[0].ID = "mutated"
	again, _ := sink.List(ctx)
	assert.Equal(t, "1", again[0].ID)
}
