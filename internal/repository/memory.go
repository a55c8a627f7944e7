package repository

import (
	"context"
	"sync"

	"uptend/internal/models"
)

// MemoryKV is an in-process key-value store. It backs tests and serves as
// the failover fallback; nothing survives a restart.
type MemoryKV struct {
	values sync.Map
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	val, ok := m.values.Load(key)
	if !ok {
		return "", nil
	}
	return val.(string), nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.values.Store(key, value)
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.values.Delete(key)
	return nil
}

// MemoryDeadLetter collects evicted actions in memory.
type MemoryDeadLetter struct {
	mu      sync.Mutex
	actions []models.QueuedAction
}

func NewMemoryDeadLetter() *MemoryDeadLetter {
	return &MemoryDeadLetter{}
}

func (d *MemoryDeadLetter) Push(ctx context.Context, action models.QueuedAction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, action)
}

func (d *MemoryDeadLetter) List(ctx context.Context) ([]models.QueuedAction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.QueuedAction, len(d.actions))
	copy(out, d.actions)
	return out, nil
}
