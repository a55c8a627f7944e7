package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"uptend/internal/domain"
	"uptend/internal/models"
)

// JSONQueueStore keeps the whole queue as one JSON array under a single
// key in any KVStore. A missing key reads as an empty queue; a corrupt
// value is an error and never a partial read.
type JSONQueueStore struct {
	kv  domain.KVStore
	key string
}

func NewJSONQueueStore(kv domain.KVStore, key string) *JSONQueueStore {
	if key == "" {
		key = models.DefaultQueueKey
	}
	return &JSONQueueStore{kv: kv, key: key}
}

func (s *JSONQueueStore) Load(ctx context.Context) ([]models.QueuedAction, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var actions []models.QueuedAction
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return actions, nil
}

func (s *JSONQueueStore) Save(ctx context.Context, actions []models.QueuedAction) error {
	if actions == nil {
		actions = []models.QueuedAction{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

func (s *JSONQueueStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// KVTokenSource reads the bearer token from the shared store. Absent or
// unreadable tokens yield an empty string; calls then go out unauthenticated.
type KVTokenSource struct {
	kv  domain.KVStore
	key string
}

func NewKVTokenSource(kv domain.KVStore, key string) *KVTokenSource {
	if key == "" {
		key = models.DefaultTokenKey
	}
	return &KVTokenSource{kv: kv, key: key}
}

func (t *KVTokenSource) Token(ctx context.Context) string {
	val, err := t.kv.Get(ctx, t.key)
	if err != nil {
		return ""
	}
	return val
}
