package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"uptend/internal/config"
	"uptend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisKV stores keys in redis without expiry. The queue and token live
// under fixed keys, so there is nothing to evict.
type RedisKV struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// RedisDeadLetter pushes evicted actions onto a redis list.
type RedisDeadLetter struct {
	client *redis.Client
	key    string
	logger *zerolog.Logger
}

func NewRedisDeadLetter(client *redis.Client, key string, logger *zerolog.Logger) *RedisDeadLetter {
	return &RedisDeadLetter{client: client, key: key, logger: logger}
}

func (d *RedisDeadLetter) Push(ctx context.Context, action models.QueuedAction) {
	if d.client == nil {
		return
	}
	data, err := json.Marshal(action)
	if err != nil {
		d.logger.Error().Err(err).Str("action_id", action.ID).Msg("Encode dead-letter action failed")
		return
	}
	if err := d.client.LPush(ctx, d.key, data).Err(); err != nil {
		d.logger.Error().Err(err).Str("action_id", action.ID).Msg("Dead-letter push failed")
	}
}

func (d *RedisDeadLetter) List(ctx context.Context) ([]models.QueuedAction, error) {
	if d.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	raw, err := d.client.LRange(ctx, d.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead-letter list: %w", err)
	}

	actions := make([]models.QueuedAction, 0, len(raw))
	for _, item := range raw {
		var action models.QueuedAction
		if err := json.Unmarshal([]byte(item), &action); err != nil {
			d.logger.Warn().Err(err).Msg("Skipping undecodable dead-letter entry")
			continue
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
