package repository

import (
	"context"
	"sync/atomic"
	"time"

	"uptend/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverKV serves from the primary store until it fails, then from the
// in-memory fallback. The primary is probed again after a cooldown so a
// recovered store takes over without restart.
type FailoverKV struct {
	primary  domain.KVStore
	fallback domain.KVStore
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// UnixNano of the last failed primary probe; read and written from
	// concurrent callers.
	lastCheck atomic.Int64
}

func NewFailoverKV(primary, fallback domain.KVStore, logger *zerolog.Logger) *FailoverKV {
	return &FailoverKV{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverKV) Get(ctx context.Context, key string) (string, error) {
	if !f.isDown.Load() {
		val, err := f.primary.Get(ctx, key)
		if err == nil {
			return val, nil
		}
		f.logger.Error().Err(err).Msg("Primary store failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck.Store(time.Now().UnixNano())
	}

	// Try to recover after 1 minute
	if f.isDown.Load() && time.Since(time.Unix(0, f.lastCheck.Load())) > time.Minute {
		val, err := f.primary.Get(ctx, key)
		if err == nil {
			f.isDown.Store(false)
			return val, nil
		}
		f.lastCheck.Store(time.Now().UnixNano())
	}

	return f.fallback.Get(ctx, key)
}

func (f *FailoverKV) Set(ctx context.Context, key, value string) error {
	if !f.isDown.Load() {
		err := f.primary.Set(ctx, key, value)
		if err == nil {
			return nil
		}
		f.logger.Error().Err(err).Msg("Primary store failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck.Store(time.Now().UnixNano())
	}

	return f.fallback.Set(ctx, key, value)
}

func (f *FailoverKV) Delete(ctx context.Context, key string) error {
	if !f.isDown.Load() {
		err := f.primary.Delete(ctx, key)
		if err == nil {
			return nil
		}
		f.logger.Error().Err(err).Msg("Primary store failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck.Store(time.Now().UnixNano())
	}

	return f.fallback.Delete(ctx, key)
}
