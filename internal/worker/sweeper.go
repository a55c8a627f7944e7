package worker

import (
	"context"
	"time"

	"uptend/internal/queue"

	"github.com/rs/zerolog"
)

// Sweeper drives periodic replay cycles so actions queued by a failed
// immediate call still drain while connectivity never transitions. The
// queue's own guards make an idle tick free: offline or overlapping
// cycles short-circuit inside Sync.
type Sweeper struct {
	queue    *queue.OfflineQueue
	interval time.Duration
	logger   zerolog.Logger
}

func NewSweeper(q *queue.OfflineQueue, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		queue:    q,
		interval: interval,
		logger:   logger.With().Str("component", "sync-sweeper").Logger(),
	}
}

// Start launches the sweep loop; stops when ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Sync sweeper started")
	defer s.logger.Info().Msg("Sync sweeper stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := s.queue.Sync(ctx)
			if res.Synced > 0 || res.Failed > 0 {
				s.logger.Debug().Int("synced", res.Synced).Int("failed", res.Failed).Msg("Sweep cycle")
			}
		}
	}
}
