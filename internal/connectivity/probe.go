package connectivity

import (
	"context"
	"time"
)

// Probe is the shipped connectivity source: it polls a health check on a
// fixed interval and reports the result as the platform signal. Every tick
// produces an event; the monitor de-duplicates transitions.
type Probe struct {
	healthy  func(ctx context.Context) bool
	interval time.Duration
}

// NewProbe wraps a health check function. interval defaults to 15s.
func NewProbe(healthy func(ctx context.Context) bool, interval time.Duration) *Probe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Probe{healthy: healthy, interval: interval}
}

// Watch polls until the context is done or stop is called.
func (p *Probe) Watch(ctx context.Context, onEvent func(online bool)) (func(), error) {
	probeCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-probeCtx.Done():
				return
			case <-ticker.C:
				onEvent(p.healthy(probeCtx))
			}
		}
	}()

	return cancel, nil
}
