package worker

import (
	"math"
	"time"
)

// RetryPolicy defines exponential backoff parameters for reconnect and
// retry loops.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the delay for a given attempt (1-based). The first
// attempt gets InitialDelay; each further attempt multiplies by
// BackoffFactor, clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	// Clamp in float space: for large attempt numbers the raw product
	// exceeds int64 and the Duration conversion would wrap negative.
	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if r.MaxDelay > 0 && delay >= float64(r.MaxDelay) {
		return r.MaxDelay
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	d := time.Duration(delay)
	if d <= 0 {
		d = time.Second
	}
	return d
}
