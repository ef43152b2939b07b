package connection

import (
	"math/rand"
	"time"
)

// Backoff computes the delay inserted between connection attempts. The delay
// for attempt k (0-based) is Base doubled k times, capped at Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// DefaultBackoff provides conservative reconnect defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   1 * time.Second,
		Max:    30 * time.Second,
		Jitter: 0,
	}
}

// Next returns the delay to sleep after attempt (0-based) has failed.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := b.Base
	if base <= 0 {
		base = 1 * time.Second
	}

	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	if max < base {
		max = base
	}

	wait := base

	for i := 0; i < attempt; i++ {
		next := wait * 2
		if next > max || next < wait {
			wait = max

			break
		}

		wait = next
	}

	if b.Jitter <= 0 {
		return wait
	}

	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}

	delta := float64(wait) * jitter

	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}
