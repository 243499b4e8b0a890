package submit

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: Base << attempt plus random jitter in
// [0, MaxJitter). The delay function is pure given Rand, so the scheduling
// mechanism around it stays swappable and testable.
type Backoff struct {
	Base      time.Duration
	MaxJitter time.Duration
	// Rand returns a value in [0,1). Defaults to math/rand.
	Rand func() float64
}

// NewBackoff returns the standard policy: exponential doubling from base
// with up to one second of jitter.
func NewBackoff(base time.Duration) Backoff {
	return Backoff{
		Base:      base,
		MaxJitter: time.Second,
		Rand:      rand.Float64,
	}
}

// Delay returns the wait before retrying after the given failed attempt
// (0-based): base * 2^attempt + jitter.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Cap the shift so pathological attempt counts cannot overflow.
	if attempt > 30 {
		attempt = 30
	}

	delay := b.Base << uint(attempt)
	if b.MaxJitter > 0 {
		rnd := b.Rand
		if rnd == nil {
			rnd = rand.Float64
		}
		delay += time.Duration(rnd() * float64(b.MaxJitter))
	}
	return delay
}
