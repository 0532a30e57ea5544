// Package retry computes retry delays for the outbound sync queue.
package retry

import (
	"math/rand"
	"time"
)

// Policy computes exponential backoff with full jitter:
// min(BaseDelay * 2^attempts, MaxDelay), raised to RateLimitFloor when the
// failure was a rate-limit response.
type Policy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RateLimitFloor time.Duration
	JitterFraction float64 // 0..1 portion of the delay randomized; 0 disables jitter

	// rand source is injectable for tests; nil uses the package-level source.
	Rand *rand.Rand
}

// Delay returns the backoff before the next attempt, given how many attempts
// have already been made. The jitter-free delay is monotonically
// non-decreasing in attempts, and the total never exceeds MaxDelay.
func (p Policy) Delay(attempts int, rateLimited bool) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempts && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if rateLimited && delay < p.RateLimitFloor {
		delay = p.RateLimitFloor
	}
	delay += p.jitter(delay)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p Policy) jitter(delay time.Duration) time.Duration {
	if p.JitterFraction <= 0 || delay <= 0 {
		return 0
	}
	span := float64(delay) * p.JitterFraction
	if p.Rand != nil {
		return time.Duration(p.Rand.Float64() * span)
	}
	return time.Duration(rand.Float64() * span)
}
