package utils

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter throttles transfer bandwidth using a token bucket.
// A zero or negative rate disables limiting entirely.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a limiter capped at bytesPerSecond.
func NewTokenBucketLimiter(bytesPerSecond int64) *TokenBucketLimiter {
	l := &TokenBucketLimiter{}
	l.SetRate(bytesPerSecond)
	return l
}

// Wait blocks until n bytes may be transferred or the context is cancelled.
func (l *TokenBucketLimiter) Wait(ctx context.Context, n int) error {
	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	if limiter == nil || n <= 0 {
		return nil
	}

	// WaitN rejects requests larger than the burst; split them up.
	burst := limiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// SetRate changes the bandwidth cap. Non-positive disables limiting.
func (l *TokenBucketLimiter) SetRate(bytesPerSecond int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bytesPerSecond <= 0 {
		l.limiter = nil
		return
	}
	// Burst of one second's worth of traffic keeps throughput smooth
	// without letting large bursts through.
	l.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
}
