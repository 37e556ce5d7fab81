package internal

import (
	"context"
	"time"
)

// RateLimiter controls bandwidth usage during the final byte transfer.
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}

// Sleeper blocks for a duration of whole seconds, interruptible only by
// context cancellation. The wait budget and the retry ladder go through this
// so tests can substitute an instant clock.
type Sleeper func(ctx context.Context, seconds int) error

// SleepSeconds is the production Sleeper: a plain blocking timer that stops
// early only when the context is cancelled.
func SleepSeconds(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
