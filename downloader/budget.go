// Package downloader holds the per-item orchestration: the retry ladder,
// the wait/timeout budget it consumes, the final byte transfer, and batch
// result aggregation.
package downloader

import (
	"context"
	"sync"

	"hostfetch/internal"
)

// WaitBudget bounds the total wall-clock time one item may spend sleeping
// across all of its retries. The check happens before a sleep starts; a
// sleep already underway always runs to completion.
type WaitBudget struct {
	mu        sync.Mutex
	remaining int
	unlimited bool
	sleep     internal.Sleeper
}

// NewWaitBudget creates a budget of totalSeconds. Zero or negative means
// unlimited.
func NewWaitBudget(totalSeconds int) *WaitBudget {
	return &WaitBudget{
		remaining: totalSeconds,
		unlimited: totalSeconds <= 0,
		sleep:     internal.SleepSeconds,
	}
}

// Consume deducts seconds from the budget and sleeps for that long. When the
// budget cannot cover the request it fails with MAX_WAIT_REACHED without
// sleeping at all.
func (b *WaitBudget) Consume(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return nil
	}

	b.mu.Lock()
	if !b.unlimited {
		if seconds > b.remaining {
			remaining := b.remaining
			b.mu.Unlock()
			internal.LogDebug("Wait of %ds exceeds remaining budget of %ds", seconds, remaining)
			return internal.NewHosterError(internal.ErrMaxWaitReached,
				"timeout budget exhausted")
		}
		b.remaining -= seconds
	}
	b.mu.Unlock()

	internal.LogInfo("Waiting %d seconds...", seconds)
	if err := b.sleep(ctx, seconds); err != nil {
		return internal.WrapHosterError(internal.ErrSystem, "wait interrupted", err)
	}
	return nil
}

// Remaining returns the seconds left, or -1 when unlimited.
func (b *WaitBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unlimited {
		return -1
	}
	return b.remaining
}
