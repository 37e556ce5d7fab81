package downloader

import (
	"context"
	"testing"

	"hostfetch/internal"
)

// instantSleeper records requested sleeps without actually sleeping.
func instantSleeper(log *[]int) internal.Sleeper {
	return func(ctx context.Context, seconds int) error {
		*log = append(*log, seconds)
		return nil
	}
}

func TestWaitBudgetUnlimited(t *testing.T) {
	var slept []int
	budget := NewWaitBudget(0)
	budget.sleep = instantSleeper(&slept)

	for i := 0; i < 5; i++ {
		if err := budget.Consume(context.Background(), 1000); err != nil {
			t.Fatalf("unlimited budget refused wait %d: %v", i, err)
		}
	}
	if budget.Remaining() != -1 {
		t.Errorf("expected Remaining() = -1 for unlimited budget, got %d", budget.Remaining())
	}
	if len(slept) != 5 {
		t.Errorf("expected 5 sleeps, got %d", len(slept))
	}
}

func TestWaitBudgetExhaustion(t *testing.T) {
	var slept []int
	budget := NewWaitBudget(100)
	budget.sleep = instantSleeper(&slept)

	// First 60-second wait fits: 100 -> 40.
	if err := budget.Consume(context.Background(), 60); err != nil {
		t.Fatalf("first wait should succeed: %v", err)
	}
	if budget.Remaining() != 40 {
		t.Errorf("expected 40 seconds remaining, got %d", budget.Remaining())
	}

	// Second 60-second wait exceeds the 40 remaining: fail without sleeping.
	err := budget.Consume(context.Background(), 60)
	if err == nil {
		t.Fatal("second wait should have failed")
	}
	if !internal.IsKind(err, internal.ErrMaxWaitReached) {
		t.Errorf("expected MAX_WAIT_REACHED, got %v", internal.KindOf(err))
	}
	if len(slept) != 1 {
		t.Errorf("failed wait must not sleep: recorded sleeps %v", slept)
	}
	if budget.Remaining() != 40 {
		t.Errorf("failed wait must not consume budget, got remaining %d", budget.Remaining())
	}
}

func TestWaitBudgetExactFit(t *testing.T) {
	var slept []int
	budget := NewWaitBudget(60)
	budget.sleep = instantSleeper(&slept)

	if err := budget.Consume(context.Background(), 60); err != nil {
		t.Fatalf("wait equal to remaining budget should succeed: %v", err)
	}
	if budget.Remaining() != 0 {
		t.Errorf("expected 0 remaining, got %d", budget.Remaining())
	}

	// Even a 1-second wait no longer fits.
	if err := budget.Consume(context.Background(), 1); !internal.IsKind(err, internal.ErrMaxWaitReached) {
		t.Errorf("expected MAX_WAIT_REACHED on empty budget, got %v", err)
	}
}

func TestWaitBudgetZeroSeconds(t *testing.T) {
	var slept []int
	budget := NewWaitBudget(10)
	budget.sleep = instantSleeper(&slept)

	if err := budget.Consume(context.Background(), 0); err != nil {
		t.Fatalf("zero-second wait should be a no-op: %v", err)
	}
	if len(slept) != 0 {
		t.Errorf("zero-second wait must not sleep, got %v", slept)
	}
	if budget.Remaining() != 10 {
		t.Errorf("zero-second wait must not consume budget, got %d", budget.Remaining())
	}
}
