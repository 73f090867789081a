package backoff

import (
	"context"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		InitialDelay:       100 * time.Millisecond,
		MaxDelay:           400 * time.Millisecond,
		Multiplier:         2.0,
		StabilityThreshold: time.Second,
	}
}

func TestNext_ExponentialGrowth(t *testing.T) {
	b := New(testPolicy())

	if d := b.Next(); d != 100*time.Millisecond {
		t.Errorf("expected 100ms, got: %v", d)
	}
	if d := b.Next(); d != 200*time.Millisecond {
		t.Errorf("expected 200ms, got: %v", d)
	}
	if d := b.Next(); d != 400*time.Millisecond {
		t.Errorf("expected 400ms, got: %v", d)
	}
}

func TestNext_CappedAtMaxDelay(t *testing.T) {
	b := New(testPolicy())

	var prev time.Duration
	for i := 0; i < 10; i++ {
		d := b.Next()
		if d < prev {
			t.Errorf("delay decreased: %v after %v", d, prev)
		}
		if d > 400*time.Millisecond {
			t.Errorf("delay exceeded cap: %v", d)
		}
		prev = d
	}
	if prev != 400*time.Millisecond {
		t.Errorf("expected cap 400ms after many failures, got: %v", prev)
	}
}

func TestObserveRun_ResetsAfterStablePeriod(t *testing.T) {
	b := New(testPolicy())
	b.Next()
	b.Next()

	// A short run keeps the penalty.
	b.ObserveRun(100 * time.Millisecond)
	if d := b.Next(); d != 400*time.Millisecond {
		t.Errorf("expected 400ms after short run, got: %v", d)
	}

	// A stable run resets to the initial delay.
	b.ObserveRun(2 * time.Second)
	if d := b.Next(); d != 100*time.Millisecond {
		t.Errorf("expected reset to 100ms after stable run, got: %v", d)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.InitialDelay != 1*time.Second {
		t.Errorf("expected 1s initial delay, got: %v", p.InitialDelay)
	}
	if p.MaxDelay != 30*time.Second {
		t.Errorf("expected 30s max delay, got: %v", p.MaxDelay)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("expected multiplier 2.0, got: %f", p.Multiplier)
	}
	if p.StabilityThreshold != 60*time.Second {
		t.Errorf("expected 60s stability threshold, got: %v", p.StabilityThreshold)
	}
}

func TestSleep_CompletesWithoutCancellation(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("expected nil, got: %v", err)
	}
}

func TestSleep_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, 5*time.Second)
	if err == nil {
		t.Error("expected error due to cancellation, got nil")
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly after cancellation")
	}
}
