package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errFlaky = errors.New("flaky")

func TestDo_StopsOnSuccess(t *testing.T) {
	calls := 0
	var slept []time.Duration
	p := Policy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
		IsRetryable: func(err error) bool { return errors.Is(err, errFlaky) },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d, want 2", calls)
	}
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Fatalf("expected one 5s delay, got %v", slept)
	}
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	retries := 0
	p := Policy{
		MaxAttempts: 3,
		IsRetryable: func(error) bool { return true },
		OnRetry:     func(int, error) { retries++ },
		Sleep:       NoSleep,
	}
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("want errFlaky, got %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Fatalf("calls=%d retries=%d, want 3 and 2", calls, retries)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	terminal := errors.New("terminal")
	calls := 0
	p := Policy{
		MaxAttempts: 5,
		IsRetryable: func(err error) bool { return errors.Is(err, errFlaky) },
		Sleep:       NoSleep,
	}
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return terminal
	})
	if !errors.Is(err, terminal) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxAttempts: 3, Delay: time.Hour, IsRetryable: func(error) bool { return true }}
	err := p.Do(ctx, func(context.Context, int) error { return errFlaky })
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errFlaky) {
		t.Fatalf("expected joined cancel+flaky error, got %v", err)
	}
}

func TestJitter_Bounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := Jitter(time.Second, 2*time.Second)
		if d < time.Second || d > 2*time.Second {
			t.Fatalf("jitter out of bounds: %v", d)
		}
	}
	if d := Jitter(3*time.Second, time.Second); d != 3*time.Second {
		t.Fatalf("inverted bounds should return min, got %v", d)
	}
}
