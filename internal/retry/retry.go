package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Sleeper waits for d or until ctx is done. Tests inject a no-op sleeper.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep returns immediately unless ctx is already done.
func NoSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// Policy is a bounded retry discipline: at most MaxAttempts calls separated
// by a fixed Delay, retrying only errors accepted by IsRetryable.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// IsRetryable decides whether an attempt's error warrants another call.
	// Nil means nothing is retried.
	IsRetryable func(error) bool
	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error)
	Sleep   Sleeper
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. The attempt number passed to fn starts at 1. The returned
// error is the last one produced by fn.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt == attempts || p.IsRetryable == nil || !p.IsRetryable(err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if serr := sleep(ctx, p.Delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

// Jitter returns a uniformly random duration in [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// Pause sleeps for a random duration in [min, max] using s, or the default
// Sleeper when s is nil.
func Pause(ctx context.Context, s Sleeper, min, max time.Duration) error {
	if s == nil {
		s = Sleep
	}
	return s(ctx, Jitter(min, max))
}
