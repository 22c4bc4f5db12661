// Package retry is the single retry-with-backoff policy used for every remote
// call. Attempt n (n >= 2) waits BaseDelay * 2^(n-1) before it runs.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/multierr"
)

// DefaultMaxAttempts is the attempt budget when a Policy leaves it unset. It
// is also the ceiling: no call makes more than 3 attempts.
const DefaultMaxAttempts = 3

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// Policy describes how often and how patiently to retry.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Jitter randomizes each delay between BaseDelay and the exponential
	// value. Off by default: with jitter the lower bound is only BaseDelay.
	Jitter  bool
	Sleeper Sleeper
	// OnRetry, if set, is called after a failed attempt that will be retried.
	OnRetry func(attempt int, next time.Duration, err error)
}

// Attempts returns the effective attempt budget, between 1 and
// DefaultMaxAttempts.
func (p Policy) Attempts() int {
	if p.MaxAttempts <= 0 || p.MaxAttempts > DefaultMaxAttempts {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

// Delay returns the wait before the given 1-based attempt. The first attempt
// never waits.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	b := &backoff.Backoff{
		Min:    p.BaseDelay,
		Max:    p.maxDelay(),
		Factor: 2,
		Jitter: p.Jitter,
	}
	return b.ForAttempt(float64(attempt - 1))
}

func (p Policy) maxDelay() time.Duration {
	ceiling := float64(p.BaseDelay) * math.Pow(2, float64(p.Attempts()))
	if ceiling >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ceiling)
}

// Do runs fn until it succeeds or the attempt budget is spent. It returns the
// number of attempts made and, on failure, every attempt error combined.
// A done context stops the loop before the next attempt.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper
	}

	var errs error
	max := p.Attempts()
	for attempt := 1; attempt <= max; attempt++ {
		if attempt > 1 {
			if err := sleeper.Sleep(ctx, p.Delay(attempt)); err != nil {
				return attempt - 1, multierr.Append(errs, err)
			}
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		errs = multierr.Append(errs, err)

		if attempt < max && p.OnRetry != nil {
			p.OnRetry(attempt, p.Delay(attempt+1), err)
		}
	}
	return max, errs
}
