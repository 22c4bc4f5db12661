package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

// recordingSleeper records requested delays without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestDelaySchedule(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.GreaterOrEqual(t, p.Delay(3), 4*p.BaseDelay)
}

func TestDelayZeroBase(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	assert.Equal(t, time.Duration(0), p.Delay(3))
}

func TestDelayWithJitterStaysInBounds(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Jitter: true}
	for i := 0; i < 200; i++ {
		d := p.Delay(3)
		require.GreaterOrEqual(t, d, 10*time.Millisecond)
		require.LessOrEqual(t, d, 40*time.Millisecond)
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleeper: sleeper}

	attempts, err := p.Do(context.Background(), func(context.Context, int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeper.delays)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	sleeper := &recordingSleeper{}
	var retried []int
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		Sleeper:     sleeper,
		OnRetry:     func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
	}

	attempts, err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeper.delays)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoExhaustsAndCombinesErrors(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleeper: &recordingSleeper{}}
	calls := 0

	attempts, err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleeper: &recordingSleeper{}}

	calls := 0
	attempts, err := p.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("down")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestTimerSleeperHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := TimerSleeper.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, TimerSleeper.Sleep(context.Background(), time.Millisecond))
}

func TestAttemptsDefault(t *testing.T) {
	assert.Equal(t, DefaultMaxAttempts, Policy{}.Attempts())
}

func TestAttemptsCappedAtThree(t *testing.T) {
	assert.Equal(t, 2, Policy{MaxAttempts: 2}.Attempts())
	assert.Equal(t, DefaultMaxAttempts, Policy{MaxAttempts: 10}.Attempts())

	p := Policy{MaxAttempts: 10, BaseDelay: time.Millisecond, Sleeper: &recordingSleeper{}}
	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}
