package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("connection refused")
	errFatal     = errors.New("syntax error")
)

func isTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func fastPolicy(opts ...Option) *Policy {
	base := []Option{
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(4 * time.Millisecond),
	}
	return New(isTransient, append(base, opts...)...)
}

func TestPolicy_RetriesTransientUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy().Do(context.Background(), "test", func() error {
		calls++
		if calls < 4 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestPolicy_NonTransientPropagatesImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy().Do(context.Background(), "test", func() error {
		calls++
		return errFatal
	})

	require.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DelayGrowsUpToCeiling(t *testing.T) {
	t.Parallel()

	var delays []time.Duration
	p := fastPolicy(WithOnRetry(func(_ string, _ error, next time.Duration) {
		delays = append(delays, next)
	}))

	calls := 0
	err := p.Do(context.Background(), "test", func() error {
		calls++
		if calls <= 5 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}, delays)
}

func TestPolicy_MaxRetriesBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy(WithMaxRetries(2)).Do(context.Background(), "test", func() error {
		calls++
		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestPolicy_StopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fastPolicy().Do(ctx, "test", func() error {
		calls++
		return errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestValue_ReturnsResult(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := Value(context.Background(), fastPolicy(), "test", func() (string, error) {
		calls++
		if calls == 1 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestValue_NilPolicyRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Value(context.Background(), nil, "test", func() (int, error) {
		calls++
		return 0, errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	p := New(nil)
	assert.Equal(t, DefaultInitialDelay, p.initialDelay)
	assert.Equal(t, DefaultMultiplier, p.multiplier)
	assert.Equal(t, DefaultMaxDelay, p.maxDelay)
	assert.Zero(t, p.maxRetries)
	assert.False(t, p.Retryable(errTransient))
}
