package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient failure")

func fastRetrier(maxAttempts int) *Retrier {
	return New(
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithJitter(0),
	)
}

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errTransient)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_ExhaustionUnwrapsRetryable(t *testing.T) {
	attempts := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(errTransient)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	// Callers match on the underlying error, not the retry wrapper.
	assert.Equal(t, errTransient, err)
	assert.False(t, IsRetryable(err))
}

func TestRetrier_PermanentStopsImmediately(t *testing.T) {
	errFatal := errors.New("bad input")

	attempts := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(errFatal)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, errFatal, err)
}

func TestRetrier_UnmarkedErrorNotRetried(t *testing.T) {
	attempts := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errTransient
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, errTransient, err)
}

func TestRetrier_RetryIfOverridesDefault(t *testing.T) {
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithRetryIf(func(err error) bool { return errors.Is(err, errTransient) }),
	)

	attempts := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errTransient // plain error, retried via RetryIf
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := New(
		WithMaxAttempts(10),
		WithInitialDelay(50*time.Millisecond),
		WithJitter(0),
	).Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel() // cancel while waiting for the next attempt
		return Retryable(errTransient)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_OnRetryCallback(t *testing.T) {
	var reported []int
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			reported = append(reported, attempt)
		}),
	)

	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errTransient)
	})

	// Callback fires before retries, not before the first attempt or after the last.
	assert.Equal(t, []int{1, 2}, reported)
}

func TestRetryableAndPermanentWrappers(t *testing.T) {
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))

	wrapped := Retryable(errTransient)
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, errTransient)

	perm := Permanent(errTransient)
	assert.True(t, IsPermanent(perm))
	assert.False(t, IsRetryable(perm))
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	value, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Retryable(errTransient)
		}
		return 42, nil
	}, WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 2, attempts)
}

func TestCalculateDelay_CappedAtMax(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(25*time.Millisecond),
		WithMultiplier(10.0),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(5))
}
