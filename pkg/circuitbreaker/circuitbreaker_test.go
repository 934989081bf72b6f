package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func failing(context.Context) error { return errBackend }
func succeeding(context.Context) error { return nil }

func newTestBreaker() (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 3
	cfg.SuccessThreshold = 1
	cfg.OpenTimeout = 30 * time.Second
	cb := New(cfg)
	cb.clock = func() time.Time { return now }
	return cb, &now
}

func tripBreaker(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)
	}
	require.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)
	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	// open circuit rejects without calling the backend
	assert.ErrorIs(t, cb.Execute(ctx, failing), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)
	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)
	require.NoError(t, cb.Execute(ctx, succeeding))
	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)
	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb, now := newTestBreaker()
	ctx := context.Background()
	tripBreaker(t, cb)

	*now = now.Add(31 * time.Second)

	// first probe succeeds and closes the circuit
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, now := newTestBreaker()
	ctx := context.Background()
	tripBreaker(t, cb)

	*now = now.Add(31 * time.Second)
	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cfg := DefaultConfig("cb")
	cfg.FailureThreshold = 1
	cfg.OnStateChange = func(name string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	cb := New(cfg)

	require.Error(t, cb.Execute(context.Background(), failing))
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreaker_CountsTotals(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	require.NoError(t, cb.Execute(ctx, succeeding))
	require.ErrorIs(t, cb.Execute(ctx, failing), errBackend)

	counts := cb.Counts()
	assert.Equal(t, int64(2), counts.Requests)
	assert.Equal(t, int64(1), counts.Successes)
	assert.Equal(t, int64(1), counts.Failures)
}

func TestRankIndexBreaker_Tuning(t *testing.T) {
	cb := RankIndexBreaker(nil)
	assert.Equal(t, 3, cb.cfg.FailureThreshold)
	assert.Equal(t, 1, cb.cfg.SuccessThreshold)
	assert.Equal(t, StateClosed, cb.State())
}
