package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		WorkerPoolSize: 4,
		RetryConfig: RetryConfig{
			MaxRetries:        2,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   10,
	})
}

func TestDispatcher_RoutesToRegisteredHandler(t *testing.T) {
	d := newTestDispatcher()
	defer d.Stop()

	h := &recordingHandler{}
	require.NoError(t, d.RegisterSync(shared.EventXPGained, h))

	err := d.Dispatch(shared.NewXPGainedEvent("p1", "sprint", 10, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, h.count())

	// Events without handlers are dropped quietly.
	assert.NoError(t, d.Dispatch(shared.NewLevelUpEvent("p1", 1, 2, 200)))
}

func TestDispatcher_NilHandlerRejected(t *testing.T) {
	d := newTestDispatcher()
	defer d.Stop()

	err := d.RegisterHandler(shared.EventXPGained, HandlerRegistration{})
	assert.Error(t, err)
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d := newTestDispatcher()
	defer d.Stop()

	var attempts int32
	require.NoError(t, d.RegisterSync(shared.EventXPGained, HandlerFunc{
		HandlerName: "flaky",
		Fn: func(ctx context.Context, event shared.Event) error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return errors.New("transient")
			}
			return nil
		},
	}))

	err := d.Dispatch(shared.NewXPGainedEvent("p1", "sprint", 10, 10))
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, 0, d.DeadLetterQueue().Size())
}

func TestDispatcher_ExhaustedRetriesGoToDeadLetter(t *testing.T) {
	d := newTestDispatcher()
	defer d.Stop()

	var attempts int32
	require.NoError(t, d.RegisterSync(shared.EventXPGained, HandlerFunc{
		HandlerName: "broken",
		Fn: func(ctx context.Context, event shared.Event) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("permanent")
		},
	}))

	err := d.Dispatch(shared.NewXPGainedEvent("p1", "sprint", 10, 10))
	require.Error(t, err)

	// MaxRetries=2 means 3 attempts total.
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	dlq := d.DeadLetterQueue()
	require.Equal(t, 1, dlq.Size())

	entry, ok := dlq.Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
	assert.Equal(t, shared.EventXPGained, entry.Event.EventType())
	assert.Equal(t, 0, dlq.Size())
}

func TestDispatcher_RecoveryMiddleware(t *testing.T) {
	d := newTestDispatcher()
	defer d.Stop()
	d.Use(RecoveryMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))

	require.NoError(t, d.RegisterHandler(shared.EventXPGained, HandlerRegistration{
		Handler: HandlerFunc{
			HandlerName: "panicky",
			Fn: func(ctx context.Context, event shared.Event) error {
				panic("unexpected payload")
			},
		},
		MaxRetries: 1,
	}))

	err := d.Dispatch(shared.NewXPGainedEvent("p1", "sprint", 10, 10))
	require.Error(t, err)
	assert.ErrorContains(t, err, "handler panicked")
}

func TestDispatcher_StartSubscribesToBus(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	d := NewDispatcher(DispatcherConfig{
		EventBus:       bus,
		WorkerPoolSize: 2,
		RetryConfig:    DefaultRetryConfig(),
	})
	defer d.Stop()

	h := &recordingHandler{}
	require.NoError(t, d.RegisterSync(shared.EventPlayerEnrolled, h))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewPlayerEnrolledEvent("p1", "i", 5)))
	assert.Equal(t, 1, h.count())
}

func TestDeadLetterQueue_CapacityEvictsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)

	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)

	q.Clear()
	assert.Equal(t, 0, q.Size())
}
