package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// Слой между шиной и подписчиками: ретраи с экспоненциальной задержкой,
// middleware и очередь недоставленных событий. Обработчик, который
// падает даже после ретраев, попадает в DLQ вместо того чтобы потеряться.
// ══════════════════════════════════════════════════════════════════════════════

// RetryConfig contains retry configuration.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the first failure.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait per attempt.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// EventBus is the bus the dispatcher attaches to on Start.
	EventBus shared.EventBus

	// WorkerPoolSize bounds concurrent handler executions.
	WorkerPoolSize int

	// RetryConfig configures retry behavior.
	RetryConfig RetryConfig

	// EnableDeadLetterQueue keeps events whose handlers exhausted retries.
	EnableDeadLetterQueue bool

	// DeadLetterQueueSize is the DLQ capacity; oldest entries are evicted.
	DeadLetterQueueSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultDispatcherConfig returns sensible defaults over the given bus.
func DefaultDispatcherConfig(eventBus shared.EventBus) DispatcherConfig {
	return DispatcherConfig{
		EventBus:              eventBus,
		WorkerPoolSize:        10,
		RetryConfig:           DefaultRetryConfig(),
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   1000,
	}
}

// HandlerRegistration describes how one handler runs.
type HandlerRegistration struct {
	Name       string
	Handler    shared.EventHandler
	Async      bool
	MaxRetries int
	Timeout    time.Duration
}

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// Dispatcher routes events from the bus to registered handlers, applying
// middleware, retries, and dead-lettering.
type Dispatcher struct {
	mu          sync.RWMutex
	registry    map[shared.EventType][]HandlerRegistration
	middlewares []Middleware
	bus         shared.EventBus
	retry       RetryConfig
	dlq         *DeadLetterQueue
	sem         chan struct{}
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		registry: make(map[shared.EventType][]HandlerRegistration),
		bus:      config.EventBus,
		retry:    config.RetryConfig,
		sem:      make(chan struct{}, config.WorkerPoolSize),
		logger:   config.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	if config.EnableDeadLetterQueue {
		d.dlq = NewDeadLetterQueue(config.DeadLetterQueueSize)
	}
	return d
}

// RegisterHandler registers a handler with explicit execution options.
func (d *Dispatcher) RegisterHandler(eventType shared.EventType, reg HandlerRegistration) error {
	if reg.Handler == nil {
		return errors.New("handler cannot be nil")
	}
	if reg.Name == "" {
		reg.Name = reg.Handler.Name()
	}
	if reg.MaxRetries <= 0 {
		reg.MaxRetries = d.retry.MaxRetries
	}
	if reg.Timeout <= 0 {
		reg.Timeout = 30 * time.Second
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.registry[eventType] = append(d.registry[eventType], reg)
	return nil
}

// Register registers an async handler with default options.
func (d *Dispatcher) Register(eventType shared.EventType, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Handler: handler, Async: true})
}

// RegisterSync registers a handler whose errors surface to Dispatch.
func (d *Dispatcher) RegisterSync(eventType shared.EventType, handler shared.EventHandler) error {
	return d.RegisterHandler(eventType, HandlerRegistration{Handler: handler})
}

// Use appends middleware. Middleware wraps every handler, outermost first.
func (d *Dispatcher) Use(middleware Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware)
}

// Start attaches the dispatcher to the bus as a global subscriber.
func (d *Dispatcher) Start() error {
	return d.bus.SubscribeAll(HandlerFunc{
		HandlerName: "dispatcher",
		Fn: func(ctx context.Context, event shared.Event) error {
			return d.Dispatch(event)
		},
	})
}

// Stop cancels in-flight retries and timeouts.
func (d *Dispatcher) Stop() error {
	d.cancel()
	return nil
}

// DeadLetterQueue returns the DLQ, nil when disabled.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.dlq
}

// Dispatch routes one event. Async handlers run on the worker pool and
// only log their failures; sync handler errors are collected and returned.
func (d *Dispatcher) Dispatch(event shared.Event) error {
	d.mu.RLock()
	regs := d.registry[event.EventType()]
	middlewares := d.middlewares
	d.mu.RUnlock()

	var wg sync.WaitGroup
	var errs []error
	var errMu sync.Mutex

	for _, reg := range regs {
		if reg.Async {
			wg.Add(1)
			go func(r HandlerRegistration) {
				defer wg.Done()
				_ = d.run(event, r, middlewares)
			}(reg)
			continue
		}
		if err := d.run(event, reg, middlewares); err != nil {
			errMu.Lock()
			errs = append(errs, err)
			errMu.Unlock()
		}
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("sync handler errors: %v", errs)
	}
	return nil
}

// run executes one registration through the middleware chain with retries.
func (d *Dispatcher) run(event shared.Event, reg HandlerRegistration, middlewares []Middleware) error {
	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-d.ctx.Done():
		return d.ctx.Err()
	}

	handler := reg.Handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	var lastErr error
	for attempt := 0; attempt <= reg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-d.ctx.Done():
				return d.ctx.Err()
			case <-time.After(d.backoff(attempt)):
			}
		}

		if err := d.runOnce(handler, event, reg.Timeout); err != nil {
			lastErr = err
			d.logger.Warn("handler attempt failed",
				"handler", reg.Name,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		return nil
	}

	if d.dlq != nil {
		d.dlq.Add(DeadLetterEntry{
			Event:       event,
			HandlerName: reg.Name,
			Error:       lastErr,
			Attempts:    reg.MaxRetries + 1,
			FailedAt:    time.Now(),
		})
	}
	return fmt.Errorf("handler %s failed after %d retries: %w", reg.Name, reg.MaxRetries+1, lastErr)
}

func (d *Dispatcher) runOnce(handler shared.EventHandler, event shared.Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- handler.Handle(ctx, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("handler timeout after %v", timeout)
	}
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	wait := float64(d.retry.InitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= d.retry.BackoffMultiplier
	}
	if ceiling := float64(d.retry.MaxBackoff); wait > ceiling {
		wait = ceiling
	}
	return time.Duration(wait)
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware implementations
// ─────────────────────────────────────────────────────────────────────────────

// RecoveryMiddleware converts handler panics into ErrHandlerPanic so one
// broken subscriber cannot take down the dispatch loop.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return HandlerFunc{
			HandlerName: next.Name(),
			Fn: func(ctx context.Context, event shared.Event) (err error) {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("handler panic recovered",
							"event_type", event.EventType(),
							"handler", next.Name(),
							"panic", r,
							"stack", string(debug.Stack()),
						)
						err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
					}
				}()
				return next.Handle(ctx, event)
			},
		}
	}
}

// LoggingMiddleware logs every handler execution with its duration.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return HandlerFunc{
			HandlerName: next.Name(),
			Fn: func(ctx context.Context, event shared.Event) error {
				start := time.Now()
				err := next.Handle(ctx, event)
				if err != nil {
					logger.Error("handler failed",
						"event_type", event.EventType(),
						"aggregate_id", event.AggregateID(),
						"handler", next.Name(),
						"duration", time.Since(start),
						"error", err,
					)
					return err
				}
				logger.Debug("handler completed",
					"event_type", event.EventType(),
					"aggregate_id", event.AggregateID(),
					"handler", next.Name(),
					"duration", time.Since(start),
				)
				return nil
			},
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Dead letter queue
// ─────────────────────────────────────────────────────────────────────────────

// DeadLetterEntry is one event that exhausted its retries.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue is a bounded FIFO of failed events. At capacity the
// oldest entry gives way to the newest.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	cap     int
}

// NewDeadLetterQueue creates a queue with the given capacity.
func NewDeadLetterQueue(capacity int) *DeadLetterQueue {
	if capacity <= 0 {
		capacity = 1000
	}
	return &DeadLetterQueue{cap: capacity}
}

// Add appends an entry, evicting the oldest at capacity.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.cap {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the queue contents.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the number of queued entries.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Pop removes and returns the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

// Clear drops every queued entry.
func (q *DeadLetterQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}
