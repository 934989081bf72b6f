// Package messaging carries domain events between the command handlers
// that produce them and the subscribers that maintain derived state, such
// as the Redis rank index. A single-process deployment runs on the
// in-memory bus; the Redis bus fans events out to other instances over
// Pub/Sub on top of it.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/olympus-hub/classroom-olympics/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerFunc adapts a plain function to shared.EventHandler.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, event shared.Event) error
}

// Handle implements shared.EventHandler.
func (h HandlerFunc) Handle(ctx context.Context, event shared.Event) error {
	return h.Fn(ctx, event)
}

// Name implements shared.EventHandler.
func (h HandlerFunc) Name() string {
	if h.HandlerName == "" {
		return "anonymous"
	}
	return h.HandlerName
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode delivers events on background workers instead of the
	// publishing goroutine.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent async deliveries.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger

	// EnableMetrics turns on delivery counters.
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		EnableMetrics:  true,
	}
}

// InMemoryEventBus implements shared.EventBus within one process. Handler
// errors are logged, never returned to the publisher: a broken subscriber
// must not fail the command that emitted the event.
type InMemoryEventBus struct {
	mu      sync.RWMutex
	byType  map[shared.EventType][]shared.EventHandler
	global  []shared.EventHandler
	closed  bool
	async   bool
	sem     chan struct{}
	pending sync.WaitGroup
	logger  *slog.Logger
	metrics *EventBusMetrics
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &InMemoryEventBus{
		byType: make(map[shared.EventType][]shared.EventHandler),
		async:  config.AsyncMode,
		sem:    make(chan struct{}, config.WorkerPoolSize),
		logger: config.Logger,
	}
	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}
	return bus
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.register(func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	}, handler)
}

// SubscribeAll registers a handler that sees every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.register(func() {
		b.global = append(b.global, handler)
	}, handler)
}

func (b *InMemoryEventBus) register(add func(), handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish delivers an event to every matching handler.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := make([]shared.EventHandler, 0, len(b.byType[event.EventType()])+len(b.global))
	targets = append(targets, b.byType[event.EventType()]...)
	targets = append(targets, b.global...)
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	for _, h := range targets {
		if b.async {
			b.pending.Add(1)
			go func(h shared.EventHandler) {
				defer b.pending.Done()
				b.sem <- struct{}{}
				defer func() { <-b.sem }()
				b.deliver(event, h)
			}(h)
		} else {
			b.deliver(event, h)
		}
	}
	return nil
}

// deliver runs one handler and records the outcome. Errors stop here.
func (b *InMemoryEventBus) deliver(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := h.Handle(context.Background(), event)
	if b.metrics != nil {
		b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start), err == nil)
	}
	if err != nil {
		b.logger.Error("event handler failed",
			"event_type", event.EventType(),
			"handler", h.Name(),
			"error", err,
		)
	}
}

// Close stops accepting events and waits for every queued delivery, so a
// shutdown never loses an event that Publish already accepted.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.pending.Wait()
	return nil
}

// Metrics returns the delivery counters, nil when disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// Распределённая шина: события уходят в Redis Pub/Sub и одновременно
// обрабатываются локально. Сообщения от самого себя отбрасываются.
// ══════════════════════════════════════════════════════════════════════════════

// RedisClient is the Pub/Sub surface the Redis bus needs. The concrete
// adapter lives in the redis persistence package.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

// RedisMessage is one message received from Redis Pub/Sub.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	// Client is the Redis Pub/Sub client.
	Client RedisClient

	// ChannelName is the Redis channel for events.
	ChannelName string

	// InstanceID identifies this instance so its own messages are skipped.
	InstanceID string

	// LocalBusConfig configures the in-memory bus underneath.
	LocalBusConfig InMemoryEventBusConfig

	// Logger for structured logging.
	Logger *slog.Logger
}

// RedisEventBus implements shared.EventBus across instances. Every publish
// goes to local handlers and onto the Redis channel; a Redis outage degrades
// to local-only delivery instead of failing the publish.
type RedisEventBus struct {
	client   RedisClient
	local    *InMemoryEventBus
	channel  string
	selfID   string
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	listener sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewRedisEventBus creates a Redis-backed event bus and starts its
// subscription listener.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "olympics:events"
	}
	if config.InstanceID == "" {
		config.InstanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:  config.Client,
		local:   NewInMemoryEventBus(config.LocalBusConfig),
		channel: config.ChannelName,
		selfID:  config.InstanceID,
		logger:  config.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	messages, err := bus.client.Subscribe(ctx, bus.channel)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start subscriber: %w", err)
	}
	bus.listener.Add(1)
	go bus.listen(messages)

	return bus, nil
}

// Subscribe registers a handler for one event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler that sees every event.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish delivers the event locally and broadcasts it to other instances.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(busEnvelope{
		InstanceID:  b.selfID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.channel, string(data)); err != nil {
		b.logger.Error("failed to publish to redis, delivering locally only", "error", err)
	}
	return b.local.Publish(event)
}

// listen drains the subscription channel until the bus closes.
func (b *RedisEventBus) listen(messages <-chan RedisMessage) {
	defer b.listener.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.logger.Error("redis subscription error", "error", msg.Err)
				continue
			}
			b.receive(msg.Payload)
		}
	}
}

func (b *RedisEventBus) receive(payload string) {
	var env busEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Error("failed to unmarshal event", "error", err)
		return
	}
	if env.InstanceID == b.selfID {
		return
	}
	if err := b.local.Publish(&remoteEvent{env: env}); err != nil {
		b.logger.Error("failed to process remote event", "error", err)
	}
}

// Close stops the listener and shuts down the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.listener.Wait()
	return b.local.Close()
}

// Metrics returns the local delivery counters.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.local.Metrics()
}

// busEnvelope is the wire format on the Redis channel.
type busEnvelope struct {
	InstanceID  string                 `json:"instance_id"`
	EventType   shared.EventType       `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
}

// remoteEvent replays an envelope from another instance as shared.Event.
type remoteEvent struct {
	env busEnvelope
}

func (e *remoteEvent) EventType() shared.EventType     { return e.env.EventType }
func (e *remoteEvent) AggregateID() string             { return e.env.AggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.env.OccurredAt }
func (e *remoteEvent) Payload() map[string]interface{} { return e.env.Payload }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes and handler outcomes.
type EventBusMetrics struct {
	mu            sync.Mutex
	published     map[shared.EventType]int64
	executions    int64
	successes     int64
	totalDuration time.Duration
	since         time.Time
}

// NewEventBusMetrics creates a counter set.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		published: make(map[shared.EventType]int64),
		since:     time.Now(),
	}
}

// RecordPublish counts one published event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[eventType]++
}

// RecordHandlerExecution counts one handler run.
func (m *EventBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions++
	m.totalDuration += duration
	if success {
		m.successes++
	}
}

// Snapshot returns a copy of the current counters.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var published int64
	for _, n := range m.published {
		published += n
	}

	rate := 1.0
	avg := time.Duration(0)
	if m.executions > 0 {
		rate = float64(m.successes) / float64(m.executions)
		avg = m.totalDuration / time.Duration(m.executions)
	}

	return EventBusMetricsSnapshot{
		TotalPublished:         published,
		TotalHandlerExecs:      m.executions,
		HandlerSuccessRate:     rate,
		AverageHandlerDuration: avg,
		LastReset:              m.since,
	}
}

// EventBusMetricsSnapshot is a point-in-time view of the counters.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
	LastReset              time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// BUFFERED EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// BufferedEventBusConfig contains configuration for BufferedEventBus.
type BufferedEventBusConfig struct {
	// Inner is the bus that receives flushed events.
	Inner shared.EventBus

	// BufferSize triggers a flush when reached.
	BufferSize int

	// FlushInterval flushes on a timer regardless of fill.
	FlushInterval time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// BufferedEventBus accumulates events and forwards them in batches, which
// keeps bulk award fan-out from hammering subscribers one event at a time.
type BufferedEventBus struct {
	mu      sync.Mutex
	inner   shared.EventBus
	queue   []shared.Event
	limit   int
	ticker  *time.Ticker
	logger  *slog.Logger
	closed  bool
	done    chan struct{}
	flusher sync.WaitGroup
}

// NewBufferedEventBus creates a buffered bus over inner.
func NewBufferedEventBus(config BufferedEventBusConfig) *BufferedEventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	bus := &BufferedEventBus{
		inner:  config.Inner,
		queue:  make([]shared.Event, 0, config.BufferSize),
		limit:  config.BufferSize,
		ticker: time.NewTicker(config.FlushInterval),
		logger: config.Logger,
		done:   make(chan struct{}),
	}

	bus.flusher.Add(1)
	go func() {
		defer bus.flusher.Done()
		for {
			select {
			case <-bus.done:
				return
			case <-bus.ticker.C:
				bus.mu.Lock()
				bus.flushLocked()
				bus.mu.Unlock()
			}
		}
	}()

	return bus
}

// Subscribe delegates to the inner bus.
func (b *BufferedEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.inner.Subscribe(eventType, handler)
}

// SubscribeAll delegates to the inner bus.
func (b *BufferedEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.inner.SubscribeAll(handler)
}

// Publish queues the event, flushing when the buffer fills.
func (b *BufferedEventBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.queue = append(b.queue, event)
	if len(b.queue) >= b.limit {
		b.flushLocked()
	}
	return nil
}

// Flush forwards everything queued so far.
func (b *BufferedEventBus) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *BufferedEventBus) flushLocked() error {
	if len(b.queue) == 0 {
		return nil
	}
	batch := b.queue
	b.queue = make([]shared.Event, 0, b.limit)

	var lastErr error
	for _, event := range batch {
		if err := b.inner.Publish(event); err != nil {
			b.logger.Error("failed to publish buffered event", "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes the remaining queue and stops the timer.
func (b *BufferedEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.ticker.Stop()
	close(b.done)
	b.flushLocked()
	b.mu.Unlock()

	b.flusher.Wait()
	return nil
}
