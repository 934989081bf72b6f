// Package redis implements the Redis side of the progression engine: the
// derived rank index on a sorted set, and the Pub/Sub bridge the
// distributed event bus rides on.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olympus-hub/classroom-olympics/internal/infrastructure/messaging"
)

// ErrCacheConnection is returned when the Redis connection fails.
var ErrCacheConnection = errors.New("cache: connection failed")

// Key namespaces. Everything the engine writes to Redis lives under
// "olympics:" so a shared instance stays inspectable.
const (
	// PrefixRank is the sorted-set key of the rank index.
	PrefixRank = "olympics:rank"

	// ChannelEvents is the Pub/Sub channel for cross-instance events.
	ChannelEvents = "olympics:events"
)

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the authentication password, empty for no auth.
	Password string

	// DB is the Redis database number.
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxRetries is the retry count before a command gives up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// PoolTimeout is the timeout for getting a connection from the pool.
	PoolTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Cache owns the Redis client shared by the rank index and the event
// bridge. It verifies connectivity on construction.
type Cache struct {
	client *redis.Client
	config Config
}

// NewCache connects to Redis and pings it.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{client: client, config: cfg}, nil
}

// Client returns the underlying Redis client.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BRIDGE
// Адаптер go-redis под Pub/Sub-интерфейс распределённой шины событий.
// ══════════════════════════════════════════════════════════════════════════════

// EventBridge implements messaging.RedisClient over the shared client.
// The Cache owns the connection; closing the bridge is a no-op.
type EventBridge struct {
	client *redis.Client
}

// NewEventBridge creates a bridge over the cache's client.
func NewEventBridge(cache *Cache) *EventBridge {
	return &EventBridge{client: cache.Client()}
}

// Publish sends one message to a channel.
func (b *EventBridge) Publish(ctx context.Context, channel string, message interface{}) error {
	return b.client.Publish(ctx, channel, message).Err()
}

// Subscribe opens a subscription and pumps its messages into a channel
// until ctx is canceled.
func (b *EventBridge) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := b.client.Subscribe(ctx, channels...)

	// Confirm the subscription before handing the channel out, so a dead
	// Redis fails construction instead of silently dropping events.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close implements messaging.RedisClient. The underlying client belongs
// to the Cache and outlives the bridge.
func (b *EventBridge) Close() error {
	return nil
}

var _ messaging.RedisClient = (*EventBridge)(nil)
