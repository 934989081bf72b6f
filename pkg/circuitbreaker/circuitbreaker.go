// Package circuitbreaker guards calls to flaky backends. The engine uses it
// in front of the Redis rank index: reads have a storage fallback, so when
// Redis is down it is better to fail fast than to queue on every request.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	// StateClosed allows all requests.
	StateClosed State = iota
	// StateOpen blocks all requests until the open timeout passes.
	StateOpen
	// StateHalfOpen lets a few probe requests through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget is spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds breaker tuning.
type Config struct {
	// Name identifies the breaker in state-change callbacks.
	Name string

	// FailureThreshold is the run of consecutive failures that opens
	// the circuit (default 5).
	FailureThreshold int

	// SuccessThreshold is the run of consecutive half-open successes
	// that closes it again (default 2).
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before probing
	// (default 30s).
	OpenTimeout time.Duration

	// MaxHalfOpenRequests caps concurrent probes (default 1).
	MaxHalfOpenRequests int

	// OnStateChange is called on every transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Counts is a snapshot of request totals.
type Counts struct {
	Requests  int64
	Successes int64
	Failures  int64
}

// CircuitBreaker tracks consecutive failures and trips open when the
// backend looks dead.
type CircuitBreaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	counts      Counts
	consecFails int
	consecSuccs int
	openedAt    time.Time
	probesInUse int

	// replaceable in tests
	clock func() time.Time
}

// New creates a breaker from the config, filling in defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxHalfOpenRequests <= 0 {
		cfg.MaxHalfOpenRequests = 1
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: StateClosed,
		clock: time.Now,
	}
}

// RankIndexBreaker is tuned for the Redis rank index: trip after three
// consecutive failures, recover on the first good probe. Reads fall back
// to storage while open, so aggressive tripping costs only freshness.
func RankIndexBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	cfg := DefaultConfig("rank-index")
	cfg.FailureThreshold = 3
	cfg.SuccessThreshold = 1
	cfg.OnStateChange = onStateChange
	return New(cfg)
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of request totals.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if cb.clock().Sub(cb.openedAt) < cb.cfg.OpenTimeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probesInUse = 1
		return nil

	default: // StateHalfOpen
		if cb.probesInUse >= cb.cfg.MaxHalfOpenRequests {
			return ErrTooManyRequests
		}
		cb.probesInUse++
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	if err != nil {
		cb.counts.Failures++
		cb.consecFails++
		cb.consecSuccs = 0

		switch cb.state {
		case StateClosed:
			if cb.consecFails >= cb.cfg.FailureThreshold {
				cb.trip()
			}
		case StateHalfOpen:
			// a failed probe re-opens immediately
			cb.trip()
		}
		return
	}

	cb.counts.Successes++
	cb.consecSuccs++
	cb.consecFails = 0

	if cb.state == StateHalfOpen && cb.consecSuccs >= cb.cfg.SuccessThreshold {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.clock()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.consecFails = 0
	cb.consecSuccs = 0
	cb.probesInUse = 0

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
