// Package redis holds the circuit breaker guarding the Redis Streams write
// path (internal/streams.Client.guardedXAdd): a flapping Redis instance
// should fail XADD calls fast instead of piling up blocked writers.
package redis

import (
	"fmt"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed   State = 0 // writes pass through to Redis normally
	StateOpen     State = 1 // Redis is failing; writes are rejected immediately
	StateHalfOpen State = 2 // reset timeout elapsed; one probe write allowed through
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

// CircuitBreaker trips after maxFailures consecutive failed calls and
// rejects everything for resetTimeout. After the timeout it lets one probe
// call through (half-open): success closes the breaker, failure reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	OnStateChange func(from, to State)
}

// NewCircuitBreaker builds a breaker with the given trip threshold and
// reset timeout (guardedXAdd wires this with maxFailures=5, resetTimeout=10s).
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs fn through the breaker, returning ErrRedisWritesOpen instead
// of calling fn while the breaker is open and the reset timeout hasn't
// elapsed yet, or while a half-open probe call is still in flight.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.transition(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return ErrRedisWritesOpen
		}

	case StateHalfOpen:
		// a probe call is already in flight; reject until it resolves
		cb.mu.Unlock()
		return ErrRedisWritesOpen
	}

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()

		if cb.state == StateHalfOpen {
			cb.transition(StateOpen)
		} else if cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return err
	}

	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
	cb.failures = 0
	return nil
}

// CurrentState returns the breaker's current state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// ErrRedisWritesOpen is returned by Execute while the breaker is open,
// i.e. Redis writes are currently being short-circuited.
var ErrRedisWritesOpen = fmt.Errorf("redis writes circuit breaker is open")
