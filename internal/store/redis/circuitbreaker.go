package redis

import (
	"errors"
	"log"
	"sync"
	"time"
)

// Everything the reconciler keeps in Redis — the ingestion watermark, the
// synced-key set, run stats — is advisory. When Redis flaps, the breaker
// sheds calls immediately instead of letting every batch stall on a dead
// connection; callers fall back to their in-memory defaults.

// State is the breaker position.
type State int

const (
	StateClosed   State = 0 // calls pass through
	StateOpen     State = 1 // calls shed until the cooldown elapses
	StateHalfOpen State = 2 // one trial call allowed through
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

// ErrCircuitOpen is returned while the breaker is shedding calls.
var ErrCircuitOpen = errors.New("redis circuit open")

// CircuitBreaker trips open after threshold consecutive failures and sheds
// calls for the cooldown period. The first call after the cooldown runs as a
// trial: success closes the breaker, failure reopens it for another cooldown.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     State
	fails     int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time

	// OnStateChange, when set, fires on every transition. main wires it to
	// the redis_circuit_breaker_state gauge.
	OnStateChange func(from, to State)
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
	}
}

// Execute runs fn unless the breaker is shedding calls, in which case it
// returns ErrCircuitOpen without touching Redis.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if time.Since(cb.openedAt) <= cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		// Cooldown elapsed; let this call through as the trial.
		cb.transition(StateHalfOpen)
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.record(err)
	return err
}

// CurrentState reports the breaker position.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// record books the call outcome. Caller holds mu.
func (cb *CircuitBreaker) record(err error) {
	if err == nil {
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
		}
		cb.fails = 0
		return
	}
	cb.fails++
	cb.openedAt = time.Now()
	if cb.state == StateHalfOpen || cb.fails >= cb.threshold {
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateClosed {
		cb.fails = 0
	}
	log.Printf("[redis] breaker %s -> %s", from, to)
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
