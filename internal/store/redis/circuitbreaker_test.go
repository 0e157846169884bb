package redis

import (
	"errors"
	"testing"
	"time"
)

var errRedisDown = errors.New("connection refused")

// trip feeds the breaker n consecutive failures.
func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errRedisDown })
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if got := cb.CurrentState(); got != StateClosed {
		t.Fatalf("new breaker state = %v, want closed", got)
	}
}

func TestBreakerShedsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	trip(cb, 3)
	if got := cb.CurrentState(); got != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker returned %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("open breaker still invoked the call")
	}
}

func TestBreakerClosesAfterTrialSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	trip(cb, 2)
	time.Sleep(60 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial call after cooldown: %v", err)
	}
	if got := cb.CurrentState(); got != StateClosed {
		t.Fatalf("state after successful trial = %v, want closed", got)
	}
}

func TestBreakerReopensAfterTrialFailure(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	trip(cb, 2)
	time.Sleep(60 * time.Millisecond)

	trip(cb, 1)
	if got := cb.CurrentState(); got != StateOpen {
		t.Fatalf("state after failed trial = %v, want open", got)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	trip(cb, 2)
	cb.Execute(func() error { return nil })
	trip(cb, 2)
	if got := cb.CurrentState(); got != StateClosed {
		t.Fatalf("state = %v, want closed after counter reset", got)
	}
}

func TestBreakerStateChangeHook(t *testing.T) {
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	var seen []State
	cb.OnStateChange = func(from, to State) { seen = append(seen, to) }

	trip(cb, 1)
	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return nil })

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("got %d transitions %v, want %v", len(seen), seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}
