// Package retry provides the bounded-attempt exponential backoff policy
// wrapped around stock backend and ledger store calls.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Policy describes how an operation is retried. The zero value performs a
// single attempt with no backoff.
type Policy struct {
	MaxAttempts int           // total attempts including the first; <1 means 1
	BaseDelay   time.Duration // delay before the second attempt; 0 disables sleeping (test mode)
	MaxDelay    time.Duration // backoff cap; 0 means uncapped
}

// Default is the production policy: 4 attempts, 500ms doubling to 4s.
var Default = Policy{
	MaxAttempts: 4,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    4 * time.Second,
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is cancelled.
// op names the operation for logs. Returns the last error on exhaustion.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.Printf("[retry] %s attempt %d/%d failed: %v", op, attempt, attempts, err)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-timer.C:
			}
			delay *= 2
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		} else if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", op, attempts, err)
}
