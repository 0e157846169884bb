// Package redis holds the fast-path process state shared across ingestion
// runs: the inbox watermark, a dedupe cache of already-synced natural keys
// fronting the ledger's idempotency check, and session counters. Redis is an
// accelerator here, never the source of truth — every call degrades
// gracefully when the server or the circuit breaker says no.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	keyWatermark  = "reconciler:watermark"
	keySyncedSet  = "reconciler:synced"
	keyStatPrefix = "reconciler:stats:"

	syncedTTL = 30 * 24 * time.Hour
)

// StoreConfig configures the Redis store.
type StoreConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Store wraps the Redis client with a circuit breaker.
type Store struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// New creates a Store and pings the server.
func New(cfg StoreConfig) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{
		client:  client,
		breaker: NewCircuitBreaker(5, 10*time.Second),
	}, nil
}

// Breaker exposes the circuit breaker for metrics wiring.
func (s *Store) Breaker() *CircuitBreaker { return s.breaker }

// Watermark returns the last fully processed inbox UID, or "" when unset or
// unavailable.
func (s *Store) Watermark(ctx context.Context) string {
	var val string
	err := s.breaker.Execute(func() error {
		v, err := s.client.Get(ctx, keyWatermark).Result()
		if err == goredis.Nil {
			return nil
		}
		val = v
		return err
	})
	if err != nil {
		log.Printf("[redis] watermark read failed: %v", err)
		return ""
	}
	return val
}

// SetWatermark persists the last fully processed inbox UID.
func (s *Store) SetWatermark(ctx context.Context, uid string) {
	err := s.breaker.Execute(func() error {
		return s.client.Set(ctx, keyWatermark, uid, 0).Err()
	})
	if err != nil {
		log.Printf("[redis] watermark write failed: %v", err)
	}
}

// SeenSynced reports whether the natural key is in the synced dedupe cache.
// A miss (or any failure) returns false; the ledger remains authoritative.
func (s *Store) SeenSynced(ctx context.Context, naturalKey string) bool {
	var seen bool
	err := s.breaker.Execute(func() error {
		v, err := s.client.SIsMember(ctx, keySyncedSet, naturalKey).Result()
		seen = v
		return err
	})
	if err != nil {
		return false
	}
	return seen
}

// MarkSynced adds a natural key to the dedupe cache.
func (s *Store) MarkSynced(ctx context.Context, naturalKey string) {
	err := s.breaker.Execute(func() error {
		if err := s.client.SAdd(ctx, keySyncedSet, naturalKey).Err(); err != nil {
			return err
		}
		return s.client.Expire(ctx, keySyncedSet, syncedTTL).Err()
	})
	if err != nil {
		log.Printf("[redis] mark synced failed: %v", err)
	}
}

// IncrStat bumps a named session counter (processed, synced, review, failed).
func (s *Store) IncrStat(ctx context.Context, name string) {
	err := s.breaker.Execute(func() error {
		return s.client.Incr(ctx, keyStatPrefix+name).Err()
	})
	if err != nil {
		log.Printf("[redis] stat %s incr failed: %v", name, err)
	}
}

// Stat reads a named session counter, 0 when unset or unavailable.
func (s *Store) Stat(ctx context.Context, name string) int64 {
	var n int64
	err := s.breaker.Execute(func() error {
		v, err := s.client.Get(ctx, keyStatPrefix+name).Int64()
		if err == goredis.Nil {
			return nil
		}
		n = v
		return err
	})
	if err != nil {
		return 0
	}
	return n
}
