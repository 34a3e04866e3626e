package services

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Memo is a short-TTL Redis-backed response memoization layer that fronts
// Source's durable disk cache: a request repeated with the same endpoint
// and parameters within the TTL is served from Redis instead of
// round-tripping to disk. Grounded
// on data-ingestion-service/cache/redis.go's best-effort client — Redis
// being unreachable degrades every call to a miss, it never fails the
// fetch — and services/summary_generator.go's Get/Set-with-TTL pattern.
type Memo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMemo returns a Memo backed by a Redis client at addr, or nil if addr
// is empty (memoization is an optional accelerant, not a requirement).
func NewMemo(addr string, ttl time.Duration) *Memo {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Printf("warning: redis memo unreachable at %s: %v (fetches will skip memoization)", addr, err)
	}
	return &Memo{client: client, ttl: ttl}
}

// Get returns the memoized response for key, if present and unexpired.
func (m *Memo) Get(ctx context.Context, key string) ([]byte, bool) {
	if m == nil || m.client == nil {
		return nil, false
	}
	val, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("warning: redis memo get failed: %v", err)
		}
		return nil, false
	}
	return val, true
}

// Set memoizes value under key for the configured TTL. Failures are
// logged, not returned — memoization is best-effort.
func (m *Memo) Set(ctx context.Context, key string, value []byte) {
	if m == nil || m.client == nil {
		return
	}
	if err := m.client.Set(ctx, key, value, m.ttl).Err(); err != nil {
		log.Printf("warning: redis memo set failed: %v", err)
	}
}

// Close releases the underlying Redis connection.
func (m *Memo) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
