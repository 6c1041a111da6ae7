// Package cache provides the Redis-backed read cache for balance summaries.
//
// Cached entries are advisory: every invariant-bearing check re-reads the
// store under a row lock. Invalidation runs inside the repository transaction
// callback that performs the write, so a committed mutation is never
// observable alongside a stale cache entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// ErrMiss indicates the key is absent.
var ErrMiss = errors.New("cache miss")

// Balances caches JSON-encoded balance snapshots keyed by aggregate.
type Balances struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalances wraps a Redis client with the given TTL. A nil client yields a
// no-op cache that always misses.
func NewBalances(client *redis.Client, ttl time.Duration) *Balances {
	return &Balances{client: client, ttl: ttl}
}

// RakeKey builds the cache key for a rake balance snapshot.
func RakeKey(code string) string {
	return fmt.Sprintf("fims:rake:%s:balance", code)
}

// WarehouseKey builds the cache key for a warehouse balance snapshot.
func WarehouseKey(id int64) string {
	return fmt.Sprintf("fims:warehouse:%d:balance", id)
}

// Get unmarshals the cached value into dest, returning ErrMiss when absent.
func (b *Balances) Get(ctx context.Context, key string, dest any) error {
	if b == nil || b.client == nil {
		return ErrMiss
	}
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("platform/cache: decode %s: %w", key, err)
	}
	return nil
}

// Set stores value under key for the configured TTL.
func (b *Balances) Set(ctx context.Context, key string, value any) error {
	if b == nil || b.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("platform/cache: encode %s: %w", key, err)
	}
	if err := b.client.Set(ctx, key, data, b.ttl).Err(); err != nil {
		return fmt.Errorf("platform/cache: set %s: %w", key, err)
	}
	return nil
}

// Invalidate drops the keys. Repositories call this inside the mutating
// transaction callback, before commit.
func (b *Balances) Invalidate(ctx context.Context, keys ...string) error {
	if b == nil || b.client == nil || len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("platform/cache: invalidate: %w", err)
	}
	return nil
}
