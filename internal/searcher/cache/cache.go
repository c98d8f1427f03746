// Package cache keeps lookup responses in Redis so repeated lookups skip the
// engine. Concurrent misses on one key are collapsed with singleflight, and
// the whole cache is dropped whenever new rows are indexed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movieindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/resilience"
)

const keyPrefix = "lookup:"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// LookupCache caches JSON-encoded lookup responses.
type LookupCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	// gen counts invalidations; results computed across one are not stored.
	gen atomic.Uint64
}

// New creates a cache over backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *LookupCache {
	return &LookupCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "lookup-cache"),
	}
}

// Key builds the cache key for a lookup. parts identify the route and its
// already-normalised arguments.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *LookupCache) get(ctx context.Context, key string, out any) bool {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logFailure("cache get failed", key, err)
		c.recordMiss()
		return false
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return false
	}
	c.recordHit()
	return true
}

func (c *LookupCache) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logFailure("cache set failed", key, err)
	}
}

// logFailure keeps an open breaker from flooding the log at error level.
func (c *LookupCache) logFailure(msg, key string, err error) {
	switch {
	case pkgredis.IsNilError(err):
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.logger.Debug(msg, "key", key, "error", err)
	default:
		c.logger.Error(msg, "key", key, "error", err)
	}
}

func (c *LookupCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *LookupCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// GetOrCompute returns the cached value for key, or runs compute, caches its
// result and returns it. The boolean reports a cache hit. A nil cache always
// computes. Cache failures are logged and never fail the lookup.
//
// Entries are stored under the invalidation generation current when the
// lookup started, and a result is not stored if an Invalidate ran while it
// was computed. A write racing the flush therefore lands under a generation
// no later lookup reads.
func GetOrCompute[T any](ctx context.Context, c *LookupCache, key string, compute func() (T, error)) (T, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	gen := c.gen.Load()
	stored := fmt.Sprintf("%s:%d", key, gen)

	var cached T
	if c.get(ctx, stored, &cached) {
		return cached, true, nil
	}
	val, err, _ := c.group.Do(stored, func() (interface{}, error) {
		v, err := compute()
		if err != nil {
			return v, err
		}
		if c.gen.Load() == gen {
			c.set(ctx, stored, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate deletes every cached lookup.
func (c *LookupCache) Invalidate(ctx context.Context) error {
	c.gen.Add(1)
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating lookup cache: %w", err)
	}
	c.logger.Debug("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counts since start.
func (c *LookupCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
