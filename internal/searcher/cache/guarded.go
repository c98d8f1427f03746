package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/movieindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/resilience"
)

// Guarded stops calling an unhealthy backend for a while, so lookups during
// a Redis outage cost one breaker check instead of a network timeout each.
type Guarded struct {
	backend Backend
	breaker *resilience.Breaker
}

// NewGuarded wraps backend with breaker.
func NewGuarded(backend Backend, breaker *resilience.Breaker) *Guarded {
	return &Guarded{backend: backend, breaker: breaker}
}

// Get treats a missing key as a healthy call.
func (g *Guarded) Get(ctx context.Context, key string) (string, error) {
	var (
		val    string
		getErr error
	)
	err := g.breaker.Do(func() error {
		val, getErr = g.backend.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			return nil
		}
		return getErr
	})
	if err != nil {
		return "", err
	}
	return val, getErr
}

func (g *Guarded) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return g.breaker.Do(func() error {
		return g.backend.Set(ctx, key, value, ttl)
	})
}

func (g *Guarded) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := g.breaker.Do(func() error {
		var err error
		n, err = g.backend.FlushByPattern(ctx, pattern)
		return err
	})
	return n, err
}
