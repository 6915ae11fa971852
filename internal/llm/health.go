package llm

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	healthKey = "health"
	// checkTimeout bounds a shared check that no longer belongs to any caller.
	checkTimeout = 10 * time.Second
)

// CachedHealth wraps a Backend so HealthCheck results are reused for ttl and
// concurrent checks share one request. Chat passes straight through.
type CachedHealth struct {
	Backend
	cache *cache.Cache
	group singleflight.Group
}

// NewCachedHealth decorates b. A non-positive ttl disables caching.
func NewCachedHealth(b Backend, ttl time.Duration) *CachedHealth {
	if ttl <= 0 {
		ttl = time.Nanosecond
	}
	return &CachedHealth{
		Backend: b,
		cache:   cache.New(ttl, 2*ttl),
	}
}

// HealthCheck returns the cached result or asks the wrapped backend. The
// shared check runs detached from ctx, so a caller whose ctx ends first gets
// false and nothing is cached for it.
func (c *CachedHealth) HealthCheck(ctx context.Context) bool {
	if v, ok := c.cache.Get(healthKey); ok {
		return v.(bool)
	}

	ch := c.group.DoChan(healthKey, func() (interface{}, error) {
		if v, ok := c.cache.Get(healthKey); ok {
			return v, nil
		}
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkTimeout)
		defer cancel()
		ok := c.Backend.HealthCheck(checkCtx)
		c.cache.SetDefault(healthKey, ok)
		return ok, nil
	})

	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// Invalidate drops the cached result.
func (c *CachedHealth) Invalidate() {
	c.cache.Delete(healthKey)
}
