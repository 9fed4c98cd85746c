package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds one loader call, independent of any caller.
const DefaultLoadTimeout = 10 * time.Second

// TTLCache holds one value refreshed through a loader. Concurrent misses share
// a single loader call; when a refresh fails the previous value is served.
type TTLCache[T any] struct {
	ttl         time.Duration
	loadTimeout time.Duration
	load        func(context.Context) (T, error)
	now         func() time.Time
	group  singleflight.Group
	mu     sync.RWMutex
	value  T
	stored time.Time
	loaded bool
}

func NewTTLCache[T any](ttl time.Duration, load func(context.Context) (T, error)) *TTLCache[T] {
	return &TTLCache[T]{ttl: ttl, loadTimeout: DefaultLoadTimeout, load: load, now: time.Now}
}

func (c *TTLCache[T]) WithLoadTimeout(d time.Duration) *TTLCache[T] {
	c.loadTimeout = d
	return c
}

// WithClock replaces the time source.
func (c *TTLCache[T]) WithClock(now func() time.Time) *TTLCache[T] {
	c.now = now
	return c
}

// Get returns the cached value, loading it when missing or expired.
func (c *TTLCache[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	value, stored, loaded := c.value, c.stored, c.loaded
	c.mu.RUnlock()

	if loaded && c.now().Sub(stored) < c.ttl {
		return value, nil
	}

	v, err := c.Refresh(ctx)
	if err != nil && loaded {
		log.Printf("⚠️ [CACHE] Refresh failed, serving value from %s: %v", stored.Format(time.RFC3339), err)
		return value, nil
	}
	return v, err
}

// Refresh calls the loader unconditionally (coalesced with in-flight calls).
// The shared load is detached from ctx so one caller going away does not fail
// the others; ctx only bounds how long this caller waits.
func (c *TTLCache[T]) Refresh(ctx context.Context) (T, error) {
	ch := c.group.DoChan("refresh", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		v, err := c.load(loadCtx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		c.value, c.stored, c.loaded = v, c.now(), true
		c.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Age reports how old the cached value is; false when nothing is cached.
func (c *TTLCache[T]) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return 0, false
	}
	return c.now().Sub(c.stored), true
}
