package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

// Observer receives hit/miss/load notifications keyed by the namespace of the cache key
// (the part before the first ':').
type Observer interface {
	CacheHit(kind string)
	CacheMiss(kind string)
	CacheLoad(kind string)
}

// Cache is a process-lifetime TTL memoizer. Concurrent misses on the same key are
// coalesced into one call of the create function. Failed creations are never stored.
// The create function keeps running when the caller that started it gives up, so
// other callers waiting on the same key still get its result.
//
// The zero value is ready to use.
type Cache struct {
	data      sync.Map
	group     singleflight.Group
	itemCount int32
	observer  Observer
	now       func() time.Time
}

type Option func(*Cache)

func WithObserver(observer Observer) Option {
	return func(c *Cache) {
		c.observer = observer
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func NewCache(opts ...Option) *Cache {
	c := &Cache{}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Key builds a namespaced key such as "versions:Newtonsoft.Json:false".
func Key(kind string, parts ...string) string {
	return kind + ":" + strings.Join(parts, ":")
}

func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration,
	createFn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	kind := keyKind(key)

	if value, ok := c.load(key); ok {
		c.hit(kind)
		return value, nil
	}

	c.miss(kind)
	flightCtx := context.WithoutCancel(ctx)
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		if value, ok := c.load(key); ok {
			return value, nil
		}

		value, err := createFn(flightCtx)
		if err != nil {
			return nil, err
		}

		entry := &CacheEntry{
			Value:      value,
			Expiration: c.clock().Add(ttl),
		}
		if _, replaced := c.data.Swap(key, entry); !replaced {
			atomic.AddInt32(&c.itemCount, 1)
		}
		if c.observer != nil {
			c.observer.CacheLoad(kind)
		}

		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.Val, result.Err
	}
}

// GetOrSet is the typed form of Cache.GetOrSet.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, ttl time.Duration,
	createFn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	value, err := c.GetOrSet(ctx, key, ttl, func(ctx context.Context) (interface{}, error) {
		return createFn(ctx)
	})
	if err != nil {
		return zero, err
	}

	result, ok := value.(T)
	if !ok && value != nil {
		return zero, fmt.Errorf("unexpected cached type %T for key %s", value, key)
	}

	return result, nil
}

func (c *Cache) CleanUp() {
	if atomic.LoadInt32(&c.itemCount) == 0 {
		return
	}

	now := c.clock()
	c.data.Range(func(key, value interface{}) bool {
		entry := value.(*CacheEntry)
		if !entry.Expiration.After(now) && c.data.CompareAndDelete(key, entry) {
			atomic.AddInt32(&c.itemCount, -1)
		}
		return true
	})
}

func (c *Cache) Len() int {
	return int(atomic.LoadInt32(&c.itemCount))
}

// Close drops every entry. Calling it more than once, or using the cache afterwards, is safe.
func (c *Cache) Close() {
	c.data.Range(func(key, _ interface{}) bool {
		if _, loaded := c.data.LoadAndDelete(key); loaded {
			atomic.AddInt32(&c.itemCount, -1)
		}
		return true
	})
}

func (c *Cache) load(key string) (interface{}, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := value.(*CacheEntry)
	if entry.Expiration.After(c.clock()) {
		return entry.Value, true
	}

	c.CleanUp()
	return nil, false
}

func (c *Cache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}

	return time.Now()
}

func (c *Cache) hit(kind string) {
	if c.observer != nil {
		c.observer.CacheHit(kind)
	}
}

func (c *Cache) miss(kind string) {
	if c.observer != nil {
		c.observer.CacheMiss(kind)
	}
}

func keyKind(key string) string {
	kind, _, _ := strings.Cut(key, ":")
	return kind
}
