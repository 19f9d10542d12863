// SPDX-License-Identifier: Apache-2.0

// Package lru is a generic, capacity-bounded, concurrency-safe cache with
// single-flight miss resolution: concurrent misses on the same key block
// until the first populator either writes a value or gives up, instead of
// each triggering its own redundant upstream call. This is the primitive
// the teacher's github.com/containerd/nydus-snapshotter/pkg/referrer
// manager builds from github.com/golang/groupcache/lru plus
// golang.org/x/sync/singleflight; here the two are wrapped behind one
// generic type reused by all seven of the Cached DAG Reader's caches.
package lru

import (
	"sync"

	glru "github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

// Cache is a capacity-N key/value store with LRU eviction. Keys are
// constrained to string-like types because the single-flight coalescing
// below is keyed by the string form of K; every cache in this module keys
// by a path or a CID, both naturally strings.
type Cache[K ~string, V any] struct {
	mu    sync.Mutex
	inner *glru.Cache
	sg    singleflight.Group
}

// New builds a Cache with the given capacity. A non-positive capacity
// means unbounded, matching groupcache/lru's own convention for zero.
func New[K ~string, V any](capacity int) *Cache[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &Cache[K, V]{inner: glru.New(capacity)}
}

// OnEvict registers fn to run whenever the cache evicts an entry under
// capacity pressure, with key cast back to K. Must be called before any
// other method; groupcache/lru.Cache.OnEvicted is not itself safe to
// assign concurrently with Add.
func (c *Cache[K, V]) OnEvict(fn func(key K)) {
	c.inner.OnEvicted = func(key glru.Key, _ interface{}) {
		fn(key.(K))
	}
}

// Get returns the cached value for key, if present, without touching the
// single-flight machinery.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	v, ok := c.inner.Get(glru.Key(key))
	c.mu.Unlock()
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set inserts key/value, evicting the least recently used entry if the
// cache is over capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.inner.Add(glru.Key(key), value)
	c.mu.Unlock()
}

// Len reports the number of keys currently resident.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

// GetOrLoad returns the cached value for key, calling load to populate it
// on a miss. Concurrent GetOrLoad calls for the same key observed while a
// load is in flight block on that single in-flight call rather than each
// starting their own (property: for K concurrent callers on a cold cache,
// the upstream is invoked exactly once). If load fails, nothing is cached
// and the key remains a miss for the next caller — a failed populator
// never poisons the cache or deadlocks its waiters.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.sg.Do(string(key), func() (interface{}, error) {
		// A peer populator may have finished between our initial Get
		// and acquiring the single-flight slot.
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		v, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Option represents a cached value that may be a definite negative result
// (e.g. an unresolvable path), distinct from "not yet looked up". Caches
// that need to remember a failure — so repeated lookups of the same dead
// path don't re-hit the daemon — store Option[V] instead of V.
type Option[V any] struct {
	Valid bool
	Value V
}

// Some wraps a present value.
func Some[V any](v V) Option[V] { return Option[V]{Valid: true, Value: v} }

// None is the cached negative result.
func None[V any]() Option[V] { return Option[V]{} }
