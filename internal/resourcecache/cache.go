// Package resourcecache memoizes loaded resources by key.
//
// A Cache runs its loader at most once per key at a time: concurrent Get calls
// for a key that is still loading wait for that single load and share its
// result. Successful loads are kept until Invalidate or Reset; failed loads are
// not cached, so the next Get tries again.
//
// Values are treated as immutable once loaded. There is no package-level
// instance; construct a Cache and pass it to whatever needs it.
package resourcecache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LoaderFunc loads the value for key.
type LoaderFunc[V any] func(key string) (V, error)

// Cache is a concurrency-safe get-or-load cache.
type Cache[V any] struct {
	loader LoaderFunc[V]
	group  singleflight.Group

	mu     sync.RWMutex
	values map[string]V
	// epoch changes on Reset; gens[key] changes on Invalidate(key). A load
	// is stored only if neither moved while it ran.
	epoch uint64
	gens  map[string]uint64
}

// New creates a cache backed by loader.
func New[V any](loader LoaderFunc[V]) (*Cache[V], error) {
	if loader == nil {
		return nil, errors.New("resourcecache: loader is required")
	}
	return &Cache[V]{
		loader: loader,
		values: make(map[string]V),
		gens:   make(map[string]uint64),
	}, nil
}

// Get returns the cached value for key, loading it if needed.
func (c *Cache[V]) Get(key string) (V, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have finished loading between Peek and Do.
		if v, ok := c.Peek(key); ok {
			return v, nil
		}

		c.mu.RLock()
		epoch, gen := c.epoch, c.gens[key]
		c.mu.RUnlock()

		v, err := c.loader(key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// Results of loads that raced a Reset or an Invalidate of this key are
		// returned but not stored.
		if epoch == c.epoch && gen == c.gens[key] {
			c.values[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("load %q: %w", key, err)
	}
	return result.(V), nil
}

// Peek returns the cached value without loading.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Invalidate drops key so the next Get reloads it.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.values, key)
	c.gens[key]++
	c.mu.Unlock()
	c.group.Forget(key)
}

// Reset drops every cached value.
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	c.values = make(map[string]V)
	c.gens = make(map[string]uint64)
	c.epoch++
	c.mu.Unlock()
}

// Len returns the number of cached values.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Keys returns the cached keys in sorted order.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}
