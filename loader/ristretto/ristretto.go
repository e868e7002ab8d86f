// Package ristretto adapts dgraph-io/ristretto as a bounded local cache for
// loader thunks. Long-lived loaders should prefer this over the default
// unbounded map: admission and eviction keep the resident set under MaxCost.
//
// Ristretto applies writes asynchronously and may reject entries under
// pressure, so a load can occasionally re-fetch a key that was just
// resolved. Same-window deduplication is unaffected; it lives in the
// loader's batch bookkeeping, not in this cache.
package ristretto

import (
	"errors"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/loadcache/loader"
)

type Cache[V any] struct {
	c *rc.Cache
}

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Cache[V]{c: c}, nil
}

var _ loader.Cache[any] = (*Cache[any])(nil)

func (a *Cache[V]) Get(key string) (loader.Thunk[V], bool) {
	v, ok := a.c.Get(key)
	if !ok {
		return nil, false
	}
	t, ok := v.(loader.Thunk[V])
	if !ok {
		// drop unexpected entry shape
		a.c.Del(key)
		return nil, false
	}
	return t, true
}

func (a *Cache[V]) Set(key string, t loader.Thunk[V]) {
	a.c.Set(key, t, 1)
}

func (a *Cache[V]) Delete(key string) { a.c.Del(key) }

func (a *Cache[V]) Clear() { a.c.Clear() }

// Wait blocks until ristretto has applied all buffered writes. Only needed
// when a caller must observe its own Set immediately, e.g. in tests.
func (a *Cache[V]) Wait() { a.c.Wait() }

// Metrics exposes ristretto's own counters; nil unless enabled in Config.
func (a *Cache[V]) Metrics() *rc.Metrics { return a.c.Metrics }
