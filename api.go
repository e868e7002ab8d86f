package loadcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/loadcache/codec"
	"github.com/unkn0wn-root/loadcache/invalidate"
	"github.com/unkn0wn-root/loadcache/loader"
	st "github.com/unkn0wn-root/loadcache/store"
)

// FetchFunc resolves one key from the upstream source on a true cache miss.
// ok=false means the key has no value; that outcome is cached as the
// empty-marker so later loads return null without fetching again. It is
// invoked at most once per key per coalesced batch.
type FetchFunc[V any] func(ctx context.Context, key Key) (V, bool, error)

// Result is the outcome of one key in a LoadMany call. Keys fail
// independently: one slot's Err never contaminates its neighbors.
type Result[V any] = loader.Result[V]

// Cache is the per-key-space facade. V is the caller's value type;
// serialization is handled by a pluggable codec.Codec[V].
type Cache[V any] interface {
	// Load resolves one key from cache or, on miss, through the fetch
	// function. ok=false means the key is known to have no value.
	Load(ctx context.Context, key Key) (v V, ok bool, err error)

	// LoadMany resolves all keys independently; the error is only ever an
	// argument error, per-key failures live in each Result.
	LoadMany(ctx context.Context, keys []Key) ([]Result[V], error)

	// Prime writes value through to the store, then force-overwrites the
	// local entry with the freshly stored value and returns it.
	Prime(ctx context.Context, key Key, value V) (V, bool, error)

	// Clear deletes the key from the store, then drops the local entry.
	// The store deletion is awaited: when Clear returns nil the remote
	// state is gone.
	Clear(ctx context.Context, key Key) error

	// ClearLocal drops only this process's entry for key.
	ClearLocal(key Key) error

	// ClearAllLocal drops every local entry. Never touches the store.
	ClearAllLocal()

	// KeySpace returns the immutable key-space prefix.
	KeySpace() string

	// Options returns the resolved, immutable configuration.
	Options() Options[V]

	// Coalescer exposes the underlying request coalescer.
	Coalescer() *loader.Loader[Key, V]

	// Close stops the invalidation listener and releases the store.
	Close(ctx context.Context) error
}

// Options tune one Cache instance. Only Store and Fetch are required;
// defaults are resolved once at construction and never mutated after.
type Options[V any] struct {
	// KeySpace prefixes every stored key. May be empty; two instances with
	// different key-spaces never collide.
	KeySpace string

	// Required
	Store st.Store
	Fetch FetchFunc[V]

	Codec      c.Codec[V]    // nil => codec.JSON[V]
	CacheKeyFn KeyFunc       // nil => CanonicalKey
	Expire     time.Duration // store-side TTL for cached entries; 0 => none

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// Coalescer pass-through.
	BatchWait         time.Duration   // batch scheduling window; 0 => loader default
	MaxBatch          int             // early-dispatch threshold; 0 => unbounded
	DisableLocalCache bool            // dedup then only spans one batch window
	LocalCache        loader.Cache[V] // nil => unbounded in-process map

	// FetchConcurrency caps concurrent fetch calls within one batch.
	// 0 => one goroutine per missed key.
	FetchConcurrency int

	// Invalidations, when set, publishes every Clear on the bus and applies
	// remote clears from other processes to the local cache.
	Invalidations *invalidate.Bus
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
