package loadcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/loadcache/codec"
	"github.com/unkn0wn-root/loadcache/internal/canon"
	"github.com/unkn0wn-root/loadcache/invalidate"
	"github.com/unkn0wn-root/loadcache/loader"
)

// listenRetryDelay spaces out reconnect attempts of the invalidation
// subscription after transport errors.
const listenRetryDelay = time.Second

type cache[V any] struct {
	opts Options[V] // resolved copy, never mutated after construction

	keySpace   string
	fetch      FetchFunc[V]
	keyFn      KeyFunc
	expire     time.Duration
	fetchLimit int
	log        Logger
	hooks      Hooks

	ld  *loader.Loader[Key, V]
	bus *invalidate.Bus

	stopListen context.CancelFunc
	listenWg   sync.WaitGroup
	closeOnce  sync.Once
	closeErr   error
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("loadcache: store is required")
	}
	if opts.Fetch == nil {
		return nil, fmt.Errorf("loadcache: fetch function is required")
	}

	// defaults
	if opts.Codec == nil {
		opts.Codec = codec.JSON[V]{}
	}
	if opts.CacheKeyFn == nil {
		opts.CacheKeyFn = CanonicalKey
	}
	opts.Logger = coalesce[Logger](opts.Logger, NopLogger{})
	opts.Hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	c := &cache[V]{
		opts:       opts,
		keySpace:   opts.KeySpace,
		fetch:      opts.Fetch,
		keyFn:      opts.CacheKeyFn,
		expire:     opts.Expire,
		fetchLimit: opts.FetchConcurrency,
		log:        opts.Logger,
		hooks:      opts.Hooks,
		bus:        opts.Invalidations,
	}

	ld, err := loader.New[Key, V](c.fillBatch, loader.Config[Key, V]{
		Key:          loader.KeyFunc[Key](opts.CacheKeyFn),
		Wait:         opts.BatchWait,
		MaxBatch:     opts.MaxBatch,
		DisableCache: opts.DisableLocalCache,
		Cache:        opts.LocalCache,
	})
	if err != nil {
		return nil, err
	}
	c.ld = ld

	if c.bus != nil {
		lctx, cancel := context.WithCancel(context.Background())
		c.stopListen = cancel
		c.listenWg.Add(1)
		go c.listenInvalidations(lctx)
	}
	return c, nil
}

func (c *cache[V]) Load(ctx context.Context, key Key) (V, bool, error) {
	var zero V
	if key.IsZero() {
		return zero, false, ErrInvalidKey
	}
	return c.ld.Load(ctx, key)
}

func (c *cache[V]) LoadMany(ctx context.Context, keys []Key) ([]Result[V], error) {
	if keys == nil {
		return nil, ErrNilKeys
	}

	// register all valid keys first so they share one batch window
	out := make([]Result[V], len(keys))
	thunks := make([]loader.Thunk[V], len(keys))
	for i, k := range keys {
		if k.IsZero() {
			out[i] = Result[V]{Err: ErrInvalidKey}
			continue
		}
		t, err := c.ld.LoadThunk(ctx, k)
		if err != nil {
			out[i] = Result[V]{Err: err}
			continue
		}
		thunks[i] = t
	}
	for i, t := range thunks {
		if t != nil {
			out[i] = t()
		}
	}
	return out, nil
}

func (c *cache[V]) Prime(ctx context.Context, key Key, value V) (V, bool, error) {
	var zero V
	if key.IsZero() {
		return zero, false, ErrInvalidKey
	}
	full, err := c.fullKey(key)
	if err != nil {
		return zero, false, err
	}
	payload, err := c.opts.Codec.Encode(value)
	if err != nil {
		return zero, false, fmt.Errorf("loadcache: encode prime value: %w", err)
	}
	if err := c.opts.Store.Set(ctx, full, payload, c.expire); err != nil {
		return zero, false, err
	}

	// Read-after-write from the primary so the returned value is exactly
	// what the store now holds.
	raw, err := c.opts.Store.Get(ctx, full)
	if err != nil {
		return zero, false, err
	}
	stored, ok, err := c.decode(full, raw)
	if err != nil {
		return zero, false, err
	}
	if err := c.ld.Prime(key, Result[V]{Value: stored, OK: ok}); err != nil {
		return zero, false, err
	}
	return stored, ok, nil
}

func (c *cache[V]) Clear(ctx context.Context, key Key) error {
	if key.IsZero() {
		return ErrInvalidKey
	}
	norm, err := c.keyFn(key)
	if err != nil {
		return err
	}
	full := canon.Join(c.keySpace, norm)

	// Remote state goes first: once Del returns, the store no longer holds
	// the entry, and only then is the local entry dropped.
	if err := c.opts.Store.Del(ctx, full); err != nil {
		return err
	}
	c.ld.ClearNormalized(norm)

	if c.bus != nil {
		if err := c.bus.Publish(ctx, c.keySpace, norm); err != nil {
			c.log.Warn("invalidation publish failed", Fields{"keySpace": c.keySpace, "err": err})
		}
	}
	return nil
}

func (c *cache[V]) ClearLocal(key Key) error {
	if key.IsZero() {
		return ErrInvalidKey
	}
	return c.ld.Clear(key)
}

func (c *cache[V]) ClearAllLocal() { c.ld.ClearAll() }

func (c *cache[V]) KeySpace() string { return c.keySpace }

func (c *cache[V]) Options() Options[V] { return c.opts }

func (c *cache[V]) Coalescer() *loader.Loader[Key, V] { return c.ld }

func (c *cache[V]) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		if c.stopListen != nil {
			c.stopListen()
			c.listenWg.Wait()
		}
		c.closeErr = c.opts.Store.Close(ctx)
	})
	return c.closeErr
}

func (c *cache[V]) fullKey(key Key) (string, error) {
	norm, err := c.keyFn(key)
	if err != nil {
		return "", err
	}
	return canon.Join(c.keySpace, norm), nil
}

func (c *cache[V]) listenInvalidations(ctx context.Context) {
	defer c.listenWg.Done()
	for {
		err := c.bus.Listen(ctx, c.keySpace, func(key string) {
			c.hooks.InvalidationReceived(c.keySpace, key)
			c.ld.ClearNormalized(key)
		})
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("invalidation listener reconnecting", Fields{"keySpace": c.keySpace, "err": err})
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}
