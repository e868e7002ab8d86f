package loadcache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/loadcache/internal/canon"
	"github.com/unkn0wn-root/loadcache/loader"
	"github.com/unkn0wn-root/loadcache/store"
)

// fillBatch resolves one coalesced batch: a single multi-get against the
// store, then a bounded fetch fan-out for the misses. Results align with
// keys. A store read failure fails every key in the batch; only the
// replica LOADING condition is recovered, inside the gateway.
func (c *cache[V]) fillBatch(ctx context.Context, keys []Key) []loader.Result[V] {
	out := make([]loader.Result[V], len(keys))
	if len(keys) == 0 {
		return out
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		norm, err := c.keyFn(k)
		if err != nil {
			out[i] = loader.Result[V]{Err: err}
			continue
		}
		full[i] = canon.Join(c.keySpace, norm)
	}

	vals, err := c.opts.Store.MGet(ctx, full)
	if err == nil && len(vals) != len(keys) {
		err = fmt.Errorf("loadcache: store returned %d values for %d keys", len(vals), len(keys))
	}
	if err != nil {
		c.log.Warn("cache read failed",
			Fields{"keySpace": c.keySpace, "keys": len(keys), "err": err})
		for i := range keys {
			if out[i].Err == nil {
				out[i] = loader.Result[V]{Err: err}
			}
		}
		return out
	}

	var missed []int
	for i := range keys {
		if out[i].Err != nil {
			continue
		}
		v := vals[i]
		if !v.Present {
			missed = append(missed, i)
			continue
		}
		if len(v.Data) == 0 {
			// empty-marker: fetched before, known null
			out[i] = loader.Result[V]{OK: false}
			continue
		}
		decoded, derr := c.opts.Codec.Decode(v.Data)
		if derr != nil {
			c.hooks.DecodeFailed(c.keySpace, full[i], derr)
			out[i] = loader.Result[V]{Err: &DecodeError{Key: full[i], Err: derr}}
			continue
		}
		out[i] = loader.Result[V]{Value: decoded, OK: true}
	}
	if len(missed) == 0 {
		return out
	}

	// Fetch every miss; errors stay per-slot so one key's failure never
	// contaminates the rest of the batch.
	var (
		mu      sync.Mutex
		pending []store.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	if c.fetchLimit > 0 {
		g.SetLimit(c.fetchLimit)
	}
	for _, i := range missed {
		g.Go(func() error {
			v, ok, ferr := c.fetch(gctx, keys[i])
			if ferr != nil {
				c.hooks.FetchFailed(c.keySpace, ferr)
				out[i] = loader.Result[V]{Err: ferr}
				return nil
			}
			out[i] = loader.Result[V]{Value: v, OK: ok}

			entry := store.Entry{Key: full[i]} // zero-length payload = empty-marker
			if ok {
				payload, eerr := c.opts.Codec.Encode(v)
				if eerr != nil {
					c.log.Warn("encode failed, skipping write-back",
						Fields{"keySpace": c.keySpace, "key": full[i], "err": eerr})
					return nil
				}
				entry.Data = payload
			}
			mu.Lock()
			pending = append(pending, entry)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(pending) > 0 {
		// Detached write-back: the read path never waits on, or fails
		// because of, a cache write.
		go c.backfill(context.WithoutCancel(ctx), pending)
	}
	return out
}

func (c *cache[V]) backfill(ctx context.Context, entries []store.Entry) {
	if err := c.opts.Store.SetBatch(ctx, entries, c.expire); err != nil {
		c.hooks.BackfillFailed(c.keySpace, len(entries), err)
		c.log.Warn("write-back failed, entries dropped",
			Fields{"keySpace": c.keySpace, "entries": len(entries), "err": err})
	}
}

// decode maps one stored value to the caller-facing (value, ok) pair,
// honoring the empty-marker.
func (c *cache[V]) decode(storageKey string, v store.Value) (V, bool, error) {
	var zero V
	if !v.Present || len(v.Data) == 0 {
		return zero, false, nil
	}
	decoded, err := c.opts.Codec.Decode(v.Data)
	if err != nil {
		c.hooks.DecodeFailed(c.keySpace, storageKey, err)
		return zero, false, &DecodeError{Key: storageKey, Err: err}
	}
	return decoded, true, nil
}
