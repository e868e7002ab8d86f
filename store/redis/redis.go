// Package redis implements the loadcache store gateway over two go-redis
// handles: a write-capable primary and a read-preferring replica.
//
// Multi-key reads go to the replica. When the replica answers with the
// LOADING condition (still replaying its persistent snapshot, not yet
// serving), the identical read is retried once against the primary; every
// other error propagates unchanged. Writes and deletes only ever touch the
// primary.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/loadcache/store"
)

// loadingMarker is the fixed token a replica reports while it is still
// loading its dataset into memory.
const loadingMarker = "LOADING"

var ErrNilClient = errors.New("redis gateway: nil client")

type Gateway struct {
	primary      goredis.UniversalClient
	replica      goredis.UniversalClient
	closeClients bool
	onFallback   func(keys int)
}

var _ store.Store = (*Gateway)(nil)

type Config struct {
	// Primary is required and serves all writes plus read-after-write reads.
	Primary goredis.UniversalClient
	// Replica serves multi-key reads. If nil, the primary serves them too.
	Replica goredis.UniversalClient
	// CloseClients true only if this gateway exclusively owns the clients.
	CloseClients bool
	// OnFallback, when set, is invoked with the batch size each time a
	// replica read is retried against the primary. Must be cheap.
	OnFallback func(keys int)
}

func New(cfg Config) (*Gateway, error) {
	if cfg.Primary == nil {
		return nil, ErrNilClient
	}
	replica := cfg.Replica
	if replica == nil {
		replica = cfg.Primary
	}
	return &Gateway{
		primary:      cfg.Primary,
		replica:      replica,
		closeClients: cfg.CloseClients,
		onFallback:   cfg.OnFallback,
	}, nil
}

func (g *Gateway) Get(ctx context.Context, key string) (store.Value, error) {
	b, err := g.primary.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return store.Value{}, nil
	}
	if err != nil {
		return store.Value{}, err
	}
	return store.Value{Present: true, Data: b}, nil
}

func (g *Gateway) MGet(ctx context.Context, keys []string) ([]store.Value, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := g.replica.MGet(ctx, keys...).Result()
	if err != nil && isLoading(err) {
		if g.onFallback != nil {
			g.onFallback(len(keys))
		}
		raw, err = g.primary.MGet(ctx, keys...).Result()
	}
	if err != nil {
		return nil, err
	}
	return toValues(raw), nil
}

func (g *Gateway) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return g.primary.Set(ctx, key, value, ttl).Err()
}

func (g *Gateway) SetBatch(ctx context.Context, entries []store.Entry, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}
	_, err := g.primary.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, e := range entries {
			p.Set(ctx, e.Key, e.Data, ttl)
		}
		return nil
	})
	return err
}

func (g *Gateway) Del(ctx context.Context, key string) error {
	return g.primary.Del(ctx, key).Err()
}

// Close releases the underlying clients only when this gateway owns them.
// Safe to call multiple times; repeated calls become no-ops.
func (g *Gateway) Close(context.Context) error {
	if !g.closeClients {
		return nil
	}
	var errs []error
	if err := g.primary.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		errs = append(errs, err)
	}
	if g.replica != g.primary {
		if err := g.replica.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isLoading(err error) bool {
	return err != nil && strings.Contains(err.Error(), loadingMarker)
}

func toValues(raw []interface{}) []store.Value {
	out := make([]store.Value, len(raw))
	for i, v := range raw {
		switch t := v.(type) {
		case nil:
			// absent
		case string:
			out[i] = store.Value{Present: true, Data: []byte(t)}
		case []byte:
			out[i] = store.Value{Present: true, Data: t}
		}
	}
	return out
}
