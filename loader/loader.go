// Package loader implements a keyed request coalescer: concurrent loads
// issued within one scheduling window are merged into a single batch handed
// to a user-supplied batch function, and loads for the same key share one
// in-flight result. Resolved results stay in a process-local cache until
// cleared, so repeated loads of a key cost nothing after the first.
//
// The guarantee callers rely on: at most one batch-function invocation per
// key per loader instance while the key's entry is cached or in flight.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultWait = 2 * time.Millisecond

var (
	ErrNilFetch = errors.New("loader: batch function is required")
	ErrNilKeyFn = errors.New("loader: key function is required")
	errNoResult = errors.New("loader: batch function returned too few results")
)

// Result is the outcome of loading one key. OK=false with a nil Err means
// the key resolved to no value ("known null"), which is distinct from a
// load failure.
type Result[V any] struct {
	Value V
	OK    bool
	Err   error
}

// Thunk blocks until the batch carrying its key has settled, then returns
// that key's result. Calling it more than once is cheap.
type Thunk[V any] func() Result[V]

// BatchFunc resolves one merged batch. The returned slice must align with
// keys: result[i] belongs to keys[i].
type BatchFunc[K, V any] func(ctx context.Context, keys []K) []Result[V]

// KeyFunc reduces a key to its canonical string identity. Two keys mapping
// to the same string are the same key for deduplication and caching.
type KeyFunc[K any] func(K) (string, error)

type Config[K, V any] struct {
	// Key is required.
	Key KeyFunc[K]
	// Wait is the batch scheduling window; loads arriving within it join the
	// same batch. 0 => 2ms.
	Wait time.Duration
	// MaxBatch dispatches a batch early once it holds this many distinct
	// keys. 0 => unbounded.
	MaxBatch int
	// DisableCache turns off the local result cache; deduplication then only
	// spans a single batch window.
	DisableCache bool
	// Cache overrides the local result cache. nil => unbounded in-process map.
	Cache Cache[V]
}

type Loader[K, V any] struct {
	fetch    BatchFunc[K, V]
	keyFn    KeyFunc[K]
	wait     time.Duration
	maxBatch int
	caching  bool

	mu    sync.Mutex
	cache Cache[V]
	cur   *batch[K, V]
}

func New[K, V any](fetch BatchFunc[K, V], cfg Config[K, V]) (*Loader[K, V], error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}
	if cfg.Key == nil {
		return nil, ErrNilKeyFn
	}
	l := &Loader[K, V]{
		fetch:    fetch,
		keyFn:    cfg.Key,
		wait:     cfg.Wait,
		maxBatch: cfg.MaxBatch,
		caching:  !cfg.DisableCache,
		cache:    cfg.Cache,
	}
	if l.wait <= 0 {
		l.wait = defaultWait
	}
	if l.cache == nil {
		l.cache = newMapCache[V]()
	}
	return l, nil
}

type batch[K, V any] struct {
	ctx     context.Context
	keys    []K
	index   map[string]int
	results []Result[V]
	done    chan struct{}
	started bool
}

// Load resolves one key, blocking until its batch settles.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	t, err := l.LoadThunk(ctx, key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	r := t()
	return r.Value, r.OK, r.Err
}

// LoadThunk registers the key with the current batch and returns without
// blocking. The error is only ever a key-normalization failure.
func (l *Loader[K, V]) LoadThunk(ctx context.Context, key K) (Thunk[V], error) {
	norm, err := l.keyFn(key)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.caching {
		if t, ok := l.cache.Get(norm); ok {
			l.mu.Unlock()
			return t, nil
		}
	}

	b := l.cur
	if b == nil {
		b = &batch[K, V]{
			ctx:   ctx,
			index: make(map[string]int),
			done:  make(chan struct{}),
		}
		l.cur = b
		go l.sleeper(b)
	}

	pos, seen := b.index[norm]
	if !seen {
		pos = len(b.keys)
		b.index[norm] = pos
		b.keys = append(b.keys, key)
		if l.maxBatch > 0 && len(b.keys) >= l.maxBatch && !b.started {
			b.started = true
			l.cur = nil
			go l.run(b)
		}
	}

	thunk := Thunk[V](func() Result[V] {
		<-b.done
		if pos >= len(b.results) {
			return Result[V]{Err: errNoResult}
		}
		return b.results[pos]
	})
	if l.caching {
		l.cache.Set(norm, thunk)
	}
	l.mu.Unlock()
	return thunk, nil
}

// LoadMany resolves all keys, each independently: one key's failure shows up
// only in its own slot. All keys join the same batch when issued together.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) []Result[V] {
	thunks := make([]Thunk[V], len(keys))
	errs := make([]error, len(keys))
	for i, k := range keys {
		thunks[i], errs[i] = l.LoadThunk(ctx, k)
	}
	out := make([]Result[V], len(keys))
	for i := range keys {
		if errs[i] != nil {
			out[i] = Result[V]{Err: errs[i]}
			continue
		}
		out[i] = thunks[i]()
	}
	return out
}

// Prime force-overwrites the cached entry for key with an already-settled
// result. The previous entry, resolved or in flight, is discarded.
func (l *Loader[K, V]) Prime(key K, r Result[V]) error {
	norm, err := l.keyFn(key)
	if err != nil {
		return err
	}
	if !l.caching {
		return nil
	}
	l.mu.Lock()
	l.cache.Delete(norm)
	l.cache.Set(norm, func() Result[V] { return r })
	l.mu.Unlock()
	return nil
}

// Clear drops the local entry for key. The next Load triggers a fresh batch.
func (l *Loader[K, V]) Clear(key K) error {
	norm, err := l.keyFn(key)
	if err != nil {
		return err
	}
	l.ClearNormalized(norm)
	return nil
}

// ClearNormalized is Clear for callers that already hold the canonical key
// string, e.g. a remote invalidation listener.
func (l *Loader[K, V]) ClearNormalized(norm string) {
	l.mu.Lock()
	l.cache.Delete(norm)
	l.mu.Unlock()
}

// ClearAll drops every local entry.
func (l *Loader[K, V]) ClearAll() {
	l.mu.Lock()
	l.cache.Clear()
	l.mu.Unlock()
}

func (l *Loader[K, V]) sleeper(b *batch[K, V]) {
	time.Sleep(l.wait)
	l.mu.Lock()
	if l.cur == b {
		l.cur = nil
	}
	started := b.started
	b.started = true
	l.mu.Unlock()
	if !started {
		l.run(b)
	}
}

func (l *Loader[K, V]) run(b *batch[K, V]) {
	b.results = l.fetch(b.ctx, b.keys)
	close(b.done)
}
