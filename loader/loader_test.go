package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func ident(s string) (string, error) { return s, nil }

type countingFetch struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	fn      func(keys []string) []Result[string]
}

func (f *countingFetch) fetch(_ context.Context, keys []string) []Result[string] {
	f.mu.Lock()
	f.calls++
	cp := make([]string, len(keys))
	copy(cp, keys)
	f.batches = append(f.batches, cp)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(keys)
	}
	out := make([]Result[string], len(keys))
	for i, k := range keys {
		out[i] = Result[string]{Value: "v:" + k, OK: true}
	}
	return out
}

func (f *countingFetch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestLoader(t *testing.T, f *countingFetch, cfg func(*Config[string, string])) *Loader[string, string] {
	t.Helper()
	c := Config[string, string]{Key: ident, Wait: 10 * time.Millisecond}
	if cfg != nil {
		cfg(&c)
	}
	l, err := New[string, string](f.fetch, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestNewValidation(t *testing.T) {
	if _, err := New[string, string](nil, Config[string, string]{Key: ident}); !errors.Is(err, ErrNilFetch) {
		t.Fatalf("expected ErrNilFetch, got %v", err)
	}
	f := &countingFetch{}
	if _, err := New[string, string](f.fetch, Config[string, string]{}); !errors.Is(err, ErrNilKeyFn) {
		t.Fatalf("expected ErrNilKeyFn, got %v", err)
	}
}

func TestConcurrentSameKeyFetchesOnce(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, nil)

	const n = 20
	var wg sync.WaitGroup
	values := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, ok, err := l.Load(ctx, "k1")
			if err != nil || !ok {
				t.Errorf("Load: ok=%v err=%v", ok, err)
				return
			}
			values[i] = v
		}(i)
	}
	wg.Wait()

	if got := f.callCount(); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
	for i, v := range values {
		if v != "v:k1" {
			t.Fatalf("caller %d got %q", i, v)
		}
	}
}

func TestDistinctKeysShareOneBatch(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, nil)

	ta, _ := l.LoadThunk(ctx, "a")
	tb, _ := l.LoadThunk(ctx, "b")
	tc, _ := l.LoadThunk(ctx, "c")

	if got := []Result[string]{ta(), tb(), tc()}; got[0].Value != "v:a" || got[1].Value != "v:b" || got[2].Value != "v:c" {
		t.Fatalf("results out of order: %+v", got)
	}
	if got := f.callCount(); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
	f.mu.Lock()
	batch := f.batches[0]
	f.mu.Unlock()
	if len(batch) != 3 || batch[0] != "a" || batch[1] != "b" || batch[2] != "c" {
		t.Fatalf("batch keys: %v", batch)
	}
}

func TestMaxBatchDispatchesEarly(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, func(c *Config[string, string]) {
		c.Wait = time.Hour // only MaxBatch can trigger dispatch in time
		c.MaxBatch = 2
	})

	t1, _ := l.LoadThunk(ctx, "a")
	t2, _ := l.LoadThunk(ctx, "b")

	doneCh := make(chan struct{})
	go func() { t1(); t2(); close(doneCh) }()
	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatalf("batch did not dispatch at MaxBatch")
	}
	if got := f.callCount(); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
}

func TestCachedResultSkipsFetch(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, nil)

	if _, _, err := l.Load(ctx, "a"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, _, err := l.Load(ctx, "a"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.callCount(); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
}

func TestClearForcesRefetch(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, nil)

	_, _, _ = l.Load(ctx, "a")
	if err := l.Clear("a"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	// clearing twice is safe
	if err := l.Clear("a"); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
	_, _, _ = l.Load(ctx, "a")
	if got := f.callCount(); got != 2 {
		t.Fatalf("fetch called %d times, want 2", got)
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, nil)

	_, _, _ = l.Load(ctx, "a")
	_, _, _ = l.Load(ctx, "b")
	l.ClearAll()
	_, _, _ = l.Load(ctx, "a")
	_, _, _ = l.Load(ctx, "b")
	if got := f.callCount(); got < 3 {
		t.Fatalf("fetch called %d times, want at least 3", got)
	}
}

func TestPrimeOverwrites(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, nil)

	_, _, _ = l.Load(ctx, "a")
	if err := l.Prime("a", Result[string]{Value: "primed", OK: true}); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	v, ok, err := l.Load(ctx, "a")
	if err != nil || !ok || v != "primed" {
		t.Fatalf("Load after prime: v=%q ok=%v err=%v", v, ok, err)
	}
	if got := f.callCount(); got != 1 {
		t.Fatalf("fetch called %d times after prime, want 1", got)
	}
}

func TestLoadManyIndependentFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend down for b")
	f := &countingFetch{fn: func(keys []string) []Result[string] {
		out := make([]Result[string], len(keys))
		for i, k := range keys {
			if k == "b" {
				out[i] = Result[string]{Err: boom}
				continue
			}
			out[i] = Result[string]{Value: "v:" + k, OK: true}
		}
		return out
	}}
	l := newTestLoader(t, f, nil)

	res := l.LoadMany(ctx, []string{"a", "b", "c"})
	if res[0].Err != nil || res[0].Value != "v:a" {
		t.Fatalf("slot 0: %+v", res[0])
	}
	if !errors.Is(res[1].Err, boom) {
		t.Fatalf("slot 1 should carry its own error, got %+v", res[1])
	}
	if res[2].Err != nil || res[2].Value != "v:c" {
		t.Fatalf("slot 2: %+v", res[2])
	}
}

func TestNullResultIsCached(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	f := &countingFetch{fn: func(keys []string) []Result[string] {
		calls.Add(1)
		return make([]Result[string], len(keys)) // OK=false everywhere
	}}
	l := newTestLoader(t, f, nil)

	_, ok, err := l.Load(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("first load: ok=%v err=%v", ok, err)
	}
	_, ok, err = l.Load(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("second load: ok=%v err=%v", ok, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("null result was not cached; %d fetches", calls.Load())
	}
}

func TestDisableCacheStillDedupsWithinBatch(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	l := newTestLoader(t, f, func(c *Config[string, string]) { c.DisableCache = true })

	t1, _ := l.LoadThunk(ctx, "a")
	t2, _ := l.LoadThunk(ctx, "a")
	r1, r2 := t1(), t2()
	if r1.Value != "v:a" || r2.Value != "v:a" {
		t.Fatalf("results: %+v %+v", r1, r2)
	}
	if got := f.callCount(); got != 1 {
		t.Fatalf("fetch called %d times within one batch, want 1", got)
	}
	f.mu.Lock()
	n := len(f.batches[0])
	f.mu.Unlock()
	if n != 1 {
		t.Fatalf("duplicate key not merged within batch: %d keys", n)
	}

	// across batches there is no memory
	_, _, _ = l.Load(ctx, "a")
	if got := f.callCount(); got != 2 {
		t.Fatalf("fetch called %d times across batches, want 2", got)
	}
}

func TestKeyFuncErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{}
	bad := errors.New("unserializable key")
	c := Config[string, string]{Key: func(string) (string, error) { return "", bad }}
	l, err := New[string, string](f.fetch, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := l.Load(ctx, "a"); !errors.Is(err, bad) {
		t.Fatalf("expected key error, got %v", err)
	}
	if got := f.callCount(); got != 0 {
		t.Fatalf("fetch should not run for bad keys, ran %d times", got)
	}
}

func TestShortBatchFuncResultPadsErrors(t *testing.T) {
	ctx := context.Background()
	f := &countingFetch{fn: func(keys []string) []Result[string] {
		return []Result[string]{{Value: "only", OK: true}}
	}}
	l := newTestLoader(t, f, nil)

	ta, _ := l.LoadThunk(ctx, "a")
	tb, _ := l.LoadThunk(ctx, "b")
	if r := ta(); r.Err != nil || r.Value != "only" {
		t.Fatalf("slot 0: %+v", r)
	}
	if r := tb(); r.Err == nil {
		t.Fatalf("slot 1 should error when batch func under-returns")
	}
}

func TestManyLoadersIsolated(t *testing.T) {
	ctx := context.Background()
	var fetchesA, fetchesB atomic.Int64
	mk := func(ctr *atomic.Int64) BatchFunc[string, string] {
		return func(_ context.Context, keys []string) []Result[string] {
			ctr.Add(1)
			out := make([]Result[string], len(keys))
			for i := range keys {
				out[i] = Result[string]{Value: fmt.Sprint(i), OK: true}
			}
			return out
		}
	}
	la, _ := New[string, string](mk(&fetchesA), Config[string, string]{Key: ident})
	lb, _ := New[string, string](mk(&fetchesB), Config[string, string]{Key: ident})

	_, _, _ = la.Load(ctx, "k")
	_, _, _ = lb.Load(ctx, "k")
	if fetchesA.Load() != 1 || fetchesB.Load() != 1 {
		t.Fatalf("loaders share state: a=%d b=%d", fetchesA.Load(), fetchesB.Load())
	}
}
