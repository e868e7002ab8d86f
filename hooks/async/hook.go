// Package asynchook decouples hook callbacks from the cache hot path: events
// are handed to a bounded queue and replayed on worker goroutines, and are
// dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    DecodeFailEvery: 10, // sample logs: ~every 10th decode failure
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := loadcache.New[User](loadcache.Options[User]{
//	    KeySpace: "user",
//	    Store:    gateway,
//	    Fetch:    fetchUser,
//	    Hooks:    hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/loadcache"
)

type Hooks struct {
	inner loadcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ loadcache.Hooks = (*Hooks)(nil)

func New(inner loadcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) BackfillFailed(ks string, n int, err error) {
	h.try(func() { h.inner.BackfillFailed(ks, n, err) })
}
func (h *Hooks) DecodeFailed(ks, key string, err error) {
	h.try(func() { h.inner.DecodeFailed(ks, key, err) })
}
func (h *Hooks) FetchFailed(ks string, err error) { h.try(func() { h.inner.FetchFailed(ks, err) }) }
func (h *Hooks) InvalidationReceived(ks, key string) {
	h.try(func() { h.inner.InvalidationReceived(ks, key) })
}
