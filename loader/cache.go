package loader

// Cache holds settled-or-in-flight thunks keyed by canonical key string.
// The loader serializes access through its own mutex, so implementations do
// not need internal locking, though bounded backends usually have it anyway.
type Cache[V any] interface {
	Get(key string) (Thunk[V], bool)
	Set(key string, t Thunk[V])
	Delete(key string)
	Clear()
}

// mapCache is the default unbounded in-process cache. Appropriate for
// request-scoped loaders; long-lived loaders should plug in a bounded
// backend instead.
type mapCache[V any] struct {
	m map[string]Thunk[V]
}

func newMapCache[V any]() *mapCache[V] {
	return &mapCache[V]{m: make(map[string]Thunk[V])}
}

func (c *mapCache[V]) Get(key string) (Thunk[V], bool) {
	t, ok := c.m[key]
	return t, ok
}

func (c *mapCache[V]) Set(key string, t Thunk[V]) { c.m[key] = t }

func (c *mapCache[V]) Delete(key string) { delete(c.m, key) }

func (c *mapCache[V]) Clear() { c.m = make(map[string]Thunk[V]) }
