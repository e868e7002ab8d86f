// Package loadcache implements a batched read-through cache over a
// replicated key-value store. Concurrent single-key loads issued within one
// scheduling window are merged into a single multi-key store lookup; misses
// are resolved through a user fetch function and written back to the store
// as one detached pipelined operation whose failure never surfaces to the
// read that triggered it. Store read errors propagate to callers unchanged;
// only the replica LOADING condition is recovered, inside the gateway.
//
// Components:
//   - store.Store: byte store gateway (Redis primary/replica pair with a
//     LOADING fallback, or an embedded bigcache).
//   - codec.Codec[V]: (de)serializes V <-> []byte. JSON by default.
//   - loader.Loader: keyed request coalescer with a process-local cache.
//   - invalidate.Bus: optional pub/sub fan-out keeping local caches in sync
//     with remote clears.
//
// Keys:
//
//	<keySpace>:<canonical key>  - one entry per key; a zero-length stored
//	payload is the empty-marker ("fetched before, known null")
//
// Read-through pattern:
//
//	c, _ := loadcache.New[User](loadcache.Options[User]{
//	    KeySpace: "user",
//	    Store:    gateway,
//	    Fetch: func(ctx context.Context, k loadcache.Key) (User, bool, error) {
//	        return readUserFromDB(ctx, k.String())
//	    },
//	})
//	u, ok, err := c.Load(ctx, loadcache.StringKey("42"))
//
// Consistency policy: write-backs are asynchronous and availability-
// favoring. The read path never waits on, or fails because of, a cache
// write; a dropped write-back simply means the next read fetches again.
package loadcache
