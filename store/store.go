// Package store defines the byte-store gateway used by loadcache.
//
// Implementations MUST be byte-for-byte transparent: Get/MGet must return
// exactly the same []byte previously passed to Set for a key (no prepended
// metadata, no re-encoding). A zero-length stored payload is meaningful to
// loadcache (it is the empty-marker for "known null") and must round-trip
// as present-but-empty, distinct from an absent key.
package store

import (
	"context"
	"time"
)

// Value is one multi-get slot. Present distinguishes a stored entry
// (possibly zero-length) from an absent key.
type Value struct {
	Present bool
	Data    []byte
}

// Entry is one pending write in a batched set.
type Entry struct {
	Key  string
	Data []byte
}

// Store is the operational facade over the backing key-value store.
// Must be safe for concurrent use.
type Store interface {
	// Get reads a single key from the write-capable primary. Used on the
	// read-after-write path, where replica staleness is unacceptable.
	Get(ctx context.Context, key string) (Value, error)

	// MGet reads all keys in one round trip, preferring a read replica
	// where the implementation has one. The result is aligned with the
	// input: result[i] corresponds to keys[i].
	MGet(ctx context.Context, keys []string) ([]Value, error)

	// Set stores value under key with an optional expiry. ttl <= 0 means
	// no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetBatch issues every entry as one non-transactional pipeline and
	// returns a single completion signal for the whole batch.
	SetBatch(ctx context.Context, entries []Entry, ttl time.Duration) error

	// Del removes a key.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
