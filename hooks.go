package loadcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// The detached write-back pipeline failed; entries were dropped and the
	// next read for those keys will fetch again. Never surfaced to callers.
	BackfillFailed(keySpace string, entries int, err error)

	// A stored payload failed to decode. The error also propagates to the
	// caller that read it.
	DecodeFailed(keySpace, storageKey string, err error)

	// The user fetch function failed for one key in a batch.
	FetchFailed(keySpace string, err error)

	// A remote invalidation for this key-space was received and applied to
	// the local cache.
	InvalidationReceived(keySpace, key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BackfillFailed(string, int, error)   {}
func (NopHooks) DecodeFailed(string, string, error)  {}
func (NopHooks) FetchFailed(string, error)           {}
func (NopHooks) InvalidationReceived(string, string) {}
