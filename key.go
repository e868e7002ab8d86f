package loadcache

import (
	"fmt"

	"github.com/unkn0wn-root/loadcache/internal/canon"
)

type keyKind uint8

const (
	keyZero keyKind = iota
	keyString
	keyStructured
)

// Key identifies one cache entry. It is either a plain string or a
// structured, JSON-serializable value; structured keys are canonicalized so
// that semantically equal values (any field order) address the same entry.
// The zero Key is invalid.
type Key struct {
	kind  keyKind
	str   string
	value any
}

// StringKey wraps a plain string key.
func StringKey(s string) Key { return Key{kind: keyString, str: s} }

// StructuredKey wraps an acyclic, JSON-serializable value as a key.
func StructuredKey(v any) Key { return Key{kind: keyStructured, value: v} }

// IsZero reports whether k is the invalid zero Key. An empty string key is
// treated the same way: there is no meaningful cache entry it could name.
func (k Key) IsZero() bool {
	return k.kind == keyZero || (k.kind == keyString && k.str == "")
}

// String renders a best-effort debug form; not the cache identity.
func (k Key) String() string {
	switch k.kind {
	case keyString:
		return k.str
	case keyStructured:
		return fmt.Sprintf("%v", k.value)
	default:
		return "<zero key>"
	}
}

// KeyFunc reduces a Key to its canonical cache-key string (without the
// key-space prefix). It must be a pure function of the key value.
type KeyFunc func(Key) (string, error)

// CanonicalKey is the default KeyFunc: identity for string keys, canonical
// order-independent stable serialization for structured keys.
func CanonicalKey(k Key) (string, error) {
	switch k.kind {
	case keyString:
		return k.str, nil
	case keyStructured:
		return canon.Stringify(k.value)
	default:
		return "", ErrInvalidKey
	}
}
