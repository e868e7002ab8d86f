// Package codec provides pluggable value (de)serialization for loadcache.
// A codec only ever sees real values: the empty-marker sentinel for "known
// null" is handled at the wire layer above, so every implementation here
// composes with it unchanged.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
