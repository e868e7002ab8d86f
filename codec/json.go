package codec

import "encoding/json"

// JSON is the default codec. It matches the persisted layout contract:
// cached values readable as plain JSON by any other consumer of the store.
// The zero value is ready to use.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
