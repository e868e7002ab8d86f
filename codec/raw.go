package codec

// Bytes is an identity codec for []byte values. Note that a zero-length
// slice is indistinguishable from the empty-marker once stored; use a
// structured codec if empty payloads are meaningful values.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String is a trivial codec for Go string values. Assumes UTF-8 by
// convention and performs no validation. The empty-string caveat from Bytes
// applies here too.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
