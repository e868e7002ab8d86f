package codec

import (
	"strings"
	"testing"
)

type payload struct {
	ID    string            `json:"id" msgpack:"id" cbor:"id"`
	Count int               `json:"count" msgpack:"count" cbor:"count"`
	Tags  map[string]string `json:"tags,omitempty" msgpack:"tags,omitempty" cbor:"tags,omitempty"`
}

func TestJSONDecodeRejectsGarbage(t *testing.T) {
	if _, err := (JSON[payload]{}).Decode([]byte("{broken")); err == nil {
		t.Fatalf("garbage must not decode")
	}
}

func TestCBORDeterministicIsStable(t *testing.T) {
	c := MustCBOR[payload](true)
	v := payload{ID: "a", Count: 3, Tags: map[string]string{"z": "1", "a": "2", "m": "3"}}
	first, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		b, err := c.Encode(v)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if string(b) != string(first) {
			t.Fatalf("deterministic mode produced differing bytes")
		}
	}
	got, err := c.Decode(first)
	if err != nil || got.ID != "a" || got.Count != 3 {
		t.Fatalf("Decode: got=%+v err=%v", got, err)
	}
}

func TestLimitRejectsOversizedDecode(t *testing.T) {
	c := Limit[payload]{Inner: JSON[payload]{}, MaxDecode: 8}

	big, err := c.Encode(payload{ID: strings.Repeat("x", 64)})
	if err != nil {
		t.Fatalf("Encode must not be limited: %v", err)
	}
	if len(big) <= 8 {
		t.Fatalf("test payload too small")
	}
	if _, err := c.Decode(big); err == nil {
		t.Fatalf("oversized payload must be rejected")
	}

	// Disabled limit passes everything through.
	open := Limit[payload]{Inner: JSON[payload]{}}
	if _, err := open.Decode(big); err != nil {
		t.Fatalf("unlimited Decode: %v", err)
	}
}

func TestRawCodecsAreIdentity(t *testing.T) {
	b, err := (Bytes{}).Encode([]byte{0x00, 0xff})
	if err != nil || string(b) != string([]byte{0x00, 0xff}) {
		t.Fatalf("Bytes.Encode: %v", err)
	}
	s, err := (String{}).Decode([]byte("héllo"))
	if err != nil || s != "héllo" {
		t.Fatalf("String.Decode: got %q err=%v", s, err)
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	c := Msgpack[payload]{}
	b, err := c.Encode(payload{ID: "m", Count: 7})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil || got.ID != "m" || got.Count != 7 {
		t.Fatalf("Decode: got=%+v err=%v", got, err)
	}
}
