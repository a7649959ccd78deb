package odb

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestDocumentNormalization(t *testing.T) {
	db := setup(t)
	blobs := must(db.Use("blobs"))

	when := time.Date(2024, 5, 4, 3, 2, 1, 0, time.FixedZone("CET", 3600))
	noerr(t, blobs.PutKeyed("rec", Document{
		"i":   42,
		"i64": int64(-7),
		"f32": float32(0.5),
		"at":  when,
		"sub": map[string]any{"n": 1},
		"arr": []any{1, "x"},
	}))

	deepEqual(t, must(blobs.Get("rec")), Document{
		"i":   42.0,
		"i64": -7.0,
		"f32": 0.5,
		"at":  when.UTC(),
		"sub": map[string]any{"n": 1.0},
		"arr": []any{1.0, "x"},
	})
}

func TestValueEncodings(t *testing.T) {
	in := map[string]any{"a": 1.5, "b": "x"}

	for _, enc := range []encodingMethod{MsgPack, JSON} {
		raw := enc.EncodeValue(nil, in)
		var out map[string]any
		noerr(t, enc.DecodeValue(raw, &out))
		deepEqual(t, out, in)
	}

	var out map[string]any
	err := MsgPack.DecodeValue([]byte{0xC1}, &out)
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("** err = %v (%T), wanted DataError", err, err)
	}
}

func TestEncodeDocDeterministic(t *testing.T) {
	doc := Document{"a": 1.0, "b": 2.0, "c": "x", "d": "y", "e": 3.0, "f": 4.0}

	// Byte-identical re-encoding is what lets an unchanged PUT become a noop.
	first := encodeDoc(nil, doc)
	for i := 0; i < 8; i++ {
		if got := encodeDoc(nil, doc); !bytes.Equal(got, first) {
			t.Fatalf("** encoding %d differs: %x vs %x", i, got, first)
		}
	}
}
