package odb

import (
	"bytes"
	"math"
	"reflect"
	"testing"
	"time"
)

// orderedKeys is strictly ascending under compareKeys; the encoding must
// reproduce this order bytewise.
var orderedKeys = []any{
	math.Inf(-1),
	-1e9,
	-2.5,
	0.0,
	0.5,
	3.0,
	1e9,
	math.Inf(1),
	time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC),
	time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	time.Date(2038, 1, 19, 3, 14, 8, 0, time.UTC),
	"",
	"a",
	"a\x00b",
	"aa",
	"ab",
	"b",
	[]any{1.0},
	[]any{1.0, 0.0},
	[]any{2.0},
	[]any{"a"},
	[]any{"a", "b"},
	[]any{[]any{"a"}},
}

func TestKeyOrdering(t *testing.T) {
	encoded := make([][]byte, len(orderedKeys))
	for i, key := range orderedKeys {
		encoded[i] = appendKey(nil, key)
	}

	for i := range orderedKeys {
		for j := range orderedKeys {
			wantCmp := 0
			if i < j {
				wantCmp = -1
			} else if i > j {
				wantCmp = 1
			}
			if got := compareKeys(orderedKeys[i], orderedKeys[j]); sign(got) != wantCmp {
				t.Errorf("compareKeys(%v, %v) = %d, wanted sign %d", orderedKeys[i], orderedKeys[j], got, wantCmp)
			}
			if got := bytes.Compare(encoded[i], encoded[j]); got != wantCmp {
				t.Errorf("bytes.Compare(enc(%v), enc(%v)) = %d, wanted %d", orderedKeys[i], orderedKeys[j], got, wantCmp)
			}
			// No valid encoding may be a proper prefix of another, or
			// range scans over suffixed index entries would drift.
			if i != j && bytes.HasPrefix(encoded[j], encoded[i]) {
				t.Errorf("enc(%v) is a prefix of enc(%v)", orderedKeys[i], orderedKeys[j])
			}
		}
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func TestKeyRoundTrip(t *testing.T) {
	for _, key := range orderedKeys {
		enc := appendKey(nil, key)
		got, err := decodeKeyFull(enc)
		noerr(t, err)
		if !reflect.DeepEqual(got, key) {
			t.Errorf("round trip of %#v gave %#v", key, got)
		}
	}
}

func TestKeyNegativeZero(t *testing.T) {
	neg := appendKey(nil, math.Copysign(0, -1))
	pos := appendKey(nil, 0.0)
	if !bytes.Equal(neg, pos) {
		t.Fatalf("enc(-0) = %x, enc(0) = %x, wanted identical", neg, pos)
	}
}

func TestNormalizeKey(t *testing.T) {
	for _, c := range []struct {
		in   any
		want any
	}{
		{1, 1.0},
		{int64(-7), -7.0},
		{uint8(255), 255.0},
		{float32(0.5), 0.5},
		{"s", "s"},
		{[]any{1, "a"}, []any{1.0, "a"}},
		{[]int{1, 2}, []any{1.0, 2.0}},
		{[]string{"x"}, []any{"x"}},
	} {
		got, err := normalizeKey(c.in)
		noerr(t, err)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("normalizeKey(%#v) = %#v, wanted %#v", c.in, got, c.want)
		}
	}

	for _, in := range []any{nil, true, math.NaN(), []byte{1}, map[string]any{}, struct{}{}, []any{nil}} {
		_, err := normalizeKey(in)
		iserr(t, err, ErrInvalidKey)
	}
}

func TestDecodeKeyErrors(t *testing.T) {
	for _, b := range [][]byte{
		{},
		{kindNumber, 1, 2, 3},
		{kindTime, 1},
		{kindString, 'a'},
		{kindString, 'a', 0x00},
		{kindString, 'a', 0x00, 0x7F},
		{kindArray, kindNumber},
		{0x99},
	} {
		if _, err := decodeKeyFull(b); err == nil {
			t.Errorf("decodeKeyFull(%x) = nil error, wanted error", b)
		}
	}

	// Trailing bytes are rejected by the Full variant only.
	b := appendKey(nil, 1.0)
	b = append(b, 0xAB)
	if _, err := decodeKeyFull(b); err == nil {
		t.Fatalf("decodeKeyFull with trailing bytes = nil error, wanted error")
	}
	key, rest, err := decodeKey(b)
	noerr(t, err)
	deepEqual(t, key.(float64), 1.0)
	deepEqual(t, rest, []byte{0xAB})
}

func TestEncodeKey(t *testing.T) {
	b, err := encodeKey(nil, 42)
	noerr(t, err)
	got, err := decodeKeyFull(b)
	noerr(t, err)
	deepEqual(t, got.(float64), 42.0)

	_, err = encodeKey(nil, true)
	iserr(t, err, ErrInvalidKey)
}
