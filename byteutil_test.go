package odb

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func TestBytesBuilder(t *testing.T) {
	var bb bytesBuilder

	off := bb.Grow(3)
	copy(bb.Buf[off:], []byte{1, 2, 3})
	_, _ = bb.Write([]byte{9, 8})
	_ = bb.WriteByte(7)

	if !reflect.DeepEqual(bb.Buf, []byte{1, 2, 3, 9, 8, 7}) {
		t.Fatalf("bb.Buf = %x, wanted 010203090807", bb.Buf)
	}
}

func TestAppendHelpers(t *testing.T) {
	src := []byte{0xAA, 0xBB, 0xCC}
	buf := appendRaw(nil, src)
	if !reflect.DeepEqual(buf, src) {
		t.Fatalf("appendRaw = %x, wanted %x", buf, src)
	}
	buf = appendRaw(buf, nil)
	if !reflect.DeepEqual(buf, src) {
		t.Fatalf("appendRaw with empty chunk = %x, wanted %x", buf, src)
	}

	buf = appendUvarint(nil, 0x42)
	v, n := binary.Uvarint(buf)
	if v != 0x42 || n != len(buf) {
		t.Fatalf("appendUvarint round trip = (%#x, %d), wanted (0x42, %d)", v, n, len(buf))
	}
}

func TestEnsureCapacity(t *testing.T) {
	buf := make([]byte, 3, 4)
	copy(buf, []byte{1, 2, 3})

	grown := ensureCapacity(buf, 100)
	if cap(grown) < 100 {
		t.Fatalf("cap = %d, wanted >= 100", cap(grown))
	}
	if !reflect.DeepEqual(grown, []byte{1, 2, 3}) {
		t.Fatalf("contents lost while growing: %x", grown)
	}

	same := ensureCapacity(grown, 10)
	if &same[0] != &grown[0] {
		t.Fatalf("ensureCapacity reallocated although capacity sufficed")
	}
}
