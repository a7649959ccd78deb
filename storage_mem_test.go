package odb

import (
	"bytes"
	"testing"
)

func TestMemSnapshotIsolation(t *testing.T) {
	s := newMemStorage()
	defer s.Close()

	wtx := must(s.BeginTx(true))
	b := must(wtx.CreateBucket("b", ""))
	mustPut(t, b, []byte("k"), []byte("old"))
	noerr(t, wtx.Commit())

	rtx := must(s.BeginTx(false))
	defer rtx.Rollback()

	wtx = must(s.BeginTx(true))
	mustPut(t, wtx.Bucket("b", ""), []byte("k"), []byte("new"))
	noerr(t, wtx.Commit())

	if got := rtx.Bucket("b", "").Get([]byte("k")); !bytes.Equal(got, []byte("old")) {
		t.Fatalf("snapshot read = %q, wanted old", got)
	}
}

func TestMemRollback(t *testing.T) {
	s := newMemStorage()
	defer s.Close()

	wtx := must(s.BeginTx(true))
	b := must(wtx.CreateBucket("b", ""))
	mustPut(t, b, []byte("k"), []byte("v"))
	noerr(t, wtx.Rollback())

	rtx := must(s.BeginTx(false))
	defer rtx.Rollback()
	if rtx.Bucket("b", "") != nil {
		t.Fatalf("rolled back bucket still exists")
	}
}

func TestMemCursorDelete(t *testing.T) {
	s := newMemStorage()
	defer s.Close()

	wtx := must(s.BeginTx(true))
	defer wtx.Rollback()
	b := must(wtx.CreateBucket("b", ""))
	for _, k := range []string{"a", "b", "c"} {
		mustPut(t, b, []byte(k), []byte(k))
	}

	cur := b.Cursor()
	var seen []string
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		seen = append(seen, string(k))
		if string(k) == "b" {
			noerr(t, cur.Delete())
		}
	}
	deepEqual(t, seen, []string{"a", "b", "c"})
	deepEqual(t, b.KeyCount(), 2)
	if b.Get([]byte("b")) != nil {
		t.Fatalf("deleted key still present")
	}
}

func TestMemSeekLast(t *testing.T) {
	s := newMemStorage()
	defer s.Close()

	wtx := must(s.BeginTx(true))
	defer wtx.Rollback()
	b := must(wtx.CreateBucket("b", ""))
	mustPut(t, b, []byte{0x10, 0x01}, []byte("a"))
	mustPut(t, b, []byte{0x10, 0x02}, []byte("b"))
	mustPut(t, b, []byte{0x11, 0x01}, []byte("x"))

	cur := b.Cursor()
	k, v := cur.SeekLast([]byte{0x10})
	if !bytes.Equal(k, []byte{0x10, 0x02}) || string(v) != "b" {
		t.Fatalf("SeekLast(10) = (%x, %q), wanted (1002, b)", k, v)
	}
	k, _ = cur.SeekLast([]byte{0x0F})
	if k != nil {
		t.Fatalf("SeekLast below all keys = %x, wanted nil", k)
	}
	k, _ = cur.SeekLast([]byte{0xFF})
	if !bytes.Equal(k, []byte{0x11, 0x01}) {
		t.Fatalf("SeekLast(ff) = %x, wanted the last key", k)
	}
}
