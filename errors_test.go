package odb

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError(t *testing.T) {
	inner := errors.New("inner")
	err := dataErrf([]byte{0xAA, 0xBB}, 1, inner, "oops")
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("err = %T, wanted *DataError", err)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is(err, inner) = false, wanted true")
	}
	s := err.Error()
	if !strings.Contains(s, "oops") || !strings.Contains(s, "inner") || !strings.Contains(s, "(2) aabb") {
		t.Fatalf("err.Error() = %q, wanted message with oops/inner/(2) aabb", s)
	}

	// Long payloads render as prefix...suffix.
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	s = dataErrf(data, 0, nil, "oops").Error()
	if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
		t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
	}
}

func TestStoreError(t *testing.T) {
	inner := errors.New("inner")
	err := storeErrf("users", "email", "a@b", inner, "oops %d", 1)
	if !errors.Is(err, inner) {
		t.Fatalf("errors.Is(err, inner) = false, wanted true")
	}
	deepEqual(t, err.Error(), "odb: users.email/a@b: oops 1: inner")

	deepEqual(t, storeErrf("users", "", nil, inner, "").Error(), "odb: users: inner")
	deepEqual(t, storeErrf("users", "", 7.0, nil, "no record").Error(), "odb: users/7: no record")

	var se *StoreError
	if !errors.As(err, &se) || se.Store != "users" || se.Index != "email" {
		t.Fatalf("errors.As target = %+v", se)
	}
}

func TestTagErr(t *testing.T) {
	if tagErr(nil) != nil {
		t.Fatalf("tagErr(nil) != nil")
	}

	inner := errors.New("boom")
	err := tagErr(inner)
	deepEqual(t, err.Error(), "odb: boom")
	if !errors.Is(err, inner) {
		t.Fatalf("tagErr broke the error chain")
	}

	// Already-tagged errors pass through untouched.
	if got := tagErr(err); got != err {
		t.Fatalf("tagErr re-tagged: %v", got)
	}
	if got := tagErr(ErrKeyExists); got != ErrKeyExists {
		t.Fatalf("tagErr wrapped a sentinel: %v", got)
	}

	err = tagErrf(inner, "commit %s", "users")
	deepEqual(t, err.Error(), "odb: commit users: boom")
}
