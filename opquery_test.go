package odb

import (
	"strings"
	"testing"
)

func seedQueryUsers(t testing.TB, users *Store) {
	t.Helper()
	_, err := users.PutMany([]Document{
		{"id": 1.0, "email": "ann@example.com", "age": 25.0, "name": "ann", "address": map[string]any{"city": "Agra"}},
		{"id": 2.0, "email": "bob@example.com", "age": 30.0, "name": "bob", "address": map[string]any{"city": "Bern"}},
		{"id": 3.0, "email": "carol@example.com", "age": 30.0, "name": "carol", "address": map[string]any{"city": "Agra"}},
		{"id": 4.0, "email": "dan@example.com", "age": 35.0},
		{"id": 5.0, "email": "eve@example.com"},
	})
	noerr(t, err)
}

func TestFind(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	seedQueryUsers(t, users)

	deepEqual(t, must(users.Find("email", "bob@example.com"))["id"], 2.0)
	isnil(t, must(users.Find("email", "zoe@example.com")))

	// Non-unique index: the match with the lowest primary key wins.
	deepEqual(t, must(users.Find("age", 30))["id"], 2.0)
	deepEqual(t, must(users.Find("city", "Agra"))["id"], 1.0)

	// Undeclared indexes and cross-kind values find nothing.
	isnil(t, must(users.Find("name", "bob")))
	isnil(t, must(users.Find("email", 42)))
}

func TestQueryComparators(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	seedQueryUsers(t, users)

	for _, c := range []struct {
		compare string
		value   any
		want    []float64
	}{
		{"", 30, []float64{2, 3}},
		{"=", 30, []float64{2, 3}},
		{">", 30, []float64{4}},
		{">=", 30, []float64{2, 3, 4}},
		{"<", 30, []float64{1}},
		{"<=", 30, []float64{1, 2, 3}},
		{"!=", 30, []float64{1, 4}},
		{"in", []any{25, 35}, []float64{1, 4}},
		{">", 100, nil},
		{"in", []any{}, nil},
	} {
		docs, err := users.Query("age", c.value, c.compare)
		noerr(t, err)
		if len(c.want) == 0 {
			isempty(t, docs)
		} else {
			deepEqual(t, ids(t, docs), c.want)
		}
	}
}

func TestQueryStringRange(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	seedQueryUsers(t, users)

	docs, err := users.Query("email", "carol@example.com", ">=")
	noerr(t, err)
	deepEqual(t, ids(t, docs), []float64{3, 4, 5})

	// Ordering comparators never match across kinds.
	docs, err = users.Query("age", "x", ">")
	noerr(t, err)
	isempty(t, docs)
	docs, err = users.Query("email", 10, "<")
	noerr(t, err)
	isempty(t, docs)
}

func TestQueryScanFallback(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	seedQueryUsers(t, users)

	// "name" is not an index, so the query scans and treats it as a path.
	docs, err := users.Query("name", "bob", "")
	noerr(t, err)
	deepEqual(t, ids(t, docs), []float64{2})

	docs, err = users.Query("name", "o", "%")
	noerr(t, err)
	deepEqual(t, ids(t, docs), []float64{2, 3})

	docs, err = users.Query("address.city", "Agra", "=")
	noerr(t, err)
	deepEqual(t, ids(t, docs), []float64{1, 3})

	// Records without a value at the path never match.
	docs, err = users.Query("name", "", "!=")
	noerr(t, err)
	deepEqual(t, ids(t, docs), []float64{1, 2, 3})
}

func TestQuerySubstring(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	seedQueryUsers(t, users)

	// % on a declared index filters over the index entries.
	docs, err := users.Query("email", "an", "%")
	noerr(t, err)
	deepEqual(t, ids(t, docs), []float64{1, 4})

	// Substring match is defined on strings only.
	docs, err = users.Query("age", "3", "%")
	noerr(t, err)
	isempty(t, docs)
}

func TestQueryBadComparator(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	// Comparators are validated before touching the store, so even an
	// empty store rejects a bad one.
	_, err := users.Query("age", 1, "~")
	if err == nil || !strings.Contains(err.Error(), "unknown comparator") {
		t.Fatalf("Query(~) err = %v, wanted unknown comparator", err)
	}

	_, err = users.Query("age", 25, "in")
	if err == nil || !strings.Contains(err.Error(), "needs an array value") {
		t.Fatalf("Query(in, non-array) err = %v, wanted array value error", err)
	}
}

func TestQueryInvalidValue(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	_, err := users.Query("age", map[string]any{}, "=")
	iserr(t, err, ErrInvalidKey)

	_, err = users.Find("age", map[string]any{})
	iserr(t, err, ErrInvalidKey)
}
