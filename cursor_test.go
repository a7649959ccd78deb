package odb

import (
	"strings"
	"testing"
)

func TestIterate(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	fillUsers(t, users, 1, 2, 3, 4, 5)

	var keys []float64
	noerr(t, users.Iterate(IterOptions{}, func(it *Iter) error {
		keys = append(keys, it.Key().(float64))
		if it.IndexKey() != nil {
			t.Fatalf("IndexKey on a data scan = %v, wanted nil", it.IndexKey())
		}
		deepEqual(t, it.Document()["id"], it.Key())
		return nil
	}))
	deepEqual(t, keys, []float64{1, 2, 3, 4, 5})

	keys = nil
	noerr(t, users.Iterate(IterOptions{Reverse: true}, func(it *Iter) error {
		keys = append(keys, it.Key().(float64))
		return nil
	}))
	deepEqual(t, keys, []float64{5, 4, 3, 2, 1})
}

func TestIterateBreak(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	fillUsers(t, users, 1, 2, 3)

	var keys []float64
	noerr(t, users.Iterate(IterOptions{}, func(it *Iter) error {
		keys = append(keys, it.Key().(float64))
		return Break
	}))
	deepEqual(t, keys, []float64{1})
}

func TestIterateRange(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	fillUsers(t, users, 1, 2, 3, 4, 5)

	collect := func(opt IterOptions) []float64 {
		t.Helper()
		var keys []float64
		noerr(t, users.Iterate(opt, func(it *Iter) error {
			keys = append(keys, it.Key().(float64))
			return nil
		}))
		return keys
	}

	deepEqual(t, collect(IterOptions{Range: Bound(2, 4, false, false)}), []float64{2, 3, 4})
	deepEqual(t, collect(IterOptions{Range: Bound(2, 4, true, true)}), []float64{3})
	deepEqual(t, collect(IterOptions{Range: LowerBound(3, false)}), []float64{3, 4, 5})
	deepEqual(t, collect(IterOptions{Range: LowerBound(3, true)}), []float64{4, 5})
	deepEqual(t, collect(IterOptions{Range: UpperBound(3, false)}), []float64{1, 2, 3})
	deepEqual(t, collect(IterOptions{Range: UpperBound(3, true)}), []float64{1, 2})
	deepEqual(t, collect(IterOptions{Range: Only(3)}), []float64{3})
	isempty(t, collect(IterOptions{Range: Only(99)}))

	deepEqual(t, collect(IterOptions{Range: Bound(2, 4, false, false), Reverse: true}), []float64{4, 3, 2})
	deepEqual(t, collect(IterOptions{Range: Bound(2, 4, false, true), Reverse: true}), []float64{3, 2})
}

func TestIterateInvalidRange(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	err := users.Iterate(IterOptions{Range: Bound(5, 2, false, false)}, func(it *Iter) error {
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "invalid key range") {
		t.Fatalf("Iterate(lower>upper) err = %v, wanted invalid key range", err)
	}
}

func TestIterateIndex(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	seedQueryUsers(t, users)

	var gotKeys, gotAges []float64
	noerr(t, users.Iterate(IterOptions{Index: "age"}, func(it *Iter) error {
		gotKeys = append(gotKeys, it.Key().(float64))
		gotAges = append(gotAges, it.IndexKey().(float64))
		return nil
	}))
	deepEqual(t, gotKeys, []float64{1, 2, 3, 4})
	deepEqual(t, gotAges, []float64{25, 30, 30, 35})

	gotKeys = nil
	noerr(t, users.Iterate(IterOptions{Index: "age", Range: LowerBound(30, false)}, func(it *Iter) error {
		gotKeys = append(gotKeys, it.Key().(float64))
		return nil
	}))
	deepEqual(t, gotKeys, []float64{2, 3, 4})

	var emails []string
	noerr(t, users.Iterate(IterOptions{Index: "email", Reverse: true}, func(it *Iter) error {
		emails = append(emails, it.IndexKey().(string))
		return Break
	}))
	deepEqual(t, emails, []string{"eve@example.com"})

	err := users.Iterate(IterOptions{Index: "nope"}, func(it *Iter) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "unknown index") {
		t.Fatalf("Iterate(unknown index) err = %v, wanted unknown index", err)
	}
}

func TestIterateUpdate(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	seedQueryUsers(t, users)

	noerr(t, users.Iterate(IterOptions{Writable: true}, func(it *Iter) error {
		doc := it.Document()
		if age, ok := doc["age"].(float64); ok {
			doc["age"] = age + 1
			return it.Update(doc)
		}
		return nil
	}))

	deepEqual(t, must(users.Get(1))["age"], 26.0)
	deepEqual(t, must(users.Get(4))["age"], 36.0)

	// Index entries moved along with the update.
	docs, err := users.Query("age", 31, "=")
	noerr(t, err)
	deepEqual(t, ids(t, docs), []float64{2, 3})
	isnil(t, must(users.Find("age", 30)))
}

func TestIterateDelete(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	fillUsers(t, users, 1, 2, 3, 4, 5)

	// Deleting mid-scan must not derail the cursor.
	var seen []float64
	noerr(t, users.Iterate(IterOptions{Writable: true}, func(it *Iter) error {
		k := it.Key().(float64)
		seen = append(seen, k)
		if int(k)%2 == 0 {
			return it.Delete()
		}
		return nil
	}))
	deepEqual(t, seen, []float64{1, 2, 3, 4, 5})
	deepEqual(t, must(users.Keys()), []any{1.0, 3.0, 5.0})

	noerr(t, users.Iterate(IterOptions{Writable: true, Reverse: true}, func(it *Iter) error {
		if it.Key().(float64) == 3 {
			return it.Delete()
		}
		return nil
	}))
	deepEqual(t, must(users.Keys()), []any{1.0, 5.0})
}

func TestIterateReadOnly(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	fillUsers(t, users, 1)

	err := users.Iterate(IterOptions{}, func(it *Iter) error {
		return it.Update(Document{"id": 1.0, "x": 1.0})
	})
	if err == nil || !strings.Contains(err.Error(), "writable") {
		t.Fatalf("Update on read-only iteration err = %v, wanted writable error", err)
	}

	err = users.Iterate(IterOptions{}, func(it *Iter) error {
		return it.Delete()
	})
	if err == nil || !strings.Contains(err.Error(), "writable") {
		t.Fatalf("Delete on read-only iteration err = %v, wanted writable error", err)
	}
}
