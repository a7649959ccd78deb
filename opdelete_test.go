package odb

import "testing"

func TestDelete(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	fillUsers(t, users, 1, 2, 3)

	noerr(t, users.Delete(2))
	deepEqual(t, must(users.Keys()), []any{1.0, 3.0})

	// Deleting a missing or nil key is a no-op.
	noerr(t, users.Delete(2))
	noerr(t, users.Delete(nil))
	deepEqual(t, must(users.Count()), 2)
}

func TestDeleteMany(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))
	fillUsers(t, users, 1, 2, 3, 4)

	noerr(t, users.DeleteMany([]any{1, nil, 4, 99}))
	deepEqual(t, must(users.Keys()), []any{2.0, 3.0})

	noerr(t, users.DeleteMany(nil))
	deepEqual(t, must(users.Count()), 2)
}

func TestDeleteCleansIndexes(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	_, err := users.Put(Document{"id": 1.0, "email": "foo@example.com", "age": 30.0})
	noerr(t, err)
	noerr(t, users.Delete(1))

	isnil(t, must(users.Find("email", "foo@example.com")))
	isnil(t, must(users.Find("age", 30)))

	// The index value is free for a new record now.
	_, err = users.Put(Document{"id": 2.0, "email": "foo@example.com"})
	noerr(t, err)
}

func TestRemove(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	u := Document{"id": 1.0, "email": "foo@example.com"}
	_, err := users.Put(u)
	noerr(t, err)

	noerr(t, users.Remove(u))
	isnil(t, must(users.Get(1)))

	// Removing an unstored document or one without a key is a no-op.
	noerr(t, users.Remove(u))
	noerr(t, users.Remove(Document{"email": "keyless@example.com"}))
	noerr(t, users.Remove(nil))
}

func TestRemoveMany(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	u1 := Document{"id": 1.0}
	u2 := Document{"id": 2.0}
	u3 := Document{"id": 3.0}
	_, err := users.PutMany([]Document{u1, u2, u3})
	noerr(t, err)

	noerr(t, users.RemoveMany([]Document{u1, nil, u3}))
	deepEqual(t, must(users.Keys()), []any{2.0})
}

func TestClear(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	_, err := users.PutMany([]Document{
		{"id": 1.0, "email": "a@example.com"},
		{"id": 2.0, "email": "b@example.com"},
	})
	noerr(t, err)

	noerr(t, users.Clear())
	deepEqual(t, must(users.Count()), 0)
	isnil(t, must(users.Find("email", "a@example.com")))

	// The store stays usable after Clear.
	_, err = users.Put(Document{"id": 1.0, "email": "a@example.com"})
	noerr(t, err)
	deepEqual(t, must(users.Count()), 1)
}

func TestClearKeepsAutoIncrementCounter(t *testing.T) {
	db := setup(t)
	events := must(db.Use("events"))

	_, err := events.Add(Document{"what": "one"})
	noerr(t, err)
	_, err = events.Add(Document{"what": "two"})
	noerr(t, err)

	noerr(t, events.Clear())

	key, err := events.Add(Document{"what": "three"})
	noerr(t, err)
	deepEqual(t, key, 3.0)
}
