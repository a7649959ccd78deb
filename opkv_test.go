package odb

import (
	"os"
	"testing"
)

func TestKVItems(t *testing.T) {
	db := setup(t)
	prefs := must(db.Use("prefs"))

	v, err := prefs.GetItem("theme")
	noerr(t, err)
	if v != nil {
		t.Fatalf("GetItem(missing) = %v, wanted nil", v)
	}

	noerr(t, prefs.SetItem("theme", "dark"))
	noerr(t, prefs.SetItem("volume", 11))
	noerr(t, prefs.SetItem(3, []any{"a", 1}))

	deepEqual(t, must(prefs.GetItem("theme")), any("dark"))
	deepEqual(t, must(prefs.GetItem("volume")), any(11.0))
	deepEqual(t, must(prefs.GetItem(3)), any([]any{"a", 1.0}))

	noerr(t, prefs.SetItem("theme", "light"))
	deepEqual(t, must(prefs.GetItem("theme")), any("light"))

	// Items are ordinary documents underneath.
	deepEqual(t, must(prefs.Get("theme")), Document{"key": "theme", "value": "light"})
	deepEqual(t, must(prefs.Count()), 3)

	noerr(t, prefs.RemoveItem("theme"))
	v, err = prefs.GetItem("theme")
	noerr(t, err)
	if v != nil {
		t.Fatalf("GetItem(removed) = %v, wanted nil", v)
	}
	noerr(t, prefs.RemoveItem("theme"))
}

func TestKVKeyN(t *testing.T) {
	db := setup(t)
	prefs := must(db.Use("prefs"))

	noerr(t, prefs.SetItem("b", 1))
	noerr(t, prefs.SetItem("a", 2))
	noerr(t, prefs.SetItem(7, 3))

	// Numbers sort before strings.
	deepEqual(t, must(prefs.Key(0)), any(7.0))
	deepEqual(t, must(prefs.Key(1)), any("a"))
	deepEqual(t, must(prefs.Key(2)), any("b"))

	if k := must(prefs.Key(3)); k != nil {
		t.Fatalf("Key(3) = %v, wanted nil", k)
	}
	if k := must(prefs.Key(-1)); k != nil {
		t.Fatalf("Key(-1) = %v, wanted nil", k)
	}
}

func TestKVRequiresKeyField(t *testing.T) {
	db := setup(t)
	prefs := must(db.Use("prefs"))

	_, err := prefs.Put(Document{"value": 1.0})
	if err == nil {
		t.Fatalf("Put without key field = nil error, wanted error")
	}
}

func TestKVOnNonKVStore(t *testing.T) {
	db := setup(t)
	users := must(db.Use("users"))

	_, err := users.GetItem("x")
	iserr(t, err, ErrNotKeyValue)
	iserr(t, users.SetItem("x", 1), ErrNotKeyValue)
	iserr(t, users.RemoveItem("x"), ErrNotKeyValue)
	_, err = users.Key(0)
	iserr(t, err, ErrNotKeyValue)
}

func TestOpenKV(t *testing.T) {
	kv, err := OpenKV("scratch", Options{
		Dir:       t.TempDir(),
		Engine:    Memory,
		IsTesting: true,
		Logf:      t.Logf,
	})
	noerr(t, err)
	t.Cleanup(func() { kv.Database().Close() })

	deepEqual(t, kv.Database().Name(), "scratch")
	deepEqual(t, kv.Name(), "keyval")

	noerr(t, kv.SetItem("greeting", "hello"))
	deepEqual(t, must(kv.GetItem("greeting")), any("hello"))
}

func TestDefaultKV(t *testing.T) {
	wd := must(os.Getwd())
	noerr(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	kv, err := DefaultKV()
	noerr(t, err)
	kv2, err := DefaultKV()
	noerr(t, err)
	if kv != kv2 {
		t.Fatalf("DefaultKV returned two different stores")
	}

	noerr(t, kv.SetItem("n", 1))
	deepEqual(t, must(kv.GetItem("n")), any(1.0))
}
