package odb

import (
	"errors"
	"slices"
)

// Get returns the record stored under key, or nil if there is none.
func (s *Store) Get(key any) (Document, error) {
	var doc Document
	err := s.view(func(tx storageTx) error {
		var err error
		doc, err = s.getDoc(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetMany looks keys up in one read transaction. The result is aligned with
// keys: missing records come back as nil documents.
func (s *Store) GetMany(keys []any) ([]Document, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	docs := make([]Document, len(keys))
	err := s.view(func(tx storageTx) error {
		for i, key := range keys {
			doc, err := s.getDoc(tx, key)
			if err != nil {
				return err
			}
			docs[i] = doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) getDoc(tx storageTx, key any) (Document, error) {
	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	rawKey, err := encodeKey(keyBuf, key)
	if err != nil {
		return nil, storeErrf(s.cfg.Name, "", key, err, "get")
	}
	raw := s.dataBucket(tx).Get(rawKey)
	if raw == nil {
		if s.db.opt.Verbose {
			s.db.logf("odb: GET.NOTFOUND %s/%v", s.cfg.Name, key)
		}
		return nil, nil
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, storeErrf(s.cfg.Name, "", key, err, "get")
	}
	if s.db.opt.Verbose {
		s.db.logf("odb: GET %s/%v => %v", s.cfg.Name, key, doc)
	}
	return doc, nil
}

// Keys returns every primary key in the store, in key order.
func (s *Store) Keys() ([]any, error) {
	var keys []any
	err := s.view(func(tx storageTx) error {
		c := s.dataBucket(tx).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			key, err := decodeKeyFull(k)
			if err != nil {
				return storeErrf(s.cfg.Name, "", hexBytes(k), err, "keys")
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// All returns every record, in key order.
func (s *Store) All() ([]Document, error) {
	var docs []Document
	err := s.Each(func(doc Document) error {
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of records in the store.
func (s *Store) Count() (int, error) {
	var n int
	err := s.view(func(tx storageTx) error {
		n = s.dataBucket(tx).KeyCount()
		return nil
	})
	return n, err
}

// Each invokes fn for every record in key order. Returning Break stops the
// scan without an error.
func (s *Store) Each(fn func(doc Document) error) error {
	return s.eachDoc(false, fn)
}

// ReverseEach is Each in descending key order.
func (s *Store) ReverseEach(fn func(doc Document) error) error {
	return s.eachDoc(true, fn)
}

func (s *Store) eachDoc(reverse bool, fn func(doc Document) error) error {
	return s.view(func(tx storageTx) error {
		c := s.dataBucket(tx).Cursor()
		k, v := cursorStart(c, reverse)
		for k != nil {
			doc, err := decodeDoc(v)
			if err != nil {
				return storeErrf(s.cfg.Name, "", hexBytes(k), err, "scan")
			}
			if err := fn(doc); err != nil {
				if errors.Is(err, Break) {
					return nil
				}
				return err
			}
			k, v = cursorStep(c, reverse)
		}
		return nil
	})
}

func cursorStart(c storageCursor, reverse bool) (key, value []byte) {
	if reverse {
		return c.Last()
	}
	return c.First()
}

func cursorStep(c storageCursor, reverse bool) (key, value []byte) {
	if reverse {
		return c.Prev()
	}
	return c.Next()
}

// Some returns a window of count records. A non-negative offset skips that
// many records from the start; a negative offset addresses the window from
// the end (offset -1 is the last record), clamped at the start, with the
// result in ascending key order either way.
func (s *Store) Some(count, offset int) ([]Document, error) {
	if count <= 0 {
		return nil, nil
	}
	var docs []Document
	err := s.view(func(tx storageTx) error {
		c := s.dataBucket(tx).Cursor()
		if offset >= 0 {
			k, v := c.First()
			for ; k != nil && offset > 0; k, v = c.Next() {
				offset--
			}
			for ; k != nil && len(docs) < count; k, v = c.Next() {
				doc, err := decodeDoc(v)
				if err != nil {
					return storeErrf(s.cfg.Name, "", hexBytes(k), err, "some")
				}
				docs = append(docs, doc)
			}
			return nil
		}

		// Addressing from the end: records -offset-1 .. -offset-1+count-1,
		// truncated to what exists past the offset.
		skip := -(offset + count)
		if skip < 0 {
			skip = 0
		}
		take := count
		if -offset < take {
			take = -offset
		}
		k, v := c.Last()
		for ; k != nil && skip > 0; k, v = c.Prev() {
			skip--
		}
		for ; k != nil && len(docs) < take; k, v = c.Prev() {
			doc, err := decodeDoc(v)
			if err != nil {
				return storeErrf(s.cfg.Name, "", hexBytes(k), err, "some")
			}
			docs = append(docs, doc)
		}
		slices.Reverse(docs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// First returns the record with the lowest key, or nil when the store is
// empty.
func (s *Store) First() (Document, error) {
	docs, err := s.Some(1, 0)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Last returns the record with the highest key, or nil when the store is
// empty.
func (s *Store) Last() (Document, error) {
	docs, err := s.Some(1, -1)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}
