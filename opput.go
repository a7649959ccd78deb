package odb

import (
	"bytes"

	"github.com/odb-go/odb/keypath"
)

// Add inserts doc and returns its primary key. Fails with ErrKeyExists when
// a record with the same key is already stored. On auto-increment stores a
// missing key is generated and, when the store has an in-line key path,
// written back into doc. Adding a nil document is a no-op.
func (s *Store) Add(doc Document) (any, error) {
	if doc == nil {
		return nil, nil
	}
	var key any
	err := s.update(func(tx storageTx) error {
		var err error
		key, err = s.putDoc(tx, nil, doc, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// AddMany inserts docs in one writable transaction and returns their keys,
// aligned with the input. The whole batch rolls back on the first failure.
func (s *Store) AddMany(docs []Document) ([]any, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	keys := make([]any, len(docs))
	err := s.update(func(tx storageTx) error {
		for i, doc := range docs {
			key, err := s.putDoc(tx, nil, doc, false)
			if err != nil {
				return err
			}
			keys[i] = key
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// AddKeyed inserts doc under an explicitly provided key. Meant for stores
// with out-of-line keys; on stores with a key path the explicit key wins
// and the document is stored as given.
func (s *Store) AddKeyed(key any, doc Document) error {
	if doc == nil {
		return nil
	}
	return s.update(func(tx storageTx) error {
		_, err := s.putDoc(tx, key, doc, false)
		return err
	})
}

// Put stores doc under its primary key, replacing any existing record, and
// returns the key. Key generation works as in Add.
func (s *Store) Put(doc Document) (any, error) {
	if doc == nil {
		return nil, nil
	}
	var key any
	err := s.update(func(tx storageTx) error {
		var err error
		key, err = s.putDoc(tx, nil, doc, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// PutMany upserts docs in one writable transaction and returns their keys.
func (s *Store) PutMany(docs []Document) ([]any, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	keys := make([]any, len(docs))
	err := s.update(func(tx storageTx) error {
		for i, doc := range docs {
			key, err := s.putDoc(tx, nil, doc, true)
			if err != nil {
				return err
			}
			keys[i] = key
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// PutKeyed upserts doc under an explicitly provided key.
func (s *Store) PutKeyed(key any, doc Document) error {
	if doc == nil {
		return nil
	}
	return s.update(func(tx storageTx) error {
		_, err := s.putDoc(tx, key, doc, true)
		return err
	})
}

// putDoc stores one record and maintains its index entries. key may be nil,
// in which case it is extracted from doc (or generated). Returns the
// effective primary key.
func (s *Store) putDoc(tx storageTx, key any, doc Document, upsert bool) (any, error) {
	if doc == nil {
		return nil, nil
	}

	if key == nil {
		k, found, err := s.extractKey(doc)
		if err != nil {
			return nil, err
		}
		if found {
			key = k
		}
	} else {
		k, err := normalizeKey(key)
		if err != nil {
			return nil, storeErrf(s.cfg.Name, "", key, err, "put")
		}
		key = k
	}

	if key == nil {
		if !s.cfg.AutoIncrement || s.cfg.KV {
			return nil, storeErrf(s.cfg.Name, "", nil, nil, "record has no primary key")
		}
		k, err := s.nextKey(tx)
		if err != nil {
			return nil, err
		}
		key = k
		if kp := s.cfg.keyPath(); len(kp) > 0 {
			if err := keypath.Set(doc, kp[0], k); err != nil {
				return nil, storeErrf(s.cfg.Name, "", k, err, "writing generated key")
			}
		}
	} else if err := s.bumpSeq(tx, key); err != nil {
		return nil, err
	}

	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	rawKey := appendKey(keyBuf, key)

	data := s.dataBucket(tx)
	oldRaw := data.Get(rawKey)
	if oldRaw != nil && !upsert {
		return nil, storeErrf(s.cfg.Name, "", key, ErrKeyExists, "add")
	}

	raw := encodeDoc(nil, doc)
	if oldRaw != nil {
		if bytes.Equal(oldRaw, raw) {
			if s.db.opt.Verbose {
				s.db.logf("odb: PUT.NOOP %s/%v", s.cfg.Name, key)
			}
			return key, nil
		}
		oldDoc, err := decodeDoc(oldRaw)
		if err != nil {
			return nil, storeErrf(s.cfg.Name, "", key, err, "decoding old record")
		}
		if err := deleteIndexEntries(tx, s.cfg, rawKey, oldDoc); err != nil {
			return nil, err
		}
	}

	if err := data.Put(rawKey, raw); err != nil {
		return nil, storeErrf(s.cfg.Name, "", key, err, "put")
	}
	if err := putIndexEntries(tx, s.cfg, rawKey, doc); err != nil {
		return nil, err
	}
	if s.db.opt.Verbose {
		s.db.logf("odb: PUT %s/%v => %v", s.cfg.Name, key, doc)
	}
	return key, nil
}
