package odb

// Delete removes the record stored under key, together with its index
// entries. Deleting a missing or nil key succeeds.
func (s *Store) Delete(key any) error {
	if key == nil {
		return nil
	}
	return s.update(func(tx storageTx) error {
		_, err := s.deleteDoc(tx, key)
		return err
	})
}

// DeleteMany removes keys in one writable transaction.
func (s *Store) DeleteMany(keys []any) error {
	if len(keys) == 0 {
		return nil
	}
	return s.update(func(tx storageTx) error {
		for _, key := range keys {
			if key == nil {
				continue
			}
			if _, err := s.deleteDoc(tx, key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove derives the record's primary key from doc via the store's key path
// and deletes it. A nil doc, or a doc without a key, is a no-op.
func (s *Store) Remove(doc Document) error {
	if doc == nil {
		return nil
	}
	key, found, err := s.extractKey(doc)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return s.Delete(key)
}

// RemoveMany removes docs by their derived keys in one writable
// transaction, skipping docs without keys.
func (s *Store) RemoveMany(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	return s.update(func(tx storageTx) error {
		for _, doc := range docs {
			if doc == nil {
				continue
			}
			key, found, err := s.extractKey(doc)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if _, err := s.deleteDoc(tx, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) deleteDoc(tx storageTx, key any) (bool, error) {
	keyBuf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(keyBuf)
	rawKey, err := encodeKey(keyBuf, key)
	if err != nil {
		return false, storeErrf(s.cfg.Name, "", key, err, "delete")
	}

	data := s.dataBucket(tx)
	oldRaw := data.Get(rawKey)
	if oldRaw == nil {
		if s.db.opt.Verbose {
			s.db.logf("odb: DELETE.NOOP %s/%v", s.cfg.Name, key)
		}
		return false, nil
	}

	oldDoc, err := decodeDoc(oldRaw)
	if err != nil {
		return false, storeErrf(s.cfg.Name, "", key, err, "decoding old record")
	}
	if err := deleteIndexEntries(tx, s.cfg, rawKey, oldDoc); err != nil {
		return false, err
	}
	if err := data.Delete(rawKey); err != nil {
		return false, storeErrf(s.cfg.Name, "", key, err, "delete")
	}
	if s.db.opt.Verbose {
		s.db.logf("odb: DELETE %s/%v", s.cfg.Name, key)
	}
	return true, nil
}

// Clear removes every record from the store by dropping and recreating its
// data and index buckets. The auto-increment counter is left alone.
func (s *Store) Clear() error {
	return s.update(func(tx storageTx) error {
		if err := tx.DeleteBucket(s.cfg.Name, dataBucketName); err != nil && err != ErrBucketNotFound {
			return storeErrf(s.cfg.Name, "", nil, err, "clear")
		}
		if _, err := tx.CreateBucket(s.cfg.Name, dataBucketName); err != nil {
			return storeErrf(s.cfg.Name, "", nil, err, "clear")
		}
		for i := range s.cfg.Indexes {
			name := indexBucketName(s.cfg.Indexes[i].Name)
			if err := tx.DeleteBucket(s.cfg.Name, name); err != nil && err != ErrBucketNotFound {
				return storeErrf(s.cfg.Name, s.cfg.Indexes[i].Name, nil, err, "clear")
			}
			if _, err := tx.CreateBucket(s.cfg.Name, name); err != nil {
				return storeErrf(s.cfg.Name, s.cfg.Indexes[i].Name, nil, err, "clear")
			}
		}
		if s.db.opt.Verbose {
			s.db.logf("odb: CLEAR %s", s.cfg.Name)
		}
		return nil
	})
}
