package odb

import "fmt"

// Key-value mode treats a store as a flat map: records are {key, value}
// documents keyed by the "key" field. The item operations below work on KV
// stores only and return ErrNotKeyValue elsewhere.

func (s *Store) requireKV() error {
	if !s.cfg.KV {
		return fmt.Errorf("%w %q", ErrNotKeyValue, s.cfg.Name)
	}
	return nil
}

// GetItem returns the value stored under key, or nil when absent.
func (s *Store) GetItem(key any) (any, error) {
	if err := s.requireKV(); err != nil {
		return nil, err
	}
	doc, err := s.Get(key)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc["value"], nil
}

// SetItem stores value under key, replacing any previous value.
func (s *Store) SetItem(key, value any) error {
	if err := s.requireKV(); err != nil {
		return err
	}
	norm, err := normalizeKey(key)
	if err != nil {
		return storeErrf(s.cfg.Name, "", key, err, "setItem")
	}
	return s.PutKeyed(norm, Document{"key": norm, "value": value})
}

// RemoveItem deletes the value stored under key. Removing an absent key
// succeeds.
func (s *Store) RemoveItem(key any) error {
	if err := s.requireKV(); err != nil {
		return err
	}
	return s.Delete(key)
}

// Key returns the store's nth key in ascending key order, or nil when n is
// out of range.
func (s *Store) Key(n int) (any, error) {
	if err := s.requireKV(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	var key any
	err := s.view(func(tx storageTx) error {
		c := s.dataBucket(tx).Cursor()
		k, _ := c.First()
		for ; k != nil && n > 0; k, _ = c.Next() {
			n--
		}
		if k == nil {
			return nil
		}
		var err error
		key, err = decodeKeyFull(k)
		if err != nil {
			return storeErrf(s.cfg.Name, "", hexBytes(k), err, "key")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}
