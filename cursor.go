package odb

import (
	"bytes"
	"errors"
	"log/slog"
)

// IterOptions configures Iterate.
type IterOptions struct {
	// Index scopes the scan to a named index. Empty scans the data records.
	Index string
	// Range bounds the scanned keys: document keys, or index keys when
	// Index is set.
	Range *KeyRange
	// Reverse walks in descending key order.
	Reverse bool
	// Writable opens a writable transaction so the callback may call
	// Update and Delete.
	Writable bool
}

// Iter is the cursor position handed to Iterate callbacks. It is only valid
// for the duration of the callback.
type Iter struct {
	s    *Store
	tx   storageTx
	ic   *IndexConfig
	data storageBucket
	cur  storageCursor
	rng  *rawRange

	rawEntry []byte // entry key in the scanned bucket
	rawKey   []byte // primary key
	key      any
	indexKey any
	doc      Document
	moved    bool // a mutation may have shifted the cursor; re-seek before stepping
}

// Key returns the current record's primary key.
func (it *Iter) Key() any { return it.key }

// IndexKey returns the current index key, or nil on data scans.
func (it *Iter) IndexKey() any { return it.indexKey }

// Document returns the current record.
func (it *Iter) Document() Document { return it.doc }

// Update replaces the current record with doc, keeping its primary key and
// maintaining index entries. Requires a Writable iteration.
func (it *Iter) Update(doc Document) error {
	if !it.tx.Writable() {
		return storeErrf(it.s.cfg.Name, "", it.key, nil, "cursor update requires a writable iteration")
	}
	if doc == nil {
		return nil
	}
	if _, err := it.s.putDoc(it.tx, it.key, doc, true); err != nil {
		return err
	}
	it.doc = doc
	it.moved = true
	return nil
}

// Delete removes the current record and its index entries. Requires a
// Writable iteration.
func (it *Iter) Delete() error {
	if !it.tx.Writable() {
		return storeErrf(it.s.cfg.Name, "", it.key, nil, "cursor delete requires a writable iteration")
	}
	if _, err := it.s.deleteDoc(it.tx, it.key); err != nil {
		return err
	}
	it.moved = true
	return nil
}

func (it *Iter) load(k, v []byte) error {
	it.rawEntry = append(it.rawEntry[:0], k...)
	if it.ic == nil {
		it.rawKey = append(it.rawKey[:0], k...)
		it.indexKey = nil
		doc, err := decodeDoc(v)
		if err != nil {
			return storeErrf(it.s.cfg.Name, "", hexBytes(k), err, "scan")
		}
		it.doc = doc
	} else {
		if it.ic.Unique {
			ik, err := decodeKeyFull(it.rawEntry)
			if err != nil {
				return storeErrf(it.s.cfg.Name, it.ic.Name, hexBytes(k), err, "decoding index key")
			}
			it.indexKey = ik
			it.rawKey = append(it.rawKey[:0], v...)
		} else {
			ik, rest, err := decodeKey(it.rawEntry)
			if err != nil {
				return storeErrf(it.s.cfg.Name, it.ic.Name, hexBytes(k), err, "decoding index key")
			}
			it.indexKey = ik
			it.rawKey = append(it.rawKey[:0], rest...)
		}
		raw := it.data.Get(it.rawKey)
		if raw == nil {
			return storeErrf(it.s.cfg.Name, it.ic.Name, it.indexKey, nil, "index entry points at a missing record")
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return storeErrf(it.s.cfg.Name, it.ic.Name, it.indexKey, err, "scan")
		}
		it.doc = doc
	}
	key, err := decodeKeyFull(it.rawKey)
	if err != nil {
		return storeErrf(it.s.cfg.Name, "", hexBytes(it.rawKey), err, "decoding key")
	}
	it.key = key
	return nil
}

// reseek revalidates the cursor after a mutation: it repositions at the
// entry that follows the one the callback saw, even if that entry is gone.
func (it *Iter) reseek(logger *slog.Logger) (k, v []byte) {
	it.moved = false
	if it.rng.Reverse {
		k, v = it.cur.Seek(it.rawEntry)
		if k == nil {
			k, v = it.cur.Last()
		} else {
			k, v = it.cur.Prev()
		}
	} else {
		k, v = it.cur.Seek(it.rawEntry)
		if k != nil && bytes.Equal(k, it.rawEntry) {
			k, v = it.cur.Next()
		}
	}
	if k != nil && it.rng.match(k, logger) {
		return k, v
	}
	return nil, nil
}

// Iterate walks the store (or one of its indexes) invoking fn once per
// record. Returning nil from fn continues the scan, Break commits and stops
// it, any other error aborts and rolls back.
func (s *Store) Iterate(opt IterOptions, fn func(it *Iter) error) error {
	var ic *IndexConfig
	if opt.Index != "" {
		ic = s.indexConfig(opt.Index)
		if ic == nil {
			return storeErrf(s.cfg.Name, opt.Index, nil, nil, "unknown index")
		}
	}
	rng, err := opt.Range.rawRange(opt.Reverse)
	if err != nil {
		return err
	}

	run := s.view
	if opt.Writable {
		run = s.update
	}
	return run(func(tx storageTx) error {
		it := &Iter{s: s, tx: tx, ic: ic, rng: &rng}
		it.data = s.dataBucket(tx)
		if ic != nil {
			it.cur = s.indexBucket(tx, ic.Name).Cursor()
		} else {
			it.cur = it.data.Cursor()
		}
		logger := slog.Default()
		k, v := rng.start(it.cur, logger)
		for k != nil {
			if err := it.load(k, v); err != nil {
				return err
			}
			if err := fn(it); err != nil {
				if errors.Is(err, Break) {
					return nil
				}
				return err
			}
			if it.moved {
				k, v = it.reseek(logger)
			} else {
				k, v = rng.next(it.cur, logger)
			}
		}
		return nil
	})
}
