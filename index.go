package odb

import (
	"bytes"

	"github.com/odb-go/odb/keypath"
)

// buildIndexEntry computes the index bucket entry for one record. For a
// unique index the entry is enc(value) => primary key; for a non-unique one
// it is enc(value)+primaryKey => empty, so that multiple records can share
// an index value and still sort by primary key within it.
//
// ok is false when the record has no value at the index path, or the value
// is not usable as a key; such records are simply absent from the index.
func buildIndexEntry(ic *IndexConfig, doc Document, rawKey []byte) (ik, iv []byte, ok bool) {
	v, found := keypath.First(doc, ic.keyPath())
	if !found {
		return nil, nil, false
	}
	norm, err := normalizeKey(v)
	if err != nil {
		return nil, nil, false
	}
	if ic.Unique {
		return appendKey(nil, norm), appendRaw(nil, rawKey), true
	}
	ik = appendKey(nil, norm)
	ik = appendRaw(ik, rawKey)
	return ik, emptyIndexValue, true
}

// putIndexEntries adds the entries of doc to every index of the store.
// Takes the raw transaction so that the upgrade routine can rebuild
// indexes before any facade exists.
func putIndexEntries(tx storageTx, sc *StoreConfig, rawKey []byte, doc Document) error {
	for i := range sc.Indexes {
		ic := &sc.Indexes[i]
		ik, iv, ok := buildIndexEntry(ic, doc, rawKey)
		if !ok {
			continue
		}
		ib := tx.Bucket(sc.Name, indexBucketName(ic.Name))
		if ib == nil {
			return storeErrf(sc.Name, ic.Name, nil, ErrBucketNotFound, "index put")
		}
		if ic.Unique {
			if old := ib.Get(ik); old != nil && !bytes.Equal(old, rawKey) {
				val, _ := decodeKeyFull(ik)
				return storeErrf(sc.Name, ic.Name, val, ErrKeyExists, "another record has this index value")
			}
		}
		if err := ib.Put(ik, iv); err != nil {
			return storeErrf(sc.Name, ic.Name, nil, err, "index put")
		}
	}
	return nil
}

// deleteIndexEntries removes the entries of doc from every index of the
// store. doc must be the version of the record the entries were built
// from, i.e. the old document when updating.
func deleteIndexEntries(tx storageTx, sc *StoreConfig, rawKey []byte, doc Document) error {
	for i := range sc.Indexes {
		ic := &sc.Indexes[i]
		ik, _, ok := buildIndexEntry(ic, doc, rawKey)
		if !ok {
			continue
		}
		ib := tx.Bucket(sc.Name, indexBucketName(ic.Name))
		if ib == nil {
			continue
		}
		if err := ib.Delete(ik); err != nil {
			return storeErrf(sc.Name, ic.Name, nil, err, "index delete")
		}
	}
	return nil
}
