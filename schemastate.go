package odb

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// storeState is persisted under "_state" in every store's root bucket and
// records the configuration the store was last prepared with. Nothing on
// the fast path reads it; it exists so that tooling and future upgrades can
// tell how the data on disk is shaped.
type storeState struct {
	Version  uint64                 `msgpack:"v"`
	Key      KeyPath                `msgpack:"k"`
	AutoInc  bool                   `msgpack:"a,omitempty"`
	KV       bool                   `msgpack:"kv,omitempty"`
	Indexes  map[string]*indexState `msgpack:"i"`
	LastSeen time.Time              `msgpack:"t"`
}

type indexState struct {
	Key    KeyPath `msgpack:"k"`
	Unique bool    `msgpack:"u,omitempty"`
	Built  bool    `msgpack:"f"`
}

const stateEncoding = MsgPack

func loadVersion(tx storageTx) uint64 {
	meta := tx.Bucket(metaBucketName, "")
	if meta == nil {
		return 0
	}
	raw := meta.Get(versionKey)
	if raw == nil {
		return 0
	}
	ver, n := binary.Uvarint(raw)
	if n <= 0 {
		return 0
	}
	return ver
}

// upgrade brings the engine's contents in line with the declared
// configuration, in a single writable transaction. A stored version newer
// than the declared one fails with ErrVersionMismatch. An equal version
// only verifies that every declared store exists. An older stored version
// creates missing stores, rebuilds every index from the data and drops
// stores that are no longer declared.
func (db *Database) upgrade(stor storage) error {
	tx, err := stor.BeginTx(true)
	if err != nil {
		return tagErr(err)
	}
	defer tx.Rollback()

	stored, declared := loadVersion(tx), db.cfg.Version
	if stored > declared {
		return fmt.Errorf("%w: %s is at version %d, the configuration declares version %d", ErrVersionMismatch, db.cfg.Name, stored, declared)
	}
	if stored == declared {
		for i := range db.cfg.Stores {
			sc := &db.cfg.Stores[i]
			if tx.Bucket(sc.Name, dataBucketName) == nil {
				return fmt.Errorf("odb: %s: store %q not found at version %d (bump Version to create it)", db.cfg.Name, sc.Name, declared)
			}
		}
		return nil
	}

	start := time.Now()
	keep := make(map[string]bool, len(db.cfg.Stores)+1)
	keep[metaBucketName] = true
	for i := range db.cfg.Stores {
		sc := &db.cfg.Stores[i]
		keep[sc.Name] = true
		if err := db.prepareStore(tx, sc, start); err != nil {
			return err
		}
	}
	for _, name := range tx.RootBuckets() {
		if keep[name] {
			continue
		}
		if err := tx.DeleteRootBucket(name); err != nil {
			return tagErrf(err, "dropping store %q", name)
		}
		db.logf("odb: %s: dropped store %q", db.cfg.Name, name)
	}

	meta, err := tx.CreateBucket(metaBucketName, "")
	if err != nil {
		return tagErr(err)
	}
	if err := meta.Put(versionKey, appendUvarint(nil, declared)); err != nil {
		return tagErr(err)
	}
	if err := tx.Commit(); err != nil {
		return tagErrf(err, "upgrading %s", db.cfg.Name)
	}
	if stored == 0 {
		db.logf("odb: %s: created at version %d in %d ms", db.cfg.Name, declared, time.Since(start).Milliseconds())
	} else {
		db.logf("odb: %s: upgraded from version %d to %d in %d ms", db.cfg.Name, stored, declared, time.Since(start).Milliseconds())
	}
	return nil
}

// prepareStore creates the store's buckets and rebuilds its indexes. Index
// buckets are dropped and rebuilt from the data wholesale on every version
// bump: index definitions may have changed in ways we cannot diff, and
// scanning once per upgrade is cheap enough.
func (db *Database) prepareStore(tx storageTx, sc *StoreConfig, now time.Time) error {
	root, err := tx.CreateBucket(sc.Name, "")
	if err != nil {
		return tagErrf(err, "creating store %q", sc.Name)
	}
	if _, err := tx.CreateBucket(sc.Name, dataBucketName); err != nil {
		return tagErrf(err, "creating store %q", sc.Name)
	}

	for _, sub := range tx.SubBuckets(sc.Name) {
		if !strings.HasPrefix(sub, indexBucketPref) {
			continue
		}
		if err := tx.DeleteBucket(sc.Name, sub); err != nil {
			return tagErrf(err, "dropping index bucket %s/%s", sc.Name, sub)
		}
	}
	for i := range sc.Indexes {
		ic := &sc.Indexes[i]
		if _, err := tx.CreateBucket(sc.Name, indexBucketName(ic.Name)); err != nil {
			return tagErrf(err, "creating index %s.%s", sc.Name, ic.Name)
		}
	}

	if len(sc.Indexes) > 0 {
		if err := db.rebuildStore(tx, sc); err != nil {
			return err
		}
	}

	st := &storeState{
		Version:  db.cfg.Version,
		Key:      sc.keyPath(),
		AutoInc:  sc.AutoIncrement,
		KV:       sc.KV,
		Indexes:  make(map[string]*indexState, len(sc.Indexes)),
		LastSeen: now,
	}
	for i := range sc.Indexes {
		ic := &sc.Indexes[i]
		st.Indexes[ic.Name] = &indexState{Key: ic.keyPath(), Unique: ic.Unique, Built: true}
	}
	if err := root.Put(stateKey, stateEncoding.EncodeValue(nil, st)); err != nil {
		return tagErrf(err, "saving state of %q", sc.Name)
	}
	return nil
}

func (db *Database) rebuildStore(tx storageTx, sc *StoreConfig) error {
	data := tx.Bucket(sc.Name, dataBucketName)
	if data == nil {
		return storeErrf(sc.Name, "", nil, ErrBucketNotFound, "rebuild")
	}
	start := time.Now()
	var rows int64
	c := data.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		doc, err := decodeDoc(v)
		if err != nil {
			key, _ := decodeKeyFull(k)
			return storeErrf(sc.Name, "", key, err, "rebuild: decoding record")
		}
		if err := putIndexEntries(tx, sc, k, doc); err != nil {
			return err
		}
		rows++
		if rows%100000 == 0 {
			db.logf("odb: still indexing %s, so far %d records in %d ms", sc.Name, rows, time.Since(start).Milliseconds())
		}
	}
	if rows > 0 {
		db.logf("odb: indexed %d records of %s in %d ms", rows, sc.Name, time.Since(start).Milliseconds())
	}
	return nil
}
