package odb

import (
	"encoding/binary"
	"math"

	"github.com/odb-go/odb/keypath"
)

// Store is the per-store facade: every data operation goes through one.
// Facades are cached by the Database and safe for concurrent use. Writable
// operations on the same store run one at a time, in the order they were
// started; reads run against engine snapshots and never queue.
type Store struct {
	db  *Database
	cfg *StoreConfig
	txq txQueue
}

func newStore(db *Database, cfg *StoreConfig) *Store {
	return &Store{db: db, cfg: cfg}
}

func (s *Store) Name() string { return s.cfg.Name }

func (s *Store) Database() *Database { return s.db }

// Indexes returns the names of the store's declared indexes.
func (s *Store) Indexes() []string {
	names := make([]string, len(s.cfg.Indexes))
	for i := range s.cfg.Indexes {
		names[i] = s.cfg.Indexes[i].Name
	}
	return names
}

// view runs f in a read-only transaction.
func (s *Store) view(f func(tx storageTx) error) error {
	stor, err := s.db.conn()
	if err != nil {
		return err
	}
	tx, err := stor.BeginTx(false)
	if err != nil {
		return tagErr(err)
	}
	defer tx.Rollback()
	return tagErr(safelyCall(f, tx))
}

// update runs f in a writable transaction, FIFO with respect to other
// writers on this store. Commits when f returns nil, rolls back otherwise;
// either way the queue settles exactly once.
func (s *Store) update(f func(tx storageTx) error) error {
	stor, err := s.db.conn()
	if err != nil {
		return err
	}
	settle := s.txq.enter()
	defer settle()
	tx, err := stor.BeginTx(true)
	if err != nil {
		return tagErr(err)
	}
	if err := safelyCall(f, tx); err != nil {
		tx.Rollback()
		return tagErr(err)
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return tagErrf(err, "commit %s", s.cfg.Name)
	}
	return nil
}

// The store's buckets are created by the upgrade routine before any facade
// can run, so a missing bucket here is an invariant violation.

func (s *Store) rootBucket(tx storageTx) storageBucket {
	return nonNil(tx.Bucket(s.cfg.Name, ""))
}

func (s *Store) dataBucket(tx storageTx) storageBucket {
	return nonNil(tx.Bucket(s.cfg.Name, dataBucketName))
}

func (s *Store) indexBucket(tx storageTx, name string) storageBucket {
	return nonNil(tx.Bucket(s.cfg.Name, indexBucketName(name)))
}

func (s *Store) indexConfig(name string) *IndexConfig {
	for i := range s.cfg.Indexes {
		if s.cfg.Indexes[i].Name == name {
			return &s.cfg.Indexes[i]
		}
	}
	return nil
}

// extractKey resolves the record's primary key from the store's key path.
// found is false when the store has no in-line key path or the document has
// no value at it.
func (s *Store) extractKey(doc Document) (key any, found bool, err error) {
	kp := s.cfg.keyPath()
	if len(kp) == 0 {
		return nil, false, nil
	}
	v, ok := keypath.First(doc, kp)
	if !ok {
		return nil, false, nil
	}
	k, err := normalizeKey(v)
	if err != nil {
		return nil, false, storeErrf(s.cfg.Name, "", nil, err, "key at %v", kp)
	}
	return k, true, nil
}

// The auto-increment counter lives under "_seq" in the store's root bucket
// and holds the last key handed out, not the next one.

func loadSeq(root storageBucket) uint64 {
	raw := root.Get(seqKey)
	if raw == nil {
		return 0
	}
	v, n := binary.Uvarint(raw)
	if n <= 0 {
		return 0
	}
	return v
}

func saveSeq(root storageBucket, last uint64) error {
	return root.Put(seqKey, appendUvarint(nil, last))
}

const maxSeq = 1 << 62

// nextKey generates the next auto-increment key and persists the counter.
func (s *Store) nextKey(tx storageTx) (float64, error) {
	root := s.rootBucket(tx)
	last := loadSeq(root) + 1
	if err := saveSeq(root, last); err != nil {
		return 0, storeErrf(s.cfg.Name, "", nil, err, "key generator")
	}
	return float64(last), nil
}

// bumpSeq advances the generator past an explicitly provided numeric key,
// so that inserting key 7 makes the next generated key 8.
func (s *Store) bumpSeq(tx storageTx, key any) error {
	if !s.cfg.AutoIncrement {
		return nil
	}
	k, ok := key.(float64)
	if !ok || k < 1 {
		return nil
	}
	f := math.Floor(k)
	var v uint64
	if f >= maxSeq {
		v = maxSeq
	} else {
		v = uint64(f)
	}
	root := s.rootBucket(tx)
	if v <= loadSeq(root) {
		return nil
	}
	if err := saveSeq(root, v); err != nil {
		return storeErrf(s.cfg.Name, "", nil, err, "key generator")
	}
	return nil
}
