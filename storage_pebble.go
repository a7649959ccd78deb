package odb

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Pebble has a flat keyspace, so buckets are simulated with key prefixes:
//
//	0x00 <name> 0x00 <sub> 0x00          bucket marker
//	0x01 <name> 0x00 <sub> 0x00 <key>    bucket entry
//
// Bucket names must not contain NUL bytes (schema validation enforces this
// for store and index names; internal names never do).
const (
	pebbleMarkerTag byte = 0x00
	pebbleDataTag   byte = 0x01
)

type pebbleStorage struct {
	pdb    *pebble.DB
	wopts  pebble.WriteOptions
	mu     sync.Mutex
	cond   *sync.Cond
	writer bool
	closed bool
}

func newPebbleStorage(path string, isTesting bool) (storage, error) {
	popts := &pebble.Options{
		Cache:        pebble.NewCache(64 * 1024 * 1024),
		MemTableSize: 32 * 1024 * 1024,
	}
	if isTesting {
		popts.DisableWAL = true
	}
	pdb, err := pebble.Open(path, popts)
	if err != nil {
		return nil, err
	}
	s := &pebbleStorage{pdb: pdb}
	if !isTesting {
		s.wopts = pebble.WriteOptions{Sync: true}
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// BeginTx hands out an indexed batch for writable transactions (so reads
// observe the batch's own mutations) and a snapshot for read-only ones.
// Writers are exclusive, matching Bolt semantics.
func (s *pebbleStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("storage closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("storage closed")
		}
		s.writer = true
		return &pebbleTx{s: s, writable: true, batch: s.pdb.NewIndexedBatch()}, nil
	}
	return &pebbleTx{s: s, snap: s.pdb.NewSnapshot()}, nil
}

func (s *pebbleStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	return s.pdb.Close()
}

type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

type pebbleTx struct {
	s        *pebbleStorage
	writable bool
	batch    *pebble.Batch
	snap     *pebble.Snapshot
	closed   bool

	// seq increments on every mutation; cursors use it to re-sync their
	// iterators, since batch iterators do not observe later writes.
	seq uint64
}

func (tx *pebbleTx) reader() pebbleReader {
	if tx.writable {
		return tx.batch
	}
	return tx.snap
}

func (tx *pebbleTx) Writable() bool { return tx.writable }

func (tx *pebbleTx) markerExists(name, sub string) bool {
	_, closer, err := tx.reader().Get(pebbleMarkerKey(name, sub))
	if err != nil {
		return false
	}
	closer.Close()
	return true
}

func (tx *pebbleTx) Bucket(name, sub string) storageBucket {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.markerExists(name, sub) {
		return nil
	}
	return pebbleBucket{tx: tx, prefix: pebbleDataPrefix(name, sub)}
}

func (tx *pebbleTx) CreateBucket(name, sub string) (storageBucket, error) {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	if err := tx.batch.Set(pebbleMarkerKey(name, ""), []byte{1}, nil); err != nil {
		return nil, err
	}
	if sub != "" {
		if err := tx.batch.Set(pebbleMarkerKey(name, sub), []byte{1}, nil); err != nil {
			return nil, err
		}
	}
	tx.seq++
	return pebbleBucket{tx: tx, prefix: pebbleDataPrefix(name, sub)}, nil
}

func (tx *pebbleTx) DeleteBucket(name, sub string) error {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if sub == "" {
		return ErrBucketNotFound
	}
	if !tx.markerExists(name, sub) {
		return ErrBucketNotFound
	}
	prefix := pebbleDataPrefix(name, sub)
	limit, _ := succ(prefix)
	if err := tx.batch.DeleteRange(prefix, limit, nil); err != nil {
		return err
	}
	if err := tx.batch.Delete(pebbleMarkerKey(name, sub), nil); err != nil {
		return err
	}
	tx.seq++
	return nil
}

func (tx *pebbleTx) DeleteRootBucket(name string) error {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if !tx.markerExists(name, "") {
		return ErrBucketNotFound
	}
	dataPrefix := pebbleNamePrefix(pebbleDataTag, name)
	limit, _ := succ(dataPrefix)
	if err := tx.batch.DeleteRange(dataPrefix, limit, nil); err != nil {
		return err
	}
	markerPrefix := pebbleNamePrefix(pebbleMarkerTag, name)
	limit, _ = succ(markerPrefix)
	if err := tx.batch.DeleteRange(markerPrefix, limit, nil); err != nil {
		return err
	}
	tx.seq++
	return nil
}

func (tx *pebbleTx) RootBuckets() []string {
	var names []string
	tx.eachMarker(func(name, sub string) {
		if sub == "" {
			names = append(names, name)
		}
	})
	return names // marker keys iterate in name order
}

func (tx *pebbleTx) SubBuckets(name string) []string {
	var names []string
	tx.eachMarker(func(n, sub string) {
		if n == name && sub != "" {
			names = append(names, sub)
		}
	})
	return names
}

func (tx *pebbleTx) eachMarker(f func(name, sub string)) {
	iter, err := tx.reader().NewIter(&pebble.IterOptions{
		LowerBound: []byte{pebbleMarkerTag},
		UpperBound: []byte{pebbleMarkerTag + 1},
	})
	ensure(err)
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		name, sub, ok := splitMarkerKey(iter.Key())
		if ok {
			f(name, sub)
		}
	}
}

func (tx *pebbleTx) Commit() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	if !tx.writable {
		return tx.snap.Close()
	}
	err := tx.batch.Commit(&tx.s.wopts)
	tx.releaseWriter()
	return err
}

func (tx *pebbleTx) Rollback() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	if !tx.writable {
		return tx.snap.Close()
	}
	err := tx.batch.Close()
	tx.releaseWriter()
	return err
}

func (tx *pebbleTx) releaseWriter() {
	tx.s.mu.Lock()
	tx.s.writer = false
	tx.s.cond.Broadcast()
	tx.s.mu.Unlock()
}

type pebbleBucket struct {
	tx     *pebbleTx
	prefix []byte
}

func (b pebbleBucket) fullKey(key []byte) []byte {
	out := make([]byte, 0, len(b.prefix)+len(key))
	out = append(out, b.prefix...)
	return append(out, key...)
}

func (b pebbleBucket) Get(key []byte) []byte {
	value, closer, err := b.tx.reader().Get(b.fullKey(key))
	if err == pebble.ErrNotFound {
		return nil
	}
	ensure(err)
	out := make([]byte, len(value))
	copy(out, value)
	closer.Close()
	return out
}

func (b pebbleBucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if err := b.tx.batch.Set(b.fullKey(key), value, nil); err != nil {
		return err
	}
	b.tx.seq++
	return nil
}

func (b pebbleBucket) Delete(key []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if err := b.tx.batch.Delete(b.fullKey(key), nil); err != nil {
		return err
	}
	b.tx.seq++
	return nil
}

func (b pebbleBucket) KeyCount() int {
	iter := b.newIter()
	defer iter.Close()
	var n int
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n
}

func (b pebbleBucket) newIter() *pebble.Iterator {
	limit, _ := succ(b.prefix)
	iter, err := b.tx.reader().NewIter(&pebble.IterOptions{
		LowerBound: b.prefix,
		UpperBound: limit,
	})
	ensure(err)
	return iter
}

func (b pebbleBucket) Cursor() storageCursor {
	return &pebbleCursor{b: b}
}

// pebbleCursor lazily materializes a pebble iterator scoped to the bucket
// prefix. When the transaction mutates, the stale iterator is dropped and
// the next Next/Prev re-seeks relative to the last returned key.
type pebbleCursor struct {
	b       pebbleBucket
	iter    *pebble.Iterator
	seq     uint64
	lastKey []byte // full key of the current position
}

// sync returns true when the iterator had to be recreated.
func (c *pebbleCursor) sync() bool {
	if c.iter != nil && c.seq == c.b.tx.seq {
		return false
	}
	if c.iter != nil {
		c.iter.Close()
	}
	c.iter = c.b.newIter()
	c.seq = c.b.tx.seq
	return true
}

func (c *pebbleCursor) cur() ([]byte, []byte) {
	if !c.iter.Valid() {
		return nil, nil
	}
	full := c.iter.Key()
	c.lastKey = append(c.lastKey[:0], full...)
	key := make([]byte, len(full)-len(c.b.prefix))
	copy(key, full[len(c.b.prefix):])
	value, err := c.iter.ValueAndErr()
	ensure(err)
	out := make([]byte, len(value))
	copy(out, value)
	return key, out
}

func (c *pebbleCursor) First() ([]byte, []byte) {
	c.sync()
	c.iter.First()
	return c.cur()
}

func (c *pebbleCursor) Last() ([]byte, []byte) {
	c.sync()
	c.iter.Last()
	return c.cur()
}

func (c *pebbleCursor) Seek(seek []byte) ([]byte, []byte) {
	c.sync()
	c.iter.SeekGE(c.b.fullKey(seek))
	return c.cur()
}

func (c *pebbleCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	c.sync()
	limit, ok := succ(c.b.fullKey(prefix))
	if ok {
		c.iter.SeekLT(limit)
	} else {
		c.iter.Last()
	}
	return c.cur()
}

func (c *pebbleCursor) Next() ([]byte, []byte) {
	if c.sync() && c.lastKey != nil {
		if c.iter.SeekGE(c.lastKey) && bytes.Equal(c.iter.Key(), c.lastKey) {
			c.iter.Next()
		}
		return c.cur()
	}
	c.iter.Next()
	return c.cur()
}

func (c *pebbleCursor) Prev() ([]byte, []byte) {
	if c.sync() && c.lastKey != nil {
		c.iter.SeekLT(c.lastKey)
		return c.cur()
	}
	c.iter.Prev()
	return c.cur()
}

func (c *pebbleCursor) Delete() error {
	if !c.b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if c.lastKey == nil {
		return nil
	}
	key := append([]byte(nil), c.lastKey...)
	if err := c.b.tx.batch.Delete(key, nil); err != nil {
		return err
	}
	c.b.tx.seq++
	return nil
}

func pebbleMarkerKey(name, sub string) []byte {
	out := make([]byte, 0, 1+len(name)+1+len(sub)+1)
	out = append(out, pebbleMarkerTag)
	out = append(out, name...)
	out = append(out, 0)
	out = append(out, sub...)
	return append(out, 0)
}

func pebbleDataPrefix(name, sub string) []byte {
	out := make([]byte, 0, 1+len(name)+1+len(sub)+1)
	out = append(out, pebbleDataTag)
	out = append(out, name...)
	out = append(out, 0)
	out = append(out, sub...)
	return append(out, 0)
}

func pebbleNamePrefix(tag byte, name string) []byte {
	out := make([]byte, 0, 1+len(name)+1)
	out = append(out, tag)
	out = append(out, name...)
	return append(out, 0)
}

func splitMarkerKey(k []byte) (name, sub string, ok bool) {
	if len(k) < 3 || k[0] != pebbleMarkerTag || k[len(k)-1] != 0 {
		return "", "", false
	}
	body := k[1 : len(k)-1]
	for i, c := range body {
		if c == 0 {
			return string(body[:i]), string(body[i+1:]), true
		}
	}
	return "", "", false
}
