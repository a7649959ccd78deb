package odb

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odb-go/odb/keypath"
)

// Find returns the first record whose index value equals value, or nil when
// nothing matches. An undeclared index name also yields nil.
func (s *Store) Find(index string, value any) (Document, error) {
	ic := s.indexConfig(index)
	if ic == nil {
		return nil, nil
	}
	norm, err := normalizeKey(value)
	if err != nil {
		return nil, storeErrf(s.cfg.Name, index, value, err, "find")
	}
	var doc Document
	err = s.view(func(tx storageTx) error {
		keyBuf := keyBytesPool.Get().([]byte)
		defer releaseKeyBytes(keyBuf)
		ik := appendKey(keyBuf, norm)
		ib := s.indexBucket(tx, ic.Name)

		var rawPK []byte
		if ic.Unique {
			rawPK = ib.Get(ik)
		} else {
			c := ib.Cursor()
			if k, _ := c.Seek(ik); k != nil && bytes.HasPrefix(k, ik) {
				rawPK = k[len(ik):]
			}
		}
		if rawPK == nil {
			if s.db.opt.Verbose {
				s.db.logf("odb: FIND.NOTFOUND %s.%s/%v", s.cfg.Name, ic.Name, norm)
			}
			return nil
		}
		raw := s.dataBucket(tx).Get(rawPK)
		if raw == nil {
			return storeErrf(s.cfg.Name, ic.Name, norm, nil, "index entry points at a missing record")
		}
		doc, err = decodeDoc(raw)
		if err != nil {
			return storeErrf(s.cfg.Name, ic.Name, norm, err, "find")
		}
		if s.db.opt.Verbose {
			s.db.logf("odb: FIND %s.%s/%v => %v", s.cfg.Name, ic.Name, norm, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Query returns the records whose index value satisfies (compare, value),
// in index-key order. The ordering comparators >, >=, <, <= and the default
// = translate to a native key range; !=, % (substring match on string
// values) and in (membership in a []any) scan the whole index and evaluate
// candidates in memory. Ordering comparators never match across kinds: a
// number query matches number values only.
//
// When index is not a declared index, Query falls back to scanning every
// record and treating index as a literal property path.
func (s *Store) Query(index string, value any, compare string) ([]Document, error) {
	norm, err := normalizeKey(value)
	if err != nil {
		return nil, storeErrf(s.cfg.Name, index, value, err, "query")
	}
	if err := checkCompare(compare, norm); err != nil {
		return nil, err
	}
	ic := s.indexConfig(index)
	if ic == nil {
		return s.queryScan(index, norm, compare)
	}
	switch compare {
	case "", "=", ">", ">=", "<", "<=":
		return s.queryIndexRange(ic, comparatorRange(norm, compare))
	default:
		return s.queryIndexFilter(ic, norm, compare)
	}
}

// comparatorRange translates an ordering comparator into byte-string bounds
// over the index bucket. Encoded keys of one kind all share the kind tag as
// their first byte, so [tag, tag+1) brackets exactly the same-kind entries.
func comparatorRange(norm any, compare string) rawRange {
	ik := appendKey(nil, norm)
	tag := ik[0]
	var rng rawRange
	switch compare {
	case ">":
		rng.Lower, _ = succ(ik)
		rng.LowerInc = true
		rng.Upper, rng.UpperInc = []byte{tag + 1}, false
	case ">=":
		rng.Lower, rng.LowerInc = ik, true
		rng.Upper, rng.UpperInc = []byte{tag + 1}, false
	case "<":
		rng.Lower, rng.LowerInc = []byte{tag}, true
		rng.Upper, rng.UpperInc = ik, false
	case "<=":
		rng.Lower, rng.LowerInc = []byte{tag}, true
		rng.Upper, _ = succ(ik)
	default: // =
		rng.Prefix = ik
	}
	return rng
}

func (s *Store) queryIndexRange(ic *IndexConfig, rng rawRange) ([]Document, error) {
	var docs []Document
	err := s.view(func(tx storageTx) error {
		data := s.dataBucket(tx)
		c := s.indexBucket(tx, ic.Name).Cursor()
		logger := slog.Default()
		for k, v := rng.start(c, logger); k != nil; k, v = rng.next(c, logger) {
			_, rawPK, err := splitIndexEntry(ic, k, v)
			if err != nil {
				return storeErrf(s.cfg.Name, ic.Name, hexBytes(k), err, "query")
			}
			doc, err := s.lookupPK(data, ic, rawPK)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) queryIndexFilter(ic *IndexConfig, norm any, compare string) ([]Document, error) {
	var docs []Document
	err := s.view(func(tx storageTx) error {
		data := s.dataBucket(tx)
		c := s.indexBucket(tx, ic.Name).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			val, rawPK, err := splitIndexEntry(ic, k, v)
			if err != nil {
				return storeErrf(s.cfg.Name, ic.Name, hexBytes(k), err, "query")
			}
			if !compareMatch(val, norm, compare) {
				continue
			}
			doc, err := s.lookupPK(data, ic, rawPK)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// queryScan filters a full data scan on path as a literal property path.
// Records without a usable value at the path never match, mirroring how
// such records are absent from a real index.
func (s *Store) queryScan(path string, norm any, compare string) ([]Document, error) {
	var docs []Document
	err := s.Each(func(doc Document) error {
		v, ok := keypath.Get(doc, path)
		if !ok {
			return nil
		}
		got, err := normalizeKey(v)
		if err != nil {
			return nil
		}
		if compareMatch(got, norm, compare) {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// splitIndexEntry decodes an index bucket entry into the index value and
// the raw primary key it points at.
func splitIndexEntry(ic *IndexConfig, k, v []byte) (val any, rawPK []byte, err error) {
	val, rest, err := decodeKey(k)
	if err != nil {
		return nil, nil, err
	}
	if ic.Unique {
		return val, v, nil
	}
	return val, rest, nil
}

func (s *Store) lookupPK(data storageBucket, ic *IndexConfig, rawPK []byte) (Document, error) {
	raw := data.Get(rawPK)
	if raw == nil {
		return nil, storeErrf(s.cfg.Name, ic.Name, hexBytes(rawPK), nil, "index entry points at a missing record")
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return nil, storeErrf(s.cfg.Name, ic.Name, hexBytes(rawPK), err, "query")
	}
	return doc, nil
}

// checkCompare validates a comparator and its value up front, so that a
// bad query fails even on an empty store.
func checkCompare(compare string, want any) error {
	switch compare {
	case "", "=", "!=", ">", ">=", "<", "<=", "%":
		return nil
	case "in":
		if _, ok := want.([]any); !ok {
			return fmt.Errorf("odb: comparator %q needs an array value, got %T", compare, want)
		}
		return nil
	default:
		return fmt.Errorf("odb: unknown comparator %q", compare)
	}
}

// compareMatch reports whether got satisfies (compare, want). Ordering
// comparators require got and want to be of the same kind; = and != compare
// across kinds (and are therefore type-strict); % matches substrings of
// string values; in matches membership in a []any.
func compareMatch(got, want any, compare string) bool {
	switch compare {
	case "", "=":
		return compareKeys(got, want) == 0
	case "!=":
		return compareKeys(got, want) != 0
	case ">", ">=", "<", "<=":
		if keyRank(got) != keyRank(want) {
			return false
		}
		cmp := compareKeys(got, want)
		switch compare {
		case ">":
			return cmp > 0
		case ">=":
			return cmp >= 0
		case "<":
			return cmp < 0
		default:
			return cmp <= 0
		}
	case "%":
		gs, ok1 := got.(string)
		ws, ok2 := want.(string)
		return ok1 && ok2 && strings.Contains(gs, ws)
	case "in":
		members, _ := want.([]any)
		for _, m := range members {
			if compareKeys(got, m) == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}
