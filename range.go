package odb

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
)

const debugLogRawScans = false

// KeyRange bounds a scan by document or index key. A nil bound side is
// unbounded; LowerOpen and UpperOpen exclude the bound value itself.
type KeyRange struct {
	Lower     any
	Upper     any
	LowerOpen bool
	UpperOpen bool
}

// Only matches exactly one key value.
func Only(value any) *KeyRange {
	return &KeyRange{Lower: value, Upper: value}
}

// LowerBound matches keys ≥ lower, or > lower when open.
func LowerBound(lower any, open bool) *KeyRange {
	return &KeyRange{Lower: lower, LowerOpen: open}
}

// UpperBound matches keys ≤ upper, or < upper when open.
func UpperBound(upper any, open bool) *KeyRange {
	return &KeyRange{Upper: upper, UpperOpen: open}
}

// Bound matches keys between lower and upper.
func Bound(lower, upper any, lowerOpen, upperOpen bool) *KeyRange {
	return &KeyRange{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}
}

// rawRange translates the key bounds into byte-string bounds over encoded
// keys. The encoding guarantees that no encoded key is a prefix of another,
// so the translation stays exact even when entries carry a primary key
// suffix (non-unique index buckets):
//
//	k ≥ lower  ⟺  enc(k)‖s ≥ enc(lower)
//	k > lower  ⟺  enc(k)‖s ≥ succ(enc(lower))
//	k ≤ upper  ⟺  enc(k)‖s < succ(enc(upper))
//	k < upper  ⟺  enc(k)‖s < enc(upper)
func (r *KeyRange) rawRange(reverse bool) (rawRange, error) {
	rr := rawRange{Reverse: reverse}
	if r == nil {
		return rr, nil
	}
	var lower, upper any
	var err error
	if r.Lower != nil {
		lower, err = normalizeKey(r.Lower)
		if err != nil {
			return rr, err
		}
	}
	if r.Upper != nil {
		upper, err = normalizeKey(r.Upper)
		if err != nil {
			return rr, err
		}
	}
	if lower != nil && upper != nil {
		cmp := compareKeys(lower, upper)
		if cmp > 0 || (cmp == 0 && (r.LowerOpen || r.UpperOpen)) {
			return rr, errors.New("odb: invalid key range: lower bound above upper bound")
		}
		if cmp == 0 {
			rr.Prefix = appendKey(nil, lower)
			return rr, nil
		}
	}
	if lower != nil {
		lb := appendKey(nil, lower)
		if r.LowerOpen {
			lb, _ = succ(lb)
		}
		rr.Lower, rr.LowerInc = lb, true
	}
	if upper != nil {
		ub := appendKey(nil, upper)
		if !r.UpperOpen {
			ub, _ = succ(ub)
		}
		rr.Upper, rr.UpperInc = ub, false
	}
	return rr, nil
}

// rawRange defines a range of byte strings within a bucket. Lower/Upper
// bound the keys (inclusive per LowerInc/UpperInc), Prefix restricts the
// scan to keys sharing that prefix, Reverse walks backwards.
type rawRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func (r *rawRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	var skipInitial bool
	if r.Reverse {
		switch upper := r.Upper; {
		case upper != nil && r.UpperInc:
			if r.Prefix != nil && !bytes.HasPrefix(upper, r.Prefix) {
				panic("upper bound does not match prefix")
			}
			// Last key extending the bound, or the last one before it.
			k, v = bcur.SeekLast(upper)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to upper inc", hexAttr("upper", upper), hexAttr("key", k))
			}
		case upper != nil:
			if r.Prefix != nil && !bytes.HasPrefix(upper, r.Prefix) {
				panic("upper bound does not match prefix")
			}
			// Step back below the first key ≥ upper. Keys extending the
			// bound sort above it, so this excludes all of them, which a
			// single skip after SeekLast would not.
			k, v = bcur.Seek(upper)
			if k == nil {
				k, v = bcur.Last()
			} else {
				k, v = bcur.Prev()
			}
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to upper exc", hexAttr("upper", upper), hexAttr("key", k))
			}
		case r.Prefix != nil:
			k, v = bcur.SeekLast(r.Prefix)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to prefix end", hexAttr("prefix", r.Prefix), hexAttr("key", k))
			}
		default:
			k, v = bcur.Last()
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "LAST", hexAttr("key", k))
			}
		}
	} else {
		lower := r.Lower
		if lower != nil {
			skipInitial = !r.LowerInc
			if r.Prefix != nil && !bytes.HasPrefix(lower, r.Prefix) {
				panic("lower bound does not match prefix")
			}
		} else if r.Prefix != nil {
			lower = r.Prefix
		}
		if lower != nil {
			k, v = bcur.Seek(lower)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", lower), hexAttr("key", k))
			}
			if skipInitial && !bytes.HasPrefix(k, lower) {
				skipInitial = false
			}
		} else {
			k, v = bcur.First()
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "FIRST", hexAttr("key", k))
			}
		}
	}
	if k != nil && r.match(k, logger) {
		if skipInitial {
			return r.next(bcur, logger)
		}
		return k, v
	}
	return nil, nil
}

func (r *rawRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		k, v = bcur.Prev()
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "PREV", hexAttr("key", k))
		}
	} else {
		k, v = bcur.Next()
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "NEXT", hexAttr("key", k))
		}
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *rawRange) match(k []byte, logger *slog.Logger) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on prefix", hexAttr("prefix", r.Prefix), hexAttr("key", k))
		}
		return false
	}
	if r.Reverse {
		if lower := r.Lower; lower != nil {
			cmp := bytes.Compare(k, lower)
			if cmp == -1 || (cmp == 0 && !r.LowerInc) {
				if debugLogRawScans {
					logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on lower", hexAttr("lower", lower), hexAttr("key", k))
				}
				return false
			}
		}
	} else {
		if upper := r.Upper; upper != nil {
			cmp := bytes.Compare(k, upper)
			if cmp == 1 || (cmp == 0 && !r.UpperInc) {
				if debugLogRawScans {
					logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on upper", hexAttr("upper", upper), hexAttr("key", k))
				}
				return false
			}
		}
	}
	return true
}
