package odb

import "github.com/odb-go/odb/keypath"

// Condition is one predicate of a Select query. Key names a declared index
// (whose key path is then used) or a literal property path. Compare accepts
// the Query comparators; empty means equality. Optional conditions OR
// together within their group instead of ANDing.
type Condition struct {
	Key      string
	Value    any
	Compare  string
	Optional bool
}

type selectCond struct {
	paths    []string
	want     any
	compare  string
	optional bool
}

// Select returns the records matching any of the condition groups, in
// primary-key order. Within a group, required conditions AND together and
// optional conditions OR together (vacuously true when there are none); a
// group without conditions matches nothing, as does a call without groups.
// Select always scans the full store: it is the flexible-but-slow
// counterpart to Query.
func (s *Store) Select(groups ...[]Condition) ([]Document, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	prepared := make([][]selectCond, 0, len(groups))
	for _, g := range groups {
		pg := make([]selectCond, 0, len(g))
		for _, c := range g {
			want, err := normalizeKey(c.Value)
			if err != nil {
				return nil, storeErrf(s.cfg.Name, "", c.Value, err, "select condition %q", c.Key)
			}
			if err := checkCompare(c.Compare, want); err != nil {
				return nil, err
			}
			paths := []string{c.Key}
			if ic := s.indexConfig(c.Key); ic != nil {
				paths = ic.keyPath()
			}
			pg = append(pg, selectCond{paths, want, c.Compare, c.Optional})
		}
		prepared = append(prepared, pg)
	}

	var docs []Document
	err := s.Each(func(doc Document) error {
		for _, g := range prepared {
			if matchCondGroup(doc, g) {
				docs = append(docs, doc)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func matchCondGroup(doc Document, g []selectCond) bool {
	if len(g) == 0 {
		return false
	}
	var hasOptional, optionalHit bool
	for _, c := range g {
		v, ok := keypath.First(doc, c.paths)
		var hit bool
		if ok {
			if got, err := normalizeKey(v); err == nil {
				hit = compareMatch(got, c.want, c.compare)
			}
		}
		if c.optional {
			hasOptional = true
			optionalHit = optionalHit || hit
		} else if !hit {
			return false
		}
	}
	return !hasOptional || optionalHit
}
