// Package keypath resolves dotted property paths with bracket list indexes,
// like "profile.emails[0].address", inside schemaless documents.
package keypath

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

type segment struct {
	field string
	index int
	list  bool
}

var parsed sync.Map // path string -> []segment

// Validate reports whether path is well-formed.
func Validate(path string) error {
	_, err := parse(path)
	return err
}

// Get resolves path inside doc. The second result is false when any step of
// the path is undefined.
func Get(doc any, path string) (any, bool) {
	segs, err := parse(path)
	if err != nil {
		return nil, false
	}
	cur := doc
	for _, seg := range segs {
		var ok bool
		cur, ok = step(cur, seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// First resolves the first path in paths that yields a defined value.
func First(doc any, paths []string) (any, bool) {
	for _, p := range paths {
		if v, ok := Get(doc, p); ok {
			return v, true
		}
	}
	return nil, false
}

// Set stores value at path inside m, creating intermediate maps as needed.
// Bracket segments cannot be created and are rejected.
func Set(m map[string]any, path string, value any) error {
	segs, err := parse(path)
	if err != nil {
		return err
	}
	cur := m
	for i, seg := range segs {
		if seg.list {
			return fmt.Errorf("keypath: cannot set through list index in %q", path)
		}
		if i == len(segs)-1 {
			cur[seg.field] = value
			return nil
		}
		next, ok := cur[seg.field].(map[string]any)
		if !ok {
			if _, exists := cur[seg.field]; exists {
				return fmt.Errorf("keypath: %q is not a map in %q", seg.field, path)
			}
			next = make(map[string]any)
			cur[seg.field] = next
		}
		cur = next
	}
	return nil
}

func step(cur any, seg segment) (any, bool) {
	if seg.list {
		switch s := cur.(type) {
		case []any:
			if seg.index < 0 || seg.index >= len(s) {
				return nil, false
			}
			return s[seg.index], true
		}
		rv := reflect.ValueOf(cur)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if seg.index < 0 || seg.index >= rv.Len() {
				return nil, false
			}
			return rv.Index(seg.index).Interface(), true
		}
		return nil, false
	}
	switch m := cur.(type) {
	case map[string]any:
		v, ok := m[seg.field]
		return v, ok
	}
	// Named map types (and map[string]T) resolve through reflection.
	rv := reflect.ValueOf(cur)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(seg.field))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	}
	return nil, false
}

func parse(path string) ([]segment, error) {
	if cached, ok := parsed.Load(path); ok {
		return cached.([]segment), nil
	}
	segs, err := parseUncached(path)
	if err != nil {
		return nil, err
	}
	parsed.LoadOrStore(path, segs)
	return segs, nil
}

func parseUncached(path string) ([]segment, error) {
	if path == "" {
		return nil, fmt.Errorf("keypath: empty path")
	}
	var segs []segment
	for _, part := range strings.Split(path, ".") {
		name := part
		var brackets string
		if i := strings.IndexByte(part, '['); i >= 0 {
			name, brackets = part[:i], part[i:]
		}
		if name == "" {
			return nil, fmt.Errorf("keypath: empty segment in %q", path)
		}
		segs = append(segs, segment{field: name})
		for brackets != "" {
			if brackets[0] != '[' {
				return nil, fmt.Errorf("keypath: malformed index in %q", path)
			}
			end := strings.IndexByte(brackets, ']')
			if end < 0 {
				return nil, fmt.Errorf("keypath: unterminated index in %q", path)
			}
			n, err := strconv.Atoi(brackets[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("keypath: bad list index %q in %q", brackets[1:end], path)
			}
			segs = append(segs, segment{index: n, list: true})
			brackets = brackets[end+1:]
		}
	}
	return segs, nil
}
