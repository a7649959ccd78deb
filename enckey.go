package odb

import (
	"cmp"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Key encoding. Every key starts with a kind tag that fixes the type rank;
// the payload is transformed so that bytewise comparison of encodings agrees
// with key ordering. String and array payloads are self-delimiting and no
// valid encoding is a proper prefix of another, so an index entry can carry
// a primary-key suffix without disturbing range scans.
const (
	kindNumber byte = 0x10 // 8 bytes, sign-flipped float64 bits
	kindTime   byte = 0x18 // 8 bytes, offset unix nanoseconds
	kindString byte = 0x20 // 0x00 escaped as 0x00 0xFF, 0x00 0x00 terminator
	kindArray  byte = 0x30 // concatenated elements, 0x00 terminator

	arrayTerm byte = 0x00
)

const signMask = uint64(1) << 63

// normalizeKey converts v to the canonical key representation: float64,
// time.Time, string, or []any of those. Bools, nils, NaN and anything else
// are not keys.
func normalizeKey(v any) (any, error) {
	switch k := v.(type) {
	case float64:
		if math.IsNaN(k) {
			return nil, fmt.Errorf("%w: NaN", ErrInvalidKey)
		}
		return k, nil
	case float32:
		return normalizeKey(float64(k))
	case int:
		return float64(k), nil
	case int8:
		return float64(k), nil
	case int16:
		return float64(k), nil
	case int32:
		return float64(k), nil
	case int64:
		return float64(k), nil
	case uint:
		return float64(k), nil
	case uint8:
		return float64(k), nil
	case uint16:
		return float64(k), nil
	case uint32:
		return float64(k), nil
	case uint64:
		return float64(k), nil
	case string:
		return k, nil
	case time.Time:
		return k, nil
	case []any:
		out := make([]any, len(k))
		for i, el := range k {
			nel, err := normalizeKey(el)
			if err != nil {
				return nil, err
			}
			out[i] = nel
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrInvalidKey)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if rv.Type().Elem().Kind() == reflect.Uint8 {
				return nil, fmt.Errorf("%w: binary data", ErrInvalidKey)
			}
			n := rv.Len()
			out := make([]any, n)
			for i := 0; i < n; i++ {
				nel, err := normalizeKey(rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out[i] = nel
			}
			return out, nil
		}
		return nil, fmt.Errorf("%w: %T", ErrInvalidKey, v)
	}
}

// appendKey encodes an already normalized key.
func appendKey(buf []byte, key any) []byte {
	switch k := key.(type) {
	case float64:
		bits := math.Float64bits(k)
		if bits == signMask { // -0 and +0 encode identically
			bits = 0
		}
		if bits&signMask != 0 {
			bits = ^bits
		} else {
			bits |= signMask
		}
		off, out := grow(buf, 9)
		out[off] = kindNumber
		putUint64BE(out[off+1:], bits)
		return out
	case time.Time:
		off, out := grow(buf, 9)
		out[off] = kindTime
		putUint64BE(out[off+1:], uint64(k.UnixNano())^signMask)
		return out
	case string:
		buf = append(buf, kindString)
		for i := 0; i < len(k); i++ {
			if k[i] == 0 {
				buf = append(buf, 0x00, 0xFF)
			} else {
				buf = append(buf, k[i])
			}
		}
		return append(buf, 0x00, 0x00)
	case []any:
		buf = append(buf, kindArray)
		for _, el := range k {
			buf = appendKey(buf, el)
		}
		return append(buf, arrayTerm)
	default:
		panic(fmt.Errorf("unnormalized key %T", key))
	}
}

// encodeKey normalizes and encodes in one step.
func encodeKey(buf []byte, v any) ([]byte, error) {
	key, err := normalizeKey(v)
	if err != nil {
		return nil, err
	}
	return appendKey(buf, key), nil
}

// decodeKey decodes one key from the front of b and returns the remainder.
// Times come back in UTC.
func decodeKey(b []byte) (any, []byte, error) {
	if len(b) == 0 {
		return nil, nil, dataErrf(b, 0, nil, "empty key")
	}
	switch b[0] {
	case kindNumber:
		if len(b) < 9 {
			return nil, nil, dataErrf(b, 0, nil, "truncated number key")
		}
		bits := uint64BE(b[1:9])
		if bits&signMask != 0 {
			bits ^= signMask
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), b[9:], nil
	case kindTime:
		if len(b) < 9 {
			return nil, nil, dataErrf(b, 0, nil, "truncated time key")
		}
		nanos := int64(uint64BE(b[1:9]) ^ signMask)
		return time.Unix(0, nanos).UTC(), b[9:], nil
	case kindString:
		var sb strings.Builder
		i := 1
		for {
			if i >= len(b) {
				return nil, nil, dataErrf(b, i, nil, "unterminated string key")
			}
			c := b[i]
			if c != 0 {
				sb.WriteByte(c)
				i++
				continue
			}
			if i+1 >= len(b) {
				return nil, nil, dataErrf(b, i, nil, "unterminated string key")
			}
			switch b[i+1] {
			case 0xFF:
				sb.WriteByte(0)
				i += 2
			case 0x00:
				return sb.String(), b[i+2:], nil
			default:
				return nil, nil, dataErrf(b, i, nil, "malformed string key escape")
			}
		}
	case kindArray:
		var els []any
		rest := b[1:]
		for {
			if len(rest) == 0 {
				return nil, nil, dataErrf(b, len(b), nil, "unterminated array key")
			}
			if rest[0] == arrayTerm {
				if els == nil {
					els = []any{}
				}
				return els, rest[1:], nil
			}
			el, r, err := decodeKey(rest)
			if err != nil {
				return nil, nil, err
			}
			els = append(els, el)
			rest = r
		}
	default:
		return nil, nil, dataErrf(b, 0, nil, "unknown key tag 0x%02x", b[0])
	}
}

// decodeKeyFull decodes b as exactly one key with no trailing bytes.
func decodeKeyFull(b []byte) (any, error) {
	key, rest, err := decodeKey(b)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, dataErrf(b, len(b)-len(rest), nil, "trailing bytes after key")
	}
	return key, nil
}

func keyRank(k any) int {
	switch k.(type) {
	case float64:
		return 0
	case time.Time:
		return 1
	case string:
		return 2
	case []any:
		return 3
	default:
		panic(fmt.Errorf("unnormalized key %T", k))
	}
}

// compareKeys orders normalized keys: number < time < string < array,
// numbers numerically, strings bytewise, arrays element-wise with shorter
// prefixes first.
func compareKeys(a, b any) int {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case float64:
		return cmp.Compare(av, b.(float64))
	case time.Time:
		return av.Compare(b.(time.Time))
	case string:
		return strings.Compare(av, b.(string))
	case []any:
		bv := b.([]any)
		n := min(len(av), len(bv))
		for i := 0; i < n; i++ {
			if c := compareKeys(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av), len(bv))
	default:
		panic(fmt.Errorf("unnormalized key %T", a))
	}
}

func putUint64BE(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}

func uint64BE(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
