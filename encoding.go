package odb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Document is a schemaless record. Decoded documents are normalized: numbers
// come back as float64, nested maps as map[string]any, arrays as []any, and
// times in UTC.
type Document map[string]any

type encodingMethod int

const (
	MsgPack encodingMethod = iota
	JSON

	defaultValueEncoding = MsgPack
)

func (enc encodingMethod) EncodeValue(buf []byte, obj any) []byte {
	switch enc {
	case MsgPack:
		bb := bytesBuilder{buf}
		e := msgpack.GetEncoder()
		e.ResetDict(&bb, nil)
		e.SetSortMapKeys(true)
		err := e.Encode(obj)
		msgpack.PutEncoder(e)
		if err != nil {
			panic(fmt.Errorf("failed to encode %T using MsgPack: %w", obj, err))
		}
		return bb.Buf
	case JSON:
		raw, err := json.Marshal(obj)
		if err != nil {
			panic(fmt.Errorf("failed to encode %T to JSON: %w", obj, err))
		}
		return appendRaw(buf, raw)
	default:
		panic("unsupported encoding")
	}
}

func (enc encodingMethod) DecodeValue(buf []byte, objPtr any) error {
	switch enc {
	case MsgPack:
		var r bytes.Reader
		r.Reset(buf)
		dec := msgpack.GetDecoder()
		dec.ResetDict(&r, nil)
		err := dec.Decode(objPtr)
		msgpack.PutDecoder(dec)
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode msgpack into %T", objPtr)
		}
		return nil
	case JSON:
		err := json.Unmarshal(buf, objPtr)
		if err != nil {
			return dataErrf(buf, 0, err, "failed to decode JSON into %T", objPtr)
		}
		return nil
	default:
		panic("unsupported encoding")
	}
}

func encodeDoc(buf []byte, doc Document) []byte {
	return defaultValueEncoding.EncodeValue(buf, map[string]any(doc))
}

func decodeDoc(raw []byte) (Document, error) {
	var m map[string]any
	if err := defaultValueEncoding.DecodeValue(raw, &m); err != nil {
		return nil, err
	}
	return normalizeDoc(m), nil
}

func normalizeDoc(m map[string]any) Document {
	if m == nil {
		return nil
	}
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return Document(m)
}

// normalizeValue maps decoded values onto the canonical document model.
// Mutates maps and slices in place.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, el := range t {
			t[k] = normalizeValue(el)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = normalizeValue(el)
		}
		return t
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
