// Package jsondoc decodes JSON into an order-preserving tree.
//
// Objects decode to *Object so that key order in the source document survives
// decoding. Arrays decode to []any, numbers to float64, strings to string,
// booleans to bool and null to nil.
package jsondoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrInvalid is returned when the input is not a single well-formed JSON value.
var ErrInvalid = errors.New("invalid json")

// Object is a JSON object that remembers key insertion order.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// Decode parses data into an ordered tree.
func Decode(data []byte) (any, error) {
	if !json.Valid(data) {
		return nil, ErrInvalid
	}
	value, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return decodeValue(value, typ)
}

func decodeValue(raw []byte, typ jsonparser.ValueType) (any, error) {
	switch typ {
	case jsonparser.Object:
		return decodeObject(raw)
	case jsonparser.Array:
		return decodeArray(raw)
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: string: %v", ErrInvalid, err)
		}
		return s, nil
	case jsonparser.Number:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: number %q: %v", ErrInvalid, raw, err)
		}
		return f, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: boolean: %v", ErrInvalid, err)
		}
		return b, nil
	case jsonparser.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %q", ErrInvalid, raw)
	}
}

func decodeObject(raw []byte) (*Object, error) {
	obj := NewObject()
	err := jsonparser.ObjectEach(raw, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		k, err := jsonparser.ParseString(key)
		if err != nil {
			return fmt.Errorf("%w: key: %v", ErrInvalid, err)
		}
		v, err := decodeValue(value, typ)
		if err != nil {
			return err
		}
		obj.Set(k, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(raw []byte) ([]any, error) {
	items := []any{}
	var firstErr error
	_, err := jsonparser.ArrayEach(raw, func(value []byte, typ jsonparser.ValueType, _ int, err error) {
		if firstErr != nil {
			return
		}
		if err != nil {
			firstErr = err
			return
		}
		v, err := decodeValue(value, typ)
		if err != nil {
			firstErr = err
			return
		}
		items = append(items, v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: array: %v", ErrInvalid, err)
	}
	return items, nil
}

// Get looks up key on an object. It accepts both *Object and map[string]any;
// any other value reports false.
func Get(v any, key string) (any, bool) {
	switch obj := v.(type) {
	case *Object:
		if obj == nil {
			return nil, false
		}
		return obj.Get(key)
	case map[string]any:
		val, ok := obj[key]
		return val, ok
	}
	return nil, false
}

// IsObject reports whether v is a JSON object in either representation.
func IsObject(v any) bool {
	switch obj := v.(type) {
	case *Object:
		return obj != nil
	case map[string]any:
		return true
	}
	return false
}

// Pair is one key/value entry of an object.
type Pair struct {
	Key   string
	Value any
}

// Entries returns the entries of an object in document order. Plain maps
// have no order, so their keys are sorted to keep callers deterministic.
func Entries(v any) []Pair {
	switch obj := v.(type) {
	case *Object:
		if obj == nil {
			return nil
		}
		out := make([]Pair, 0, obj.Len())
		for p := obj.Oldest(); p != nil; p = p.Next() {
			out = append(out, Pair{Key: p.Key, Value: p.Value})
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Pair, 0, len(keys))
		for _, k := range keys {
			out = append(out, Pair{Key: k, Value: obj[k]})
		}
		return out
	}
	return nil
}

// Plain converts an ordered tree into map[string]any / []any so that generic
// JSON tooling can consume it. Plain inputs are copied the same way.
func Plain(v any) any {
	switch val := v.(type) {
	case *Object, map[string]any:
		entries := Entries(val)
		out := make(map[string]any, len(entries))
		for _, e := range entries {
			out[e.Key] = Plain(e.Value)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Plain(item)
		}
		return out
	default:
		return val
	}
}
