// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: spec §1, which keeps "the serialization library (a
// JSON-style dynamic value type)" out of scope as a collaborator referenced
// only through its interface. Since this module must still interoperate
// with real JSON-RPC clients on the wire (spec §4.5, §6), sobj supplies a
// minimal stand-in, modeled on the read/construct shape of
// tidwall/gjson's Result (observed elsewhere in the retrieval pack) but
// built on top of encoding/json rather than a hand-rolled parser, since
// the wire format genuinely is JSON and there is no reason to reimplement
// a JSON tokenizer.

// Package sobj implements a small JSON-style dynamic value type used as
// the payload of JSON-RPC requests, replies, and notifications (spec
// §4.5).
package sobj

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the shape of a [Value].
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a dynamic JSON-style value: null, bool, number, string, array,
// or object. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Null returns the null [Value].
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean [Value].
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric [Value].
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int returns a numeric [Value] from an integer, for the common case of
// building responses around counts and indices.
func Int(n int) Value { return Number(float64(n)) }

// String returns a string [Value].
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array [Value] containing items in order.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Object returns an empty object [Value]; use [Value.Set] to populate it.
func Object() Value { return Value{kind: KindObject, obj: map[string]Value{}} }

// Kind returns v's shape.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null (including the zero Value).
func (v Value) IsNull() bool { return v.kind == KindNull }

// Set returns an object [Value] equal to v with key bound to val. v must
// be an object (or null, treated as an empty object); Set does not mutate
// v's underlying map in place when v is shared, since map[string]Value
// backing a Value is only ever written through Set itself before the
// Value is published.
func (v Value) Set(key string, val Value) Value {
	if v.kind == KindNull {
		v = Object()
	}
	next := make(map[string]Value, len(v.obj)+1)
	for k, existing := range v.obj {
		next[k] = existing
	}
	next[key] = val
	return Value{kind: KindObject, obj: next}
}

// Get returns the value bound to key in an object [Value], and whether
// key was present.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Null(), false
	}
	val, ok := v.obj[key]
	return val, ok
}

// Index returns the item at i in an array [Value]. It returns null and
// false if v is not an array or i is out of range.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Null(), false
	}
	return v.arr[i], true
}

// Len returns the number of elements in an array [Value], or the number
// of keys in an object [Value]; 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Bool returns v's boolean value, or false if v is not a bool.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// Number returns v's numeric value, or 0 if v is not a number.
func (v Value) Number() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return v.n
}

// Int returns v's numeric value truncated to an int.
func (v Value) Int() int { return int(v.Number()) }

// String returns v's string value, or "" if v is not a string.
func (v Value) String() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.kind == KindString }

// IsArray reports whether v holds an array.
func (v Value) IsArray() bool { return v.kind == KindArray }

// IsObject reports whether v holds an object.
func (v Value) IsObject() bool { return v.kind == KindObject }

// MarshalJSON implements [json.Marshaler].
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toAny())
}

func (v Value) toAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.toAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.toAny()
		}
		return out
	default:
		return nil
	}
}

// UnmarshalJSON implements [json.Unmarshaler].
func (v *Value) UnmarshalJSON(data []byte) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*v = fromAny(decoded)
	return nil
}

func fromAny(in any) Value {
	switch x := in.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case string:
		return String(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = fromAny(item)
		}
		return Array(items...)
	case map[string]any:
		v := Object()
		for k, item := range x {
			v = v.Set(k, fromAny(item))
		}
		return v
	default:
		return Null()
	}
}

// Parse decodes a single JSON value from data.
func Parse(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Null(), fmt.Errorf("sobj: parse: %w", err)
	}
	return v, nil
}

// Marshal encodes v as JSON.
func Marshal(v Value) ([]byte, error) {
	return json.Marshal(v)
}
