package envelope

import (
	"errors"
	"fmt"
	"math"
)

// ErrValueRange is returned when a native integer does not fit in 32 bits.
var ErrValueRange = errors.New("integer out of s32 range")

// Kind tags the type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindS32
	KindReal
	KindBoolean
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindS32:
		return "s32"
	case KindReal:
		return "real"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is one typed envelope value. Array and Map values nest arbitrarily.
// The zero Value is invalid.
type Value struct {
	kind Kind
	s    string
	i    int32
	r    float64
	b    bool
	arr  []Value
	m    map[string]Value
}

func String(s string) Value   { return Value{kind: KindString, s: s} }
func S32(i int32) Value       { return Value{kind: KindS32, i: i} }
func Real(r float64) Value    { return Value{kind: KindReal, r: r} }
func Boolean(b bool) Value    { return Value{kind: KindBoolean, b: b} }
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// Map builds a structured map value. The map is copied.
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func (v Value) Kind() Kind { return v.kind }

// IsStructured reports whether v is an array or map.
func (v Value) IsStructured() bool { return v.kind == KindArray || v.kind == KindMap }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsS32() (int32, bool)     { return v.i, v.kind == KindS32 }
func (v Value) AsReal() (float64, bool)  { return v.r, v.kind == KindReal }
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBoolean }

// Len returns the number of elements of an array or map value, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindMap:
		return len(v.m)
	}
	return 0
}

// Index returns element i of an array value.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// Field returns the entry for key of a map value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	f, ok := v.m[key]
	return f, ok
}

// Fields returns a copy of a map value's entries.
func (v Value) Fields() map[string]Value {
	if v.kind != KindMap {
		return nil
	}
	cp := make(map[string]Value, len(v.m))
	for k, f := range v.m {
		cp[k] = f
	}
	return cp
}

// Equal reports deep equality including kinds: S32(2) != Real(2).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindS32:
		return v.i == o.i
	case KindReal:
		return v.r == o.r || (math.IsNaN(v.r) && math.IsNaN(o.r))
	case KindBoolean:
		return v.b == o.b
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, f := range v.m {
			g, ok := o.m[k]
			if !ok || !f.Equal(g) {
				return false
			}
		}
		return true
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindS32:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.r)
	case KindBoolean:
		return fmt.Sprintf("%t", v.b)
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindMap:
		return fmt.Sprintf("%v", v.m)
	}
	return "<invalid>"
}

// Native converts v to a tree of plain Go values suitable for a generic
// encoder: string, int32, float64, bool, []any and map[string]any.
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindS32:
		return v.i
	case KindReal:
		return v.r
	case KindBoolean:
		return v.b
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Native()
		}
		return out
	}
	return nil
}

// FromNative converts a decoded tree back into a Value. Integer types
// narrow to S32 and fail with ErrValueRange when they do not fit; float
// types always become Real so the int/real distinction survives a round
// trip.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Boolean(t), nil
	case float32:
		return Real(float64(t)), nil
	case float64:
		return Real(t), nil
	case int:
		return fromInt64(int64(t))
	case int8:
		return S32(int32(t)), nil
	case int16:
		return S32(int32(t)), nil
	case int32:
		return S32(t), nil
	case int64:
		return fromInt64(t)
	case uint:
		return fromUint64(uint64(t))
	case uint8:
		return S32(int32(t)), nil
	case uint16:
		return S32(int32(t)), nil
	case uint32:
		return fromUint64(uint64(t))
	case uint64:
		return fromUint64(t)
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			v, err := FromNative(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromNative(e)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = v
		}
		return Value{kind: KindMap, m: m}, nil
	case map[any]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return Value{}, fmt.Errorf("non-string map key %T", k)
			}
			v, err := FromNative(e)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", ks, err)
			}
			m[ks] = v
		}
		return Value{kind: KindMap, m: m}, nil
	case nil:
		return Value{}, fmt.Errorf("nil value")
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func fromInt64(i int64) (Value, error) {
	if i < math.MinInt32 || i > math.MaxInt32 {
		return Value{}, ErrValueRange
	}
	return S32(int32(i)), nil
}

func fromUint64(u uint64) (Value, error) {
	if u > math.MaxInt32 {
		return Value{}, ErrValueRange
	}
	return S32(int32(u)), nil
}
