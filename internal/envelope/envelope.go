// Package envelope defines the message unit exchanged between the media
// controller and a plugin process: a class (namespace), a name (verb) and a
// set of typed values keyed by string.
//
// The envelope does no schema checking. Readers fail with ErrKeyNotPresent
// or ErrWrongType instead of coercing; callers probe optional keys with
// HasValue first.
package envelope

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrKeyNotPresent = errors.New("key not present")
	ErrWrongType     = errors.New("value has wrong type")
)

// Message classes.
const (
	ClassMedia        = "media"
	ClassMediaBrowser = "media_browser"
	ClassMediaTime    = "media_time"
	ClassInternal     = "internal"
)

// Envelope is one protocol message. It is built right before being queued
// or sent and must not be mutated after that.
type Envelope struct {
	class  string
	name   string
	values map[string]Value
}

// New returns an empty envelope for class/name.
func New(class, name string) *Envelope {
	return &Envelope{class: class, name: name, values: make(map[string]Value)}
}

func (e *Envelope) Class() string { return e.class }
func (e *Envelope) Name() string  { return e.name }

// Is reports whether the envelope has the given class and name.
func (e *Envelope) Is(class, name string) bool {
	return e.class == class && e.name == name
}

// Set stores v under key, replacing any previous value.
func (e *Envelope) Set(key string, v Value) *Envelope {
	e.values[key] = v
	return e
}

func (e *Envelope) SetString(key, s string) *Envelope    { return e.Set(key, String(s)) }
func (e *Envelope) SetS32(key string, i int32) *Envelope { return e.Set(key, S32(i)) }
func (e *Envelope) SetReal(key string, r float64) *Envelope {
	return e.Set(key, Real(r))
}
func (e *Envelope) SetBool(key string, b bool) *Envelope { return e.Set(key, Boolean(b)) }

// SetStructured stores an array or map value. Scalars are rejected.
func (e *Envelope) SetStructured(key string, v Value) *Envelope {
	if !v.IsStructured() {
		panic(fmt.Sprintf("envelope: SetStructured(%q) with %s value", key, v.Kind()))
	}
	return e.Set(key, v)
}

func (e *Envelope) HasValue(key string) bool {
	_, ok := e.values[key]
	return ok
}

// Value returns the raw value for key.
func (e *Envelope) Value(key string) (Value, bool) {
	v, ok := e.values[key]
	return v, ok
}

func (e *Envelope) lookup(key string, want Kind) (Value, error) {
	v, ok := e.values[key]
	if !ok {
		return Value{}, fmt.Errorf("%s/%s %q: %w", e.class, e.name, key, ErrKeyNotPresent)
	}
	if v.kind != want {
		return Value{}, fmt.Errorf("%s/%s %q is %s, want %s: %w", e.class, e.name, key, v.kind, want, ErrWrongType)
	}
	return v, nil
}

func (e *Envelope) String(key string) (string, error) {
	v, err := e.lookup(key, KindString)
	return v.s, err
}

func (e *Envelope) S32(key string) (int32, error) {
	v, err := e.lookup(key, KindS32)
	return v.i, err
}

func (e *Envelope) Real(key string) (float64, error) {
	v, err := e.lookup(key, KindReal)
	return v.r, err
}

func (e *Envelope) Bool(key string) (bool, error) {
	v, err := e.lookup(key, KindBoolean)
	return v.b, err
}

// Structured returns an array or map value.
func (e *Envelope) Structured(key string) (Value, error) {
	v, ok := e.values[key]
	if !ok {
		return Value{}, fmt.Errorf("%s/%s %q: %w", e.class, e.name, key, ErrKeyNotPresent)
	}
	if !v.IsStructured() {
		return Value{}, fmt.Errorf("%s/%s %q is %s, want structured: %w", e.class, e.name, key, v.kind, ErrWrongType)
	}
	return v, nil
}

// Keys returns the envelope's keys in sorted order.
func (e *Envelope) Keys() []string {
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Envelope) Len() int { return len(e.values) }

// Equal reports whether two envelopes carry the same class, name and values.
func (e *Envelope) Equal(o *Envelope) bool {
	if e.class != o.class || e.name != o.name || len(e.values) != len(o.values) {
		return false
	}
	for k, v := range e.values {
		w, ok := o.values[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Params returns the values as a native tree for encoding.
func (e *Envelope) Params() map[string]any {
	out := make(map[string]any, len(e.values))
	for k, v := range e.values {
		out[k] = v.Native()
	}
	return out
}

// FromParams builds an envelope from a decoded native tree.
func FromParams(class, name string, params map[string]any) (*Envelope, error) {
	e := New(class, name)
	for k, x := range params {
		v, err := FromNative(x)
		if err != nil {
			return nil, fmt.Errorf("%s/%s %q: %w", class, name, k, err)
		}
		e.values[k] = v
	}
	return e, nil
}

func (e *Envelope) GoString() string {
	return fmt.Sprintf("%s/%s%v", e.class, e.name, e.values)
}

// StringOr returns the string under key, or def when the key is absent.
// A present value of another type is still an error.
func (e *Envelope) StringOr(key, def string) (string, error) {
	if !e.HasValue(key) {
		return def, nil
	}
	return e.String(key)
}

func (e *Envelope) S32Or(key string, def int32) (int32, error) {
	if !e.HasValue(key) {
		return def, nil
	}
	return e.S32(key)
}

func (e *Envelope) RealOr(key string, def float64) (float64, error) {
	if !e.HasValue(key) {
		return def, nil
	}
	return e.Real(key)
}

func (e *Envelope) BoolOr(key string, def bool) (bool, error) {
	if !e.HasValue(key) {
		return def, nil
	}
	return e.Bool(key)
}
