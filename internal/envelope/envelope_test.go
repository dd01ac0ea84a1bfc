package envelope

import (
	"errors"
	"math"
	"testing"
)

func TestSettersAndReaders(t *testing.T) {
	e := New(ClassMedia, "size_change").
		SetString("name", "tex").
		SetS32("width", 640).
		SetReal("factor", 1.5).
		SetBool("coords_opengl", true)

	if e.Class() != ClassMedia || e.Name() != "size_change" {
		t.Fatalf("class/name = %s/%s", e.Class(), e.Name())
	}
	if s, err := e.String("name"); err != nil || s != "tex" {
		t.Fatalf("String = %q, %v", s, err)
	}
	if i, err := e.S32("width"); err != nil || i != 640 {
		t.Fatalf("S32 = %d, %v", i, err)
	}
	if r, err := e.Real("factor"); err != nil || r != 1.5 {
		t.Fatalf("Real = %g, %v", r, err)
	}
	if b, err := e.Bool("coords_opengl"); err != nil || !b {
		t.Fatalf("Bool = %t, %v", b, err)
	}
	if got := e.Keys(); len(got) != 4 || got[0] != "coords_opengl" || got[3] != "width" {
		t.Fatalf("Keys = %v", got)
	}
}

func TestLaterSetReplaces(t *testing.T) {
	e := New(ClassMedia, "x").SetS32("k", 1).SetString("k", "two")
	if e.Len() != 1 {
		t.Fatalf("Len = %d, want 1", e.Len())
	}
	if _, err := e.S32("k"); !errors.Is(err, ErrWrongType) {
		t.Fatalf("S32 after replace: err = %v, want ErrWrongType", err)
	}
}

func TestMissingAndWrongType(t *testing.T) {
	e := New(ClassMedia, "x").SetS32("n", 2)

	if _, err := e.String("absent"); !errors.Is(err, ErrKeyNotPresent) {
		t.Fatalf("absent: err = %v", err)
	}
	// No coercion between s32 and real.
	if _, err := e.Real("n"); !errors.Is(err, ErrWrongType) {
		t.Fatalf("real from s32: err = %v", err)
	}
	if _, err := e.Structured("n"); !errors.Is(err, ErrWrongType) {
		t.Fatalf("structured from s32: err = %v", err)
	}
}

func TestOrReaders(t *testing.T) {
	e := New(ClassMedia, "texture_params").SetS32("depth", 4)

	if v, err := e.S32Or("default_width", 1024); err != nil || v != 1024 {
		t.Fatalf("S32Or absent = %d, %v", v, err)
	}
	if v, err := e.S32Or("depth", 3); err != nil || v != 4 {
		t.Fatalf("S32Or present = %d, %v", v, err)
	}
	if _, err := e.BoolOr("depth", false); !errors.Is(err, ErrWrongType) {
		t.Fatalf("BoolOr wrong type: err = %v", err)
	}
}

func TestSetStructuredRejectsScalar(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New(ClassMedia, "x").SetStructured("k", S32(1))
}

func TestNativeRoundTrip(t *testing.T) {
	v := Map(map[string]Value{
		"list": Array(S32(1), Real(2), String("three"), Boolean(false)),
		"nested": Map(map[string]Value{
			"deep": Array(Array(S32(-7))),
		}),
	})

	got, err := FromNative(v.Native())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(v) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got, v)
	}
}

func TestFromNativeIntegers(t *testing.T) {
	cases := []struct {
		in   any
		want int32
		err  bool
	}{
		{int8(-3), -3, false},
		{uint16(65535), 65535, false},
		{int64(math.MaxInt32), math.MaxInt32, false},
		{int64(math.MinInt32), math.MinInt32, false},
		{int64(math.MaxInt32) + 1, 0, true},
		{uint64(1 << 40), 0, true},
	}
	for _, c := range cases {
		v, err := FromNative(c.in)
		if c.err {
			if !errors.Is(err, ErrValueRange) {
				t.Fatalf("FromNative(%T %v): err = %v, want ErrValueRange", c.in, c.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("FromNative(%T %v): %v", c.in, c.in, err)
		}
		if i, ok := v.AsS32(); !ok || i != c.want {
			t.Fatalf("FromNative(%T %v) = %v", c.in, c.in, v)
		}
	}
}

func TestFromNativeAnyKeyedMap(t *testing.T) {
	v, err := FromNative(map[any]any{"a": true})
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := v.Field("a"); !ok || !f.Equal(Boolean(true)) {
		t.Fatalf("field a = %v", f)
	}
	if _, err := FromNative(map[any]any{1: true}); err == nil {
		t.Fatal("expected error for non-string key")
	}
}

func TestEnvelopeEqual(t *testing.T) {
	a := New(ClassMediaTime, "seek").SetReal("time", 2)
	b := New(ClassMediaTime, "seek").SetReal("time", 2)
	c := New(ClassMediaTime, "seek").SetS32("time", 2)
	if !a.Equal(b) {
		t.Fatal("a != b")
	}
	if a.Equal(c) {
		t.Fatal("real and s32 compared equal")
	}
}
