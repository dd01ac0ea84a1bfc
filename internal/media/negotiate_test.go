package media

import (
	"math"
	"testing"
)

func TestNextPowerOf2(t *testing.T) {
	cases := map[int]int{-5: 1, 0: 1, 1: 1, 2: 2, 3: 4, 255: 256, 256: 256, 257: 512, 1920: 2048}
	for in, want := range cases {
		if got := nextPowerOf2(in); got != want {
			t.Fatalf("nextPowerOf2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRequestSizePrecedence(t *testing.T) {
	in := sizeInputs{setW: -1, setH: -1, defaultW: 1024, defaultH: 768}
	if w, h, _, _ := requestSize(in); w != 1024 || h != 768 {
		t.Fatalf("default: %dx%d", w, h)
	}
	in.naturalW, in.naturalH = 1280, 720
	if w, h, _, _ := requestSize(in); w != 1280 || h != 720 {
		t.Fatalf("natural: %dx%d", w, h)
	}
	in.setW, in.setH = 640, 480
	if w, h, _, _ := requestSize(in); w != 640 || h != 480 {
		t.Fatalf("set: %dx%d", w, h)
	}
}

func TestRequestSizeDownsample(t *testing.T) {
	w, h, fullW, fullH := requestSize(sizeInputs{
		setW: -1, setH: -1,
		defaultW: 1920, defaultH: 1080,
		downsample: true, limit: 256,
	})
	if w != 240 || h != 135 {
		t.Fatalf("got %dx%d, want 240x135", w, h)
	}
	if fullW != 1920 || fullH != 1080 {
		t.Fatalf("full %dx%d, want 1920x1080", fullW, fullH)
	}
}

func TestRequestSizeDownsampleBound(t *testing.T) {
	for _, limit := range []int{1, 64, 256, 1024} {
		for w := 1; w < 5000; w += 97 {
			for h := 1; h < 5000; h += 131 {
				gw, gh, _, _ := requestSize(sizeInputs{
					setW: w, setH: h, downsample: true, limit: limit,
				})
				if gw > limit || gh > limit {
					t.Fatalf("limit %d: %dx%d -> %dx%d", limit, w, h, gw, gh)
				}
			}
		}
	}
}

func TestRequestSizeAutoScaleAndClamp(t *testing.T) {
	w, h, _, _ := requestSize(sizeInputs{setW: 300, setH: 200, autoScale: true})
	if w != 512 || h != 256 {
		t.Fatalf("auto scale: %dx%d, want 512x256", w, h)
	}
	w, h, _, _ = requestSize(sizeInputs{setW: 5000, setH: 300, autoScale: true, maxDim: 4096})
	if w != 4096 || h != 512 {
		t.Fatalf("clamped: %dx%d, want 4096x512", w, h)
	}
	w, _, _, _ = requestSize(sizeInputs{setW: 5000, setH: 300})
	if w != 5000 {
		t.Fatalf("no clamp: width %d", w)
	}
}

func TestTextureLayout(t *testing.T) {
	cases := []struct {
		w, depth, padding int
		wantW             int
		wantOK            bool
	}{
		{w: 250, depth: 4, padding: 0, wantW: 250, wantOK: true},
		{w: 250, depth: 4, padding: 1, wantW: 250, wantOK: true},
		{w: 250, depth: 4, padding: 64, wantW: 256, wantOK: true},
		{w: 256, depth: 4, padding: 64, wantW: 256, wantOK: true},
		{w: 300, depth: 4, padding: -1, wantW: 512, wantOK: true},
		{w: 10, depth: 3, padding: 4, wantW: 10, wantOK: false},
	}
	for _, tc := range cases {
		w, h, ok := textureLayout(tc.w, 7, tc.depth, tc.padding)
		if w != tc.wantW || h != 7 || ok != tc.wantOK {
			t.Fatalf("textureLayout(%d, 7, %d, %d) = %d, %d, %v; want %d, 7, %v",
				tc.w, tc.depth, tc.padding, w, h, ok, tc.wantW, tc.wantOK)
		}
	}
}

func TestTextureBytesHasSpareRow(t *testing.T) {
	if got := textureBytes(240, 135, 4); got != 240*135*4+240*4 {
		t.Fatalf("textureBytes = %d", got)
	}
}

func FuzzRequestSize(f *testing.F) {
	f.Add(1920, 1080, 256, true, false)
	f.Add(300, 200, 0, false, true)
	f.Fuzz(func(t *testing.T, w, h, limit int, downsample, autoScale bool) {
		if w <= 0 || h <= 0 || w > 1<<20 || h > 1<<20 || limit > 1<<20 {
			return
		}
		gw, gh, fw, fh := requestSize(sizeInputs{
			setW: w, setH: h, downsample: downsample, limit: limit,
			autoScale: autoScale, maxDim: DefaultMaxTextureDimension,
		})
		if fw != w || fh != h {
			t.Fatalf("full %dx%d, want %dx%d", fw, fh, w, h)
		}
		if gw > DefaultMaxTextureDimension || gh > DefaultMaxTextureDimension {
			t.Fatalf("%dx%d exceeds clamp", gw, gh)
		}
		if downsample && limit > 0 && !autoScale && (gw > limit || gh > limit) {
			t.Fatalf("%dx%d exceeds limit %d", gw, gh, limit)
		}
	})
}

func TestRequestSizeFitsS32(t *testing.T) {
	tests := []struct {
		name string
		in   sizeInputs
	}{
		{"unclamped override", sizeInputs{setW: math.MaxInt, setH: 1 << 40}},
		{"unclamped autoscale", sizeInputs{setW: math.MaxInt32, setH: math.MaxInt32 - 1, autoScale: true}},
		{"natural at s32 max", sizeInputs{setW: -1, setH: -1, naturalW: math.MaxInt32, naturalH: math.MaxInt32, autoScale: true}},
	}
	for _, tt := range tests {
		w, h, fullW, fullH := requestSize(tt.in)
		for _, v := range []int{w, h, fullW, fullH} {
			if v <= 0 || v > math.MaxInt32 {
				t.Fatalf("%s: size %dx%d full %dx%d outside s32", tt.name, w, h, fullW, fullH)
			}
		}
		for _, padding := range []int{-1, 0, 64} {
			texW, texH, _ := textureLayout(w, h, 4, padding)
			if texW <= 0 || texW > math.MaxInt32 || texH <= 0 || texH > math.MaxInt32 {
				t.Fatalf("%s: padding %d texture %dx%d outside s32", tt.name, padding, texW, texH)
			}
		}
	}
}
