package media

// maxRequestDim bounds every requested dimension, even with the clamp
// lifted, so power-of-two and padded texture sizes still fit an s32.
const maxRequestDim = 1 << 30

// nextPowerOf2 returns the smallest power of two >= v, and 1 for v <= 1.
func nextPowerOf2(v int) int {
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

// sizeInputs is everything the requested media size depends on.
type sizeInputs struct {
	setW, setH         int // owner override, -1 for none
	naturalW, naturalH int // reported by the plugin
	defaultW, defaultH int // from texture_params

	downsample bool // plugin allows it and priority calls for it
	limit      int  // low priority size limit
	autoScale  bool
	maxDim     int // 0 disables the clamp
}

// requestSize resolves the media size to ask the plugin for. full is the
// size before downscaling and rounding.
func requestSize(in sizeInputs) (w, h, fullW, fullH int) {
	switch {
	case in.setW > 0 && in.setH > 0:
		w, h = in.setW, in.setH
	case in.naturalW > 0 && in.naturalH > 0:
		w, h = in.naturalW, in.naturalH
	default:
		w, h = in.defaultW, in.defaultH
	}
	w, h = min(w, maxRequestDim), min(h, maxRequestDim)
	fullW, fullH = w, h

	if in.downsample && in.limit > 0 {
		for w > in.limit || h > in.limit {
			w /= 2
			h /= 2
		}
	}
	if in.autoScale {
		w = nextPowerOf2(w)
		h = nextPowerOf2(h)
	}
	if in.maxDim > 0 {
		w = min(w, in.maxDim)
		h = min(h, in.maxDim)
	}
	return w, h, fullW, fullH
}

// textureLayout sizes the backing texture for a w x h media area. A
// negative padding asks for a power-of-two width; padding > 1 rounds the
// row stride up to a multiple of padding bytes. ok is false when that
// stride cannot be expressed in whole pixels, in which case the width is
// left unpadded.
func textureLayout(w, h, depth, padding int) (texW, texH int, ok bool) {
	texH = h
	switch {
	case padding < 0:
		return nextPowerOf2(w), texH, true
	case padding > 1 && depth > 0:
		rowBytes := w * depth
		if pad := rowBytes % padding; pad != 0 {
			rowBytes += padding - pad
		}
		if rowBytes%depth != 0 {
			return w, texH, false
		}
		return rowBytes / depth, texH, true
	}
	return w, texH, true
}

// textureBytes is the shared memory needed for a texture, including one
// spare row.
func textureBytes(texW, texH, depth int) int {
	return texW*texH*depth + texW*depth
}
