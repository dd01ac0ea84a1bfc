package media

import (
	"image"

	"github.com/chronologos/mediaplug/internal/envelope"
)

// SetSize overrides the media size. A non-positive dimension clears the
// override so the natural or default size applies again.
func (c *Controller) SetSize(w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w > 0 && h > 0 {
		c.setW, c.setH = w, h
	} else {
		c.setW, c.setH = -1, -1
	}
	c.setSizeLocked()
}

// SetAutoScale rounds the requested size up to powers of two.
func (c *Controller) SetAutoScale(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on == c.autoScale {
		return
	}
	c.autoScale = on
	c.setSizeLocked()
}

func (c *Controller) AutoScale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoScale
}

// SetBackgroundColor sets the colour sent with the next size change.
func (c *Controller) SetBackgroundColor(col Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.background = col
}

// setSizeLocked recomputes the requested size. The plugin is told on the
// next Idle.
func (c *Controller) setSizeLocked() {
	maxDim := c.cfg.MaxTextureDimension
	if c.cfg.HiDPI {
		maxDim = 0
	}
	c.reqW, c.reqH, c.fullW, c.fullH = requestSize(sizeInputs{
		setW:       c.setW,
		setH:       c.setH,
		naturalW:   c.naturalW,
		naturalH:   c.naturalH,
		defaultW:   c.defaultW,
		defaultH:   c.defaultH,
		downsample: c.allowDownsample && c.priority.downsamples(),
		limit:      c.lowLimit,
		autoScale:  c.autoScale,
		maxDim:     maxDim,
	})
}

// sizeChangeDueLocked reports whether the plugin should be told about a
// new size: its texture format is known, no change is in flight, it can
// take messages and the requested size differs from the confirmed one.
func (c *Controller) sizeChangeDueLocked() bool {
	return c.paramsReceived &&
		c.mediaW != -1 &&
		c.runningLocked() &&
		(c.reqW != c.mediaW || c.reqH != c.mediaH)
}

// startSizeChangeLocked sizes the texture, reallocates shared memory when
// the byte size changed and sends size_change ahead of queued messages.
func (c *Controller) startSizeChangeLocked() {
	texW, texH, ok := textureLayout(c.reqW, c.reqH, c.tex.depth, c.padding)
	if !ok {
		c.log.Warn("unable to pad texture width, padding is not a multiple of pixel size",
			"padding", c.padding, "depth", c.tex.depth)
	}
	c.reqTexW, c.reqTexH = texW, texH

	size := textureBytes(texW, texH, c.tex.depth)
	if size != c.shmSize {
		if c.shmName != "" {
			c.adapter.RemoveSharedMemory(c.shmName)
			c.shmName = ""
		}
		c.shmSize = size
		c.shmName = c.adapter.AddSharedMemory(size)
		if c.shmName == "" {
			c.log.Warn("could not allocate texture memory", "size", size)
		} else if bits := c.adapter.SharedMemory(c.shmName); bits != nil {
			clear(bits)
		} else {
			c.log.Warn("no texture memory found", "name", c.shmName)
		}
	}

	// In flight until size_change_response.
	c.texW, c.texH, c.mediaW, c.mediaH = -1, -1, -1, -1
	c.dirty = image.Rectangle{}

	c.log.Debug("sending size_change", "width", c.reqW, "height", c.reqH,
		"texture_width", texW, "texture_height", texH, "name", c.shmName)
	c.sendUrgentLocked(envelope.New(envelope.ClassMedia, "size_change").
		SetString("name", c.shmName).
		SetS32("width", int32(c.reqW)).
		SetS32("height", int32(c.reqH)).
		SetS32("texture_width", int32(texW)).
		SetS32("texture_height", int32(texH)).
		SetReal("background_r", c.background.R).
		SetReal("background_g", c.background.G).
		SetReal("background_b", c.background.B).
		SetReal("background_a", c.background.A))
}

// TextureValid reports whether Bits holds a frame of the requested size.
func (c *Controller) TextureValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paramsReceived &&
		c.texW > 0 && c.texH > 0 &&
		c.mediaW > 0 && c.mediaW == c.reqW &&
		c.mediaH > 0 && c.mediaH == c.reqH &&
		c.bitsLocked() != nil
}

// Bits returns the shared pixel buffer, or nil. The buffer is not guarded
// by the controller lock; check TextureValid before reading it.
func (c *Controller) Bits() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitsLocked()
}

func (c *Controller) bitsLocked() []byte {
	if c.adapter == nil || c.shmName == "" {
		return nil
	}
	return c.adapter.SharedMemory(c.shmName)
}

// Dirty returns the damage accumulated since the last reset.
func (c *Controller) Dirty() (image.Rectangle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty, !c.dirty.Empty()
}

func (c *Controller) ResetDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = image.Rectangle{}
}

// SizeInfo is a snapshot of the negotiation state. Confirmed sizes are -1
// while a change is in flight.
type SizeInfo struct {
	SetWidth, SetHeight                 int
	NaturalWidth, NaturalHeight         int
	DefaultWidth, DefaultHeight         int
	RequestedWidth, RequestedHeight     int
	RequestedTextureWidth               int
	RequestedTextureHeight              int
	FullWidth, FullHeight               int
	TextureWidth, TextureHeight         int
	MediaWidth, MediaHeight             int
	SharedMemorySize                    int
	SharedMemoryName                    string
	Depth, InternalFormat, Format, Type int
	SwapBytes, CoordsOpenGL             bool
	ParamsKnown, AllowDownsample        bool
	Padding                             int
}

func (c *Controller) Sizes() SizeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SizeInfo{
		SetWidth: c.setW, SetHeight: c.setH,
		NaturalWidth: c.naturalW, NaturalHeight: c.naturalH,
		DefaultWidth: c.defaultW, DefaultHeight: c.defaultH,
		RequestedWidth: c.reqW, RequestedHeight: c.reqH,
		RequestedTextureWidth: c.reqTexW, RequestedTextureHeight: c.reqTexH,
		FullWidth: c.fullW, FullHeight: c.fullH,
		TextureWidth: c.texW, TextureHeight: c.texH,
		MediaWidth: c.mediaW, MediaHeight: c.mediaH,
		SharedMemorySize: c.shmSize, SharedMemoryName: c.shmName,
		Depth: c.tex.depth, InternalFormat: c.tex.internalFormat,
		Format: c.tex.format, Type: c.tex.pixelType,
		SwapBytes: c.tex.swapBytes, CoordsOpenGL: c.tex.coordsOpenGL,
		ParamsKnown: c.paramsReceived, AllowDownsample: c.allowDownsample,
		Padding: c.padding,
	}
}

// TextureWidth is the confirmed texture width rounded up to a power of
// two, as GL consumers allocate it.
func (c *Controller) TextureWidth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return nextPowerOf2(c.texW)
}

func (c *Controller) TextureHeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return nextPowerOf2(c.texH)
}

func (c *Controller) MediaSize() (w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaW, c.mediaH
}

func (c *Controller) RequestedSize() (w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reqW, c.reqH
}

// FullSize is the requested size before downscaling and rounding.
func (c *Controller) FullSize() (w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullW, c.fullH
}
