package media

import (
	"strings"

	"github.com/chronologos/mediaplug/internal/envelope"
)

// Modifiers is a mask of held modifier keys.
type Modifiers uint8

const (
	ModControl Modifiers = 1 << iota
	ModAlt
	ModShift
)

// String encodes the mask the way plugins expect: "control|alt|shift|".
func (m Modifiers) String() string {
	var b strings.Builder
	if m&ModControl != 0 {
		b.WriteString("control|")
	}
	if m&ModAlt != 0 {
		b.WriteString("alt|")
	}
	if m&ModShift != 0 {
		b.WriteString("shift|")
	}
	return b.String()
}

type MouseEventType int

const (
	MouseDown MouseEventType = iota
	MouseUp
	MouseMove
	MouseDoubleClick
)

func (t MouseEventType) String() string {
	switch t {
	case MouseDown:
		return "down"
	case MouseUp:
		return "up"
	case MouseMove:
		return "move"
	case MouseDoubleClick:
		return "double_click"
	}
	return ""
}

type KeyEventType int

const (
	KeyDown KeyEventType = iota
	KeyUp
	KeyRepeat
)

func (t KeyEventType) String() string {
	switch t {
	case KeyDown:
		return "down"
	case KeyUp:
		return "up"
	case KeyRepeat:
		return "repeat"
	}
	return ""
}

// Key codes. Printable characters use their ASCII value; everything from
// KeySpecial up is a named key.
const (
	KeySpecial   = 0x80
	KeyReturn    = 0x81
	KeyLeft      = 0x82
	KeyRight     = 0x83
	KeyUp        = 0x84
	KeyDown      = 0x85
	KeyEscape    = 0x86
	KeyBackspace = 0x87
	KeyDelete    = 0x88
	KeyShift     = 0x89
	KeyControl   = 0x8A
	KeyAlt       = 0x8B
	KeyHome      = 0x8C
	KeyEnd       = 0x8D
	KeyPageUp    = 0x8E
	KeyPageDown  = 0x8F
	KeyInsert    = 0x92
	KeyCapsLock  = 0x93
	KeyTab       = 0x94
	KeyF1        = 0xA0
	KeyPadReturn = 0xB6
)

// forwardedKey reports whether plugins handle key through key_event. Other
// special keys must go through the caller's text input path.
func forwardedKey(key int) bool {
	switch key {
	case KeyBackspace, KeyTab, KeyReturn, KeyPadReturn, KeyShift,
		KeyControl, KeyAlt, KeyCapsLock, KeyEscape, KeyPageUp,
		KeyPageDown, KeyEnd, KeyHome, KeyLeft, KeyUp, KeyRight,
		KeyDown, KeyInsert, KeyDelete:
		return true
	}
	return key < KeySpecial
}

// nativeKeyData passes v through, substituting an empty map for the zero
// Value.
func nativeKeyData(v envelope.Value) envelope.Value {
	if !v.IsStructured() {
		return envelope.Map(nil)
	}
	return v
}

// MouseEvent sends a mouse_event. Moves are dropped while the plugin cannot
// take them and when the position has not changed. y is flipped unless the
// plugin asked for OpenGL coordinates.
func (c *Controller) MouseEvent(t MouseEventType, button, x, y int, mods Modifiers) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t == MouseMove {
		if !c.runningLocked() {
			return
		}
		if x == c.lastMouseX && y == c.lastMouseY {
			return
		}
		c.lastMouseX, c.lastMouseY = x, y
	}
	if !c.tex.coordsOpenGL {
		y = c.mediaH - y
	}
	c.sendLocked(envelope.New(envelope.ClassMedia, "mouse_event").
		SetString("event", t.String()).
		SetS32("button", int32(button)).
		SetS32("x", int32(x)).
		SetS32("y", int32(y)).
		SetString("modifiers", mods.String()))
}

// KeyEvent sends a key_event and reports whether the plugin will handle
// the key. Unhandled keys are not sent.
func (c *Controller) KeyEvent(t KeyEventType, key int, mods Modifiers, native envelope.Value) bool {
	if !forwardedKey(key) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(envelope.New(envelope.ClassMedia, "key_event").
		SetString("event", t.String()).
		SetS32("key", int32(key)).
		SetString("modifiers", mods.String()).
		SetStructured("native_key_data", nativeKeyData(native)))
	return true
}

func (c *Controller) ScrollEvent(x, y, clicksX, clicksY int, mods Modifiers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(envelope.New(envelope.ClassMedia, "scroll_event").
		SetS32("x", int32(x)).
		SetS32("y", int32(y)).
		SetS32("clicks_x", int32(clicksX)).
		SetS32("clicks_y", int32(clicksY)).
		SetString("modifiers", mods.String()))
}

// TextInput sends composed text. Plugins always accept it.
func (c *Controller) TextInput(text string, mods Modifiers, native envelope.Value) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(envelope.New(envelope.ClassMedia, "text_event").
		SetString("text", text).
		SetString("modifiers", mods.String()).
		SetStructured("native_key_data", nativeKeyData(native)))
	return true
}
