package host

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/chronologos/mediaplug/internal/coalesce"
	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/version"
)

// mediaPlugin is a plugin built into the host binary.
type mediaPlugin interface {
	version() string
	classVersions() map[string]string
	handle(e *envelope.Envelope) error
	tick(dt time.Duration) error
	// timer fires when coalesced damage is due; nil when nothing is pending.
	timer() <-chan time.Time
	flush() error
	segmentRemoved(name string)
	close()
}

// plugins maps the load_plugin file name to a constructor.
var plugins = map[string]func(h *Host) mediaPlugin{
	TestPatternPlugin: newTestPattern,
}

// TestPatternPlugin is the name of the built-in test-pattern plugin.
const TestPatternPlugin = "testpattern"

// GL enums reported in texture_params.
const (
	glRGBA         = 0x1908
	glBGRA         = 0x80E1
	glUnsignedByte = 0x1401
)

const (
	patternDepth      = 4
	patternDefaultW   = 1024
	patternDefaultH   = 1024
	patternNaturalW   = 1280
	patternNaturalH   = 720
	patternDuration   = 10.0 // seconds of simulated media
	progressBarHeight = 8
)

// testPattern draws moving colour bars into the shared texture and
// simulates a browser and a timed media source.
type testPattern struct {
	h *Host

	segName string
	width   int
	height  int
	texW    int
	texH    int
	bg      [4]float64
	offset  int
	coal    *coalesce.Coalescer

	history []string
	histPos int

	playing bool
	looping bool
	current float64
	rate    float64
	volume  float64
	debug   bool
}

func newTestPattern(h *Host) mediaPlugin {
	return &testPattern{h: h, histPos: -1, volume: 1}
}

func (p *testPattern) version() string { return "testpattern " + version.VERSION }

func (p *testPattern) classVersions() map[string]string {
	return map[string]string{
		envelope.ClassMedia:        "1.0",
		envelope.ClassMediaBrowser: "1.0",
		envelope.ClassMediaTime:    "1.0",
	}
}

func (p *testPattern) send(e *envelope.Envelope) error { return p.h.send(e) }

func (p *testPattern) setStatus(status string) error {
	return p.send(envelope.New(envelope.ClassMedia, "media_status").SetString("status", status))
}

func (p *testPattern) handle(e *envelope.Envelope) error {
	switch e.Class() {
	case envelope.ClassMedia:
		return p.handleMedia(e)
	case envelope.ClassMediaBrowser:
		return p.handleBrowser(e)
	case envelope.ClassMediaTime:
		return p.handleTime(e)
	}
	p.h.log.Warn("unknown message class", "class", e.Class(), "name", e.Name())
	return nil
}

func (p *testPattern) handleMedia(e *envelope.Envelope) error {
	switch e.Name() {
	case "init":
		if err := p.send(envelope.New(envelope.ClassMedia, "texture_params").
			SetS32("depth", patternDepth).
			SetS32("internalformat", glRGBA).
			SetS32("format", glBGRA).
			SetS32("type", glUnsignedByte).
			SetBool("swap_bytes", false).
			SetBool("coords_opengl", false).
			SetS32("default_width", patternDefaultW).
			SetS32("default_height", patternDefaultH).
			SetBool("allow_downsample", true).
			SetS32("padding", 0)); err != nil {
			return err
		}
		return p.setStatus("loaded")

	case "size_change":
		return p.sizeChange(e)

	case "load_uri":
		uri, err := e.String("uri")
		if err != nil {
			p.h.log.Warn("bad load_uri", "err", err)
			return nil
		}
		p.history = append(p.history[:p.histPos+1], uri)
		p.histPos = len(p.history) - 1
		return p.navigate(uri)

	case "enable_media_plugin_debugging":
		p.debug, _ = e.BoolOr("enable", false)
		if p.debug {
			return p.send(envelope.New(envelope.ClassMedia, "debug_message").
				SetString("message_text", "test pattern debugging enabled").
				SetString("message_level", "info"))
		}

	case "edit_cut", "edit_copy", "edit_paste":
		return p.send(envelope.New(envelope.ClassMedia, "edit_state").
			SetBool("cut", false).
			SetBool("copy", true).
			SetBool("paste", false))

	default:
		p.h.log.Debug("ignored media message", "name", e.Name())
	}
	return nil
}

func (p *testPattern) handleBrowser(e *envelope.Envelope) error {
	switch e.Name() {
	case "browse_back":
		if p.histPos > 0 {
			p.histPos--
			return p.navigate(p.history[p.histPos])
		}
	case "browse_forward":
		if p.histPos < len(p.history)-1 {
			p.histPos++
			return p.navigate(p.history[p.histPos])
		}
	case "browse_reload":
		if p.histPos >= 0 {
			return p.navigate(p.history[p.histPos])
		}
	case "browse_stop":
		return p.setStatus("loaded")
	default:
		p.h.log.Debug("ignored media_browser message", "name", e.Name())
	}
	return nil
}

// navigate walks through a page load the way a browser plugin reports it.
func (p *testPattern) navigate(uri string) error {
	back := p.histPos > 0
	forward := p.histPos < len(p.history)-1
	msgs := []*envelope.Envelope{
		envelope.New(envelope.ClassMediaBrowser, "navigate_begin").SetString("uri", uri),
		envelope.New(envelope.ClassMedia, "media_status").SetString("status", "loading"),
		envelope.New(envelope.ClassMediaBrowser, "location_changed").SetString("uri", uri),
		envelope.New(envelope.ClassMediaBrowser, "progress").SetS32("percent", 100),
		envelope.New(envelope.ClassMedia, "size_change_request").
			SetS32("width", patternNaturalW).
			SetS32("height", patternNaturalH),
		envelope.New(envelope.ClassMedia, "name_text").
			SetString("name", uri).
			SetString("artist", "").
			SetBool("history_back_available", back).
			SetBool("history_forward_available", forward),
		envelope.New(envelope.ClassMediaBrowser, "navigate_complete").
			SetString("uri", uri).
			SetS32("result_code", 200).
			SetString("result_string", "OK").
			SetBool("history_back_available", back).
			SetBool("history_forward_available", forward),
		p.times(),
	}
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			return err
		}
	}
	return p.setStatus("loaded")
}

func (p *testPattern) handleTime(e *envelope.Envelope) error {
	switch e.Name() {
	case "start":
		p.rate, _ = e.RealOr("rate", 1)
		if p.rate == 0 {
			p.rate = 1
		}
		p.playing = true
		return p.setStatus("playing")
	case "pause":
		p.playing = false
		return p.setStatus("paused")
	case "stop":
		p.playing = false
		p.current = 0
		if err := p.sendTimes(); err != nil {
			return err
		}
		return p.setStatus("loaded")
	case "seek":
		t, err := e.Real("time")
		if err != nil {
			p.h.log.Warn("bad seek", "err", err)
			return nil
		}
		p.current = math.Max(0, math.Min(t, patternDuration))
		return p.sendTimes()
	case "set_loop":
		p.looping, _ = e.BoolOr("loop", false)
	case "set_volume":
		p.volume, _ = e.RealOr("volume", 1)
	default:
		p.h.log.Warn("unknown media_time message", "name", e.Name())
	}
	return nil
}

func (p *testPattern) currentRate() float64 {
	if p.playing {
		return p.rate
	}
	return 0
}

// times returns an updated message carrying only the playback clock.
func (p *testPattern) times() *envelope.Envelope {
	return envelope.New(envelope.ClassMedia, "updated").
		SetReal("current_time", p.current).
		SetReal("duration", patternDuration).
		SetReal("current_rate", p.currentRate())
}

func (p *testPattern) sendTimes() error { return p.send(p.times()) }

func (p *testPattern) sizeChange(e *envelope.Envelope) error {
	name, _ := e.StringOr("name", "")
	var dims [4]int32
	for i, key := range []string{"width", "height", "texture_width", "texture_height"} {
		v, err := e.S32(key)
		if err != nil {
			return fmt.Errorf("size_change: %w", err)
		}
		dims[i] = v
	}
	for i, key := range []string{"background_r", "background_g", "background_b", "background_a"} {
		p.bg[i], _ = e.RealOr(key, 1)
	}
	p.segName = name
	p.width, p.height = int(dims[0]), int(dims[1])
	p.texW, p.texH = int(dims[2]), int(dims[3])

	frame := image.Rect(0, 0, p.width, p.height)
	if p.coal == nil {
		p.coal = coalesce.New(frame, 0)
	} else {
		p.coal.Resize(frame)
	}
	p.paint(frame)

	if err := p.send(envelope.New(envelope.ClassMedia, "size_change_response").
		SetString("name", name).
		SetS32("width", dims[0]).
		SetS32("height", dims[1]).
		SetS32("texture_width", dims[2]).
		SetS32("texture_height", dims[3])); err != nil {
		return err
	}
	return p.sendDamage(frame)
}

// pixels returns the mapped texture when it is big enough for the
// negotiated size.
func (p *testPattern) pixels() []byte {
	buf := p.h.segment(p.segName)
	if buf == nil || p.texW < p.width || len(buf) < p.texW*p.texH*patternDepth {
		return nil
	}
	return buf
}

// paint draws colour bars into r, shifted by the playback offset, with a
// progress bar along the bottom rows.
func (p *testPattern) paint(r image.Rectangle) {
	buf := p.pixels()
	if buf == nil {
		return
	}
	r = r.Intersect(image.Rect(0, 0, p.width, p.height))
	stride := p.texW * patternDepth
	barW := max(p.width/8, 1)
	played := 0
	if patternDuration > 0 {
		played = int(float64(p.width) * p.current / patternDuration)
	}
	bg := [4]byte{scale(p.bg[2]), scale(p.bg[1]), scale(p.bg[0]), scale(p.bg[3])}

	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := buf[y*stride:]
		for x := r.Min.X; x < r.Max.X; x++ {
			px := row[x*patternDepth : x*patternDepth+patternDepth]
			if y >= p.height-progressBarHeight {
				if x < played {
					copy(px, []byte{0x00, 0x00, 0xff, 0xff})
				} else {
					copy(px, bg[:])
				}
				continue
			}
			bar := ((x + p.offset) / barW) % 8
			px[0] = byte(0xff * (bar & 1))
			px[1] = byte(0xff * ((bar >> 1) & 1))
			px[2] = byte(0xff * ((bar >> 2) & 1))
			px[3] = 0xff
		}
	}
}

func scale(c float64) byte {
	return byte(math.Round(math.Max(0, math.Min(c, 1)) * 0xff))
}

func (p *testPattern) tick(dt time.Duration) error {
	if !p.playing {
		return nil
	}
	p.current += dt.Seconds() * p.rate
	finished := false
	if p.current >= patternDuration {
		if p.looping {
			p.current = math.Mod(p.current, patternDuration)
		} else {
			p.current = patternDuration
			p.playing = false
			finished = true
		}
	}

	if p.coal != nil && p.width > 0 && p.height > 0 {
		p.offset++
		bar := image.Rect(0, p.height-progressBarHeight, p.width, p.height)
		p.paint(bar)
		if p.coal.Add(bar) {
			if err := p.flush(); err != nil {
				return err
			}
		}
	}
	if finished {
		if err := p.flush(); err != nil {
			return err
		}
		if err := p.sendTimes(); err != nil {
			return err
		}
		return p.setStatus("done")
	}
	return nil
}

func (p *testPattern) timer() <-chan time.Time {
	if p.coal == nil || p.coal.Pending().Empty() {
		return nil
	}
	return p.coal.Timer()
}

func (p *testPattern) flush() error {
	if p.coal == nil {
		return nil
	}
	r, ok := p.coal.Flush()
	if !ok {
		return nil
	}
	return p.sendDamage(r)
}

func (p *testPattern) sendDamage(r image.Rectangle) error {
	return p.send(p.times().
		SetS32("left", int32(r.Min.X)).
		SetS32("top", int32(r.Min.Y)).
		SetS32("right", int32(r.Max.X)).
		SetS32("bottom", int32(r.Max.Y)))
}

func (p *testPattern) segmentRemoved(name string) {
	if name == p.segName {
		p.segName = ""
		if p.coal != nil {
			p.coal.Flush()
		}
	}
}

func (p *testPattern) close() {
	if p.coal != nil {
		p.coal.Stop()
	}
}
