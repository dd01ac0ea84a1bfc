package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/chronologos/mediaplug/internal/auth"
	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/protocol"
	"github.com/chronologos/mediaplug/internal/shm"
	"github.com/chronologos/mediaplug/internal/transport"
)

const testTimeout = 5 * time.Second

// fakeParent is the listening side of a host connection.
type fakeParent struct {
	t     *testing.T
	conn  transport.Conn
	msgs  chan *envelope.Envelope
	runCh chan error
}

func startHost(t *testing.T, mode transport.Mode) *fakeParent {
	t.Helper()

	key, err := auth.GenerateLaunchKey()
	if err != nil {
		t.Fatal(err)
	}
	ln, err := transport.Listen(mode, key, protocol.MsgpackCodec{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := New(Config{Port: ln.Port(), Mode: mode}, key, nil)
	runCh := make(chan error, 1)
	go func() { runCh <- h.Run(ctx) }()

	actx, acancel := context.WithTimeout(ctx, testTimeout)
	defer acancel()
	conn, err := ln.Accept(actx)
	if err != nil {
		cancel()
		ln.Close()
		t.Fatalf("accept: %v", err)
	}

	p := &fakeParent{t: t, conn: conn, msgs: make(chan *envelope.Envelope, 64), runCh: runCh}
	go func() {
		defer close(p.msgs)
		for {
			e, err := conn.ReadMessage()
			if err != nil {
				return
			}
			p.msgs <- e
		}
	}()
	t.Cleanup(func() {
		cancel()
		conn.Close()
		ln.Close()
	})
	return p
}

func (p *fakeParent) send(e *envelope.Envelope) {
	p.t.Helper()
	if err := p.conn.WriteMessage(e); err != nil {
		p.t.Fatalf("send %s/%s: %v", e.Class(), e.Name(), err)
	}
}

// expect skips messages until one named class/name arrives.
func (p *fakeParent) expect(class, name string) *envelope.Envelope {
	p.t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case e, ok := <-p.msgs:
			if !ok {
				p.t.Fatalf("connection closed waiting for %s/%s", class, name)
			}
			if e.Is(class, name) {
				return e
			}
		case <-deadline:
			p.t.Fatalf("timeout waiting for %s/%s", class, name)
		}
	}
}

func (p *fakeParent) waitRun() error {
	p.t.Helper()
	select {
	case err := <-p.runCh:
		return err
	case <-time.After(testTimeout):
		p.t.Fatal("Run did not return")
		return nil
	}
}

func (p *fakeParent) load() {
	p.t.Helper()
	p.expect(envelope.ClassInternal, "hello")
	p.send(envelope.New(envelope.ClassInternal, "load_plugin").
		SetString("file", TestPatternPlugin).
		SetString("dir", p.t.TempDir()))
	p.expect(envelope.ClassInternal, "load_plugin_response")
}

func TestLoadPluginReportsVersions(t *testing.T) {
	for _, mode := range []transport.Mode{transport.ModeQUIC, transport.ModeTCP} {
		t.Run(mode.String(), func(t *testing.T) {
			p := startHost(t, mode)
			p.expect(envelope.ClassInternal, "hello")
			p.send(envelope.New(envelope.ClassInternal, "load_plugin").
				SetString("file", TestPatternPlugin).
				SetString("dir", t.TempDir()))

			resp := p.expect(envelope.ClassInternal, "load_plugin_response")
			if v, _ := resp.String("plugin_version"); v == "" {
				t.Fatal("empty plugin_version")
			}
			versions, err := resp.Structured("versions")
			if err != nil {
				t.Fatal(err)
			}
			for _, class := range []string{envelope.ClassMedia, envelope.ClassMediaBrowser, envelope.ClassMediaTime} {
				if _, ok := versions.Field(class); !ok {
					t.Fatalf("versions missing %s: %v", class, versions)
				}
			}

			p.send(envelope.New(envelope.ClassInternal, "shutdown_plugin"))
			if err := p.waitRun(); err != nil {
				t.Fatalf("Run = %v, want nil", err)
			}
		})
	}
}

func TestUnknownPluginFailsRun(t *testing.T) {
	p := startHost(t, transport.ModeTCP)
	p.expect(envelope.ClassInternal, "hello")
	p.send(envelope.New(envelope.ClassInternal, "load_plugin").
		SetString("file", "no-such-plugin").
		SetString("dir", t.TempDir()))
	if err := p.waitRun(); err == nil {
		t.Fatal("Run returned nil for unknown plugin")
	}
}

func TestCrashRequested(t *testing.T) {
	p := startHost(t, transport.ModeTCP)
	p.load()
	p.send(envelope.New(envelope.ClassInternal, "crash"))
	if err := p.waitRun(); !errors.Is(err, ErrCrashRequested) {
		t.Fatalf("Run = %v, want ErrCrashRequested", err)
	}
}

func TestHeartbeat(t *testing.T) {
	p := startHost(t, transport.ModeTCP)
	p.load()
	hb := p.expect(envelope.ClassInternal, "heartbeat")
	if _, err := hb.Real("cpu_usage"); err != nil {
		t.Fatal(err)
	}
}

func TestInitSendsTextureParams(t *testing.T) {
	p := startHost(t, transport.ModeTCP)
	p.load()
	p.send(envelope.New(envelope.ClassMedia, "init").
		SetString("target", "").
		SetReal("factor", 1))

	tp := p.expect(envelope.ClassMedia, "texture_params")
	if d, _ := tp.S32("depth"); d != patternDepth {
		t.Fatalf("depth = %d", d)
	}
	if ok, _ := tp.Bool("allow_downsample"); !ok {
		t.Fatal("allow_downsample = false")
	}
	status := p.expect(envelope.ClassMedia, "media_status")
	if s, _ := status.String("status"); s != "loaded" {
		t.Fatalf("status = %q", s)
	}
}

func TestSizeChangeDrawsIntoSegment(t *testing.T) {
	p := startHost(t, transport.ModeTCP)
	p.load()

	const w, h, texW = 64, 32, 64
	size := texW*h*patternDepth + texW*patternDepth
	r, err := shm.Create(size)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Destroy()

	p.send(envelope.New(envelope.ClassInternal, "shm_add").
		SetString("name", r.Name()).
		SetS32("size", int32(size)))
	ack := p.expect(envelope.ClassInternal, "shm_add_response")
	if n, _ := ack.String("name"); n != r.Name() {
		t.Fatalf("shm_add_response name = %q", n)
	}

	p.send(envelope.New(envelope.ClassMedia, "size_change").
		SetString("name", r.Name()).
		SetS32("width", w).
		SetS32("height", h).
		SetS32("texture_width", texW).
		SetS32("texture_height", h).
		SetReal("background_r", 1).
		SetReal("background_g", 1).
		SetReal("background_b", 1).
		SetReal("background_a", 1))

	resp := p.expect(envelope.ClassMedia, "size_change_response")
	if got, _ := resp.S32("width"); got != w {
		t.Fatalf("response width = %d", got)
	}
	upd := p.expect(envelope.ClassMedia, "updated")
	if right, _ := upd.S32("right"); right != w {
		t.Fatalf("updated right = %d", right)
	}
	if bottom, _ := upd.S32("bottom"); bottom != h {
		t.Fatalf("updated bottom = %d", bottom)
	}

	// Every drawn pixel is opaque.
	px := r.Bytes()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if a := px[(y*texW+x)*patternDepth+3]; a != 0xff {
				t.Fatalf("pixel (%d,%d) alpha = %#x", x, y, a)
			}
		}
	}

	p.send(envelope.New(envelope.ClassInternal, "shm_remove").SetString("name", r.Name()))
	p.expect(envelope.ClassInternal, "shm_remove_response")
}

func TestLoadURINavigation(t *testing.T) {
	p := startHost(t, transport.ModeTCP)
	p.load()

	p.send(envelope.New(envelope.ClassMedia, "load_uri").SetString("uri", "https://a.example/"))
	if u, _ := p.expect(envelope.ClassMediaBrowser, "navigate_begin").String("uri"); u != "https://a.example/" {
		t.Fatalf("navigate_begin uri = %q", u)
	}
	done := p.expect(envelope.ClassMediaBrowser, "navigate_complete")
	if code, _ := done.S32("result_code"); code != 200 {
		t.Fatalf("result_code = %d", code)
	}
	if back, _ := done.Bool("history_back_available"); back {
		t.Fatal("back available after first page")
	}

	p.send(envelope.New(envelope.ClassMedia, "load_uri").SetString("uri", "https://b.example/"))
	done = p.expect(envelope.ClassMediaBrowser, "navigate_complete")
	if back, _ := done.Bool("history_back_available"); !back {
		t.Fatal("back not available after second page")
	}

	p.send(envelope.New(envelope.ClassMediaBrowser, "browse_back"))
	loc := p.expect(envelope.ClassMediaBrowser, "location_changed")
	if u, _ := loc.String("uri"); u != "https://a.example/" {
		t.Fatalf("after back, location = %q", u)
	}
	done = p.expect(envelope.ClassMediaBrowser, "navigate_complete")
	if fwd, _ := done.Bool("history_forward_available"); !fwd {
		t.Fatal("forward not available after back")
	}
}

func TestPlaybackAdvancesTime(t *testing.T) {
	p := startHost(t, transport.ModeTCP)
	p.load()
	p.send(envelope.New(envelope.ClassInternal, "sleep_time").SetReal("time", 0.005))

	p.send(envelope.New(envelope.ClassMediaTime, "start").SetReal("rate", 1))
	if s, _ := p.expect(envelope.ClassMedia, "media_status").String("status"); s != "playing" {
		t.Fatalf("status = %q", s)
	}

	p.send(envelope.New(envelope.ClassMediaTime, "seek").SetReal("time", 9.99))
	if s, _ := p.expect(envelope.ClassMedia, "media_status").String("status"); s != "done" {
		t.Fatalf("status at end = %q, want done", s)
	}
}

func TestParseArgs(t *testing.T) {
	cfg, err := ParseArgs([]string{"--port=4242", "--mode=tcp", "--codec=cbor", "--plugin-dir=/tmp", "--plugin=testpattern"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 4242 || cfg.Mode != transport.ModeTCP || cfg.Codec != "cbor" || cfg.PluginDir != "/tmp" || cfg.Plugin != "testpattern" {
		t.Fatalf("cfg = %+v", cfg)
	}

	if _, err := ParseArgs(nil); err == nil {
		t.Fatal("missing --port accepted")
	}
	if _, err := ParseArgs([]string{"--port=1", "--mode=udp"}); err == nil {
		t.Fatal("bad mode accepted")
	}
	if _, err := ParseArgs([]string{"--port=1", "stray"}); err == nil {
		t.Fatal("stray argument accepted")
	}
}

// scriptedConn replays reads in order and then reports EOF.
type scriptedConn struct {
	reads []readResult
}

func (c *scriptedConn) ReadMessage() (*envelope.Envelope, error) {
	if len(c.reads) == 0 {
		return nil, io.EOF
	}
	r := c.reads[0]
	c.reads = c.reads[1:]
	return r.e, r.err
}

func (c *scriptedConn) WriteMessage(*envelope.Envelope) error { return nil }
func (c *scriptedConn) Close() error                          { return nil }

func TestReadLoopSkipsMalformedMessages(t *testing.T) {
	good := envelope.New(envelope.ClassInternal, "heartbeat")
	h := New(Config{}, nil, nil)
	h.conn = &scriptedConn{reads: []readResult{
		{err: fmt.Errorf("%w: bad param", protocol.ErrMalformedEnvelope)},
		{err: protocol.ErrShortPayload},
		{e: good},
	}}

	ch := make(chan readResult, 8)
	h.readLoop(ch)
	close(ch)

	var got []readResult
	for r := range ch {
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want good message then EOF", len(got))
	}
	if got[0].err != nil || !got[0].e.Equal(good) {
		t.Fatalf("first result = %+v", got[0])
	}
	if !errors.Is(got[1].err, io.EOF) {
		t.Fatalf("terminal err = %v, want EOF", got[1].err)
	}
}
