// Package host is the child side of the plugin protocol. It dials the
// parent, loads a built-in plugin and runs a single select loop that
// serves the parent's messages, heartbeats and the plugin's frame clock.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/protocol"
	"github.com/chronologos/mediaplug/internal/shm"
	"github.com/chronologos/mediaplug/internal/transport"
)

const (
	heartbeatInterval = 1 * time.Second
	dialTimeout       = 5 * time.Second
	defaultSleep      = 10 * time.Millisecond
	minSleep          = 1 * time.Millisecond
)

// ErrCrashRequested is returned by Run when the parent sends internal/crash.
var ErrCrashRequested = errors.New("crash requested by parent")

// errShutdown ends the loop without an error.
var errShutdown = errors.New("shutdown requested")

// readResult carries one message (or the terminal read error) from the
// reader goroutine to the select loop.
type readResult struct {
	e   *envelope.Envelope
	err error
}

// Host is one plugin host process's connection to its parent.
type Host struct {
	cfg Config
	key []byte
	log *slog.Logger

	conn     transport.Conn
	plugin   mediaPlugin
	segments map[string]*shm.Region
	cpu      cpuMeter
	sleep    time.Duration
	frame    *time.Ticker
	lastTick time.Time
}

// New creates a host but does not connect. log may be nil.
func New(cfg Config, key []byte, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		cfg:      cfg,
		key:      key,
		log:      log.With("component", "host"),
		segments: make(map[string]*shm.Region),
		sleep:    defaultSleep,
	}
}

// Run connects to the parent and serves it until shutdown_plugin, a fatal
// error or ctx cancellation.
func (h *Host) Run(ctx context.Context) error {
	codec, err := protocol.CodecByName(h.cfg.Codec)
	if err != nil {
		return err
	}
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := transport.Dial(dctx, h.cfg.Mode, h.cfg.Port, h.key, codec)
	cancel()
	if err != nil {
		return fmt.Errorf("dial parent: %w", err)
	}
	h.conn = conn

	defer func() {
		if h.plugin != nil {
			h.plugin.close()
		}
		for name, r := range h.segments {
			r.Close()
			delete(h.segments, name)
		}
		h.conn.Close()
	}()

	if err := h.send(envelope.New(envelope.ClassInternal, "hello")); err != nil {
		return err
	}

	msgCh := make(chan readResult, 8)
	go h.readLoop(msgCh)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	h.frame = time.NewTicker(h.sleep)
	defer h.frame.Stop()
	h.lastTick = time.Now()

	for {
		var damage <-chan time.Time
		if h.plugin != nil {
			damage = h.plugin.timer()
		}

		select {
		case res := <-msgCh:
			if res.err != nil {
				return fmt.Errorf("read from parent: %w", res.err)
			}
			if err := h.handle(ctx, res.e); err != nil {
				if errors.Is(err, errShutdown) {
					h.log.Info("shutting down")
					return nil
				}
				return err
			}

		case <-heartbeat.C:
			if err := h.send(envelope.New(envelope.ClassInternal, "heartbeat").
				SetReal("cpu_usage", h.cpu.sample())); err != nil {
				return err
			}

		case now := <-h.frame.C:
			dt := now.Sub(h.lastTick)
			h.lastTick = now
			if h.plugin != nil {
				if err := h.plugin.tick(dt); err != nil {
					return err
				}
			}

		case <-damage:
			if err := h.plugin.flush(); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Host) readLoop(ch chan<- readResult) {
	for {
		e, err := h.conn.ReadMessage()
		if transport.Discardable(err) {
			h.log.Warn("discarding malformed message from parent", "err", err)
			continue
		}
		ch <- readResult{e: e, err: err}
		if err != nil {
			return
		}
	}
}

func (h *Host) send(e *envelope.Envelope) error {
	if err := h.conn.WriteMessage(e); err != nil {
		return fmt.Errorf("write %s/%s: %w", e.Class(), e.Name(), err)
	}
	return nil
}

// segment returns the host's mapping of a shared memory segment, or nil.
func (h *Host) segment(name string) []byte {
	if r, ok := h.segments[name]; ok {
		return r.Bytes()
	}
	return nil
}

func (h *Host) handle(ctx context.Context, e *envelope.Envelope) error {
	if e.Class() != envelope.ClassInternal {
		if h.plugin == nil {
			h.log.Warn("message before plugin loaded", "class", e.Class(), "name", e.Name())
			return nil
		}
		return h.plugin.handle(e)
	}

	switch e.Name() {
	case "load_plugin":
		return h.loadPlugin(e)

	case "sleep_time":
		secs, err := e.Real("time")
		if err != nil {
			h.log.Warn("bad sleep_time", "err", err)
			return nil
		}
		d := time.Duration(secs * float64(time.Second))
		if d < minSleep {
			d = minSleep
		}
		h.sleep = d
		h.frame.Reset(d)

	case "shm_add":
		name, err := e.String("name")
		if err != nil {
			return fmt.Errorf("shm_add: %w", err)
		}
		size, err := e.S32("size")
		if err != nil {
			return fmt.Errorf("shm_add: %w", err)
		}
		r, err := shm.Open(name, int(size))
		if err != nil {
			h.log.Warn("could not map segment", "name", name, "err", err)
		} else {
			h.segments[name] = r
		}
		return h.send(envelope.New(envelope.ClassInternal, "shm_add_response").
			SetString("name", name))

	case "shm_remove":
		name, err := e.String("name")
		if err != nil {
			return fmt.Errorf("shm_remove: %w", err)
		}
		if h.plugin != nil {
			h.plugin.segmentRemoved(name)
		}
		if r, ok := h.segments[name]; ok {
			r.Close()
			delete(h.segments, name)
		}
		return h.send(envelope.New(envelope.ClassInternal, "shm_remove_response").
			SetString("name", name))

	case "shutdown_plugin":
		return errShutdown

	case "crash":
		return ErrCrashRequested

	case "hang":
		// Stop answering and heartbeating until killed.
		h.log.Warn("hang requested")
		<-ctx.Done()
		return ctx.Err()

	default:
		h.log.Warn("unknown internal message", "name", e.Name())
	}
	return nil
}

func (h *Host) loadPlugin(e *envelope.Envelope) error {
	file, err := e.String("file")
	if err != nil {
		return fmt.Errorf("load_plugin: %w", err)
	}
	if h.plugin != nil {
		return errors.New("load_plugin: plugin already loaded")
	}
	factory, ok := plugins[file]
	if !ok {
		return fmt.Errorf("load_plugin: unknown plugin %q", file)
	}
	h.plugin = factory(h)

	versions := make(map[string]envelope.Value)
	for class, v := range h.plugin.classVersions() {
		versions[class] = envelope.String(v)
	}
	h.log.Info("plugin loaded", "plugin", file)
	return h.send(envelope.New(envelope.ClassInternal, "load_plugin_response").
		SetString("plugin_version", h.plugin.version()).
		SetStructured("versions", envelope.Map(versions)))
}
