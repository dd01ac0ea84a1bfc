// Package media drives one out-of-process media plugin: it negotiates the
// shared texture, throttles the plugin by priority, translates input into
// protocol messages and turns the plugin's messages into events.
//
// All controller state sits behind one mutex. Plugin messages may arrive on
// another goroutine; events are delivered after the lock is released.
package media

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/msgqueue"
	"github.com/chronologos/mediaplug/internal/plugin"
)

// Color is an RGBA colour with components in [0, 1].
type Color struct{ R, G, B, A float64 }

// White is the default background.
var White = Color{1, 1, 1, 1}

// textureFormat is what the plugin asked for in texture_params.
type textureFormat struct {
	depth          int
	internalFormat int
	format         int
	pixelType      int
	swapBytes      bool
	coordsOpenGL   bool
}

// Controller is the host-side state for one media instance.
type Controller struct {
	mu     sync.Mutex
	sink   EventSink
	cfg    Config
	log    *slog.Logger
	events []Event

	adapter Adapter
	queue   *msgqueue.Queue

	// Texture negotiation, in dependency order.
	paramsReceived  bool
	tex             textureFormat
	allowDownsample bool
	padding         int
	setW, setH      int
	naturalW        int
	naturalH        int
	defaultW        int
	defaultH        int
	reqW, reqH      int
	reqTexW         int
	reqTexH         int
	fullW, fullH    int
	texW, texH      int
	mediaW, mediaH  int
	shmSize         int
	shmName         string
	autoScale       bool
	dirty           image.Rectangle
	background      Color

	priority     Priority
	lowLimit     int
	pollInterval time.Duration
	zoom         float64
	volume       float64
	lastMouseX   int
	lastMouseY   int
	status       Status

	media   mediaState
	browser BrowserState
	timing  Timing
}

// New returns a controller reporting to sink. No plugin is started until
// Init.
func New(sink EventSink, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		sink:  sink,
		cfg:   cfg,
		log:   cfg.Logger.With("component", "media"),
		queue: msgqueue.New(),
	}
	c.resetLocked()
	return c
}

// resetLocked restores every field to its initial value. Caller must hold
// c.mu.
func (c *Controller) resetLocked() {
	c.paramsReceived = false
	c.tex = textureFormat{}
	c.allowDownsample = false
	c.padding = 0
	c.setW, c.setH = -1, -1
	c.naturalW, c.naturalH = 0, 0
	c.defaultW, c.defaultH = 0, 0
	c.reqW, c.reqH = 0, 0
	c.reqTexW, c.reqTexH = 0, 0
	c.fullW, c.fullH = 0, 0
	c.texW, c.texH = 0, 0
	c.mediaW, c.mediaH = 0, 0
	c.shmSize = 0
	c.shmName = ""
	c.autoScale = false
	c.dirty = image.Rectangle{}
	c.background = White

	c.priority = PriorityNormal
	c.lowLimit = nextPowerOf2(c.cfg.LowPrioritySizeLimit)
	c.pollInterval = plugin.DefaultPollInterval
	c.zoom = c.cfg.ZoomFactor
	c.volume = 1
	c.lastMouseX, c.lastMouseY = 0, 0
	c.status = StatusNone

	c.media = mediaState{}
	c.browser = BrowserState{NavigateResultCode: -1}
	c.timing = Timing{}
	c.queue.Reset()
}

// Init creates the adapter and starts the plugin. media/init is queued
// first so it reaches the plugin ahead of anything the owner sends.
func (c *Controller) Init(spec plugin.LaunchSpec) error {
	c.mu.Lock()
	if c.adapter != nil {
		c.mu.Unlock()
		return errors.New("media: already initialised")
	}
	a := c.cfg.NewAdapter(c, c.cfg.Logger)
	c.adapter = a
	a.SetPollInterval(c.pollInterval)
	initMsg := envelope.New(envelope.ClassMedia, "init").
		SetString("target", c.cfg.Target).
		SetReal("factor", c.zoom)
	c.sendLocked(initMsg)
	c.mu.Unlock()

	c.log.Debug("init", "launcher", spec.Launcher, "dir", spec.Dir, "plugin", spec.File, "debug", spec.Debug)
	if err := a.Init(spec); err != nil {
		c.mu.Lock()
		if c.adapter == a {
			c.adapter = nil
			c.unqueueLocked(initMsg)
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// unqueueLocked drops e from the pending queue, keeping the rest in order.
func (c *Controller) unqueueLocked(e *envelope.Envelope) {
	for _, q := range c.queue.Drain() {
		if q != e {
			c.queue.PushBack(q)
		}
	}
}

// Close shuts the plugin down and returns the controller to its initial
// state. The adapter finishes shutting down on its own.
func (c *Controller) Close() {
	c.mu.Lock()
	a := c.adapter
	c.adapter = nil
	c.resetLocked()
	c.events = nil
	c.mu.Unlock()

	if a != nil {
		a.RequestShutdown()
	}
}

// Idle is called once per owner tick. It drives the adapter, starts a size
// change when one is due and drains queued messages once the plugin runs.
func (c *Controller) Idle() {
	c.mu.Lock()
	a := c.adapter
	c.mu.Unlock()
	if a == nil {
		return
	}

	// The adapter delivers plugin messages from Idle, which needs c.mu.
	a.Idle()

	c.mu.Lock()
	if c.adapter != a {
		c.mu.Unlock()
		return
	}
	if c.sizeChangeDueLocked() {
		c.startSizeChangeLocked()
	}
	if a.IsRunning() {
		for {
			e := c.queue.PopFront()
			if e == nil {
				break
			}
			a.SendMessage(e)
		}
	}
	c.unlockAndFire()
}

// unlockAndFire releases c.mu and delivers the events raised while it was
// held.
func (c *Controller) unlockAndFire() {
	evs := c.events
	c.events = nil
	sink := c.sink
	c.mu.Unlock()

	if sink == nil {
		return
	}
	for _, ev := range evs {
		sink.HandleMediaEvent(c, ev)
	}
}

func (c *Controller) emit(ev Event) {
	c.events = append(c.events, ev)
}

// SendMessage delivers e now if the plugin is running and queues it
// otherwise. Queued messages go out in order on a later Idle.
func (c *Controller) SendMessage(e *envelope.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(e)
}

func (c *Controller) sendLocked(e *envelope.Envelope) {
	if c.adapter != nil && c.adapter.IsRunning() {
		c.adapter.SendMessage(e)
		return
	}
	c.queue.PushBack(e)
}

// sendUrgentLocked bypasses the queue. Only size changes use it.
func (c *Controller) sendUrgentLocked(e *envelope.Envelope) {
	c.adapter.SendUrgent(e)
}

// QueueLen is the number of messages waiting for the plugin to run.
func (c *Controller) QueueLen() int { return c.queue.Len() }

// runningLocked reports whether the plugin can take input right now.
func (c *Controller) runningLocked() bool {
	return c.adapter != nil && c.adapter.IsRunning() && !c.adapter.IsBlocked()
}

// --- Plugin owner callbacks ---

// ReceivePluginMessage dispatches a message from the plugin.
func (c *Controller) ReceivePluginMessage(e *envelope.Envelope) {
	c.mu.Lock()
	c.dispatchLocked(e)
	c.unlockAndFire()
}

func (c *Controller) PluginLaunchFailed() {
	c.mu.Lock()
	c.emit(EventPluginFailedLaunch)
	c.unlockAndFire()
}

func (c *Controller) PluginDied() {
	c.mu.Lock()
	c.emit(EventPluginFailed)
	c.unlockAndFire()
}

// --- Priority ---

// SetPriority changes the plugin's scheduling budget and recomputes the
// requested size. Setting the current priority does nothing.
func (c *Controller) SetPriority(p Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == c.priority {
		return
	}
	c.priority = p
	c.pollInterval = p.PollInterval()
	c.sendLocked(envelope.New(envelope.ClassMedia, "set_priority").
		SetString("priority", p.String()))
	if c.adapter != nil {
		c.adapter.SetPollInterval(c.pollInterval)
	}
	c.log.Debug("priority", "priority", p, "poll", c.pollInterval)
	c.setSizeLocked()
}

func (c *Controller) Priority() Priority {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priority
}

func (c *Controller) PollInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollInterval
}

// SetLowPrioritySizeLimit rounds n up to a power of two.
func (c *Controller) SetLowPrioritySizeLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := nextPowerOf2(n)
	if p == c.lowLimit {
		return
	}
	c.lowLimit = p
	c.setSizeLocked()
}

func (c *Controller) LowPrioritySizeLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lowLimit
}

// CPUUsage is the plugin host's last reported CPU share.
func (c *Controller) CPUUsage() float64 {
	c.mu.Lock()
	a := c.adapter
	c.mu.Unlock()
	if a == nil {
		return 0
	}
	return a.CPUUsage()
}

// Status is the last media_status reported by the plugin.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsRunning reports whether the plugin is up.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapter != nil && c.adapter.IsRunning()
}

func (c *Controller) SupportsMediaBrowser() bool {
	return c.supports(envelope.ClassMediaBrowser)
}

func (c *Controller) SupportsMediaTime() bool {
	return c.supports(envelope.ClassMediaTime)
}

func (c *Controller) supports(class string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adapter != nil && c.adapter.MessageClassVersion(class) != ""
}
