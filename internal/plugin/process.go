// Package plugin runs a plugin host as a child process and speaks the
// internal half of the protocol with it: hello, plugin loading, heartbeats,
// sleep time and shared memory. Everything else is handed to the Owner.
//
// A Process is driven cooperatively: the owner calls Idle once per tick and
// the state machine advances as far as it can without blocking. Network
// reads and writes happen on background goroutines.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chronologos/mediaplug/internal/auth"
	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/msgqueue"
	"github.com/chronologos/mediaplug/internal/protocol"
	"github.com/chronologos/mediaplug/internal/shm"
	"github.com/chronologos/mediaplug/internal/transport"
)

// Owner receives everything the process does not handle itself.
// Callbacks are made from Idle without the process lock held.
type Owner interface {
	ReceivePluginMessage(e *envelope.Envelope)
	PluginLaunchFailed()
	PluginDied()
}

// DefaultPollInterval is the sleep time reported before the owner sets one.
const DefaultPollInterval = 10 * time.Millisecond

// shutdownTick is how often a process that has been asked to shut down is
// driven after its owner lets go of it.
const shutdownTick = 10 * time.Millisecond

type acceptResult struct {
	conn transport.Conn
	err  error
}

// Process is the parent-side handle on one plugin host.
type Process struct {
	mu    sync.Mutex
	owner Owner
	log   *slog.Logger

	spec  LaunchSpec
	state State
	key   []byte
	codec protocol.Codec

	ln       transport.Listener
	acceptCh chan acceptResult
	conn     transport.Conn
	child    *child
	ctx      context.Context
	cancel   context.CancelFunc

	// urgent is written before normal; shared memory bookkeeping rides on
	// it so it can never be overtaken by a size change.
	urgent   *msgqueue.Queue
	normal   *msgqueue.Queue
	incoming *msgqueue.Queue
	ioErr    error

	blocked       bool
	deadline      time.Time // launch, lockup or exit deadline for the current state
	pollInterval  time.Duration
	pluginVersion string
	classVersions map[string]string
	cpuUsage      float64

	regions map[string]*shm.Region

	shutdownRequested bool
	done              chan struct{}
}

// NewProcess returns a Process reporting to owner. log may be nil.
func NewProcess(owner Owner, log *slog.Logger) *Process {
	if log == nil {
		log = slog.Default()
	}
	return &Process{
		owner:        owner,
		log:          log.With("component", "plugin"),
		urgent:       msgqueue.New(),
		normal:       msgqueue.New(),
		incoming:     msgqueue.New(),
		pollInterval: DefaultPollInterval,
		regions:      make(map[string]*shm.Region),
		done:         make(chan struct{}),
	}
}

// Init records the launch spec. The process starts on the next Idle.
func (p *Process) Init(spec LaunchSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateUninitialized {
		return fmt.Errorf("init in state %v", p.state)
	}
	if spec.Launcher == "" {
		return errors.New("no launcher configured")
	}
	codec, err := protocol.CodecByName(spec.Codec)
	if err != nil {
		return err
	}
	spec.Codec = codec.Name()
	spec.setDefaults()

	key, err := auth.GenerateLaunchKey()
	if err != nil {
		return fmt.Errorf("launch key: %w", err)
	}

	p.spec = spec
	p.codec = codec
	p.key = key
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.setState(StateInitialized)
	return nil
}

// Idle advances the state machine and delivers queued messages to the
// owner.
func (p *Process) Idle() {
	p.mu.Lock()
	deliver, launchFailed, died := p.idleLocked()
	owner := p.owner
	p.mu.Unlock()

	if owner == nil {
		return
	}
	for _, e := range deliver {
		owner.ReceivePluginMessage(e)
	}
	if launchFailed {
		owner.PluginLaunchFailed()
	}
	if died {
		owner.PluginDied()
	}
}

// idleLocked runs the state machine until it settles. It returns the
// messages to hand to the owner and which failure, if any, was entered.
// Caller must hold p.mu.
func (p *Process) idleLocked() (deliver []*envelope.Envelope, launchFailed, died bool) {
	for _, e := range p.incoming.Drain() {
		if out := p.receiveLocked(e); out != nil {
			deliver = append(deliver, out)
		}
	}

	for {
		prev := p.state
		switch p.state {
		case StateUninitialized, StateDone:

		case StateInitialized:
			ln, err := transport.Listen(p.spec.Mode, p.key, p.codec)
			if err != nil {
				p.log.Warn("listen failed", "err", err)
				p.setState(StateLaunchFailure)
				break
			}
			p.ln = ln
			p.acceptCh = make(chan acceptResult, 1)
			go p.acceptLoop(p.ctx, ln)
			p.setState(StateListening)

		case StateListening:
			c, err := startChild(&p.spec, p.ln.Port(), p.key, p.log)
			if err != nil {
				p.log.Warn("launch failed", "launcher", p.spec.Launcher, "err", err)
				p.setState(StateLaunchFailure)
				break
			}
			p.child = c
			p.deadline = time.Now().Add(p.spec.LaunchTimeout)
			p.setState(StateLaunched)

		case StateLaunched:
			if p.lockedUpOrQuit() {
				p.errorState()
				break
			}
			select {
			case res := <-p.acceptCh:
				if res.err != nil {
					p.log.Warn("accept failed", "err", res.err)
					p.errorState()
					break
				}
				p.conn = res.conn
				p.ln.Close()
				p.ln = nil
				go p.readLoop(p.ctx, res.conn)
				go p.writeLoop(p.ctx, res.conn)
				p.setState(StateConnected)
			default:
			}

		case StateConnected, StateLoading, StateRunning:
			if p.lockedUpOrQuit() {
				p.errorState()
			}

		case StateHello:
			p.sendLocked(envelope.New(envelope.ClassInternal, "load_plugin").
				SetString("file", p.spec.File).
				SetString("dir", p.spec.Dir), false)
			p.setState(StateLoading)

		case StateGoodbye:
			p.sendLocked(envelope.New(envelope.ClassInternal, "shutdown_plugin"), false)
			p.deadline = time.Now().Add(p.spec.ExitTimeout)
			p.setState(StateExiting)

		case StateExiting:
			if p.child == nil || p.child.hasExited() {
				p.setState(StateCleanup)
			} else if time.Now().After(p.deadline) {
				p.log.Warn("timeout in exiting state, bailing out")
				p.setState(StateCleanup)
			}

		case StateLaunchFailure:
			launchFailed = true
			p.setState(StateCleanup)

		case StateError:
			died = true
			p.setState(StateCleanup)

		case StateCleanup:
			p.cleanupLocked()
			p.setState(StateDone)
		}
		if p.state == prev {
			break
		}
	}
	return deliver, launchFailed, died
}

// lockedUpOrQuit reports whether the host has exited, its connection has
// failed, or the current deadline passed without a heartbeat. Caller must
// hold p.mu.
func (p *Process) lockedUpOrQuit() bool {
	if p.child != nil && p.child.hasExited() {
		p.log.Warn("plugin host exited", "state", p.state, "err", p.child.err)
		return true
	}
	if p.ioErr != nil {
		p.log.Warn("plugin connection failed", "state", p.state, "err", p.ioErr)
		return true
	}
	if p.spec.Debug || p.blocked {
		return false
	}
	if time.Now().After(p.deadline) {
		p.log.Warn("plugin locked up", "state", p.state)
		return true
	}
	return false
}

// errorState enters LaunchFailure before Running and Error after.
func (p *Process) errorState() {
	if p.state < StateRunning {
		p.setState(StateLaunchFailure)
	} else {
		p.setState(StateError)
	}
}

func (p *Process) setState(s State) {
	p.log.Debug("state", "from", p.state, "to", s)
	p.state = s
}

// receiveLocked handles internal messages and returns any other message for
// the owner. Caller must hold p.mu.
func (p *Process) receiveLocked(e *envelope.Envelope) *envelope.Envelope {
	if e.HasValue("blocking_request") {
		p.blocked = true
	}
	if e.Class() != envelope.ClassInternal {
		return e
	}

	switch e.Name() {
	case "hello":
		if p.state != StateConnected {
			p.log.Warn("hello in wrong state, bailing out", "state", p.state)
			p.errorState()
			return nil
		}
		p.setState(StateHello)

	case "load_plugin_response":
		if p.state != StateLoading {
			p.log.Warn("load_plugin_response in wrong state, bailing out", "state", p.state)
			p.errorState()
			return nil
		}
		p.pluginVersion, _ = e.StringOr("plugin_version", "")
		p.classVersions = make(map[string]string)
		if versions, err := e.Structured("versions"); err == nil {
			for class, v := range versions.Fields() {
				s, _ := v.AsString()
				p.classVersions[class] = s
				p.log.Info("message class", "class", class, "version", s)
			}
		}
		p.log.Info("plugin loaded", "version", p.pluginVersion)
		p.deadline = time.Now().Add(p.spec.LockupTimeout)
		p.setState(StateRunning)
		p.sendSleepTimeLocked()

	case "heartbeat":
		p.deadline = time.Now().Add(p.spec.LockupTimeout)
		if cpu, err := e.Real("cpu_usage"); err == nil {
			p.cpuUsage = cpu
		}

	case "shm_add_response":

	case "shm_remove_response":
		name, err := e.String("name")
		if err != nil {
			p.log.Warn("bad shm_remove_response", "err", err)
			return nil
		}
		if r, ok := p.regions[name]; ok {
			if err := r.Destroy(); err != nil {
				p.log.Warn("destroy segment", "name", name, "err", err)
			}
			delete(p.regions, name)
		}

	default:
		p.log.Warn("unknown internal message from plugin", "name", e.Name())
	}
	return nil
}

func (p *Process) sendSleepTimeLocked() {
	p.sendLocked(envelope.New(envelope.ClassInternal, "sleep_time").
		SetReal("time", p.pollInterval.Seconds()), false)
}

// sendLocked queues e for the writer. Caller must hold p.mu.
func (p *Process) sendLocked(e *envelope.Envelope, urgent bool) {
	if e.HasValue("blocking_response") {
		p.blocked = false
		// No heartbeats arrive while blocked.
		p.deadline = time.Now().Add(p.spec.LockupTimeout)
	}
	if urgent {
		p.urgent.PushBack(e)
	} else {
		p.normal.PushBack(e)
	}
}

// SendMessage queues e behind everything already sent.
func (p *Process) SendMessage(e *envelope.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendLocked(e, false)
}

// SendUrgent queues e ahead of ordinary messages that have not reached the
// wire yet. Urgent messages keep their order among themselves.
func (p *Process) SendUrgent(e *envelope.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendLocked(e, true)
}

// SetPollInterval sets the host's sleep time, forwarded when it changes
// while running.
func (p *Process) SetPollInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d == p.pollInterval {
		return
	}
	p.pollInterval = d
	if p.state == StateRunning {
		p.sendSleepTimeLocked()
	}
}

// AddSharedMemory creates a segment and tells the host to map it. It
// returns "" when the segment could not be created.
func (p *Process) AddSharedMemory(size int) string {
	r, err := shm.Create(size)
	if err != nil {
		p.log.Warn("could not create shared memory segment", "size", size, "err", err)
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.regions[r.Name()] = r
	p.sendLocked(envelope.New(envelope.ClassInternal, "shm_add").
		SetString("name", r.Name()).
		SetS32("size", int32(size)), true)
	return r.Name()
}

// RemoveSharedMemory asks the host to unmap a segment. The parent's mapping
// is destroyed when the host confirms.
func (p *Process) RemoveSharedMemory(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regions[name]; !ok {
		p.log.Warn("request to remove unknown shared memory segment", "name", name)
		return
	}
	p.sendLocked(envelope.New(envelope.ClassInternal, "shm_remove").
		SetString("name", name), true)
}

// SharedMemory returns the parent's mapping of a segment, or nil.
func (p *Process) SharedMemory(name string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.regions[name]; ok {
		return r.Bytes()
	}
	return nil
}

// RequestShutdown detaches the owner and winds the process down on its own
// goroutine.
func (p *Process) RequestShutdown() {
	p.mu.Lock()
	if p.shutdownRequested {
		p.mu.Unlock()
		return
	}
	p.shutdownRequested = true
	p.owner = nil
	switch {
	case p.state == StateRunning:
		p.setState(StateGoodbye)
	case p.state < StateRunning:
		p.setState(StateCleanup)
	}
	p.mu.Unlock()

	go func() {
		t := time.NewTicker(shutdownTick)
		defer t.Stop()
		for !p.IsDone() {
			<-t.C
			p.Idle()
		}
	}()
}

// Done is closed once the process reaches StateDone.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) cleanupLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	if p.ln != nil {
		p.ln.Close()
		p.ln = nil
	}
	if p.child != nil {
		p.child.kill()
	}
	for name, r := range p.regions {
		if err := r.Destroy(); err != nil {
			p.log.Warn("destroy segment", "name", name, "err", err)
		}
		delete(p.regions, name)
	}
	p.urgent.Reset()
	p.normal.Reset()
	close(p.done)
}

func (p *Process) acceptLoop(ctx context.Context, ln transport.Listener) {
	for {
		conn, err := ln.Accept(ctx)
		if err == nil {
			p.acceptCh <- acceptResult{conn: conn}
			return
		}
		if ctx.Err() != nil {
			return
		}
		// A rejected dialer is not fatal; keep waiting until the launch
		// deadline.
		p.log.Warn("rejected plugin connection", "err", err)
	}
}

func (p *Process) readLoop(ctx context.Context, conn transport.Conn) {
	for {
		e, err := conn.ReadMessage()
		if transport.Discardable(err) {
			p.log.Warn("discarding malformed message from host", "err", err)
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				p.setIOErr(fmt.Errorf("read: %w", err))
			}
			return
		}
		p.incoming.PushBack(e)
	}
}

func (p *Process) writeLoop(ctx context.Context, conn transport.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.urgent.Ready():
		case <-p.normal.Ready():
		}
		for {
			e := p.urgent.PopFront()
			if e == nil {
				e = p.normal.PopFront()
			}
			if e == nil {
				break
			}
			if err := conn.WriteMessage(e); err != nil {
				if ctx.Err() == nil {
					p.setIOErr(fmt.Errorf("write %s/%s: %w", e.Class(), e.Name(), err))
				}
				return
			}
		}
	}
}

func (p *Process) setIOErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ioErr == nil {
		p.ioErr = err
	}
}

// --- Queries ---

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) IsRunning() bool { return p.State() == StateRunning }
func (p *Process) IsDone() bool    { return p.State() == StateDone }

// IsLoading reports whether the host is starting but not yet running.
func (p *Process) IsLoading() bool {
	s := p.State()
	return s >= StateInitialized && s < StateRunning
}

func (p *Process) IsBlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocked
}

func (p *Process) PollInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pollInterval
}

// MessageClassVersion returns the version the plugin reported for class,
// or "" if it does not speak it.
func (p *Process) MessageClassVersion(class string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.classVersions[class]
}

func (p *Process) PluginVersion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pluginVersion
}

// CPUUsage is the host's last reported CPU share.
func (p *Process) CPUUsage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cpuUsage
}
