package plugin

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/chronologos/mediaplug/internal/auth"
	"github.com/chronologos/mediaplug/internal/transport"
)

const (
	DefaultLaunchTimeout = 10 * time.Second
	DefaultLockupTimeout = 15 * time.Second
	DefaultExitTimeout   = 2 * time.Second
)

// LaunchSpec describes how to start a plugin host.
type LaunchSpec struct {
	// Launcher is the plugin host executable. Args are passed before the
	// connection flags, e.g. a "host" subcommand.
	Launcher string
	Args     []string

	// Dir is the plugin directory (also the working directory of the
	// host) and File the plugin to load from it.
	Dir  string
	File string

	// Debug relays the host's console through a pseudo-terminal and
	// disables lockup detection so a debugger can pause the host.
	Debug bool

	// Env is appended to the parent's environment.
	Env []string

	Mode  transport.Mode
	Codec string

	LaunchTimeout time.Duration
	LockupTimeout time.Duration
	ExitTimeout   time.Duration
}

func (s *LaunchSpec) setDefaults() {
	if s.LaunchTimeout <= 0 {
		s.LaunchTimeout = DefaultLaunchTimeout
	}
	if s.LockupTimeout <= 0 {
		s.LockupTimeout = DefaultLockupTimeout
	}
	if s.ExitTimeout <= 0 {
		s.ExitTimeout = DefaultExitTimeout
	}
}

// hostArgs returns the full argument list for a host dialing port.
func (s *LaunchSpec) hostArgs(port int) []string {
	args := append([]string(nil), s.Args...)
	return append(args,
		"--port="+strconv.Itoa(port),
		"--mode="+s.Mode.String(),
		"--codec="+s.Codec,
		"--plugin-dir="+s.Dir,
		"--plugin="+s.File,
	)
}

// child is a started plugin host.
type child struct {
	cmd    *exec.Cmd
	ptmx   *os.File      // debug launches only
	exited chan struct{} // closed once Wait returns
	err    error         // valid after exited is closed
}

// startChild launches the host with key on its stdin. The child's console
// output is relayed line by line to log.
func startChild(spec *LaunchSpec, port int, key []byte, log *slog.Logger) (*child, error) {
	cmd := exec.Command(spec.Launcher, spec.hostArgs(port)...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = strings.NewReader(auth.EncodeKey(key))

	c := &child{cmd: cmd, exited: make(chan struct{})}

	if spec.Debug {
		ptmx, tty, err := pty.Open()
		if err != nil {
			return nil, fmt.Errorf("open pty: %w", err)
		}
		cmd.Stdout = tty
		cmd.Stderr = tty
		if err := cmd.Start(); err != nil {
			ptmx.Close()
			tty.Close()
			return nil, fmt.Errorf("start %s: %w", spec.Launcher, err)
		}
		// The child holds its own copy of the tty now.
		tty.Close()
		c.ptmx = ptmx
		go relayLines(ptmx, log)
	} else {
		w := &lineLogger{log: log}
		cmd.Stdout = w
		cmd.Stderr = w
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", spec.Launcher, err)
		}
	}

	go func() {
		c.err = cmd.Wait()
		close(c.exited)
	}()
	return c, nil
}

func (c *child) hasExited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

// kill stops the process if it is still running and releases the pty.
func (c *child) kill() {
	if !c.hasExited() && c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	if c.ptmx != nil {
		c.ptmx.Close()
	}
}

func relayLines(r io.Reader, log *slog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Debug("plugin output", "line", sc.Text())
	}
}

// lineLogger is an io.Writer that logs each complete line it receives.
type lineLogger struct {
	mu  sync.Mutex
	log *slog.Logger
	buf bytes.Buffer
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.log.Debug("plugin output", "line", strings.TrimRight(line, "\r\n"))
	}
}
