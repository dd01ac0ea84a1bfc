// Package transport carries envelopes between the parent and a plugin host
// over loopback. Both QUIC and TLS-over-TCP are supported; either way the
// connection is a single ordered stream of framed envelopes, opened by an
// auth handshake that proves the dialer holds the launch key.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/protocol"
)

// Mode selects which transport to use.
type Mode int

const (
	ModeQUIC Mode = iota
	ModeTCP
)

func (m Mode) String() string {
	switch m {
	case ModeQUIC:
		return "quic"
	case ModeTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// ParseMode accepts "quic" (the default for "") or "tcp".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "quic":
		return ModeQUIC, nil
	case "tcp":
		return ModeTCP, nil
	default:
		return 0, fmt.Errorf("unknown transport mode %q", s)
	}
}

// Conn is an authenticated envelope stream. ReadMessage must only be called
// from one goroutine; WriteMessage may be called concurrently.
type Conn interface {
	ReadMessage() (*envelope.Envelope, error)
	WriteMessage(e *envelope.Envelope) error
	Close() error
}

// Listener accepts authenticated connections from plugin hosts.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Port() int
	Close() error
}

// Listen binds a loopback listener on an ephemeral port. Only dialers
// holding key are accepted.
func Listen(mode Mode, key []byte, codec protocol.Codec) (Listener, error) {
	tlsConf, err := listenerTLS()
	if err != nil {
		return nil, fmt.Errorf("generate TLS cert: %w", err)
	}
	switch mode {
	case ModeQUIC:
		return listenQUIC(key, codec, tlsConf)
	case ModeTCP:
		return listenTCP(key, codec, tlsConf)
	default:
		return nil, fmt.Errorf("listen: unsupported mode %v", mode)
	}
}

// Dial connects to a parent listening on the loopback port and
// authenticates with key.
func Dial(ctx context.Context, mode Mode, port int, key []byte, codec protocol.Codec) (Conn, error) {
	switch mode {
	case ModeQUIC:
		return dialQUIC(ctx, port, key, codec)
	case ModeTCP:
		return dialTCP(ctx, port, key, codec)
	default:
		return nil, fmt.Errorf("dial: unsupported mode %v", mode)
	}
}

// readEnvelope reads one frame and insists it is an envelope.
func readEnvelope(r io.Reader, codec protocol.Codec) (*envelope.Envelope, error) {
	msg, err := protocol.ReadMessage(r, codec)
	if err != nil {
		return nil, err
	}
	e, ok := msg.(*envelope.Envelope)
	if !ok {
		return nil, fmt.Errorf("%w: expected envelope, got %T", protocol.ErrUnknownMessage, msg)
	}
	return e, nil
}

// Discardable reports whether err from ReadMessage concerns only the frame
// just read. The stream is still aligned and the caller may keep reading.
func Discardable(err error) bool {
	return errors.Is(err, protocol.ErrMalformedEnvelope) ||
		errors.Is(err, protocol.ErrUnknownMessage) ||
		errors.Is(err, protocol.ErrShortPayload)
}
