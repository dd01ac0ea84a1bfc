package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/protocol"
)

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 5 * time.Second,
	}
}

// quicConn carries envelopes on the first bidirectional stream of a QUIC
// connection.
type quicConn struct {
	qconn     *quic.Conn
	stream    *quic.Stream
	codec     protocol.Codec
	writeMu   sync.Mutex
	tr        *quic.Transport // closed with the conn; nil if shared
	closeOnce sync.Once
}

func (c *quicConn) ReadMessage() (*envelope.Envelope, error) {
	return readEnvelope(c.stream, c.codec)
}

func (c *quicConn) WriteMessage(e *envelope.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteMessage(c.stream, c.codec, e)
}

// Close closes the stream and the QUIC connection.
func (c *quicConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.stream.CancelRead(0)
		c.stream.Close()
		c.qconn.CloseWithError(0, "closed")
		if c.tr != nil {
			err = c.tr.Close()
		}
	})
	return err
}

type quicListener struct {
	mu        sync.Mutex
	handedOff bool // an accepted conn owns tr
	tr        *quic.Transport
	ln    *quic.Listener
	port  int
	key   []byte
	codec protocol.Codec
}

func listenQUIC(key []byte, codec protocol.Codec, tlsConf *tls.Config) (*quicListener, error) {
	udpConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}

	tr := &quic.Transport{Conn: udpConn}
	ln, err := tr.Listen(tlsConf, quicConfig())
	if err != nil {
		udpConn.Close()
		return nil, fmt.Errorf("QUIC listen: %w", err)
	}

	return &quicListener{
		tr:    tr,
		ln:    ln,
		port:  udpConn.LocalAddr().(*net.UDPAddr).Port,
		key:   key,
		codec: codec,
	}, nil
}

// Port returns the UDP port the listener is bound to.
func (l *quicListener) Port() int { return l.port }

// Accept waits for a plugin host and authenticates it.
func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	qconn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept QUIC connection: %w", err)
	}

	stream, err := qconn.AcceptStream(ctx)
	if err != nil {
		qconn.CloseWithError(1, "no stream")
		return nil, fmt.Errorf("accept stream: %w", err)
	}
	state := func() tls.ConnectionState { return qconn.ConnectionState().TLS }
	if err := serverHandshake(stream, state, l.key); err != nil {
		qconn.CloseWithError(1, "auth failed")
		return nil, err
	}

	// Closing the transport would tear down every connection on it, so
	// the first accepted conn takes over closing it.
	c := &quicConn{qconn: qconn, stream: stream, codec: l.codec}
	l.mu.Lock()
	if !l.handedOff {
		l.handedOff = true
		c.tr = l.tr
	}
	l.mu.Unlock()
	return c, nil
}

// Close stops accepting. The transport is closed too unless a connection
// has taken it over.
func (l *quicListener) Close() error {
	err := l.ln.Close()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.handedOff {
		return l.tr.Close()
	}
	return err
}

func dialQUIC(ctx context.Context, port int, key []byte, codec protocol.Codec) (*quicConn, error) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}

	udpConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("listen UDP: %w", err)
	}

	tr := &quic.Transport{Conn: udpConn}
	qconn, err := tr.Dial(ctx, addr, dialerTLS(), quicConfig())
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("QUIC dial: %w", err)
	}

	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		qconn.CloseWithError(1, "no stream")
		tr.Close()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := clientHandshake(stream, qconn.ConnectionState().TLS, key); err != nil {
		qconn.CloseWithError(1, "auth failed")
		tr.Close()
		return nil, err
	}

	return &quicConn{qconn: qconn, stream: stream, codec: codec, tr: tr}, nil
}
