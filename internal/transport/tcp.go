package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/protocol"
)

// handshakeTimeout bounds the auth exchange so a stray dialer cannot stall
// the accept path.
const handshakeTimeout = 5 * time.Second

// tcpConn carries envelopes over a TLS-over-TCP connection.
type tcpConn struct {
	conn      *tls.Conn
	codec     protocol.Codec
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *tcpConn) ReadMessage() (*envelope.Envelope, error) {
	return readEnvelope(c.conn, c.codec)
}

func (c *tcpConn) WriteMessage(e *envelope.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteMessage(c.conn, c.codec, e)
}

func (c *tcpConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

type tcpListener struct {
	ln    net.Listener
	port  int
	key   []byte
	codec protocol.Codec
}

func listenTCP(key []byte, codec protocol.Codec, tlsConf *tls.Config) (*tcpListener, error) {
	ln, err := tls.Listen("tcp4", "127.0.0.1:0", tlsConf)
	if err != nil {
		return nil, fmt.Errorf("TCP+TLS listen: %w", err)
	}
	return &tcpListener{
		ln:    ln,
		port:  ln.Addr().(*net.TCPAddr).Port,
		key:   key,
		codec: codec,
	}, nil
}

// Port returns the TCP port the listener is bound to.
func (l *tcpListener) Port() int { return l.port }

// Accept waits for and authenticates a TCP+TLS plugin host.
func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	// Use a channel so we can respect context cancellation
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("accept TCP connection: %w", res.err)
		}
		tlsConn := res.conn.(*tls.Conn)
		tlsConn.SetDeadline(time.Now().Add(handshakeTimeout))
		if err := serverHandshake(tlsConn, tlsConn.ConnectionState, l.key); err != nil {
			tlsConn.Close()
			return nil, err
		}
		tlsConn.SetDeadline(time.Time{})
		return &tcpConn{conn: tlsConn, codec: l.codec}, nil
	case <-ctx.Done():
		// The goroutine stays blocked in Accept until the listener is
		// closed; a connection that slips in meanwhile is dropped.
		go func() {
			res := <-ch
			if res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close shuts down the TCP listener.
func (l *tcpListener) Close() error {
	return l.ln.Close()
}

func dialTCP(ctx context.Context, port int, key []byte, codec protocol.Codec) (*tcpConn, error) {
	d := &tls.Dialer{Config: dialerTLS()}
	nc, err := d.DialContext(ctx, "tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("TCP+TLS dial: %w", err)
	}
	tlsConn := nc.(*tls.Conn)

	tlsConn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := clientHandshake(tlsConn, tlsConn.ConnectionState(), key); err != nil {
		tlsConn.Close()
		return nil, err
	}
	tlsConn.SetDeadline(time.Time{})
	return &tcpConn{conn: tlsConn, codec: codec}, nil
}
