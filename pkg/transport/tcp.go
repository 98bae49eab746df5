package transport

import (
	"context"
	"fmt"
	"net"
)

// Listener accepts exactly one connection. The listening socket is closed as soon as the
// connection is accepted, so no second caller can connect while the session runs.
type Listener struct {
	ln net.Listener
}

// Listen binds addr (e.g. "127.0.0.1:7345", or ":0" for an ephemeral port).
func Listen(ctx context.Context, addr string) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the single connection. Cancelling ctx aborts the wait.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.Close()
	})
	defer stop()

	conn, err := l.ln.Accept()
	_ = l.ln.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}

	s := NewStream(conn, conn, conn)
	s.remote = conn.RemoteAddr().String()
	return s, nil
}

// Close releases the listening socket if no connection was accepted.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Dial connects to a serving bridge.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
