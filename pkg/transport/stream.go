// Package transport provides the duplex channels a session runs over: the process's own
// standard input/output, or a single accepted TCP connection. Both present the same Stream:
// a line source plus a buffered byte sink with explicit flush.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Stream is a line-oriented duplex channel.
type Stream struct {
	r         *bufio.Reader
	w         *bufio.Writer
	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
	remote    string
}

// NewStream wraps r and w. closer may be nil.
func NewStream(r io.Reader, w io.Writer, closer io.Closer) *Stream {
	return &Stream{
		r:      bufio.NewReader(r),
		w:      bufio.NewWriter(w),
		closer: closer,
	}
}

// Stdio returns a stream over os.Stdin and os.Stdout. Closing it does not close them.
func Stdio() *Stream {
	s := NewStream(os.Stdin, os.Stdout, nil)
	s.remote = "stdio"
	return s
}

// ReadLine blocks until a full line arrives and returns it without the line terminator.
// A final line without terminator is returned before io.EOF. Other read failures wrap
// domain.ErrTransport.
func (s *Stream) ReadLine() (string, error) {
	text, err := s.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if text != "" {
				return strings.TrimRight(text, "\r\n"), nil
			}
			return "", io.EOF
		}
		return "", fmt.Errorf("read line: %w: %w", domain.ErrTransport, err)
	}
	return strings.TrimRight(text, "\r\n"), nil
}

// Write buffers p. Call Flush to put it on the wire.
func (s *Stream) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Flush writes any buffered bytes.
func (s *Stream) Flush() error {
	return s.w.Flush()
}

// Remote describes the peer, for logging.
func (s *Stream) Remote() string {
	return s.remote
}

// Close flushes and closes the underlying channel once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		flushErr := s.w.Flush()
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
		if s.closeErr == nil && flushErr != nil && !errors.Is(flushErr, io.ErrClosedPipe) {
			s.closeErr = flushErr
		}
	})
	return s.closeErr
}

// CloseOnDone closes the underlying channel when ctx is done, unblocking pending reads and
// writes on sockets. Buffered output is dropped. The returned function stops the watch.
func (s *Stream) CloseOnDone(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		if s.closer != nil {
			_ = s.closer.Close()
		}
	})
}
