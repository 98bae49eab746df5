// Package client is the caller side of a parley session: it sends one request line at a time
// and assembles the framed reply into a Turn.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/negotiator"
	"github.com/aretw0/parley/pkg/protocol"
	"github.com/aretw0/parley/pkg/transport"
)

// ErrMultiline is returned when a request would span more than one line.
var ErrMultiline = errors.New("request must be a single line")

// Message is the text of one region. Text outside any region has an empty Region.
type Message struct {
	Region protocol.Region
	Text   string
}

// Turn is everything the session wrote up to one termination marker.
type Turn struct {
	Messages []Message
	// Question is set when the turn handed control back for an answer.
	Question *domain.QuestionPayload
}

// Output concatenates the text of every output region.
func (t *Turn) Output() string {
	var b strings.Builder
	for _, m := range t.Messages {
		if m.Region == protocol.RegionOutput {
			b.WriteString(m.Text)
		}
	}
	return b.String()
}

// Rejected reports whether the turn only refused an answer, leaving the last question pending.
func (t *Turn) Rejected() bool {
	if t.Question != nil || len(t.Messages) != 1 || t.Messages[0].Region != protocol.RegionOutput {
		return false
	}
	text := t.Messages[0].Text
	return strings.HasPrefix(text, negotiator.HintPrefix) || strings.HasPrefix(text, negotiator.RejectedPrefix)
}

// Region returns the messages of region r.
func (t *Turn) Region(r protocol.Region) []string {
	var out []string
	for _, m := range t.Messages {
		if m.Region == r {
			out = append(out, m.Text)
		}
	}
	return out
}

// Client talks to one session.
type Client struct {
	dec         protocol.Decoder
	w           *bufio.Writer
	closer      io.Closer
	framing     protocol.Framing
	compat      bool
	exitKeyword string
}

// Option configures a Client.
type Option func(*Client)

// WithFraming must match the server's framing.
func WithFraming(f protocol.Framing) Option {
	return func(c *Client) {
		c.framing = f
	}
}

// WithCompat must match the server's compat setting.
func WithCompat(enabled bool) Option {
	return func(c *Client) {
		c.compat = enabled
	}
}

// WithExitKeyword overrides the keyword sent by Exit.
func WithExitKeyword(keyword string) Option {
	return func(c *Client) {
		c.exitKeyword = keyword
	}
}

// New creates a client reading replies from r and writing requests to w.
func New(r io.Reader, w io.Writer, opts ...Option) (*Client, error) {
	c := &Client{
		w:           bufio.NewWriter(w),
		framing:     protocol.FramingSentinel,
		exitKeyword: "exit",
	}
	for _, opt := range opts {
		opt(c)
	}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}

	dec, err := protocol.NewDecoder(c.framing, r, protocol.CodecOptions{Compat: c.compat})
	if err != nil {
		return nil, err
	}
	c.dec = dec
	return c, nil
}

// Dial connects to a serving session.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	conn, err := transport.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	c, err := New(conn, conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// AwaitReady consumes the readiness banner. With sentinel framing the banner is raw text,
// so the expected banner must be known; with CBOR framing one ready frame is read and its
// text returned.
func (c *Client) AwaitReady(banner string) (string, error) {
	if c.framing == protocol.FramingCBOR {
		ev, err := c.dec.Next()
		if err != nil {
			return "", err
		}
		if ev.Kind != protocol.EventReady {
			return "", fmt.Errorf("expected ready frame, got %s", ev.Kind)
		}
		return ev.Text, nil
	}

	var got strings.Builder
	for got.Len() < len(banner) {
		ev, err := c.dec.Next()
		if err != nil {
			return got.String(), err
		}
		if ev.Kind != protocol.EventText {
			return got.String(), fmt.Errorf("expected banner text, got %s", ev.Kind)
		}
		got.WriteString(ev.Text)
	}
	if got.String() != banner {
		return got.String(), fmt.Errorf("unexpected banner %q", got.String())
	}
	return banner, nil
}

// Send writes one request or answer line.
func (c *Client) Send(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrMultiline
	}
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("send: %w: %w", domain.ErrTransport, err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("send: %w: %w", domain.ErrTransport, err)
	}
	return nil
}

// ReadTurn reads events up to the next termination marker. onEvent, if set, observes each
// event as it arrives, for streaming display.
func (c *Client) ReadTurn(onEvent func(protocol.Event)) (*Turn, error) {
	turn := &Turn{}
	var open protocol.Region
	var text strings.Builder
	inBody := false

	flush := func(r protocol.Region) error {
		if !inBody {
			return nil
		}
		body := text.String()
		text.Reset()
		inBody = false
		if r.IsQuestion() {
			q, err := c.parseQuestion(body)
			if err != nil {
				return err
			}
			turn.Question = q
		}
		turn.Messages = append(turn.Messages, Message{Region: r, Text: body})
		return nil
	}

	for {
		ev, err := c.dec.Next()
		if err != nil {
			return turn, err
		}
		if onEvent != nil {
			onEvent(ev)
		}

		switch ev.Kind {
		case protocol.EventText:
			text.WriteString(ev.Text)
			inBody = true
		case protocol.EventBegin:
			if err := flush(open); err != nil {
				return turn, err
			}
			open = ev.Region
			inBody = true
		case protocol.EventEnd:
			if err := flush(open); err != nil {
				return turn, err
			}
			open = ""
		case protocol.EventEndTurn:
			if err := flush(open); err != nil {
				return turn, err
			}
			return turn, nil
		case protocol.EventReady:
			turn.Messages = append(turn.Messages, Message{Text: ev.Text})
		}
	}
}

// Ask sends line and reads the turn it produces.
func (c *Client) Ask(line string) (*Turn, error) {
	if err := c.Send(line); err != nil {
		return nil, err
	}
	return c.ReadTurn(nil)
}

// Exit sends the exit keyword. The session writes nothing in reply.
func (c *Client) Exit() error {
	return c.Send(c.exitKeyword)
}

// Close closes the outbound side, if closable.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) parseQuestion(body string) (*domain.QuestionPayload, error) {
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, protocol.QuestionTagOpen)
	body = strings.TrimSuffix(body, protocol.QuestionTagClose)

	var q domain.QuestionPayload
	if err := json.Unmarshal([]byte(body), &q); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	return &q, nil
}
