package protocol

import (
	"bufio"
	"io"
	"strings"
)

// maxMarkerName bounds how far the decoder looks for the end of a "[~...~]" marker.
const maxMarkerName = 32

// defaultMaxText is the largest text event the sentinel decoder emits at once.
const defaultMaxText = 4096

// SentinelEncoder writes literal markers. Begin and end markers are written as complete
// lines; the termination marker has no trailing newline.
type SentinelEncoder struct {
	// Escape doubles every '~' in payload text.
	Escape bool
}

func (e *SentinelEncoder) Ready(w io.Writer, banner string) error {
	if banner == "" {
		return nil
	}
	return e.Text(w, banner)
}

func (e *SentinelEncoder) Begin(w io.Writer, r Region) error {
	_, err := io.WriteString(w, r.BeginMarker()+"\n")
	return err
}

func (e *SentinelEncoder) End(w io.Writer, r Region) error {
	_, err := io.WriteString(w, r.EndMarker()+"\n")
	return err
}

func (e *SentinelEncoder) Text(w io.Writer, text string) error {
	if text == "" {
		return nil
	}
	if e.Escape {
		text = EscapeText(text)
	}
	_, err := io.WriteString(w, text)
	return err
}

func (e *SentinelEncoder) EndTurn(w io.Writer) error {
	_, err := io.WriteString(w, EndTurnMarker)
	return err
}

// EscapeText doubles every '~' so payload can never contain a marker.
func EscapeText(s string) string {
	return strings.ReplaceAll(s, "~", "~~")
}

// UnescapeText reverses EscapeText.
func UnescapeText(s string) string {
	return strings.ReplaceAll(s, "~~", "~")
}

// SentinelDecoder splits a sentinel stream into events. Bytes that do not form a known
// marker are returned as text, so unknown markers pass through verbatim.
type SentinelDecoder struct {
	r       *bufio.Reader
	escape  bool
	maxText int
	buf     strings.Builder
	pending []Event
	err     error
}

// NewSentinelDecoder creates a decoder. escape must match the encoder's setting.
func NewSentinelDecoder(r io.Reader, escape bool) *SentinelDecoder {
	return &SentinelDecoder{
		r:       bufio.NewReader(r),
		escape:  escape,
		maxText: defaultMaxText,
	}
}

// Next returns the next event. Text is flushed whenever the underlying reader has no
// buffered bytes left, so streamed output surfaces without waiting for the region to close.
func (d *SentinelDecoder) Next() (Event, error) {
	if len(d.pending) > 0 {
		ev := d.pending[0]
		d.pending = d.pending[1:]
		return ev, nil
	}
	if d.err != nil {
		return Event{}, d.err
	}

	for {
		if d.buf.Len() > 0 && (d.r.Buffered() == 0 || d.buf.Len() >= d.maxText) {
			return d.flushText(), nil
		}

		b, err := d.r.ReadByte()
		if err != nil {
			d.err = err
			if d.buf.Len() > 0 {
				return d.flushText(), nil
			}
			return Event{}, err
		}

		switch b {
		case '~':
			if d.escape && d.peekIs(0, '~') {
				_, _ = d.r.ReadByte()
				d.buf.WriteByte('~')
				continue
			}
			if d.consume(EndTurnMarker[1:]) {
				return d.emit(Event{Kind: EventEndTurn}), nil
			}
			d.buf.WriteByte('~')
		case '[':
			if ev, ok := d.readMarker(); ok {
				return d.emit(ev), nil
			}
			d.buf.WriteByte('[')
		default:
			d.buf.WriteByte(b)
		}
	}
}

func (d *SentinelDecoder) flushText() Event {
	text := d.buf.String()
	d.buf.Reset()
	return Event{Kind: EventText, Text: text}
}

func (d *SentinelDecoder) emit(ev Event) Event {
	if d.buf.Len() == 0 {
		return ev
	}
	d.pending = append(d.pending, ev)
	return d.flushText()
}

// peekIs reports whether the byte at offset i of the unread input equals c.
func (d *SentinelDecoder) peekIs(i int, c byte) bool {
	p, err := d.r.Peek(i + 1)
	return err == nil && p[i] == c
}

// consume discards s if the unread input starts with it. It peeks one byte at a time so a
// mismatch never waits for bytes beyond the first differing one.
func (d *SentinelDecoder) consume(s string) bool {
	for i := 0; i < len(s); i++ {
		if !d.peekIs(i, s[i]) {
			return false
		}
	}
	_, _ = d.r.Discard(len(s))
	return true
}

// readMarker is called after a '[' was read. On success the marker (and one trailing
// newline, when already buffered) is consumed. On failure nothing is consumed.
func (d *SentinelDecoder) readMarker() (Event, bool) {
	if !d.peekIs(0, '~') {
		return Event{}, false
	}
	if d.escape && d.peekIs(1, '~') {
		return Event{}, false
	}

	for i := 1; i <= maxMarkerName+1; i++ {
		p, err := d.r.Peek(i + 1)
		if err != nil {
			return Event{}, false
		}
		c := p[i]
		if c == '~' {
			name := string(p[1:i])
			if !d.peekIs(i+1, ']') {
				return Event{}, false
			}
			region, closing, ok := parseMarkerName(name)
			if !ok {
				return Event{}, false
			}
			_, _ = d.r.Discard(i + 2)
			if d.r.Buffered() > 0 && d.peekIs(0, '\n') {
				_, _ = d.r.ReadByte()
			}
			if closing {
				return Event{Kind: EventEnd, Region: region}, true
			}
			return Event{Kind: EventBegin, Region: region}, true
		}
		if !isMarkerByte(c) {
			return Event{}, false
		}
	}
	return Event{}, false
}

func isMarkerByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || c == '_' || c == '/'
}
