package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	cbor2 "github.com/fxamacker/cbor/v2"
)

const (
	// DefaultMaxFrame is the largest encoded frame accepted on either side.
	DefaultMaxFrame = 16 << 20
	// DefaultMaxChunk is the largest text payload carried by one frame.
	DefaultMaxChunk = 256 << 10
)

const (
	frameReady   = "ready"
	frameBegin   = "begin"
	frameEnd     = "end"
	frameText    = "text"
	frameEndTurn = "end_turn"
)

// frameDecMode accepts text strings that are not valid UTF-8 so frames from
// older or foreign encoders still decode.
var frameDecMode = func() cbor2.DecMode {
	dm, err := cbor2.DecOptions{UTF8: cbor2.UTF8DecodeInvalid}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

type wireFrame struct {
	Kind   string `cbor:"k"`
	Region string `cbor:"r,omitempty"`
	Data   string `cbor:"d,omitempty"`
}

// CBOREncoder writes length-prefixed CBOR frames. Payload needs no escaping.
type CBOREncoder struct {
	MaxChunk int
}

// NewCBOREncoder creates an encoder with default limits.
func NewCBOREncoder() *CBOREncoder {
	return &CBOREncoder{MaxChunk: DefaultMaxChunk}
}

func (e *CBOREncoder) Ready(w io.Writer, banner string) error {
	return writeFrame(w, wireFrame{Kind: frameReady, Data: strings.ToValidUTF8(banner, "\uFFFD")})
}

func (e *CBOREncoder) Begin(w io.Writer, r Region) error {
	return writeFrame(w, wireFrame{Kind: frameBegin, Region: string(r)})
}

func (e *CBOREncoder) End(w io.Writer, r Region) error {
	return writeFrame(w, wireFrame{Kind: frameEnd, Region: string(r)})
}

// Text splits large payloads on rune boundaries so every frame stays valid UTF-8.
// Invalid byte sequences are replaced with U+FFFD.
func (e *CBOREncoder) Text(w io.Writer, text string) error {
	text = strings.ToValidUTF8(text, "\uFFFD")
	maxChunk := e.MaxChunk
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunk
	}
	for len(text) > 0 {
		n := len(text)
		if n > maxChunk {
			n = maxChunk
			for n > 0 && !utf8.RuneStart(text[n]) {
				n--
			}
			if n == 0 {
				n = maxChunk
			}
		}
		if err := writeFrame(w, wireFrame{Kind: frameText, Data: text[:n]}); err != nil {
			return err
		}
		text = text[n:]
	}
	return nil
}

func (e *CBOREncoder) EndTurn(w io.Writer) error {
	return writeFrame(w, wireFrame{Kind: frameEndTurn})
}

func writeFrame(w io.Writer, f wireFrame) error {
	payload, err := cbor2.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > DefaultMaxFrame {
		return fmt.Errorf("%w: size=%d limit=%d", ErrFrameTooLarge, len(payload), DefaultMaxFrame)
	}

	// Prefix and payload go out in one Write.
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	_, err = w.Write(buf)
	return err
}

// CBORDecoder reads length-prefixed CBOR frames.
type CBORDecoder struct {
	r        io.Reader
	maxFrame int
}

// NewCBORDecoder creates a decoder with default limits.
func NewCBORDecoder(r io.Reader) *CBORDecoder {
	return &CBORDecoder{r: r, maxFrame: DefaultMaxFrame}
}

func (d *CBORDecoder) Next() (Event, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(d.r, lengthBuf[:]); err != nil {
		return Event{}, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if int(length) > d.maxFrame {
		return Event{}, fmt.Errorf("%w: size=%d limit=%d", ErrFrameTooLarge, length, d.maxFrame)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return Event{}, err
	}

	var f wireFrame
	if err := frameDecMode.Unmarshal(payload, &f); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Kind {
	case frameReady:
		return Event{Kind: EventReady, Text: f.Data}, nil
	case frameBegin:
		return Event{Kind: EventBegin, Region: Region(f.Region)}, nil
	case frameEnd:
		return Event{Kind: EventEnd, Region: Region(f.Region)}, nil
	case frameText:
		return Event{Kind: EventText, Text: f.Data}, nil
	case frameEndTurn:
		return Event{Kind: EventEndTurn}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Kind)
	}
}
