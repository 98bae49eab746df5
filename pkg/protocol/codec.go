package protocol

import (
	"fmt"
	"io"
)

// Framing selects the wire encoding.
type Framing string

const (
	FramingSentinel Framing = "sentinel"
	FramingCBOR     Framing = "cbor"
)

// Encoder writes protocol units to a stream. Each call produces one complete unit with a
// single Write so markers are never interleaved with payload bytes.
type Encoder interface {
	Ready(w io.Writer, banner string) error
	Begin(w io.Writer, r Region) error
	End(w io.Writer, r Region) error
	Text(w io.Writer, text string) error
	EndTurn(w io.Writer) error
}

// EventKind classifies a decoded protocol unit.
type EventKind int

const (
	EventText EventKind = iota
	EventBegin
	EventEnd
	EventEndTurn
	EventReady
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventBegin:
		return "begin"
	case EventEnd:
		return "end"
	case EventEndTurn:
		return "end_turn"
	case EventReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Event is one decoded protocol unit.
type Event struct {
	Kind   EventKind
	Region Region
	Text   string
}

// Decoder reads protocol units back from a stream.
type Decoder interface {
	Next() (Event, error)
}

// CodecOptions tunes the sentinel codec.
type CodecOptions struct {
	// Compat disables payload escaping for callers of the legacy wire style.
	Compat bool
}

// NewEncoder returns the encoder for the given framing.
func NewEncoder(f Framing, opts CodecOptions) (Encoder, error) {
	switch f {
	case FramingSentinel, "":
		return &SentinelEncoder{Escape: !opts.Compat}, nil
	case FramingCBOR:
		return NewCBOREncoder(), nil
	default:
		return nil, fmt.Errorf("unknown framing %q", f)
	}
}

// NewDecoder returns the decoder for the given framing.
func NewDecoder(f Framing, r io.Reader, opts CodecOptions) (Decoder, error) {
	switch f {
	case FramingSentinel, "":
		return NewSentinelDecoder(r, !opts.Compat), nil
	case FramingCBOR:
		return NewCBORDecoder(r), nil
	default:
		return nil, fmt.Errorf("unknown framing %q", f)
	}
}
