package protocol_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCBOR_TurnRoundTrip(t *testing.T) {
	out := &bytes.Buffer{}
	w := protocol.NewWriter(out, protocol.NewCBOREncoder())

	require.NoError(t, w.Ready("ready"))
	require.NoError(t, w.BeginRegion(protocol.RegionOutput))
	require.NoError(t, w.WriteChunk("payload with [~/output~] inside"))
	require.NoError(t, w.EndRegion(protocol.RegionOutput))
	require.NoError(t, w.EndTurn())

	events := collect(t, protocol.NewCBORDecoder(out))
	assert.Equal(t, []protocol.Event{
		{Kind: protocol.EventReady, Text: "ready"},
		{Kind: protocol.EventBegin, Region: protocol.RegionOutput},
		{Kind: protocol.EventText, Text: "payload with [~/output~] inside"},
		{Kind: protocol.EventEnd, Region: protocol.RegionOutput},
		{Kind: protocol.EventEndTurn},
	}, events)
}

func TestCBOR_SplitsLargeText(t *testing.T) {
	out := &bytes.Buffer{}
	enc := &protocol.CBOREncoder{MaxChunk: 5}

	text := strings.Repeat("é", 6) // 12 bytes, 2 per rune
	require.NoError(t, enc.Text(out, text))

	dec := protocol.NewCBORDecoder(out)
	var got strings.Builder
	frames := 0
	for out.Len() > 0 {
		ev, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, protocol.EventText, ev.Kind)
		assert.LessOrEqual(t, len(ev.Text), 5)
		got.WriteString(ev.Text)
		frames++
	}
	assert.Equal(t, text, got.String())
	assert.Equal(t, 3, frames)
}

func TestCBOR_InvalidUTF8IsReplaced(t *testing.T) {
	out := &bytes.Buffer{}
	w := protocol.NewWriter(out, protocol.NewCBOREncoder())

	require.NoError(t, w.BeginRegion(protocol.RegionOutput))
	require.NoError(t, w.WriteChunk("bad\xff"))
	require.NoError(t, w.EndRegion(protocol.RegionOutput))
	require.NoError(t, w.EndTurn())

	events := collect(t, protocol.NewCBORDecoder(out))
	require.Len(t, events, 4)
	assert.Equal(t, protocol.Event{Kind: protocol.EventText, Text: "bad\uFFFD"}, events[1])
	assert.Equal(t, protocol.EventEndTurn, events[3].Kind)
}

func TestCBORDecoder_AcceptsInvalidUTF8Text(t *testing.T) {
	// {"k": "text", "d": "bad\xff"} with a raw invalid text string.
	payload := []byte{0xa2, 0x61, 'k', 0x64, 't', 'e', 'x', 't', 0x61, 'd', 0x64, 'b', 'a', 'd', 0xff}
	frame := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	frame = append(frame, payload...)

	ev, err := protocol.NewCBORDecoder(bytes.NewReader(frame)).Next()
	require.NoError(t, err)
	assert.Equal(t, protocol.EventText, ev.Kind)
	assert.Equal(t, "bad\xff", ev.Text)
}

func TestCBORDecoder_RejectsOversizeFrame(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(protocol.DefaultMaxFrame+1))

	_, err := protocol.NewCBORDecoder(bytes.NewReader(prefix[:])).Next()
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestNewEncoder_UnknownFraming(t *testing.T) {
	_, err := protocol.NewEncoder("xml", protocol.CodecOptions{})
	assert.Error(t, err)

	enc, err := protocol.NewEncoder(protocol.FramingSentinel, protocol.CodecOptions{Compat: true})
	require.NoError(t, err)
	assert.False(t, enc.(*protocol.SentinelEncoder).Escape)
}
