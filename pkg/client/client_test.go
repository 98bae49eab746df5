package client_test

import (
	"bytes"
	"context"
	"iter"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/client"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/engine"
	"github.com/aretw0/parley/pkg/protocol"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// editor asks before applying anything and reports tool activity.
func editor(ctx context.Context, sink engine.Sink) (engine.Engine, error) {
	return engine.Func(func(ctx context.Context, input string) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			if !strings.HasPrefix(input, "edit") {
				for chunk, err := range (engine.Echo{}).RunStream(ctx, input) {
					if !yield(chunk, err) {
						return
					}
				}
				return
			}
			if !yield("Planning edit.\n", nil) {
				return
			}
			res, err := sink.ConfirmAsk(ctx, domain.ConfirmRequest{Question: "Apply edit to main.go?"})
			if err != nil {
				yield("", err)
				return
			}
			if res.Yes {
				sink.ToolOutput("Applied edit to", "main.go")
				yield("Done.\n", nil)
				return
			}
			yield("Skipped.\n", nil)
		}
	}), nil
}

func startSession(t *testing.T, opts ...runner.Option) (*client.Client, <-chan error) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { _ = clientConn.Close() })

	stream := transport.NewStream(serverConn, serverConn, serverConn)
	s, err := runner.New(context.Background(), stream, editor, opts...)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
		_ = stream.Close()
	}()

	c, err := client.New(clientConn, clientConn)
	require.NoError(t, err)
	return c, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not terminate")
		return nil
	}
}

func TestClient_PlainTurn(t *testing.T) {
	c, done := startSession(t)

	turn, err := c.Ask("add logging to main")
	require.NoError(t, err)
	assert.Equal(t, "add logging to main\n", turn.Output())
	assert.Nil(t, turn.Question)

	require.NoError(t, c.Exit())
	assert.NoError(t, waitDone(t, done))
}

func TestClient_ConfirmationRoundTrip(t *testing.T) {
	c, done := startSession(t)

	turn, err := c.Ask("edit main.go")
	require.NoError(t, err)
	assert.Equal(t, "Planning edit.\n", turn.Output())
	require.NotNil(t, turn.Question)
	assert.Equal(t, domain.QuestionTypeConfirm, turn.Question.Type)
	assert.Equal(t, []domain.Token{domain.TokenYes, domain.TokenNo}, turn.Question.Options)

	turn, err = c.Ask("maybe")
	require.NoError(t, err)
	assert.Nil(t, turn.Question, "the question is not re-sent on a retry")
	assert.Contains(t, turn.Output(), "Please answer with one of: yes, no")
	assert.True(t, turn.Rejected())

	turn, err = c.Ask("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Applied edit to main.go\n"}, turn.Region(protocol.RegionToolOutput))
	assert.Equal(t, "Done.\n", turn.Output())
	assert.False(t, turn.Rejected())

	require.NoError(t, c.Exit())
	assert.NoError(t, waitDone(t, done))
}

func TestTurn_Rejected(t *testing.T) {
	out := func(text string) client.Message { return client.Message{Region: protocol.RegionOutput, Text: text} }

	cases := []struct {
		name string
		turn client.Turn
		want bool
	}{
		{"hint", client.Turn{Messages: []client.Message{out("Please answer with one of: yes, no\n")}}, true},
		{"sanitizer", client.Turn{Messages: []client.Message{out("Answer rejected: too long\n")}}, true},
		{"engine output", client.Turn{Messages: []client.Message{out("Please answer with one of: yes, no\n"), out("more\n")}}, false},
		{"tool region", client.Turn{Messages: []client.Message{{Region: protocol.RegionToolError, Text: "Answer rejected: x"}}}, false},
		{"new question", client.Turn{
			Messages: []client.Message{out("Please answer with one of: yes, no\n")},
			Question: &domain.QuestionPayload{Type: domain.QuestionTypeConfirm},
		}, false},
		{"empty", client.Turn{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.turn.Rejected())
		})
	}
}

func TestClient_AwaitReady(t *testing.T) {
	c, done := startSession(t, runner.WithReadyBanner("parley ready\n"))

	banner, err := c.AwaitReady("parley ready\n")
	require.NoError(t, err)
	assert.Equal(t, "parley ready\n", banner)

	turn, err := c.Ask("hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", turn.Output())

	require.NoError(t, c.Exit())
	assert.NoError(t, waitDone(t, done))
}

func TestClient_CompatQuestion(t *testing.T) {
	out := strings.NewReader("[~confirm_ask~]\n<question>{\"type\":\"question\",\"text\":\"Ok?\",\"options\":[\"yes\",\"no\"]}</question>\n[~/confirm_ask~]\n" + protocol.EndTurnMarker)
	c, err := client.New(out, &bytes.Buffer{}, client.WithCompat(true))
	require.NoError(t, err)

	turn, err := c.ReadTurn(nil)
	require.NoError(t, err)
	require.NotNil(t, turn.Question)
	assert.Equal(t, "Ok?", turn.Question.Text)
}

func TestClient_CBOR(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()

	stream := transport.NewStream(serverConn, serverConn, serverConn)
	s, err := runner.New(context.Background(), stream, engine.NewEcho,
		runner.WithFraming(protocol.FramingCBOR), runner.WithReadyBanner("ready"))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	c, err := client.New(clientConn, clientConn, client.WithFraming(protocol.FramingCBOR))
	require.NoError(t, err)

	banner, err := c.AwaitReady("")
	require.NoError(t, err)
	assert.Equal(t, "ready", banner)

	var kinds []protocol.EventKind
	require.NoError(t, c.Send("one two"))
	turn, err := c.ReadTurn(func(ev protocol.Event) { kinds = append(kinds, ev.Kind) })
	require.NoError(t, err)
	assert.Equal(t, "one two\n", turn.Output())
	assert.Equal(t, protocol.EventBegin, kinds[0])
	assert.Equal(t, protocol.EventEndTurn, kinds[len(kinds)-1])

	require.NoError(t, c.Exit())
	assert.NoError(t, waitDone(t, done))
}

func TestClient_SendRejectsMultiline(t *testing.T) {
	c, err := client.New(strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Send("a\nb"), client.ErrMultiline)
}
