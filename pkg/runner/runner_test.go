package runner_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/engine"
	"github.com/aretw0/parley/pkg/protocol"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const endTurn = protocol.EndTurnMarker

// scripted builds a factory whose engine runs fn with the injected sink.
func scripted(fn func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool)) engine.Factory {
	return func(ctx context.Context, sink engine.Sink) (engine.Engine, error) {
		return engine.Func(func(ctx context.Context, input string) iter.Seq2[string, error] {
			return func(yield func(string, error) bool) {
				fn(ctx, sink, input, yield)
			}
		}), nil
	}
}

func runSession(t *testing.T, input string, factory engine.Factory, opts ...runner.Option) (string, *runner.Session, error) {
	t.Helper()
	out := &bytes.Buffer{}
	stream := transport.NewStream(strings.NewReader(input), out, nil)

	s, err := runner.New(context.Background(), stream, factory, opts...)
	require.NoError(t, err)
	err = s.Run(context.Background())
	return out.String(), s, err
}

// decodeAll parses a sentinel transcript, merging adjacent text events.
func decodeAll(t *testing.T, out string, f protocol.Framing) []protocol.Event {
	t.Helper()
	dec, err := protocol.NewDecoder(f, strings.NewReader(out), protocol.CodecOptions{})
	require.NoError(t, err)

	var events []protocol.Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		if n := len(events); n > 0 && ev.Kind == protocol.EventText && events[n-1].Kind == protocol.EventText {
			events[n-1].Text += ev.Text
			continue
		}
		events = append(events, ev)
	}
}

// assertPaired checks that regions never nest and every turn ends with no region open.
func assertPaired(t *testing.T, events []protocol.Event) (turns int) {
	t.Helper()
	var open protocol.Region
	for _, ev := range events {
		switch ev.Kind {
		case protocol.EventBegin:
			require.Empty(t, open, "region %s opened inside %s", ev.Region, open)
			open = ev.Region
		case protocol.EventEnd:
			require.Equal(t, open, ev.Region)
			open = ""
		case protocol.EventEndTurn:
			require.Empty(t, open, "turn ended with %s open", open)
			turns++
		}
	}
	require.Empty(t, open)
	return turns
}

func TestSession_BasicTurn(t *testing.T) {
	out, s, err := runSession(t, "add logging to main\nexit\n", engine.NewEcho)
	require.NoError(t, err)

	assert.Equal(t, "[~output~]\nadd logging to main\n[~/output~]\n"+endTurn, out)
	assert.Equal(t, 1, s.Turns())
	assert.Equal(t, runner.StateTerminated, s.State())
}

func TestSession_ExitKeyword(t *testing.T) {
	out, s, err := runSession(t, "EXIT\r\nnever read\n", engine.NewEcho)
	require.NoError(t, err)
	assert.Empty(t, out, "exit opens no region and writes no termination marker")
	assert.Zero(t, s.Turns())

	out, s, err = runSession(t, "  exit \nexit\n", engine.NewEcho)
	require.NoError(t, err)
	assert.Equal(t, "[~output~]\nexit\n[~/output~]\n"+endTurn, out, "only an exact match ends the session")
	assert.Equal(t, 1, s.Turns())

	out, _, err = runSession(t, "hi\nbye\n", engine.NewEcho, runner.WithExitKeyword("bye"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, endTurn))
}

func TestSession_StreamClosed(t *testing.T) {
	out, s, err := runSession(t, "", engine.NewEcho)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, runner.StateTerminated, s.State())
}

func TestSession_ReadyBanner(t *testing.T) {
	out, _, err := runSession(t, "exit\n", engine.NewEcho, runner.WithReadyBanner("parley ready\n"))
	require.NoError(t, err)
	assert.Equal(t, "parley ready\n", out)
}

func TestSession_ConfirmationDefault(t *testing.T) {
	var got domain.ConfirmResult
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		if !yield("Editing", nil) {
			return
		}
		res, err := sink.ConfirmAsk(ctx, domain.ConfirmRequest{Question: "Apply edit to main.go?"})
		if err != nil {
			yield("", err)
			return
		}
		got = res
		if res.Yes {
			yield("applied", nil)
		} else {
			yield("skipped", nil)
		}
	})

	out, _, err := runSession(t, "edit main\n\nexit\n", factory)
	require.NoError(t, err)
	assert.True(t, got.Yes)
	assert.Equal(t, domain.TokenYes, got.Token)

	want := "[~output~]\nEditing[~/output~]\n" +
		"[~confirm_ask~]\n" +
		`{"type":"question","text":"Apply edit to main.go? (Y)es/(N)o [Yes]: ","options":["yes","no"]}` + "\n" +
		"[~/confirm_ask~]\n" + endTurn +
		"[~output~]\napplied[~/output~]\n" + endTurn
	assert.Equal(t, want, out)
}

func TestSession_InvalidAnswerRetries(t *testing.T) {
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		res, err := sink.ConfirmAsk(ctx, domain.ConfirmRequest{Question: "Run tests?", Group: "cmds"})
		if err != nil {
			yield("", err)
			return
		}
		yield(string(res.Token), nil)
	})

	out, s, err := runSession(t, "go\nx\na\nexit\n", factory)
	require.NoError(t, err)
	events := decodeAll(t, out, protocol.FramingSentinel)

	// question, rejection, turn
	assert.Equal(t, 3, assertPaired(t, events))
	assert.Equal(t, 1, s.Turns())
	assert.Equal(t, 1, strings.Count(out, "Please answer with one of: yes, no, all, skip all"))
	assert.True(t, strings.HasSuffix(out, "[~output~]\nall[~/output~]\n"+endTurn))
}

func TestSession_StreamingFailureContinues(t *testing.T) {
	rec := memory.NewRecorder()
	calls := 0
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		calls++
		if calls == 1 {
			if yield("partial", nil) {
				yield("", errors.New("model unavailable"))
			}
			return
		}
		yield("ok", nil)
	})

	out, s, err := runSession(t, "first\nsecond\nexit\n", factory,
		runner.WithRecorder(rec), runner.WithSessionID("s-fail"))
	require.NoError(t, err)

	assert.Equal(t, "[~output~]\npartial[~/output~]\n"+endTurn+"[~output~]\nok[~/output~]\n"+endTurn, out)
	assert.Equal(t, 2, s.Turns())

	turns, err := rec.List(context.Background(), "s-fail")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.TurnFailed, turns[0].Status)
	assert.Equal(t, "model unavailable", turns[0].Error)
	assert.Equal(t, 1, turns[0].Chunks)
	assert.Equal(t, domain.TurnCompleted, turns[1].Status)
}

func TestSession_EnginePanicRecovered(t *testing.T) {
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		if input == "crash" {
			panic("nil map write")
		}
		yield("fine", nil)
	})

	out, s, err := runSession(t, "crash\nagain\nexit\n", factory)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Turns())
	assert.Equal(t, 2, assertPaired(t, decodeAll(t, out, protocol.FramingSentinel)))
	assert.Contains(t, out, "fine")
}

func TestSession_ToolMessagesAreFlatRegions(t *testing.T) {
	rec := memory.NewRecorder()
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		if !yield("a", nil) {
			return
		}
		sink.ToolOutput("Added", "main.go")
		sink.ToolWarning("large file")
		sink.ToolError("lint failed")
		yield("b", nil)
	})

	out, _, err := runSession(t, "go\nexit\n", factory, runner.WithRecorder(rec), runner.WithSessionID("s-tools"))
	require.NoError(t, err)

	want := "[~output~]\na[~/output~]\n" +
		"[~tool_output~]\nAdded main.go\n[~/tool_output~]\n" +
		"[~tool_warning~]\nlarge file\n[~/tool_warning~]\n" +
		"[~tool_error~]\nlint failed\n[~/tool_error~]\n" +
		"[~output~]\nb[~/output~]\n" + endTurn
	assert.Equal(t, want, out)

	turns, err := rec.List(context.Background(), "s-tools")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Len(t, turns[0].Events, 3)
	assert.Equal(t, domain.EventToolOutput, turns[0].Events[0].Type)
	assert.Equal(t, []string{"Added", "main.go"}, turns[0].Events[0].Messages)
	assert.Equal(t, domain.EventToolError, turns[0].Events[2].Type)
}

func TestSession_StartupMessagesStayOffTheWire(t *testing.T) {
	factory := func(ctx context.Context, sink engine.Sink) (engine.Engine, error) {
		sink.ToolOutput("loading repo map")
		return engine.Echo{}, nil
	}

	out, _, err := runSession(t, "exit\n", factory)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSession_OversizeRequest(t *testing.T) {
	out, s, err := runSession(t, "toolong\nhi\nexit\n", engine.NewEcho, runner.WithMaxInputSize(5))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out,
		"[~tool_error~]\nRequest rejected: input exceeds maximum allowed size: size=7 limit=5\n[~/tool_error~]\n"+endTurn))
	assert.Equal(t, 2, s.Turns())
	assert.Equal(t, 2, assertPaired(t, decodeAll(t, out, protocol.FramingSentinel)))
}

func TestSession_InitializationFailure(t *testing.T) {
	out := &bytes.Buffer{}
	stream := transport.NewStream(strings.NewReader("hi\n"), out, nil)

	_, err := runner.New(context.Background(), stream, func(ctx context.Context, sink engine.Sink) (engine.Engine, error) {
		return nil, errors.New("no API key")
	})
	assert.ErrorIs(t, err, domain.ErrInitialization)
	assert.ErrorContains(t, err, "no API key")
	assert.Empty(t, out.String())

	_, err = runner.New(context.Background(), stream, func(ctx context.Context, sink engine.Sink) (engine.Engine, error) {
		panic("bad config")
	})
	assert.ErrorIs(t, err, domain.ErrInitialization)
}

func TestSession_TransportLostDuringQuestion(t *testing.T) {
	rec := memory.NewRecorder()
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		_, err := sink.ConfirmAsk(ctx, domain.ConfirmRequest{Question: "Proceed?"})
		if err != nil {
			yield("", err)
			return
		}
		yield("unreachable", nil)
	})

	out, s, err := runSession(t, "go\n", factory, runner.WithRecorder(rec), runner.WithSessionID("s-lost"))
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, runner.StateTerminated, s.State())
	assert.True(t, strings.HasSuffix(out, "[~/confirm_ask~]\n"+endTurn), "nothing is written after the stream is lost")
	assert.NotContains(t, out, "unreachable")

	turns, err := rec.List(context.Background(), "s-lost")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, domain.TurnAborted, turns[0].Status)
}

func TestSession_DontAskAgain(t *testing.T) {
	var results []domain.ConfirmResult
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		for range 2 {
			res, err := sink.ConfirmAsk(ctx, domain.ConfirmRequest{Question: "Add URL to chat?", Subject: "https://go.dev", AllowNever: true})
			if err != nil {
				yield("", err)
				return
			}
			results = append(results, res)
		}
		yield("done", nil)
	})

	out, _, err := runSession(t, "go\nd\nexit\n", factory)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "[~confirm_ask~]"))
	require.Len(t, results, 2)
	assert.Equal(t, domain.TokenDontAskMore, results[0].Token)
	assert.False(t, results[1].Yes)
}

func TestSession_AutoApprove(t *testing.T) {
	var results []bool
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		for _, explicit := range []bool{false, true} {
			res, err := sink.ConfirmAsk(ctx, domain.ConfirmRequest{Question: "Run?", ExplicitYesRequired: explicit})
			if err != nil {
				yield("", err)
				return
			}
			results = append(results, res.Yes)
		}
		yield("done", nil)
	})

	out, _, err := runSession(t, "go\nexit\n", factory, runner.WithInterceptor(runner.AutoApproveMiddleware()))
	require.NoError(t, err)
	assert.NotContains(t, out, "[~confirm_ask~]")
	assert.Equal(t, []bool{true, false}, results)
}

func TestSession_Prompt(t *testing.T) {
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		name, err := sink.PromptAsk(ctx, domain.PromptRequest{Question: "Branch name?", Default: "main"})
		if err != nil {
			yield("", err)
			return
		}
		yield("using "+name, nil)
	})

	out, _, err := runSession(t, "go\n\nexit\n", factory)
	require.NoError(t, err)
	assert.Contains(t, out, `{"type":"prompt","text":"Branch name?","default":"main"}`)
	assert.True(t, strings.HasSuffix(out, "[~output~]\nusing main[~/output~]\n"+endTurn))
}

func TestSession_Hooks(t *testing.T) {
	var trail []string
	hooks := domain.Hooks{
		OnSessionStart: func(_ context.Context, id string) { trail = append(trail, "start:"+id) },
		OnSessionEnd:   func(_ context.Context, id string) { trail = append(trail, "end:"+id) },
		OnTurnStart:    func(_ context.Context, e *domain.TurnEvent) { trail = append(trail, "turn:"+e.Request) },
		OnTurnEnd:      func(_ context.Context, e *domain.TurnEvent) { trail = append(trail, "done:"+string(e.Status)) },
	}

	_, _, err := runSession(t, "hello\nexit\n", engine.NewEcho, runner.WithHooks(hooks), runner.WithSessionID("h1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"start:h1", "turn:hello", "done:completed", "end:h1"}, trail)
}

func TestSession_EscapesMarkersInPayload(t *testing.T) {
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		yield("see [~/output~] and ~END_REQUEST~", nil)
	})

	out, _, err := runSession(t, "go\nexit\n", factory)
	require.NoError(t, err)
	events := decodeAll(t, out, protocol.FramingSentinel)
	assert.Equal(t, 1, assertPaired(t, events))
	require.Len(t, events, 4)
	assert.Equal(t, "see [~/output~] and ~END_REQUEST~", events[1].Text)
}

func TestSession_CompatQuestionTags(t *testing.T) {
	factory := scripted(func(ctx context.Context, sink engine.Sink, input string, yield func(string, error) bool) {
		if _, err := sink.ConfirmAsk(ctx, domain.ConfirmRequest{Question: "Ok?"}); err != nil {
			yield("", err)
			return
		}
		yield("~done~", nil)
	})

	out, _, err := runSession(t, "go\ny\nexit\n", factory, runner.WithCompat(true))
	require.NoError(t, err)
	assert.Contains(t, out, "[~confirm_ask~]\n<question>{\"type\":\"question\"")
	assert.Contains(t, out, "</question>\n[~/confirm_ask~]\n")
	assert.Contains(t, out, "~done~[~/output~]", "payload is not escaped in compat mode")
}

func TestSession_CBORFraming(t *testing.T) {
	out, _, err := runSession(t, "hello world\nexit\n", engine.NewEcho,
		runner.WithFraming(protocol.FramingCBOR), runner.WithReadyBanner("ready"))
	require.NoError(t, err)

	events := decodeAll(t, out, protocol.FramingCBOR)
	require.Len(t, events, 5)
	assert.Equal(t, protocol.EventReady, events[0].Kind)
	assert.Equal(t, "ready", events[0].Text)
	assert.Equal(t, protocol.Event{Kind: protocol.EventBegin, Region: protocol.RegionOutput}, events[1])
	assert.Equal(t, "hello world\n", events[2].Text)
	assert.Equal(t, protocol.EventEnd, events[3].Kind)
	assert.Equal(t, protocol.EventEndTurn, events[4].Kind)
}

func TestSession_UnknownFraming(t *testing.T) {
	stream := transport.NewStream(strings.NewReader(""), io.Discard, nil)
	_, err := runner.New(context.Background(), stream, engine.NewEcho, runner.WithFraming("xml"))
	assert.ErrorIs(t, err, domain.ErrInitialization)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_request", runner.StateAwaitingRequest.String())
	assert.Equal(t, "awaiting_answer", runner.StateAwaitingAnswer.String())
	assert.Equal(t, "terminated", runner.StateTerminated.String())
}
