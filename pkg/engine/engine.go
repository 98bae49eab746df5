// Package engine defines the two capabilities through which the bridge consumes a
// conversational engine: a lazy stream of text chunks per request, and a sink the engine
// calls to emit tool messages and to ask the caller questions.
package engine

import (
	"context"
	"iter"

	"github.com/aretw0/parley/pkg/domain"
)

// Engine produces the streamed response to one request.
type Engine interface {
	// RunStream returns the lazy sequence of chunks for input. The sequence is consumed
	// synchronously; a non-nil error ends it.
	RunStream(ctx context.Context, input string) iter.Seq2[string, error]
}

// Sink is the output capability injected into the engine at construction.
type Sink interface {
	// ToolOutput, ToolWarning and ToolError capture and forward a message. They never block
	// on the caller.
	ToolOutput(messages ...string)
	ToolWarning(message string)
	ToolError(message string)

	// ConfirmAsk blocks until the caller gives a valid answer to req.
	ConfirmAsk(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, error)

	// PromptAsk blocks until the caller answers a free-text question.
	PromptAsk(ctx context.Context, req domain.PromptRequest) (string, error)
}

// Factory builds an engine bound to sink. An error is an initialization failure.
type Factory func(ctx context.Context, sink Sink) (Engine, error)

// Func adapts a function to the Engine interface.
type Func func(ctx context.Context, input string) iter.Seq2[string, error]

// RunStream calls f.
func (f Func) RunStream(ctx context.Context, input string) iter.Seq2[string, error] {
	return f(ctx, input)
}

// Chunks returns a sequence yielding each chunk in order.
func Chunks(chunks ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Fail returns a sequence that yields err after the given chunks.
func Fail(err error, chunks ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		yield("", err)
	}
}
