package engine

import (
	"context"
	"iter"
	"strings"
)

// Echo streams the request back one word at a time.
type Echo struct{}

// NewEcho is a Factory for Echo.
func NewEcho(ctx context.Context, sink Sink) (Engine, error) {
	return Echo{}, nil
}

func (Echo) RunStream(ctx context.Context, input string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		words := strings.Fields(input)
		for i, w := range words {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if i < len(words)-1 {
				w += " "
			}
			if !yield(w, nil) {
				return
			}
		}
		yield("\n", nil)
	}
}
