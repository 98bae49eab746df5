package script

import (
	"context"
	"errors"
	"iter"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/engine"
)

// Options configures the script engine from the server configuration.
type Options struct {
	Path string `mapstructure:"path"`
}

// Engine plays a Script.
type Engine struct {
	script *Script
	sink   engine.Sink
}

// NewFactory returns an engine.Factory playing s.
func NewFactory(s *Script) engine.Factory {
	return func(ctx context.Context, sink engine.Sink) (engine.Engine, error) {
		if s == nil {
			return nil, errors.New("no script")
		}
		return &Engine{script: s, sink: sink}, nil
	}
}

// RunStream plays the first rule matching input, or the fallback.
func (e *Engine) RunStream(ctx context.Context, input string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		steps, expand := e.script.match(input)
		e.play(ctx, steps, expand, yield)
	}
}

// play returns false once the sequence must stop.
func (e *Engine) play(ctx context.Context, steps []Step, expand func(string) string, yield func(string, error) bool) bool {
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			yield("", err)
			return false
		}

		switch {
		case st.Say != "":
			if !yield(line(expand(st.Say)), nil) {
				return false
			}
		case st.ToolOutput != "":
			e.sink.ToolOutput(expand(st.ToolOutput))
		case st.Warning != "":
			e.sink.ToolWarning(expand(st.Warning))
		case st.Error != "":
			e.sink.ToolError(expand(st.Error))
		case st.Fail != "":
			yield("", errors.New(expand(st.Fail)))
			return false
		case st.Confirm != nil:
			c := st.Confirm
			res, err := e.sink.ConfirmAsk(ctx, domain.ConfirmRequest{
				Question:            expand(c.Question),
				Default:             c.Default,
				Subject:             expand(c.Subject),
				ExplicitYesRequired: c.ExplicitYesRequired,
				Group:               c.Group,
				AllowNever:          c.AllowNever,
			})
			if err != nil {
				yield("", err)
				return false
			}
			next := c.OnNo
			if res.Yes {
				next = c.OnYes
			}
			if !e.play(ctx, next, expand, yield) {
				return false
			}
		case st.Prompt != nil:
			p := st.Prompt
			answer, err := e.sink.PromptAsk(ctx, domain.PromptRequest{
				Question: expand(p.Question),
				Default:  expand(p.Default),
				Subject:  expand(p.Subject),
			})
			if err != nil {
				yield("", err)
				return false
			}
			if p.Echo != "" {
				text := strings.ReplaceAll(expand(p.Echo), "{answer}", answer)
				if !yield(line(text), nil) {
					return false
				}
			}
		}
	}
	return true
}

func line(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
