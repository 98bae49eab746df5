// Package process provides an engine that runs a configured command once per request.
// The request reaches the command on stdin and in PARLEY_REQUEST; stdout is streamed back
// line by line and stderr lines become tool warnings.
package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strings"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/engine"
)

// EnvRequest carries the request text to the command.
const EnvRequest = "PARLEY_REQUEST"

// Engine runs Config.Command for each request.
type Engine struct {
	cfg  Config
	sink engine.Sink
}

// NewFactory returns an engine.Factory for cfg. The command must be resolvable on PATH.
func NewFactory(cfg Config) engine.Factory {
	return func(ctx context.Context, sink engine.Sink) (engine.Engine, error) {
		cfg, err := cfg.Resolve()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, err := exec.LookPath(cfg.Command); err != nil {
			return nil, fmt.Errorf("process engine: %w", err)
		}
		return &Engine{cfg: cfg, sink: sink}, nil
	}
}

// RunStream runs the command once. A non-zero exit ends the sequence with an error after
// everything the command printed has been streamed.
func (e *Engine) RunStream(ctx context.Context, input string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if e.cfg.Confirm != "" {
			res, err := e.sink.ConfirmAsk(ctx, domain.ConfirmRequest{
				Question:            e.cfg.Confirm,
				Subject:             input,
				ExplicitYesRequired: e.cfg.ExplicitYesRequired,
			})
			if err != nil {
				yield("", err)
				return
			}
			if !res.Yes {
				e.sink.ToolWarning(fmt.Sprintf("Skipped %s", e.cfg.DisplayName()))
				return
			}
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if e.cfg.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(runCtx, e.cfg.Timeout)
			defer cancel()
		}

		// The request travels as data, never as argv, so it cannot inject flags.
		cmd := exec.CommandContext(runCtx, e.cfg.Command, e.cfg.Args...)
		cmd.Dir = e.cfg.Dir
		cmd.Env = append(cmd.Environ(), EnvRequest+"="+input)
		for k, v := range e.cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		cmd.Stdin = strings.NewReader(input + "\n")

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield("", fmt.Errorf("%s: %w", e.cfg.DisplayName(), err))
			return
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			yield("", fmt.Errorf("%s: %w", e.cfg.DisplayName(), err))
			return
		}
		if err := cmd.Start(); err != nil {
			yield("", fmt.Errorf("start %s: %w", e.cfg.DisplayName(), err))
			return
		}

		// stderr is collected on the side and forwarded from this goroutine once the
		// command is done, keeping sink calls on the session's path.
		var warnings []string
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			sc := bufio.NewScanner(stderr)
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); line != "" {
					warnings = append(warnings, line)
				}
			}
		}()

		stopped := false
		r := bufio.NewReader(stdout)
		for {
			line, readErr := r.ReadString('\n')
			if line != "" && !stopped {
				if !yield(line, nil) {
					stopped = true
					cancel()
				}
			}
			if readErr != nil {
				if readErr != io.EOF && !stopped {
					e.sink.ToolWarning(fmt.Sprintf("read output of %s: %v", e.cfg.DisplayName(), readErr))
				}
				break
			}
		}

		wg.Wait()
		waitErr := cmd.Wait()
		if stopped {
			return
		}
		for _, w := range warnings {
			e.sink.ToolWarning(w)
		}
		if waitErr != nil {
			if runCtx.Err() == context.DeadlineExceeded {
				yield("", fmt.Errorf("%s timed out after %s", e.cfg.DisplayName(), e.cfg.Timeout))
				return
			}
			yield("", fmt.Errorf("%s: %w", e.cfg.DisplayName(), waitErr))
		}
	}
}
