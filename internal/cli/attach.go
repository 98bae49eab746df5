package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/client"
	"github.com/aretw0/parley/pkg/protocol"
	"github.com/aretw0/parley/pkg/runner"
)

// AttachOptions configures the interactive client.
type AttachOptions struct {
	Addr        string
	Framing     protocol.Framing
	Compat      bool
	ExitKeyword string
	// ReadyBanner must match the server's banner in sentinel framing.
	ReadyBanner string

	In       io.Reader
	Out      io.Writer
	Renderer *tui.Renderer
	Logger   *slog.Logger
	// Interrupts tells a Ctrl+C apart from In reaching its end.
	Interrupts Interrupts
}

// Interrupts reports whether a signal ended the process context.
// *runner.SignalManager implements it.
type Interrupts interface {
	CheckRace()
	Interrupted() bool
}

// Attach connects to a serving session and relays lines typed on In until the exit
// keyword is typed, In ends or the server closes the connection.
func Attach(ctx context.Context, opts AttachOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	exit := opts.ExitKeyword
	if exit == "" {
		exit = runner.DefaultExitKeyword
	}
	framing := opts.Framing
	if framing == "" {
		framing = protocol.FramingSentinel
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = tui.NewRenderer(opts.Out, false)
	}

	c, err := client.Dial(ctx, opts.Addr,
		client.WithFraming(framing),
		client.WithCompat(opts.Compat),
		client.WithExitKeyword(exit),
	)
	if err != nil {
		return err
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if opts.ReadyBanner != "" || framing == protocol.FramingCBOR {
		if _, err := c.AwaitReady(opts.ReadyBanner); err != nil {
			return fmt.Errorf("await ready: %w", err)
		}
	}
	logger.Debug("attached", "addr", opts.Addr)

	scanner := bufio.NewScanner(opts.In)
	answering := false
	for {
		if !answering {
			fmt.Fprint(opts.Out, "> ")
		}
		if !scanner.Scan() {
			// A terminal closes stdin a moment before SIGINT arrives.
			if opts.Interrupts != nil {
				opts.Interrupts.CheckRace()
				if opts.Interrupts.Interrupted() {
					printSystemMessage(opts.Out, "Interrupted.")
					return nil
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			return c.Exit()
		}
		line := scanner.Text()

		// While a question is pending every line is an answer, even the exit keyword.
		if !answering && strings.EqualFold(line, exit) {
			return c.Exit()
		}

		turn, err := c.Ask(line)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				printSystemMessage(opts.Out, "Session closed.")
				return nil
			}
			return err
		}
		renderer.Turn(turn)
		answering = turn.Question != nil || (answering && turn.Rejected())
	}
}
