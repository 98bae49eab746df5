package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/engine"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/protocol"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/transport"
)

// ServeOptions contains everything the serve command needs besides the configuration file.
type ServeOptions struct {
	Config config.Config
	Logger *slog.Logger

	// Stdin and Stdout carry the protocol when Config.Listen is empty.
	Stdin  io.Reader
	Stdout io.Writer
	// Stderr receives system messages. Defaults to os.Stderr.
	Stderr io.Writer

	// Recorder replaces the configured recorder when set.
	Recorder ports.Recorder
	// Interceptors run before the configured confirmation policy, in order.
	Interceptors []runner.ConfirmInterceptor
	// Listening observes the bound address before the connection is accepted.
	Listening func(net.Addr)
	// MetricsListener replaces Config.Metrics.Addr when set.
	MetricsListener net.Listener
}

// Serve runs one session until the caller exits, the stream closes or ctx is cancelled.
// Cancellation is a clean shutdown and returns nil.
func Serve(ctx context.Context, opts ServeOptions) error {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	factory, err := createEngineFactory(cfg.Engine)
	if err != nil {
		return err
	}

	rec := opts.Recorder
	if rec == nil {
		var closeRec func() error
		rec, closeRec, err = createRecorder(ctx, cfg.Recorder)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeRec(); err != nil {
				logger.Warn("close recorder", "error", err)
			}
		}()
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" || opts.MetricsListener != nil {
		metrics = observability.NewMetrics()
	}

	sessionOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithHooks(createHooks(logger, metrics)),
		runner.WithExitKeyword(cfg.Protocol.ExitKeyword),
		runner.WithReadyBanner(cfg.Protocol.ReadyBanner),
		runner.WithMaxInputSize(cfg.Session.MaxInputSize),
		runner.WithFraming(protocol.Framing(cfg.Protocol.Framing)),
		runner.WithCompat(cfg.Protocol.Compat),
	}
	if rec != nil {
		sessionOpts = append(sessionOpts, runner.WithRecorder(rec))
	}
	sessionOpts = append(sessionOpts, runner.WithInterceptor(confirmPolicy(cfg.Session, opts.Interceptors)))

	sessionCtx, stopAll := context.WithCancel(ctx)
	defer stopAll()

	g, gctx := errgroup.WithContext(sessionCtx)
	if metrics != nil {
		g.Go(func() error {
			if opts.MetricsListener != nil {
				return observability.ServeListener(gctx, opts.MetricsListener, metrics, logger)
			}
			return observability.Serve(gctx, cfg.Metrics.Addr, metrics, logger)
		})
	}
	g.Go(func() error {
		// The metrics server lives exactly as long as the session.
		defer stopAll()
		return serveSession(gctx, cfg, opts, stderr, logger, factory, sessionOpts)
	})

	err = g.Wait()
	if ctx.Err() != nil {
		logger.Info("shutdown", "reason", context.Cause(ctx))
		return nil
	}
	return handleExecutionError(err)
}

func serveSession(ctx context.Context, cfg config.Config, opts ServeOptions, stderr io.Writer, logger *slog.Logger, factory engine.Factory, sessionOpts []runner.Option) error {
	stream, err := openStream(ctx, cfg, opts, stderr, logger)
	if err != nil {
		return err
	}
	stop := stream.CloseOnDone(ctx)
	defer stop()

	if remote := stream.Remote(); remote != "" {
		logger.Info("caller connected", "remote", remote)
	}

	session, err := runner.New(ctx, stream, factory, sessionOpts...)
	if err != nil {
		logger.Error("session init failed", "error", err)
		_ = stream.Close()
		return err
	}

	done := make(chan error, 1)
	go func() {
		err := session.Run(ctx)
		if cerr := stream.Close(); cerr != nil && err == nil && ctx.Err() == nil {
			err = cerr
		}
		done <- err
	}()

	select {
	case err := <-done:
		if errors.Is(err, domain.ErrTransport) && ctx.Err() != nil {
			return nil
		}
		return err
	case <-ctx.Done():
		if cfg.Listen != "" {
			// The socket is closed, so Run returns promptly.
			<-done
			return nil
		}
		// A read blocked on stdin cannot be interrupted; that goroutine ends with the process.
		return nil
	}
}

func openStream(ctx context.Context, cfg config.Config, opts ServeOptions, stderr io.Writer, logger *slog.Logger) (*transport.Stream, error) {
	if cfg.Listen == "" {
		if opts.Stdin == nil && opts.Stdout == nil {
			return transport.Stdio(), nil
		}
		in, out := opts.Stdin, opts.Stdout
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		return transport.NewStream(in, out, nil), nil
	}

	ln, err := transport.Listen(ctx, cfg.Listen)
	if err != nil {
		return nil, err
	}
	logger.Info("listening", "addr", ln.Addr().String())
	printSystemMessage(stderr, "Waiting for a caller on %s", ln.Addr())
	if opts.Listening != nil {
		opts.Listening(ln.Addr())
	}
	return ln.Accept(ctx)
}

// confirmPolicy chains caller-supplied interceptors, then auto-approval when enabled.
// Anything left unhandled goes to the caller.
func confirmPolicy(session config.SessionConfig, extra []runner.ConfirmInterceptor) runner.ConfirmInterceptor {
	chain := append([]runner.ConfirmInterceptor{}, extra...)
	if session.AutoApprove {
		chain = append(chain, runner.AutoApproveMiddleware())
	}
	chain = append(chain, runner.PassThroughMiddleware())
	return runner.MultiInterceptor(chain...)
}
