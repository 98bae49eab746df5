package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
)

// NewLogger configures the application logger on w, which is never the protocol channel.
func NewLogger(w io.Writer, debug bool, format string) (*slog.Logger, error) {
	f, err := logging.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return logging.NewWithWriter(w, level, f), nil
}

// printSystemMessage prints a standardized system message to w.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// createRecorder opens the configured transcript recorder. A nil recorder disables
// recording. The returned close function is always safe to call.
func createRecorder(ctx context.Context, cfg config.RecorderConfig) (ports.Recorder, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Kind {
	case "", config.RecorderNone:
		return nil, noop, nil
	case config.RecorderMemory:
		return memory.NewRecorder(), noop, nil
	case config.RecorderRedis:
		var opts []redis.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		rec, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		if err != nil {
			return nil, noop, err
		}
		return rec, rec.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown recorder kind %q", cfg.Kind)
	}
}

// createHooks merges debug logging with metrics, when enabled.
func createHooks(logger *slog.Logger, metrics *observability.Metrics) domain.Hooks {
	hooks := observability.LoggingHooks(logger)
	if metrics != nil {
		hooks = observability.MergeHooks(hooks, metrics.Hooks())
	}
	return hooks
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil // Exit 0 for interruptions
	}
	return err
}
