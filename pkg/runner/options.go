package runner

import (
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/protocol"
)

// DefaultExitKeyword ends the session when received as a request.
const DefaultExitKeyword = "exit"

// Option defines a functional option for configuring the Session.
type Option func(*Session)

// WithLogger configures the diagnostic logger. It must not write to the protocol stream.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHooks configures lifecycle callbacks.
func WithHooks(hooks domain.Hooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}

// WithRecorder stores a transcript record of every completed turn.
func WithRecorder(rec ports.Recorder) Option {
	return func(s *Session) {
		s.recorder = rec
	}
}

// WithSessionID sets the session ID used in logs, hooks and transcripts.
// A random ID is generated otherwise.
func WithSessionID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithExitKeyword overrides DefaultExitKeyword. Matching is case-insensitive.
func WithExitKeyword(keyword string) Option {
	return func(s *Session) {
		if keyword != "" {
			s.exitKeyword = keyword
		}
	}
}

// WithReadyBanner writes banner once the engine is initialized, before the first read.
func WithReadyBanner(banner string) Option {
	return func(s *Session) {
		s.banner = banner
	}
}

// WithMaxInputSize limits requests and answers, in bytes.
func WithMaxInputSize(limit int) Option {
	return func(s *Session) {
		s.maxInput = limit
	}
}

// WithFraming selects the outbound wire format.
func WithFraming(f protocol.Framing) Option {
	return func(s *Session) {
		s.framing = f
	}
}

// WithCompat writes the legacy wire style: no payload escaping, tagged question payloads.
func WithCompat(enabled bool) Option {
	return func(s *Session) {
		s.compat = enabled
	}
}

// WithInterceptor configures the confirmation policy.
func WithInterceptor(interceptor ConfirmInterceptor) Option {
	return func(s *Session) {
		s.interceptor = interceptor
	}
}
