package runner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/negotiator"
	"github.com/aretw0/parley/pkg/protocol"
)

// ErrNotLive is returned to an engine that asks a question before the session has started.
var ErrNotLive = errors.New("question asked before the session started")

type neverKey struct {
	question string
	subject  string
}

// protocolSink is the engine.Sink a session hands to its engine. Tool messages are captured
// into an instance-owned buffer and forwarded as their own regions; questions go through the
// negotiator. The first transport failure is kept so the turn loop can stop.
type protocolSink struct {
	w           *protocol.Writer
	neg         *negotiator.Negotiator
	interceptor ConfirmInterceptor
	logger      *slog.Logger
	onWait      func(waiting bool)

	mu        sync.Mutex
	live      bool
	events    []domain.Event
	questions int
	fatal     error
	never     map[neverKey]struct{}
}

func (s *protocolSink) ToolOutput(messages ...string) {
	s.forward(domain.EventToolOutput, protocol.RegionToolOutput, messages)
}

func (s *protocolSink) ToolWarning(message string) {
	s.forward(domain.EventToolWarning, protocol.RegionToolWarning, []string{message})
}

func (s *protocolSink) ToolError(message string) {
	s.forward(domain.EventToolError, protocol.RegionToolError, []string{message})
}

func (s *protocolSink) forward(kind domain.EventType, r protocol.Region, messages []string) {
	text := strings.Join(messages, " ")

	s.mu.Lock()
	live, fatal := s.live, s.fatal
	if live {
		s.events = append(s.events, domain.Event{
			Type:      kind,
			Messages:  append([]string(nil), messages...),
			Timestamp: time.Now(),
		})
	}
	s.mu.Unlock()

	if !live {
		// Nothing reaches the protocol stream before the ready banner.
		s.logger.Info("engine message during startup", "type", kind, "message", text)
		return
	}
	if fatal != nil {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := s.w.Emit(r, text); err != nil {
		s.fail(err)
	}
}

func (s *protocolSink) ConfirmAsk(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, error) {
	if err := s.ready(); err != nil {
		return domain.ConfirmResult{}, err
	}

	key := neverKey{question: req.Question, subject: req.Subject}
	s.mu.Lock()
	_, suppressed := s.never[key]
	s.mu.Unlock()
	if suppressed {
		return domain.ConfirmResult{Yes: false, Token: domain.TokenDontAskMore}, nil
	}

	if s.interceptor != nil {
		res, handled, err := s.interceptor(ctx, req)
		if err != nil {
			return domain.ConfirmResult{}, err
		}
		if handled {
			s.logger.Debug("confirmation answered by policy", "question", req.Question, "yes", res.Yes)
			return res, nil
		}
	}

	s.waiting(true)
	res, err := s.neg.Confirm(ctx, req)
	s.waiting(false)
	if err != nil {
		s.fail(err)
		return domain.ConfirmResult{}, err
	}

	s.mu.Lock()
	s.questions++
	if res.Token == domain.TokenDontAskMore {
		s.never[key] = struct{}{}
	}
	s.mu.Unlock()
	return res, nil
}

func (s *protocolSink) PromptAsk(ctx context.Context, req domain.PromptRequest) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	s.waiting(true)
	answer, err := s.neg.Prompt(ctx, req)
	s.waiting(false)
	if err != nil {
		s.fail(err)
		return "", err
	}

	s.mu.Lock()
	s.questions++
	s.mu.Unlock()
	return answer, nil
}

func (s *protocolSink) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return ErrNotLive
	}
	return s.fatal
}

func (s *protocolSink) waiting(w bool) {
	if s.onWait != nil {
		s.onWait(w)
	}
}

func (s *protocolSink) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = true
}

// fail keeps the first transport failure. Other errors belong to the engine.
func (s *protocolSink) fail(err error) {
	if !errors.Is(err, domain.ErrTransport) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
}

func (s *protocolSink) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// drain returns and clears the events and question count captured since the last drain.
func (s *protocolSink) drain() ([]domain.Event, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, questions := s.events, s.questions
	s.events, s.questions = nil, 0
	return events, questions
}
