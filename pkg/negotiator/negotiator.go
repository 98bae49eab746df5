package negotiator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/protocol"
)

// Messages written in place of a rejected reply. The question stays pending after either.
const (
	HintPrefix     = "Please answer with one of: "
	RejectedPrefix = "Answer rejected: "
)

// LineReader is the inbound half of the stream.
type LineReader interface {
	ReadLine() (string, error)
}

// Sanitizer cleans a raw reply. An error makes the reply invalid.
type Sanitizer func(string) (string, error)

// Negotiator shares the session's framed writer and line source. It is not safe for
// concurrent use; a session asks one question at a time.
type Negotiator struct {
	w         *protocol.Writer
	in        LineReader
	logger    *slog.Logger
	hooks     domain.Hooks
	sessionID string
	sanitize  Sanitizer
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithLogger configures the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Negotiator) {
		n.logger = logger
	}
}

// WithHooks configures lifecycle callbacks for questions and answers.
func WithHooks(hooks domain.Hooks) Option {
	return func(n *Negotiator) {
		n.hooks = hooks
	}
}

// WithSessionID tags hook events and log lines.
func WithSessionID(id string) Option {
	return func(n *Negotiator) {
		n.sessionID = id
	}
}

// WithSanitizer configures how replies are cleaned before matching.
func WithSanitizer(s Sanitizer) Option {
	return func(n *Negotiator) {
		n.sanitize = s
	}
}

// New creates a Negotiator.
func New(w *protocol.Writer, in LineReader, opts ...Option) *Negotiator {
	n := &Negotiator{
		w:        w,
		in:       in,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitize: func(s string) (string, error) { return s, nil },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Confirm asks a yes/no question and blocks until the caller gives a valid answer.
// An empty reply resolves to the default. Errors wrap domain.ErrTransport.
func (n *Negotiator) Confirm(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConfirmResult{}, err
	}

	accepted, _ := Accepted(req)
	text := QuestionText(req)

	suspended, err := n.w.Suspend()
	if err != nil {
		return domain.ConfirmResult{}, err
	}
	payload := domain.QuestionPayload{
		Type:    domain.QuestionTypeConfirm,
		Text:    text,
		Options: accepted,
	}
	if err := n.ask(ctx, protocol.RegionConfirm, payload); err != nil {
		return domain.ConfirmResult{}, err
	}

	var tok domain.Token
	for {
		reply, err := n.readReply()
		if err != nil {
			return domain.ConfirmResult{}, err
		}

		clean, sanErr := n.sanitize(reply)
		clean = strings.TrimSpace(clean)
		valid := sanErr == nil
		if valid {
			if clean == "" {
				tok = defaultToken(req, accepted)
			} else {
				tok, valid = Match(clean, accepted)
			}
		}
		n.answered(ctx, domain.QuestionTypeConfirm, text, reply, valid)
		if valid {
			break
		}

		n.logger.Debug("invalid answer", "session_id", n.sessionID, "reply", reply)
		if err := n.reject(HintPrefix + joinTokens(accepted)); err != nil {
			return domain.ConfirmResult{}, err
		}
	}

	if err := n.w.Resume(suspended); err != nil {
		return domain.ConfirmResult{}, err
	}
	return domain.ConfirmResult{Yes: Decide(req, tok), Token: tok}, nil
}

// Prompt asks a free-text question. An empty reply resolves to the default; a reply the
// sanitizer rejects is asked for again.
func (n *Negotiator) Prompt(ctx context.Context, req domain.PromptRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	suspended, err := n.w.Suspend()
	if err != nil {
		return "", err
	}
	payload := domain.QuestionPayload{
		Type:    domain.QuestionTypePrompt,
		Text:    req.Question,
		Default: req.Default,
		Subject: req.Subject,
	}
	if err := n.ask(ctx, protocol.RegionPrompt, payload); err != nil {
		return "", err
	}

	var answer string
	for {
		reply, err := n.readReply()
		if err != nil {
			return "", err
		}
		clean, sanErr := n.sanitize(reply)
		clean = strings.TrimSpace(clean)
		n.answered(ctx, domain.QuestionTypePrompt, req.Question, reply, sanErr == nil)
		if sanErr == nil {
			answer = clean
			break
		}
		if err := n.reject(fmt.Sprintf("%s%v", RejectedPrefix, sanErr)); err != nil {
			return "", err
		}
	}
	if answer == "" {
		answer = req.Default
	}

	if err := n.w.Resume(suspended); err != nil {
		return "", err
	}
	return answer, nil
}

func (n *Negotiator) ask(ctx context.Context, r protocol.Region, payload domain.QuestionPayload) error {
	if err := n.w.Question(r, payload); err != nil {
		return err
	}
	if err := n.w.EndTurn(); err != nil {
		return err
	}
	if n.hooks.OnQuestion != nil {
		n.hooks.OnQuestion(ctx, &domain.QuestionEvent{
			SessionID: n.sessionID,
			Kind:      payload.Type,
			Text:      payload.Text,
		})
	}
	return nil
}

func (n *Negotiator) answered(ctx context.Context, kind, text, reply string, valid bool) {
	if n.hooks.OnAnswer != nil {
		n.hooks.OnAnswer(ctx, &domain.QuestionEvent{
			SessionID: n.sessionID,
			Kind:      kind,
			Text:      text,
			Reply:     reply,
			Valid:     valid,
		})
	}
}

// reject writes the reminder as plain output and hands the turn back to the caller.
func (n *Negotiator) reject(msg string) error {
	if err := n.w.Emit(protocol.RegionOutput, msg+"\n"); err != nil {
		return err
	}
	return n.w.EndTurn()
}

// readReply blocks for one line. The caller hanging up mid-question is a transport failure.
func (n *Negotiator) readReply() (string, error) {
	reply, err := n.in.ReadLine()
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, domain.ErrTransport) {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return "", fmt.Errorf("read answer: %w: %w", domain.ErrTransport, err)
}
