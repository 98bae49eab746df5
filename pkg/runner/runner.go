package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/engine"
	"github.com/aretw0/parley/pkg/negotiator"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/protocol"
	"github.com/google/uuid"
)

// State is a position in the turn state machine.
type State int32

const (
	StateAwaitingRequest State = iota
	StateStreaming
	StateAwaitingAnswer
	StateTurnComplete
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequest:
		return "awaiting_request"
	case StateStreaming:
		return "streaming"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateTurnComplete:
		return "turn_complete"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Conn is the duplex stream a session runs over. If it also has a Flush method, every
// protocol write is flushed.
type Conn interface {
	ReadLine() (string, error)
	io.Writer
}

// Session drives the turns of one caller. It is single-threaded: the next request is never
// read before the previous turn's termination marker has been written.
type Session struct {
	id          string
	conn        Conn
	w           *protocol.Writer
	engine      engine.Engine
	sink        *protocolSink
	sanitizer   *Sanitizer
	logger      *slog.Logger
	hooks       domain.Hooks
	recorder    ports.Recorder
	interceptor ConfirmInterceptor
	exitKeyword string
	banner      string
	maxInput    int
	framing     protocol.Framing
	compat      bool

	state atomic.Int32
	turns int
}

// New builds a session over conn and initializes the engine through factory. Nothing is
// written to conn when initialization fails; the error wraps domain.ErrInitialization.
func New(ctx context.Context, conn Conn, factory engine.Factory, opts ...Option) (*Session, error) {
	s := &Session{
		conn:        conn,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		exitKeyword: DefaultExitKeyword,
		framing:     protocol.FramingSentinel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.logger = s.logger.With("session_id", s.id)
	s.sanitizer = NewSanitizer(s.maxInput)

	enc, err := protocol.NewEncoder(s.framing, protocol.CodecOptions{Compat: s.compat})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	s.w = protocol.NewWriter(conn, enc, protocol.WithQuestionTags(s.compat))

	neg := negotiator.New(s.w, conn,
		negotiator.WithLogger(s.logger),
		negotiator.WithHooks(s.hooks),
		negotiator.WithSessionID(s.id),
		negotiator.WithSanitizer(s.sanitizer.Clean),
	)
	s.sink = &protocolSink{
		w:           s.w,
		neg:         neg,
		interceptor: s.interceptor,
		logger:      s.logger,
		never:       make(map[neverKey]struct{}),
		onWait: func(waiting bool) {
			if waiting {
				s.setState(StateAwaitingAnswer)
			} else {
				s.setState(StateStreaming)
			}
		},
	}

	eng, err := s.initEngine(ctx, factory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInitialization, err)
	}
	s.engine = eng
	s.setState(StateAwaitingRequest)
	return s, nil
}

func (s *Session) initEngine(ctx context.Context, factory engine.Factory) (eng engine.Engine, err error) {
	if factory == nil {
		return nil, errors.New("no engine factory")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	eng, err = factory(ctx, s.sink)
	if err == nil && eng == nil {
		err = errors.New("engine factory returned no engine")
	}
	return eng, err
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state. Safe to call from other goroutines.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Turns returns how many turns have been processed.
func (s *Session) Turns() int {
	return s.turns
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Run executes the turn loop until the caller sends the exit keyword or the stream closes.
// A clean close returns nil; a transport failure is returned and wraps domain.ErrTransport.
func (s *Session) Run(ctx context.Context) error {
	if s.hooks.OnSessionStart != nil {
		s.hooks.OnSessionStart(ctx, s.id)
	}
	defer func() {
		s.setState(StateTerminated)
		if c, ok := s.engine.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.logger.Warn("close engine", "error", err)
			}
		}
		if s.hooks.OnSessionEnd != nil {
			s.hooks.OnSessionEnd(ctx, s.id)
		}
	}()

	s.sink.start()
	if err := s.w.Ready(s.banner); err != nil {
		return err
	}
	s.logger.Debug("session ready")

	for {
		s.setState(StateAwaitingRequest)
		line, err := s.conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				s.logger.Debug("stream closed", "turns", s.turns)
				return nil
			}
			return err
		}

		if strings.EqualFold(line, s.exitKeyword) {
			s.logger.Debug("exit requested", "turns", s.turns)
			return nil
		}

		if err := s.runTurn(ctx, line); err != nil {
			return err
		}
	}
}

// runTurn processes one request. Only a transport failure is returned; every other failure
// still ends the turn with its termination marker.
func (s *Session) runTurn(ctx context.Context, raw string) error {
	s.turns++
	rec := domain.TurnRecord{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Request:   raw,
		StartedAt: time.Now(),
	}
	logger := s.logger.With("turn", s.turns)
	if s.hooks.OnTurnStart != nil {
		s.hooks.OnTurnStart(ctx, &domain.TurnEvent{SessionID: s.id, TurnID: rec.ID, Request: raw})
	}

	var turnErr error
	request, err := s.sanitizer.Clean(raw)
	if err != nil {
		turnErr = err
		if werr := s.w.Emit(protocol.RegionToolError, fmt.Sprintf("Request rejected: %v\n", err)); werr != nil {
			return s.abort(ctx, logger, &rec, werr)
		}
	} else {
		rec.Request = request
		s.setState(StateStreaming)
		rec.Chunks, turnErr = s.stream(ctx, request)
	}

	if fatal := s.sink.fatalErr(); fatal != nil {
		return s.abort(ctx, logger, &rec, fatal)
	}
	if errors.Is(turnErr, domain.ErrTransport) {
		return s.abort(ctx, logger, &rec, turnErr)
	}

	if err := s.w.CloseOpen(); err != nil {
		return s.abort(ctx, logger, &rec, err)
	}
	if err := s.w.EndTurn(); err != nil {
		return s.abort(ctx, logger, &rec, err)
	}
	s.setState(StateTurnComplete)

	status := domain.TurnCompleted
	if turnErr != nil {
		status = domain.TurnFailed
		logger.Error("turn failed", "error", turnErr)
	}
	s.finish(ctx, logger, &rec, status, turnErr)
	return nil
}

// stream runs the engine inside an output region. Panics are turned into errors.
func (s *Session) stream(ctx context.Context, request string) (chunks int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()

	if err := s.w.BeginRegion(protocol.RegionOutput); err != nil {
		return 0, err
	}
	for chunk, err := range s.engine.RunStream(ctx, request) {
		if err != nil {
			return chunks, err
		}
		if chunk == "" {
			continue
		}
		if err := s.w.WriteChunk(chunk); err != nil {
			return chunks, err
		}
		chunks++
	}
	return chunks, nil
}

// abort records a turn lost to a transport failure. No further markers are written.
func (s *Session) abort(ctx context.Context, logger *slog.Logger, rec *domain.TurnRecord, err error) error {
	logger.Error("transport lost", "error", err)
	s.finish(ctx, logger, rec, domain.TurnAborted, err)
	return err
}

func (s *Session) finish(ctx context.Context, logger *slog.Logger, rec *domain.TurnRecord, status domain.TurnStatus, err error) {
	rec.Events, rec.Questions = s.sink.drain()
	rec.Status = status
	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Error = err.Error()
	}

	if s.recorder != nil {
		// Recording outlives cancellation of the serve context.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if rerr := s.recorder.Record(recCtx, *rec); rerr != nil {
			logger.Warn("record turn", "error", rerr)
		}
		cancel()
	}

	if s.hooks.OnTurnEnd != nil {
		s.hooks.OnTurnEnd(ctx, &domain.TurnEvent{
			SessionID: s.id,
			TurnID:    rec.ID,
			Request:   rec.Request,
			Status:    status,
			Duration:  rec.Duration,
			Err:       err,
		})
	}
}
