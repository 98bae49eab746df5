package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
)

// LoggingHooks writes one structured log line per lifecycle event.
func LoggingHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnSessionStart: func(ctx context.Context, id string) {
			logger.Info("session_start", "session_id", id)
		},
		OnSessionEnd: func(ctx context.Context, id string) {
			logger.Info("session_end", "session_id", id)
		},
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("turn_start", "session_id", e.SessionID, "turn_id", e.TurnID)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Info("turn_end",
				"session_id", e.SessionID,
				"turn_id", e.TurnID,
				"status", e.Status,
				"duration", e.Duration,
			)
		},
		OnQuestion: func(ctx context.Context, e *domain.QuestionEvent) {
			logger.Debug("question", "session_id", e.SessionID, "kind", e.Kind)
		},
		OnAnswer: func(ctx context.Context, e *domain.QuestionEvent) {
			if !e.Valid {
				logger.Debug("invalid_answer", "session_id", e.SessionID, "reply", e.Reply)
			}
		},
	}
}

// MergeHooks calls every non-nil callback of each set, in order.
func MergeHooks(sets ...domain.Hooks) domain.Hooks {
	var merged domain.Hooks
	for _, h := range sets {
		merged.OnSessionStart = chain(merged.OnSessionStart, h.OnSessionStart)
		merged.OnSessionEnd = chain(merged.OnSessionEnd, h.OnSessionEnd)
		merged.OnTurnStart = chain(merged.OnTurnStart, h.OnTurnStart)
		merged.OnTurnEnd = chain(merged.OnTurnEnd, h.OnTurnEnd)
		merged.OnQuestion = chain(merged.OnQuestion, h.OnQuestion)
		merged.OnAnswer = chain(merged.OnAnswer, h.OnAnswer)
	}
	return merged
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
