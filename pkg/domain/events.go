package domain

import (
	"context"
	"time"
)

// EventType tags a message captured from the engine's sink.
type EventType string

const (
	EventToolOutput  EventType = "tool_output"
	EventToolWarning EventType = "tool_warning"
	EventToolError   EventType = "tool_error"
)

// Event is a record of a sink-level call, buffered until the session drains it.
type Event struct {
	Type      EventType `json:"type"`
	Messages  []string  `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnEvent is passed to lifecycle hooks around a turn.
type TurnEvent struct {
	SessionID string
	TurnID    string
	Request   string
	Status    TurnStatus
	Duration  time.Duration
	Err       error
}

// QuestionEvent is passed to lifecycle hooks when a question is asked or answered.
type QuestionEvent struct {
	SessionID string
	Kind      string // QuestionTypeConfirm or QuestionTypePrompt
	Text      string
	Reply     string
	Valid     bool
}

// Hooks defines callbacks for session observability.
// Nil callbacks are skipped.
type Hooks struct {
	OnSessionStart func(context.Context, string)
	OnSessionEnd   func(context.Context, string)
	OnTurnStart    func(context.Context, *TurnEvent)
	OnTurnEnd      func(context.Context, *TurnEvent)
	OnQuestion     func(context.Context, *QuestionEvent)
	OnAnswer       func(context.Context, *QuestionEvent)
}
