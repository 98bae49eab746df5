package domain

import "time"

// TurnStatus is the terminal status of a turn.
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnFailed    TurnStatus = "failed"
	// TurnAborted means the transport was lost before the turn could be terminated.
	TurnAborted TurnStatus = "aborted"
)

// TurnRecord is the transcript entry of one request/response cycle.
type TurnRecord struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Request   string        `json:"request"`
	Chunks    int           `json:"chunks"`
	Questions int           `json:"questions"`
	Status    TurnStatus    `json:"status"`
	Error     string        `json:"error,omitempty"`
	Events    []Event       `json:"events,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
