package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Recorder keeps a transcript of completed turns.
// Implementations must be safe for concurrent use by independent sessions.
type Recorder interface {
	// Record appends a completed turn to the transcript of rec.SessionID.
	Record(ctx context.Context, rec domain.TurnRecord) error

	// List returns the turns of a session in the order they were recorded.
	// An unknown session yields an empty slice, not an error.
	List(ctx context.Context, sessionID string) ([]domain.TurnRecord, error)
}
