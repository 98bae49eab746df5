// Package memory provides an in-process Recorder.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Recorder implements ports.Recorder in memory.
// Safe for concurrent use.
type Recorder struct {
	data map[string][]domain.TurnRecord
	mu   sync.RWMutex
}

// NewRecorder creates an empty in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		data: make(map[string][]domain.TurnRecord),
	}
}

// Record appends a copy of rec to its session's transcript.
func (r *Recorder) Record(ctx context.Context, rec domain.TurnRecord) error {
	rec.Events = copyEvents(rec.Events)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[rec.SessionID] = append(r.data[rec.SessionID], rec)
	return nil
}

// List returns a copy of the session's transcript.
func (r *Recorder) List(ctx context.Context, sessionID string) ([]domain.TurnRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	turns := r.data[sessionID]
	out := make([]domain.TurnRecord, len(turns))
	for i, t := range turns {
		t.Events = copyEvents(t.Events)
		out[i] = t
	}
	return out, nil
}

// Sessions returns the IDs of every session with at least one recorded turn.
func (r *Recorder) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func copyEvents(events []domain.Event) []domain.Event {
	if events == nil {
		return nil
	}
	out := make([]domain.Event, len(events))
	for i, e := range events {
		e.Messages = slices.Clone(e.Messages)
		out[i] = e
	}
	return out
}
