package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRecorderContract runs a suite of tests to verify that a Recorder implementation
// adheres to the interface contract.
func RunRecorderContract(t *testing.T, rec Recorder) {
	ctx := context.Background()
	sessionID := "contract-session-" + time.Now().Format("20060102150405.000")

	turn := func(id, request string, status domain.TurnStatus) domain.TurnRecord {
		return domain.TurnRecord{
			ID:        id,
			SessionID: sessionID,
			Request:   request,
			Chunks:    3,
			Status:    status,
			Events: []domain.Event{
				{Type: domain.EventToolOutput, Messages: []string{"Added main.go"}, Timestamp: time.Now().UTC()},
			},
			StartedAt: time.Now().UTC().Truncate(time.Millisecond),
			Duration:  150 * time.Millisecond,
		}
	}

	t.Run("Record and List", func(t *testing.T) {
		first := turn("t1", "add logging", domain.TurnCompleted)
		second := turn("t2", "undo", domain.TurnFailed)
		second.Error = "engine exploded"

		require.NoError(t, rec.Record(ctx, first))
		require.NoError(t, rec.Record(ctx, second))

		got, err := rec.List(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, got, 2, "turns are appended in order")
		assert.Equal(t, "t1", got[0].ID)
		assert.Equal(t, "add logging", got[0].Request)
		assert.Equal(t, 3, got[0].Chunks)
		assert.Equal(t, first.Duration, got[0].Duration)
		assert.True(t, first.StartedAt.Equal(got[0].StartedAt))
		require.Len(t, got[0].Events, 1)
		assert.Equal(t, []string{"Added main.go"}, got[0].Events[0].Messages)
		assert.Equal(t, domain.TurnFailed, got[1].Status)
		assert.Equal(t, "engine exploded", got[1].Error)
	})

	t.Run("Sessions are isolated", func(t *testing.T) {
		other := turn("o1", "hello", domain.TurnCompleted)
		other.SessionID = sessionID + "-other"
		require.NoError(t, rec.Record(ctx, other))

		got, err := rec.List(ctx, sessionID+"-other")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "o1", got[0].ID)
	})

	t.Run("List unknown session", func(t *testing.T) {
		got, err := rec.List(ctx, "missing-"+sessionID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
