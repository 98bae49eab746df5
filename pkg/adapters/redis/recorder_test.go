package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRecorder_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunRecorderContract(t, redis.NewFromClient(client))
}

func TestRedisRecorder_Prefix(t *testing.T) {
	mr, client := newClient(t)
	rec := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, domain.TurnRecord{ID: "t1", SessionID: "my-session"}))

	assert.True(t, mr.Exists("custom:app:s:my-session"), "expected list with custom prefix")
	assert.True(t, mr.Exists("custom:app:sessions"), "expected index with custom prefix")

	items, err := mr.List("custom:app:s:my-session")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Contains(t, items[0], `"session_id":"my-session"`)
}

func TestRedisRecorder_SessionNamedLikeIndex(t *testing.T) {
	_, client := newClient(t)
	rec := redis.NewFromClient(client)
	ctx := context.Background()

	for _, id := range []string{"index", "sessions", "s:x"} {
		require.NoError(t, rec.Record(ctx, domain.TurnRecord{ID: "t-" + id, SessionID: id, Request: "hi"}))
	}

	sessions, err := rec.Sessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index", "sessions", "s:x"}, sessions)

	for _, id := range sessions {
		turns, err := rec.List(ctx, id)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, id, turns[0].SessionID)
	}
}

func TestRedisRecorder_TTL(t *testing.T) {
	mr, client := newClient(t)
	rec := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, domain.TurnRecord{ID: "t1", SessionID: "s1"}))
	assert.Equal(t, time.Minute, mr.TTL(redis.DefaultPrefix+"s:s1"))

	sessions, err := rec.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sessions)

	mr.FastForward(2 * time.Minute)

	turns, err := rec.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	sessions, err = rec.Sessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions, "expired transcripts are dropped from the index")
}

func TestRedisRecorder_New(t *testing.T) {
	mr := miniredis.RunT(t)

	rec, err := redis.New(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	assert.NoError(t, rec.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = redis.New(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
