// Package redis provides a Recorder backed by Redis lists.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the recorder writes.
const DefaultPrefix = "parley:turns:"

// Recorder implements ports.Recorder. Each session is a list of JSON-encoded turns at
// "<prefix>s:<session_id>"; "<prefix>sessions" is a sorted set of session IDs by last
// activity. No session ID can name the index.
type Recorder struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithTTL expires a session's transcript ttl after its last recorded turn.
func WithTTL(ttl time.Duration) Option {
	return func(r *Recorder) {
		r.ttl = ttl
	}
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(r *Recorder) {
		r.prefix = prefix
	}
}

// New connects to addr. The connection is verified with PING.
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*Recorder, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewFromClient(client, opts...), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Recorder {
	r := &Recorder{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) key(sessionID string) string {
	return r.prefix + "s:" + sessionID
}

func (r *Recorder) indexKey() string {
	return r.prefix + "sessions"
}

// Record appends rec to its session list and refreshes the TTL.
func (r *Recorder) Record(ctx context.Context, rec domain.TurnRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode turn %s: %w", rec.ID, err)
	}

	key := r.key(rec.SessionID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{
		Score:  float64(time.Now().Unix()),
		Member: rec.SessionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record turn %s: %w", rec.ID, err)
	}
	return nil
}

// List reads the whole transcript of a session.
func (r *Recorder) List(ctx context.Context, sessionID string) ([]domain.TurnRecord, error) {
	raw, err := r.client.LRange(ctx, r.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list turns of %s: %w", sessionID, err)
	}

	turns := make([]domain.TurnRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.TurnRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode turn of %s: %w", sessionID, err)
		}
		turns = append(turns, rec)
	}
	return turns, nil
}

// Sessions returns session IDs whose transcript still exists, most recent last.
// Index entries whose list has expired are removed lazily.
func (r *Recorder) Sessions(ctx context.Context) ([]string, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.client.Exists(ctx, r.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check session %s: %w", id, err)
		}
		if n == 0 {
			r.client.ZRem(ctx, r.indexKey(), id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// Close releases the client.
func (r *Recorder) Close() error {
	return r.client.Close()
}
