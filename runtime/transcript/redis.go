package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Defaults for RedisArchive.
const (
	DefaultRedisPrefix = "roboshen"
	DefaultRedisTTL    = 7 * 24 * time.Hour
)

// RedisArchive stores each session's transcript as a Redis list of JSON
// entries, with a sorted-set index of sessions by last update.
type RedisArchive struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisArchive.
type RedisOption func(*RedisArchive)

// WithTTL sets how long a transcript is kept after its last append.
// Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(a *RedisArchive) {
		a.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "roboshen".
func WithPrefix(prefix string) RedisOption {
	return func(a *RedisArchive) {
		a.prefix = prefix
	}
}

// NewRedisArchive creates a Redis-backed archive.
func NewRedisArchive(client *redis.Client, opts ...RedisOption) *RedisArchive {
	a := &RedisArchive{
		client: client,
		ttl:    DefaultRedisTTL,
		prefix: DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *RedisArchive) entriesKey(id string) string {
	return fmt.Sprintf("%s:transcript:%s", a.prefix, id)
}

func (a *RedisArchive) indexKey() string {
	return a.prefix + ":transcripts"
}

// Append implements Archive. The RPUSH, EXPIRE and index update go out in
// one pipeline.
func (a *RedisArchive) Append(ctx context.Context, sessionID string, entries ...Entry) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	if len(entries) == 0 {
		return nil
	}

	vals := make([]any, 0, len(entries))
	for i := range entries {
		data, err := json.Marshal(&entries[i])
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		vals = append(vals, data)
	}

	key := a.entriesKey(sessionID)
	pipe := a.client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	if a.ttl > 0 {
		pipe.Expire(ctx, key, a.ttl)
	}
	pipe.ZAdd(ctx, a.indexKey(), redis.Z{Score: float64(time.Now().UnixMilli()), Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Load implements Archive.
func (a *RedisArchive) Load(ctx context.Context, sessionID string) ([]Entry, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}
	raw, err := a.client.LRange(ctx, a.entriesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// List implements Archive. Sessions whose list has expired are pruned from
// the index as they are found.
func (a *RedisArchive) List(ctx context.Context, limit int) ([]SessionInfo, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := a.client.ZRevRangeWithScores(ctx, a.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange failed: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := a.client.Pipeline()
	lens := make([]*redis.IntCmd, len(members))
	for i, m := range members {
		lens[i] = pipe.LLen(ctx, a.entriesKey(m.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis pipeline failed: %w", err)
	}

	out := make([]SessionInfo, 0, len(members))
	for i, m := range members {
		id := m.Member.(string)
		n := lens[i].Val()
		if n == 0 {
			a.client.ZRem(ctx, a.indexKey(), id)
			continue
		}
		out = append(out, SessionInfo{
			ID:        id,
			Entries:   int(n),
			UpdatedAt: time.UnixMilli(int64(m.Score)),
		})
	}
	return out, nil
}

// Delete implements Archive.
func (a *RedisArchive) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	pipe := a.client.TxPipeline()
	del := pipe.Del(ctx, a.entriesKey(sessionID))
	pipe.ZRem(ctx, a.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Archive = (*RedisArchive)(nil)
