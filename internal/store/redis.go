package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "docchat"

// RedisConfigStore keeps user configuration in a single redis hash.
type RedisConfigStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisConfigStore(client *redis.Client, prefix string) *RedisConfigStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisConfigStore{redis: client, prefix: prefix}
}

func (s *RedisConfigStore) key() string {
	return s.prefix + ":user_config"
}

func (s *RedisConfigStore) Get(ctx context.Context, userID string) (string, error) {
	modelID, err := s.redis.HGet(ctx, s.key(), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("hget user_config user_id=%s: %w", userID, err)
	}
	return modelID, nil
}

func (s *RedisConfigStore) Put(ctx context.Context, userID, modelID string) error {
	if err := s.redis.HSet(ctx, s.key(), userID, modelID).Err(); err != nil {
		return fmt.Errorf("hset user_config user_id=%s: %w", userID, err)
	}
	return nil
}

// RedisCallLogStore keeps one list per user; a companion hash of
// user/request pairs rejects duplicate appends.
type RedisCallLogStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisCallLogStore(client *redis.Client, prefix string) *RedisCallLogStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCallLogStore{redis: client, prefix: prefix}
}

func (s *RedisCallLogStore) listKey(userID string) string {
	return s.prefix + ":call_log:" + userID
}

func (s *RedisCallLogStore) idsKey() string {
	return s.prefix + ":call_log_ids"
}

func (s *RedisCallLogStore) Append(ctx context.Context, e CallLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal call log entry: %w", err)
	}
	id := e.UserID + "|" + e.RequestID
	added, err := s.redis.HSetNX(ctx, s.idsKey(), id, e.CreatedAt.Unix()).Result()
	if err != nil {
		return fmt.Errorf("hsetnx call_log_ids request_id=%s: %w", e.RequestID, err)
	}
	if !added {
		return fmt.Errorf("%w: user_id=%s request_id=%s", ErrDuplicateEntry, e.UserID, e.RequestID)
	}
	if err := s.redis.RPush(ctx, s.listKey(e.UserID), data).Err(); err != nil {
		// Release the id so a retry is not reported as a duplicate.
		if delErr := s.redis.HDel(context.WithoutCancel(ctx), s.idsKey(), id).Err(); delErr != nil {
			return fmt.Errorf("rpush call_log request_id=%s: %w (release id: %v)", e.RequestID, err, delErr)
		}
		return fmt.Errorf("rpush call_log request_id=%s: %w", e.RequestID, err)
	}
	return nil
}

func (s *RedisCallLogStore) ListByUser(ctx context.Context, userID string, limit int) ([]CallLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	values, err := s.redis.LRange(ctx, s.listKey(userID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange call_log user_id=%s: %w", userID, err)
	}
	entries := make([]CallLogEntry, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var e CallLogEntry
		if err := json.Unmarshal([]byte(values[i]), &e); err != nil {
			return nil, fmt.Errorf("decode call log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
