package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "procflow:"

// RedisBackend stores each user's record as a single JSON value under one
// key. When a TTL is configured the whole record expires together; partial
// per-service expiry is deliberately not supported.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Backend = (*RedisBackend)(nil)

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithTTL sets the time-to-live for user records. Zero means no expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(b *RedisBackend) {
		b.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "procflow:".
func WithPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		b.prefix = prefix
	}
}

// NewRedisBackend creates a Redis-backed store.
//
// Example:
//
//	backend := persistence.NewRedisBackend(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    persistence.WithTTL(24*time.Hour),
//	)
func NewRedisBackend(client *redis.Client, opts ...RedisOption) *RedisBackend {
	b := &RedisBackend{
		client: client,
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBackend) userKey(userID string) string {
	return b.prefix + "user:" + userID
}

func (b *RedisBackend) LoadUserRecord(ctx context.Context, userID string) (map[string]any, error) {
	data, err := b.client.Get(ctx, b.userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	if record == nil {
		record = map[string]any{}
	}
	return record, nil
}

func (b *RedisBackend) SaveUserRecord(ctx context.Context, userID string, record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := b.client.Set(ctx, b.userKey(userID), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) RemoveUserRecord(ctx context.Context, userID string) (bool, error) {
	deleted, err := b.client.Del(ctx, b.userKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return deleted > 0, nil
}

func (b *RedisBackend) HealthCheck(ctx context.Context) bool {
	return b.client.Ping(ctx).Err() == nil
}

func (b *RedisBackend) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	pattern := b.prefix + "user:*"
	iter := b.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), b.prefix+"user:"))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return ids, nil
}
