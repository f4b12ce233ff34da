package member

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "padron:list_state:"

// RedisSessionStore shares ListState between server instances. Each save
// refreshes the key's TTL.
type RedisSessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

func (r *RedisSessionStore) Load(ctx context.Context, userID string) (*ListState, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load list state: %w", err)
	}
	return decodeState(raw)
}

func (r *RedisSessionStore) Save(ctx context.Context, userID string, s ListState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode list state: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save list state: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear list state: %w", err)
	}
	return nil
}

func decodeState(raw []byte) (*ListState, error) {
	var s ListState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode list state: %w", err)
	}
	return &s, nil
}
