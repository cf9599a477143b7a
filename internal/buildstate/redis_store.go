package buildstate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisHashKey = "mail2alert:buildstate"

// RedisStore keeps every stage state as a field of one Redis hash, so history
// survives a restart of the proxy.
type RedisStore struct {
	client  *redis.Client
	hashKey string
}

func NewRedisStore(client *redis.Client, hashKey string) *RedisStore {
	if hashKey == "" {
		hashKey = defaultRedisHashKey
	}
	return &RedisStore{client: client, hashKey: hashKey}
}

func (s *RedisStore) Get(ctx context.Context, key string) (State, error) {
	val, err := s.client.HGet(ctx, s.hashKey, key).Result()
	if err == redis.Nil {
		return Unknown, nil
	}
	if err != nil {
		return Unknown, fmt.Errorf("redis HGET %s failed: %w", key, err)
	}
	return ParseState(val), nil
}

func (s *RedisStore) Set(ctx context.Context, key string, state State) error {
	if err := s.client.HSet(ctx, s.hashKey, key, state.String()).Err(); err != nil {
		return fmt.Errorf("redis HSET %s failed: %w", key, err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]State, error) {
	vals, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL failed: %w", err)
	}

	out := make(map[string]State, len(vals))
	for k, v := range vals {
		out[k] = ParseState(v)
	}
	return out, nil
}
