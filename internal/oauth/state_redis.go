package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore backs the transaction store with Redis so multiple server
// replicas can share in-flight authorization transactions. TTL enforcement is
// delegated to Redis key expiry.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore connects to Redis and verifies connectivity.
func NewRedisStateStore(redisURL string, ttl time.Duration) (*RedisStateStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{client: client, ttl: ttl}, nil
}

// NewStateStoreFromEnv returns a Redis-backed store when REDIS_URL is set,
// otherwise the in-memory store.
func NewStateStoreFromEnv(ttl time.Duration) (StateStore, error) {
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		return NewRedisStateStore(redisURL, ttl)
	}
	return NewMemoryStateStore(ttl), nil
}

func stateKey(state string) string {
	return "oauth:state:" + state
}

// Save stores data under state with the store TTL.
func (s *RedisStateStore) Save(ctx context.Context, state string, data map[string]string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKey(state), payload, s.ttl).Err()
}

// Peek returns the data for state without deleting it.
func (s *RedisStateStore) Peek(ctx context.Context, state string) (map[string]string, error) {
	val, err := s.client.Get(ctx, stateKey(state)).Result()
	if err == redis.Nil {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeState(val)
}

// Consume deletes state and reports whether it was present.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	deleted, err := s.client.Del(ctx, stateKey(state)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// Get atomically returns and deletes the data for state.
//
// Deprecated: see StateStore.Get.
func (s *RedisStateStore) Get(ctx context.Context, state string) (map[string]string, error) {
	val, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if err == redis.Nil {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeState(val)
}

// Close releases the Redis connection.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}

func decodeState(val string) (map[string]string, error) {
	var data map[string]string
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, err
	}
	return data, nil
}
