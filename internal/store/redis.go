package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance. Counter atomicity
// comes from INCR; first-increment expiry uses EXPIRE NX inside the same
// pipeline so the two commands reach the server as one round trip.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from an already-configured client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Connect dials Redis and verifies the connection with a ping. A nil error
// guarantees the shared store is structurally available at startup.
func Connect(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection so other Redis-backed components
// (the credential cache) can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RedisStore) GetCount(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (s *RedisStore) Push(ctx context.Context, queue string, values ...[]byte) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.client.RPush(ctx, queue, args...).Err()
}

func (s *RedisStore) QueueLen(ctx context.Context, queue string) (int64, error) {
	return s.client.LLen(ctx, queue).Result()
}

func (s *RedisStore) QueueRange(ctx context.Context, queue string, start, stop int64) ([][]byte, error) {
	vals, err := s.client.LRange(ctx, queue, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// QueueTrim keeps everything from index n onward, dropping exactly the n
// entries a preceding QueueRange snapshot covered. LTRIM with a start offset
// is what bounds the read-then-trim race: concurrent pushes land past n and
// survive.
func (s *RedisStore) QueueTrim(ctx context.Context, queue string, n int64) error {
	if n <= 0 {
		return nil
	}
	return s.client.LTrim(ctx, queue, n, -1).Err()
}
