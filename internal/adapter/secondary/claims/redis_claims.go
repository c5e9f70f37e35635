package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schoolpay/payment-gateway/internal/port/output"
)

// RedisClaimStore implements the ClaimStore output port on redis SET NX with
// a TTL. The TTL is the crash-recovery path: a claim abandoned by a dead
// billing run expires on its own.
type RedisClaimStore struct {
	client *redis.Client
}

// NewRedisClaimStore creates a claim store backed by the given redis client.
func NewRedisClaimStore(client *redis.Client) output.ClaimStore {
	return &RedisClaimStore{client: client}
}

// Acquire takes the claim if it is free.
func (s *RedisClaimStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the claim; releasing an already-expired claim is a no-op.
func (s *RedisClaimStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release claim %s: %w", key, err)
	}
	return nil
}

// NewRedisClient connects and pings a redis server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
