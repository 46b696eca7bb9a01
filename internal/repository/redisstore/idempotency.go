package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore records delivered notification jobs with SET and a TTL.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func deliveredKey(key string) string { return "notify:delivered:" + key }

func (s *IdempotencyStore) Delivered(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, deliveredKey(key)).Result()
	if err != nil {
		return false, redisErr("check delivered", err)
	}
	return n > 0, nil
}

func (s *IdempotencyStore) MarkDelivered(ctx context.Context, key string) error {
	if err := s.client.Set(ctx, deliveredKey(key), 1, s.ttl).Err(); err != nil {
		return redisErr("mark delivered", err)
	}
	return nil
}
