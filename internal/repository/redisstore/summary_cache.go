package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// SummaryCache caches rating summaries as JSON strings.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache creates a cache with the given entry TTL; zero keeps
// entries until overwritten.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func summaryKey(userID string) string { return "rating:summary:" + userID }

func (c *SummaryCache) Get(ctx context.Context, userID string) (*domain.RatingSummary, bool, error) {
	raw, err := c.client.Get(ctx, summaryKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, redisErr("get rating summary", err)
	}
	var s domain.RatingSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("decode rating summary: %w", err)
	}
	return &s, true, nil
}

func (c *SummaryCache) Set(ctx context.Context, s domain.RatingSummary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode rating summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(s.UserID), raw, c.ttl).Err(); err != nil {
		return redisErr("set rating summary", err)
	}
	return nil
}
