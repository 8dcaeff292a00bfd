package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"certledger/internal/ratelimit/models"
)

// RedisStore shares fixed-window counters across instances. The window start
// is part of the key so counters expire on their own.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	now := s.now()
	start := now.Truncate(limit.Window)
	windowKey := key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.PExpire(ctx, windowKey, limit.Window+time.Second)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment rate limit window: %w", err)
	}
	return resultFor(int(incr.Val()), limit, start.Add(limit.Window), now), nil
}

// Ping reports whether redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
