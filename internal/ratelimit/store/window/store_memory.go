// Package window implements fixed-window request counters.
package window

import (
	"context"
	"sync"
	"time"

	"certledger/internal/ratelimit/models"
)

// InMemoryStore counts requests per key in fixed windows. It is process local
// and serves as the fallback when the shared store is unreachable.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*counter
	now     func() time.Time
}

type counter struct {
	start time.Time
	count int
}

type Option func(*InMemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		windows: make(map[string]*counter),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow counts one request against key and reports whether it fits the limit.
func (s *InMemoryStore) Allow(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := now.Truncate(limit.Window)
	c := s.windows[key]
	if c == nil || !c.start.Equal(start) {
		c = &counter{start: start}
		s.windows[key] = c
		s.evict(start)
	}
	c.count++
	return resultFor(c.count, limit, start.Add(limit.Window), now), nil
}

// Reset clears the counter for a key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// evict drops counters from earlier windows. Must be called with s.mu held.
func (s *InMemoryStore) evict(current time.Time) {
	for key, c := range s.windows {
		if c.start.Before(current) {
			delete(s.windows, key)
		}
	}
}

func resultFor(count int, limit models.Limit, resetAt, now time.Time) *models.RateLimitResult {
	res := &models.RateLimitResult{
		Allowed:   count <= limit.RequestsPerWindow,
		Limit:     limit.RequestsPerWindow,
		Remaining: max(limit.RequestsPerWindow-count, 0),
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = max(int(resetAt.Sub(now).Seconds()+0.999), 1)
	}
	return res
}
