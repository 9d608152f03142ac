package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RedisStore is a fixed-window counter shared by every instance pointing
// at the same redis. It implements echo's RateLimiterStore.
type RedisStore struct {
	Client  redis.UniversalClient
	Bucket  string
	Rule    Rule
	Timeout time.Duration
	Log     logrus.FieldLogger

	now func() time.Time
}

var _ middleware.RateLimiterStore = (*RedisStore)(nil)

func (s *RedisStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *RedisStore) key(identifier string) string {
	window := s.clock().UnixNano() / int64(s.Rule.Period)
	return fmt.Sprintf("ratelimit:%s:%s:%d", s.Bucket, identifier, window)
}

// Allow counts one hit. Redis failures let the request through.
func (s *RedisStore) Allow(identifier string) (bool, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	key := s.key(identifier)
	var incr *redis.IntCmd
	_, err := s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, s.Rule.Period)
		return nil
	})
	if err != nil {
		if s.Log != nil {
			s.Log.WithError(err).WithField("bucket", s.Bucket).Warn("rate limit store unavailable, allowing request")
		}
		return true, nil
	}
	return incr.Val() <= int64(s.Rule.Count), nil
}

// NewMemoryStore is the single-instance fallback backed by x/time/rate.
func NewMemoryStore(rule Rule) middleware.RateLimiterStore {
	return middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(rule.Count) / rule.Period.Seconds()),
		Burst:     rule.Count,
		ExpiresIn: 2 * rule.Period,
	})
}
