package ratelimit

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/folio/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Bucket names.
const (
	BucketDefault = "default"
	BucketLogin   = "login"
	BucketSave    = "save"
)

// Limiters hands out one middleware per bucket.
type Limiters struct {
	enabled bool
	mws     map[string]echo.MiddlewareFunc
}

// New builds every bucket from cfg. A nil client selects in-memory stores.
func New(cfg config.RateLimitConfig, client redis.UniversalClient, log logrus.FieldLogger) (*Limiters, error) {
	l := &Limiters{enabled: cfg.Enabled, mws: map[string]echo.MiddlewareFunc{}}
	if !cfg.Enabled {
		return l, nil
	}
	for bucket, raw := range map[string]string{
		BucketDefault: cfg.Default,
		BucketLogin:   cfg.Login,
		BucketSave:    cfg.Save,
	} {
		rule, err := ParseRule(raw)
		if err != nil {
			return nil, err
		}
		var store middleware.RateLimiterStore
		if client != nil {
			store = &RedisStore{Client: client, Bucket: bucket, Rule: rule, Log: log}
		} else {
			store = NewMemoryStore(rule)
		}
		l.mws[bucket] = Middleware(store)
	}
	return l, nil
}

// For returns the middleware of bucket, or a pass-through when limiting is off.
func (l *Limiters) For(bucket string) echo.MiddlewareFunc {
	if mw, ok := l.mws[bucket]; ok && l.enabled {
		return mw
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}

// Middleware keys requests by client IP and answers 429 once the store refuses.
func Middleware(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
		},
	})
}
