package runtime

import (
	"context"
	"fmt"
	"net"

	"github.com/mohammad-safakhou/folio/config"
	"github.com/redis/go-redis/v9"
)

// RedisConn dials and pings redis. It returns nil, nil when redis is not configured.
func RedisConn(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr(cfg),
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		Password:     cfg.Pass,
		DB:           cfg.DB,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func redisAddr(cfg config.RedisConfig) string {
	return net.JoinHostPort(cfg.Host, cfg.Port)
}
