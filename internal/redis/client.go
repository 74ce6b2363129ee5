// Package redis opens the optional shared Redis connection used for the Redis
// state store and the sync event stream.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"socialsync/internal/logger"
)

const pingTimeout = 5 * time.Second

// Open parses a redis:// URL, connects and pings. The caller owns the client
// and must Close it.
// URL format: redis://[:password@]host:port[/db]
func Open(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Infof("[Redis] Connected: addr=%s db=%d", opts.Addr, opts.DB)
	return client, nil
}
