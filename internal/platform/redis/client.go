package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"keymarket/internal/platform/config"
)

// Client wraps go-redis for the credential revocation mirror. The marketplace
// runs fine without it; callers get nil when no URL is configured and fall
// back to the in-memory list.
type Client struct {
	*redis.Client
}

// New connects and verifies the connection with a ping. A nil client with a
// nil error means Redis is simply not configured.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
