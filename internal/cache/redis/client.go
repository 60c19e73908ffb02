// Package redis fans rendered frames, tickers and warnings out to Redis
// pub/sub, streams and hashes using go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ClientName is reported by CLIENT LIST for every bookviz connection.
	ClientName = "bookviz"

	// defaultPoolSize covers the fan-out worker, the HTTP handlers reading
	// tickers and warnings, and the rate limiter.
	defaultPoolSize = 8

	dialTimeout = 5 * time.Second

	// writeTimeout is kept below the fan-out's per-sink delivery timeout so a
	// stalled server fails the command instead of the whole delivery.
	writeTimeout = 2 * time.Second
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps a go-redis Client and provides connectivity helpers.
type Client struct {
	rdb *redis.Client
}

func options(cfg ClientConfig) *redis.Options {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	opts := &redis.Options{
		Addr:                  cfg.Addr,
		ClientName:            ClientName,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		PoolSize:              poolSize,
		MinIdleConns:          1,
		MaxRetries:            cfg.MaxRetries,
		DialTimeout:           dialTimeout,
		WriteTimeout:          writeTimeout,
		ContextTimeoutEnabled: true,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// New connects and pings. It returns an error if Redis is unreachable.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(options(cfg))
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping checks the connection; it backs the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// PoolStats reports connection pool usage.
func (c *Client) PoolStats() *redis.PoolStats {
	return c.rdb.PoolStats()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw driver client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
