// Package cache stores remote compiler responses keyed by the submitted code.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

const keyPrefix = "playground:v2:"

// ResponseCache caches compile responses in redis
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache connects to redis and verifies the connection
func NewResponseCache(ctx context.Context, address, password string, db int, ttl time.Duration) (*ResponseCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ResponseCache{client: client, ttl: ttl}, nil
}

// Key returns the cache key for code
func Key(code string) string {
	sum := sha256.Sum256([]byte(code))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached response for code. A miss returns (nil, nil).
func (c *ResponseCache) Get(ctx context.Context, code string) (*playground.Response, error) {
	data, err := c.client.Get(ctx, Key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var resp playground.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		slog.Warn("dropping corrupt cache entry", "key", Key(code), "error", err)
		c.client.Del(ctx, Key(code))
		return nil, nil
	}
	return &resp, nil
}

// Set stores the response for code
func (c *ResponseCache) Set(ctx context.Context, code string, resp *playground.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, Key(code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// HealthCheck pings redis
func (c *ResponseCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the redis client
func (c *ResponseCache) Close() error {
	return c.client.Close()
}
