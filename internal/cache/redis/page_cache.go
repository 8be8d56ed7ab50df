// Package redis caches refined pages in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"folio/internal/config"
	"folio/internal/domain"
)

const keyPrefix = "layout:"

// PageCache is a Redis-backed port.PageCache.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewPageCache connects to the server in cfg. The connection is lazy; call
// Ping to check it.
func NewPageCache(cfg *config.RedisConfig, log *zap.Logger) *PageCache {
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})
	return &PageCache{client: client, ttl: cfg.TTL, log: log.With(zap.String("component", "cache"))}
}

func (c *PageCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached page for key.
func (c *PageCache) Get(ctx context.Context, key string) (*domain.Page, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache.Get: %w", err)
	}

	var page domain.Page
	if err := json.Unmarshal(data, &page); err != nil {
		c.log.Error("failed to unmarshal cached page", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("cache.Get: %w", err)
	}
	return &page, true, nil
}

// Set stores page under key. A zero ttl uses the configured default.
func (c *PageCache) Set(ctx context.Context, key string, page *domain.Page, ttl time.Duration) error {
	if page.Partial {
		return fmt.Errorf("cache.Set: refusing to cache a partial page")
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("cache.Set: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache.Set: %w", err)
	}
	return nil
}

func (c *PageCache) Close() error {
	return c.client.Close()
}
