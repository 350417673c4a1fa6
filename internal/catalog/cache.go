package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/pricing"
)

const productKeyPrefix = "catalog:product:"

// OpenRedis connects and pings, failing fast when the server is unreachable.
func OpenRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// DisplayCache is a read-through cache of product documents used for display
// joins and catalog reads. Stock reservation must never read from it.
type DisplayCache struct {
	client *redis.Client
	next   pricing.ProductFinder
	ttl    time.Duration
	logger *slog.Logger
}

func NewDisplayCache(client *redis.Client, next pricing.ProductFinder, ttl time.Duration, logger *slog.Logger) *DisplayCache {
	return &DisplayCache{
		client: client,
		next:   next,
		ttl:    ttl,
		logger: logger,
	}
}

// Find serves from Redis when possible. Any cache failure falls through to the store.
func (c *DisplayCache) Find(ctx context.Context, id string) (*domain.Product, error) {
	key := productKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", "error", err, "key", key)
	}

	p, err := c.next.Find(ctx, id)
	if err != nil || p == nil {
		return p, err
	}

	data, err = json.Marshal(p)
	if err != nil {
		return p, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "error", err, "key", key)
	}

	return p, nil
}

func (c *DisplayCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, productKeyPrefix+id).Err()
}
