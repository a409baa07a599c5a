package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

// RedisCache stores assets as JSON under provenance:asset:<id>.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis creates a Redis-backed asset cache.
func NewRedis(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	raw, err := c.client.Get(ctx, assetKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("redis get asset: %w: %w", sentinel.ErrUnavailable, err)
	}
	var asset models.Asset
	if err := json.Unmarshal(raw, &asset); err != nil {
		return nil, fmt.Errorf("decode cached asset: %w", err)
	}
	return &asset, nil
}

func (c *RedisCache) Set(ctx context.Context, asset *models.Asset) error {
	raw, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode asset: %w", err)
	}
	if err := c.client.Set(ctx, assetKey(asset.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set asset: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
