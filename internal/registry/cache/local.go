package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

const defaultCleanupInterval = 10 * time.Minute

// LocalCache is an in-process asset cache used when Redis is not configured.
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocal creates a cache whose entries expire after ttl.
func NewLocal(ttl time.Duration) *LocalCache {
	return &LocalCache{cache: gocache.New(ttl, defaultCleanupInterval)}
}

// Get returns a copy of the cached asset or sentinel.ErrNotFound.
func (c *LocalCache) Get(_ context.Context, id domain.AssetID) (*models.Asset, error) {
	value, found := c.cache.Get(assetKey(id))
	if !found {
		return nil, sentinel.ErrNotFound
	}
	asset, ok := value.(models.Asset)
	if !ok {
		c.cache.Delete(assetKey(id))
		return nil, sentinel.ErrNotFound
	}
	return &asset, nil
}

// Set stores a copy of asset with the default expiration.
func (c *LocalCache) Set(_ context.Context, asset *models.Asset) error {
	c.cache.SetDefault(assetKey(asset.ID), *asset)
	return nil
}

// Len reports how many entries are cached, expired ones included.
func (c *LocalCache) Len() int {
	return c.cache.ItemCount()
}
