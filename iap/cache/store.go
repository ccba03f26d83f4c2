package cache

import (
	"context"
	"time"

	"github.com/ReneKroon/ttlcache"

	"github.com/code-payments/flipchat-iap/iap"
)

// Cache is a read-through, write-through cache in front of an
// iap.EntitlementStore.
type Cache struct {
	db    iap.EntitlementStore
	ttl   time.Duration
	cache *ttlcache.Cache
}

func NewInCache(db iap.EntitlementStore, ttl time.Duration) iap.EntitlementStore {
	return &Cache{
		db:    db,
		ttl:   ttl,
		cache: newTTLCache(ttl),
	}
}

func (c *Cache) SetEntitlement(ctx context.Context, productID string, owned bool) error {
	c.cache.Remove(productID)

	if err := c.db.SetEntitlement(ctx, productID, owned); err != nil {
		return err
	}

	c.cache.Set(productID, owned)
	return nil
}

func (c *Cache) IsEntitled(ctx context.Context, productID string) (bool, error) {
	cached, ok := c.cache.Get(productID)
	if ok {
		return cached.(bool), nil
	}

	owned, err := c.db.IsEntitled(ctx, productID)
	if err != nil {
		return false, err
	}

	c.cache.Set(productID, owned)
	return owned, nil
}

func (c *Cache) reset() {
	c.cache = newTTLCache(c.ttl)
}

func newTTLCache(ttl time.Duration) *ttlcache.Cache {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return cache
}
