package multi

import (
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
)

// Ensure MultiCache implements the cache interfaces
var (
	_ interfaces.Cache   = (*MultiCache)(nil)
	_ interfaces.Sweeper = (*MultiCache)(nil)
	_ interfaces.Sizer   = (*MultiCache)(nil)
)

// MultiCache implements a layered cache. Reads go through the levels in
// order and a hit in a lower level is copied into the levels above it,
// keeping its original timestamp. Writes go to every level.
type MultiCache struct {
	caches []interfaces.Cache
	logger *zap.Logger
}

// NewMultiCache creates a new MultiCache instance with provided cache implementations
func NewMultiCache(caches []interfaces.Cache, logger *zap.Logger) *MultiCache {
	return &MultiCache{
		caches: caches,
		logger: logger,
	}
}

// Get retrieves value from the first cache that has the key
func (mc *MultiCache) Get(key string) ([]byte, bool) {
	if len(mc.caches) == 0 {
		mc.logger.Warn("No caches available for get operation", zap.String("key", key))
		return nil, false
	}

	for i, cache := range mc.caches {
		ec, ok := cache.(interfaces.EntryCache)
		if !ok {
			// A level without entries cannot say how old a hit is, so it is
			// never copied upwards.
			if val, found := cache.Get(key); found {
				return val, true
			}
			continue
		}

		entry, found := ec.GetEntry(key)
		if !found {
			continue
		}
		mc.backfill(i, entry)
		return entry.Value, true
	}
	return nil, false
}

// backfill copies entry into the levels above level
func (mc *MultiCache) backfill(level int, entry *models.CacheEntry) {
	for j := 0; j < level; j++ {
		if upper, ok := mc.caches[j].(interfaces.EntryCache); ok {
			upper.PutEntry(entry)
		}
	}
}

// Put stores value in all available caches
func (mc *MultiCache) Put(key string, val []byte) {
	if len(mc.caches) == 0 {
		mc.logger.Warn("No caches available for put operation", zap.String("key", key))
		return
	}

	for _, cache := range mc.caches {
		cache.Put(key, val)
	}
}

// Delete removes entry from all available caches
func (mc *MultiCache) Delete(key string) {
	for _, cache := range mc.caches {
		cache.Delete(key)
	}
}

// Sweep sweeps every level that supports it and returns the total removed
func (mc *MultiCache) Sweep() int {
	removed := 0
	for _, cache := range mc.caches {
		if sweeper, ok := cache.(interfaces.Sweeper); ok {
			removed += sweeper.Sweep()
		}
	}
	return removed
}

// Len reports the size of the first level that can count its entries
func (mc *MultiCache) Len() int {
	for _, cache := range mc.caches {
		if sizer, ok := cache.(interfaces.Sizer); ok {
			return sizer.Len()
		}
	}
	return 0
}

// GetCacheCount returns the number of caches in the multi-cache
func (mc *MultiCache) GetCacheCount() int {
	return len(mc.caches)
}
