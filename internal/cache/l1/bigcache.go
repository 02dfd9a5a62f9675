package l1

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/config"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/metrics"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/scheduler"
)

// Ensure BigCache implements the cache interfaces
var (
	_ interfaces.Cache      = (*BigCache)(nil)
	_ interfaces.Sizer      = (*BigCache)(nil)
	_ interfaces.EntryCache = (*BigCache)(nil)
)

// BigCache implements an in-process byte cache using BigCache. BigCache
// drops entries past its life window on its own clean cycle; Get also
// checks the stored timestamp so an entry is never served at or past the TTL.
type BigCache struct {
	name             string
	ttl              time.Duration
	cache            *bigcache.BigCache
	clock            clock.Clock
	logger           *zap.Logger
	metricsScheduler *scheduler.Scheduler
}

// NewBigCache creates a new BigCache instance
func NewBigCache(name string, ttl time.Duration, bigcacheCfg *config.BigCacheConfig, logger *zap.Logger) (*BigCache, error) {
	return newBigCache(name, ttl, bigcacheCfg, clock.New(), logger)
}

func newBigCache(name string, ttl time.Duration, bigcacheCfg *config.BigCacheConfig, clk clock.Clock, logger *zap.Logger) (*BigCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = bigcacheCfg.Shards
	cfg.CleanWindow = bigcacheCfg.CleanWindow
	cfg.HardMaxCacheSize = bigcacheCfg.HardMaxCacheSizeMB // Size in MB
	cfg.MaxEntrySize = bigcacheCfg.MaxEntrySize
	cfg.Verbose = false
	cfg.OnRemoveWithReason = func(key string, entry []byte, reason bigcache.RemoveReason) {
		switch reason {
		case bigcache.Expired:
			metrics.RecordCacheEviction(name, "expired", 1)
		case bigcache.NoSpace:
			metrics.RecordCacheEviction(name, "capacity", 1)
		}
	}

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	bc := &BigCache{
		name:   name,
		ttl:    ttl,
		cache:  cache,
		clock:  clk,
		logger: logger,
	}

	// Start periodic metrics collection
	bc.startMetricsCollection()

	return bc, nil
}

// Get retrieves a fresh value from cache
func (bc *BigCache) Get(key string) ([]byte, bool) {
	entry, ok := bc.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetEntry retrieves a fresh entry with its original timestamp
func (bc *BigCache) GetEntry(key string) (*models.CacheEntry, bool) {
	data, err := bc.cache.Get(key)
	if err != nil {
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		bc.logger.Warn("Failed to unmarshal L1 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l1", "decode")
		_ = bc.cache.Delete(key) // Remove corrupted entry
		return nil, false
	}

	// Check if entry is expired
	if !entry.IsFresh(bc.clock.Now(), bc.ttl) {
		_ = bc.cache.Delete(key)
		metrics.RecordCacheEviction(bc.name, "expired", 1)
		return nil, false
	}

	return &entry, true
}

// Put stores value in cache
func (bc *BigCache) Put(key string, val []byte) {
	bc.PutEntry(&models.CacheEntry{
		Key:      key,
		Value:    val,
		StoredAt: bc.clock.Now(),
	})
}

// PutEntry stores entry keeping its timestamp
func (bc *BigCache) PutEntry(entry *models.CacheEntry) {
	if !entry.IsFresh(bc.clock.Now(), bc.ttl) {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		bc.logger.Error("Failed to marshal cache entry", zap.String("key", entry.Key), zap.Error(err))
		metrics.RecordCacheError("l1", "encode")
		return
	}

	if err := bc.cache.Set(entry.Key, data); err != nil {
		bc.logger.Error("Failed to set cache entry", zap.String("key", entry.Key), zap.Error(err))
		metrics.RecordCacheError("l1", "write")
	}
}

// Delete removes entry from cache
func (bc *BigCache) Delete(key string) {
	_ = bc.cache.Delete(key)
}

// Len returns the number of stored entries
func (bc *BigCache) Len() int {
	return bc.cache.Len()
}

// Close stops metrics collection and releases the cache
func (bc *BigCache) Close() error {
	bc.stopMetricsCollection()
	return bc.cache.Close()
}

// startMetricsCollection starts periodic metrics collection
func (bc *BigCache) startMetricsCollection() {
	bc.metricsScheduler = scheduler.New(bc.name+"-metrics", 30*time.Second, func(context.Context) {
		bc.updateMetrics()
	}, bc.logger)
	bc.metricsScheduler.Start()

	// Initial collection
	bc.updateMetrics()
}

// stopMetricsCollection stops periodic metrics collection
func (bc *BigCache) stopMetricsCollection() {
	if bc.metricsScheduler != nil {
		bc.metricsScheduler.Stop()
	}
}

// updateMetrics updates cache metrics
func (bc *BigCache) updateMetrics() {
	metrics.UpdateCacheEntries(bc.name, bc.cache.Len())
}
