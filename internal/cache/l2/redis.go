package l2

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/config"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/metrics"
	"go-medsearch-proxy/internal/models"
)

// Ensure RedisCache implements the cache interfaces
var (
	_ interfaces.Cache      = (*RedisCache)(nil)
	_ interfaces.EntryCache = (*RedisCache)(nil)
)

// RedisCache implements a shared cache on Redis. Entries are written with
// SET EX so Redis drops them at the TTL; the stored timestamp is checked on
// read as well. Redis errors are logged and reported as a miss.
type RedisCache struct {
	name   string
	prefix string
	ttl    time.Duration
	client interfaces.RedisClient
	config *config.RedisConfig
	clock  clock.Clock
	logger *zap.Logger
}

// NewRedisCache creates a new RedisCache instance with provided client
func NewRedisCache(name string, ttl time.Duration, redisCfg *config.RedisConfig, client interfaces.RedisClient, logger *zap.Logger) *RedisCache {
	return NewRedisCacheWithClock(name, ttl, redisCfg, client, clock.New(), logger)
}

// NewRedisCacheWithClock creates a RedisCache reading time from clk
func NewRedisCacheWithClock(name string, ttl time.Duration, redisCfg *config.RedisConfig, client interfaces.RedisClient, clk clock.Clock, logger *zap.Logger) *RedisCache {
	prefix := "cache:" + name + ":"
	if redisCfg.KeyPrefix != "" {
		prefix = redisCfg.KeyPrefix + ":" + prefix
	}
	return &RedisCache{
		name:   name,
		prefix: prefix,
		ttl:    ttl,
		client: client,
		config: redisCfg,
		clock:  clk,
		logger: logger,
	}
}

func (rc *RedisCache) redisKey(key string) string {
	return rc.prefix + key
}

// Get retrieves a fresh value from Redis
func (rc *RedisCache) Get(key string) ([]byte, bool) {
	entry, ok := rc.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetEntry retrieves a fresh entry with its original timestamp
func (rc *RedisCache) GetEntry(key string) (*models.CacheEntry, bool) {
	defer metrics.TimeCacheGetOperation("l2")()

	ctx, cancel := context.WithTimeout(context.Background(), rc.config.ReadTimeout)
	defer cancel()

	data, err := rc.client.Get(ctx, rc.redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rc.logger.Error("L2 cache get error", zap.String("key", key), zap.Error(err))
			metrics.RecordCacheError("l2", "read")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		rc.logger.Error("Failed to unmarshal L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "decode")
		rc.Delete(key)
		return nil, false
	}

	if !entry.IsFresh(rc.clock.Now(), rc.ttl) {
		rc.Delete(key)
		metrics.RecordCacheEviction(rc.name, "expired", 1)
		return nil, false
	}

	return &entry, true
}

// Put stores value in Redis with the cache TTL
func (rc *RedisCache) Put(key string, val []byte) {
	rc.PutEntry(&models.CacheEntry{
		Key:      key,
		Value:    val,
		StoredAt: rc.clock.Now(),
	})
}

// PutEntry stores entry keeping its timestamp. The Redis expiry is the
// time the entry has left, not the full TTL.
func (rc *RedisCache) PutEntry(entry *models.CacheEntry) {
	remaining := rc.ttl - rc.clock.Now().Sub(entry.StoredAt)
	if remaining <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rc.config.WriteTimeout)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		rc.logger.Error("Failed to marshal L2 cache entry", zap.String("key", entry.Key), zap.Error(err))
		metrics.RecordCacheError("l2", "encode")
		return
	}

	if err := rc.client.Set(ctx, rc.redisKey(entry.Key), data, remaining).Err(); err != nil {
		rc.logger.Error("Failed to set L2 cache entry", zap.String("key", entry.Key), zap.Error(err))
		metrics.RecordCacheError("l2", "write")
	}
}

// Delete removes entry from Redis
func (rc *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.config.WriteTimeout)
	defer cancel()

	if err := rc.client.Del(ctx, rc.redisKey(key)).Err(); err != nil {
		rc.logger.Error("Failed to delete L2 cache entry", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheError("l2", "delete")
	}
}
