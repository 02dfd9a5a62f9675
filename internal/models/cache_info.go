package models

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheBackend selects the storage used for an endpoint's response cache
type CacheBackend string

const (
	CacheBackendMemory   CacheBackend = "memory"
	CacheBackendBigCache CacheBackend = "bigcache"
	CacheBackendRedis    CacheBackend = "redis"
	CacheBackendMulti    CacheBackend = "multi"
	CacheBackendNone     CacheBackend = "none"
)

// UnmarshalYAML implements custom YAML unmarshaling for CacheBackend
func (c *CacheBackend) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	switch str {
	case "memory", "bigcache", "redis", "multi", "none":
		*c = CacheBackend(str)
		return nil
	default:
		return fmt.Errorf("invalid cache backend '%s': must be one of 'memory', 'bigcache', 'redis', 'multi', 'none'", str)
	}
}

// CacheStatus is reported to clients in the X-Cache header
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
)

// CacheEntry is a single stored response. Entries are never mutated after
// creation; an overwrite replaces the entry.
type CacheEntry struct {
	Key      string    `json:"key"`
	Value    []byte    `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// IsFresh reports whether the entry may still be served at now.
func (e *CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}
