package interfaces

import "go-medsearch-proxy/internal/models"

//go:generate mockgen -package=mock -source=cache.go -destination=mock/cache.go

// Cache interface defines the contract for cache implementations. Values are
// serialized responses; implementations never return an error and degrade
// to a miss instead.
type Cache interface {
	Get(key string) ([]byte, bool) // returns value and found flag; stale entries are misses
	Put(key string, val []byte)
	Delete(key string)
}

// Sweeper is implemented by caches that need periodic removal of expired entries
type Sweeper interface {
	Sweep() int
}

// Sizer is implemented by caches that can report their entry count
type Sizer interface {
	Len() int
}

// EntryCache is implemented by caches that can hand out and accept whole
// entries. Copying an entry between levels keeps its original StoredAt so
// it expires at the same moment everywhere.
type EntryCache interface {
	// GetEntry returns a fresh entry
	GetEntry(key string) (*models.CacheEntry, bool)
	// PutEntry stores entry as is; an entry already past the TTL is ignored
	PutEntry(entry *models.CacheEntry)
}
