package memory

import (
	"container/list"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/metrics"
	"go-medsearch-proxy/internal/models"
)

// Ensure Store implements the cache interfaces
var (
	_ interfaces.Cache      = (*Store)(nil)
	_ interfaces.Sweeper    = (*Store)(nil)
	_ interfaces.Sizer      = (*Store)(nil)
	_ interfaces.EntryCache = (*Store)(nil)
)

// Store is a TTL-bounded in-process cache with insertion-order eviction.
//
// All operations hold a single mutex: the capacity check, eviction and
// insertion in Put form one critical section.
type Store struct {
	name     string
	ttl      time.Duration
	capacity int
	clock    clock.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	// order holds *models.CacheEntry, oldest insertion at the front
	order *list.List
}

// NewStore creates a new Store. A capacity of zero or less means unbounded.
func NewStore(name string, ttl time.Duration, capacity int, logger *zap.Logger) *Store {
	return NewStoreWithClock(name, ttl, capacity, clock.New(), logger)
}

// NewStoreWithClock creates a new Store driven by the given clock
func NewStoreWithClock(name string, ttl time.Duration, capacity int, clk clock.Clock, logger *zap.Logger) *Store {
	return &Store{
		name:     name,
		ttl:      ttl,
		capacity: capacity,
		clock:    clk,
		logger:   logger,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value if the entry exists and is younger than the TTL.
// A stale entry is removed and reported as absent.
func (s *Store) Get(key string) ([]byte, bool) {
	entry, ok := s.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetEntry returns the stored entry if it is younger than the TTL
func (s *Store) GetEntry(key string) (*models.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	entry := el.Value.(*models.CacheEntry)
	if !entry.IsFresh(s.clock.Now(), s.ttl) {
		s.removeElement(el)
		metrics.RecordCacheEviction(s.name, "expired", 1)
		metrics.UpdateCacheEntries(s.name, len(s.entries))
		return nil, false
	}

	return entry, true
}

// Put inserts or overwrites the entry with storedAt = now. An overwritten
// key moves to the newest position. When a new key does not fit, the single
// oldest-inserted entry is evicted first.
func (s *Store) Put(key string, val []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insert(key, val, s.clock.Now())
}

// PutEntry inserts a copy of entry keeping its StoredAt
func (s *Store) PutEntry(entry *models.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !entry.IsFresh(s.clock.Now(), s.ttl) {
		return
	}
	s.insert(entry.Key, entry.Value, entry.StoredAt)
}

// insert must be called with mu held
func (s *Store) insert(key string, val []byte, storedAt time.Time) {
	value := make([]byte, len(val))
	copy(value, val)

	if el, ok := s.entries[key]; ok {
		s.removeElement(el)
	} else if s.capacity > 0 && len(s.entries) >= s.capacity {
		if oldest := s.order.Front(); oldest != nil {
			evicted := oldest.Value.(*models.CacheEntry).Key
			s.removeElement(oldest)
			metrics.RecordCacheEviction(s.name, "capacity", 1)
			s.logger.Debug("Evicted oldest cache entry", zap.String("cache", s.name), zap.String("key", evicted))
		}
	}

	entry := &models.CacheEntry{Key: key, Value: value, StoredAt: storedAt}
	s.entries[key] = s.order.PushBack(entry)
	metrics.UpdateCacheEntries(s.name, len(s.entries))
}

// Delete removes an entry
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.removeElement(el)
		metrics.UpdateCacheEntries(s.name, len(s.entries))
	}
}

// Sweep removes every expired entry and returns how many were removed
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if !el.Value.(*models.CacheEntry).IsFresh(now, s.ttl) {
			s.removeElement(el)
			removed++
		}
		el = next
	}

	if removed > 0 {
		metrics.RecordCacheEviction(s.name, "expired", removed)
		metrics.UpdateCacheEntries(s.name, len(s.entries))
		s.logger.Debug("Swept expired cache entries", zap.String("cache", s.name), zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of stored entries, fresh or not yet swept
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// removeElement must be called with mu held
func (s *Store) removeElement(el *list.Element) {
	entry := s.order.Remove(el).(*models.CacheEntry)
	delete(s.entries, entry.Key)
}
