package l1

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/config"
	"go-medsearch-proxy/internal/models"
)

func testBigCacheConfig() *config.BigCacheConfig {
	return &config.BigCacheConfig{
		Shards:             8,
		HardMaxCacheSizeMB: 8,
		MaxEntrySize:       1024,
		CleanWindow:        time.Minute,
	}
}

func newTestBigCache(t *testing.T) (*BigCache, *clock.Mock) {
	mockClock := clock.NewMock()
	cache, err := newBigCache("l1-test", time.Hour, testBigCacheConfig(), mockClock, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mockClock
}

func TestNewBigCache(t *testing.T) {
	cache, err := NewBigCache("l1-test", time.Hour, testBigCacheConfig(), zap.NewNop())

	require.NoError(t, err)
	assert.NotNil(t, cache.cache)
	assert.NoError(t, cache.Close())
}

func TestBigCache_Put_And_Get_Fresh(t *testing.T) {
	cache, _ := newTestBigCache(t)

	testData := []byte(`{"results":[]}`)
	cache.Put("test-key", testData)

	result, found := cache.Get("test-key")
	assert.True(t, found)
	assert.Equal(t, testData, result)
	assert.Equal(t, 1, cache.Len())
}

func TestBigCache_Get_NotFound(t *testing.T) {
	cache, _ := newTestBigCache(t)

	result, found := cache.Get("non-existent-key")
	assert.False(t, found)
	assert.Nil(t, result)
}

func TestBigCache_Get_Expired(t *testing.T) {
	cache, mockClock := newTestBigCache(t)

	cache.Put("test-key", []byte("value"))
	mockClock.Add(time.Hour)

	result, found := cache.Get("test-key")
	assert.False(t, found)
	assert.Nil(t, result)
}

func TestBigCache_Get_CorruptedEntry(t *testing.T) {
	cache, _ := newTestBigCache(t)

	require.NoError(t, cache.cache.Set("test-key", []byte("not-json")))

	result, found := cache.Get("test-key")
	assert.False(t, found)
	assert.Nil(t, result)

	_, err := cache.cache.Get("test-key")
	assert.Error(t, err, "corrupted entry is removed")
}

func TestBigCache_StoresEntryEnvelope(t *testing.T) {
	cache, mockClock := newTestBigCache(t)

	cache.Put("test-key", []byte("value"))

	raw, err := cache.cache.Get("test-key")
	require.NoError(t, err)

	var entry models.CacheEntry
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "test-key", entry.Key)
	assert.Equal(t, []byte("value"), entry.Value)
	assert.True(t, entry.StoredAt.Equal(mockClock.Now()))
}

func TestBigCache_Delete(t *testing.T) {
	cache, _ := newTestBigCache(t)

	cache.Put("test-key", []byte("value"))
	cache.Delete("test-key")

	_, found := cache.Get("test-key")
	assert.False(t, found)
}

func TestBigCache_PutEntry_KeepsStoredAt(t *testing.T) {
	cache, mockClock := newTestBigCache(t)
	storedAt := mockClock.Now()
	mockClock.Add(30 * time.Minute)

	cache.PutEntry(&models.CacheEntry{Key: "test-key", Value: []byte("value"), StoredAt: storedAt})

	entry, found := cache.GetEntry("test-key")
	require.True(t, found)
	assert.True(t, entry.StoredAt.Equal(storedAt))

	mockClock.Add(30 * time.Minute)
	_, found = cache.Get("test-key")
	assert.False(t, found)
}
