package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var cacheJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// CacheBackend stores encoded query results under string keys
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear drops every key the backend owns
	Clear(ctx context.Context) error
	// CleanupExpired purges expired entries and reports how many went
	CleanupExpired(ctx context.Context) (int, error)
	Size(ctx context.Context) (int, error)
	Name() string
}

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Data      []byte
	ExpiresAt time.Time
}

// IsExpired checks if the cache entry has expired
func (ce *CacheEntry) IsExpired(now time.Time) bool {
	return now.After(ce.ExpiresAt)
}

// MemoryCache is an in-process TTL map with oldest-expiry eviction
type MemoryCache struct {
	cache   map[string]*CacheEntry
	mutex   sync.RWMutex
	maxSize int
	now     func() time.Time
}

func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		cache:   make(map[string]*CacheEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	entry, exists := mc.cache[key]
	if !exists || entry.IsExpired(mc.now()) {
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if _, exists := mc.cache[key]; !exists && len(mc.cache) >= mc.maxSize {
		mc.evictOldest()
	}

	mc.cache[key] = &CacheEntry{
		Data:      value,
		ExpiresAt: mc.now().Add(ttl),
	}
	return nil
}

// evictOldest removes the entry closest to expiry. Callers hold the lock.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range mc.cache {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(mc.cache, oldestKey)
	}
}

func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	delete(mc.cache, key)
	return nil
}

func (mc *MemoryCache) Clear(context.Context) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.cache = make(map[string]*CacheEntry)
	return nil
}

func (mc *MemoryCache) CleanupExpired(context.Context) (int, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := mc.now()
	removed := 0
	for key, entry := range mc.cache {
		if entry.IsExpired(now) {
			delete(mc.cache, key)
			removed++
		}
	}
	return removed, nil
}

func (mc *MemoryCache) Size(context.Context) (int, error) {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return len(mc.cache), nil
}

func (mc *MemoryCache) Name() string { return "in-memory" }

// RedisCache keeps entries in Redis under a shared key prefix
type RedisCache struct {
	Client *redis.Client
	prefix string
}

func NewRedisCache(opt *redis.Options, prefix string) *RedisCache {
	return &RedisCache{Client: redis.NewClient(opt), prefix: prefix}
}

func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := rc.Client.Get(ctx, rc.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (rc *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return rc.Client.Set(ctx, rc.prefix+key, value, ttl).Err()
}

func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.Client.Del(ctx, rc.prefix+key).Err()
}

func (rc *RedisCache) Clear(ctx context.Context) error {
	keys, err := rc.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.Client.Del(ctx, keys...).Err()
}

// CleanupExpired is a no-op: Redis expires keys itself
func (rc *RedisCache) CleanupExpired(context.Context) (int, error) {
	return 0, nil
}

func (rc *RedisCache) Size(ctx context.Context) (int, error) {
	keys, err := rc.keys(ctx)
	return len(keys), err
}

func (rc *RedisCache) Name() string { return "redis" }

func (rc *RedisCache) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := rc.Client.Scan(ctx, 0, rc.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.Client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.Client.Close()
}

// CacheService encodes query results into a backend and tracks hit rates.
// Backend failures degrade to cache misses.
type CacheService struct {
	backend    CacheBackend
	defaultTTL time.Duration
	hits       atomic.Int64
	misses     atomic.Int64

	// generation moves on every invalidation. Conditional stores hold genMu
	// for reading so none can land after a Clear it was checked against.
	genMu      sync.RWMutex
	generation uint64
}

func NewCacheService(backend CacheBackend, defaultTTL time.Duration) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	return &CacheService{backend: backend, defaultTTL: defaultTTL}
}

// GetJSON decodes the entry at key into dest and reports whether it was found
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	data, found, err := cs.backend.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache read failed")
	}
	if err != nil || !found {
		cs.misses.Add(1)
		return false
	}

	if err := cacheJSON.Unmarshal(data, dest); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		_ = cs.backend.Delete(ctx, key)
		cs.misses.Add(1)
		return false
	}

	cs.hits.Add(1)
	return true
}

// SetJSON stores value at key with the default TTL
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}) {
	data, err := cacheJSON.Marshal(value)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to encode cache entry")
		return
	}
	if err := cs.backend.Set(ctx, key, data, cs.defaultTTL); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// Generation identifies the current cache contents; InvalidateAll advances it
func (cs *CacheService) Generation() uint64 {
	cs.genMu.RLock()
	defer cs.genMu.RUnlock()
	return cs.generation
}

// SetJSONIfCurrent stores value only when no invalidation happened since
// generation was read, and reports whether it did
func (cs *CacheService) SetJSONIfCurrent(ctx context.Context, key string, value interface{}, generation uint64) bool {
	cs.genMu.RLock()
	defer cs.genMu.RUnlock()
	if cs.generation != generation {
		return false
	}
	cs.SetJSON(ctx, key, value)
	return true
}

// InvalidateAll drops every cached query result
func (cs *CacheService) InvalidateAll(ctx context.Context) {
	cs.genMu.Lock()
	defer cs.genMu.Unlock()
	cs.generation++
	if err := cs.backend.Clear(ctx); err != nil {
		logrus.WithError(err).Warn("Cache invalidation failed")
	}
}

// CleanupExpired purges expired entries from the backend
func (cs *CacheService) CleanupExpired(ctx context.Context) (int, error) {
	return cs.backend.CleanupExpired(ctx)
}

// OnChange invalidates the cache after a committed mutation
func (cs *CacheService) OnChange(ctx context.Context, event ChangeEvent) {
	cs.InvalidateAll(ctx)
	logrus.WithFields(logrus.Fields{
		"component": "cache",
		"action":    event.Action,
	}).Debug("Cache invalidated")
}

// CacheStats is reported on the admin metrics route
type CacheStats struct {
	Backend string  `json:"backend"`
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func (cs *CacheService) Stats(ctx context.Context) CacheStats {
	size, err := cs.backend.Size(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to size cache")
	}

	hits, misses := cs.hits.Load(), cs.misses.Load()
	stats := CacheStats{
		Backend: cs.backend.Name(),
		Size:    size,
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// cached serves key from the cache or computes, stores and returns it. A
// result loaded across an invalidation is returned but not stored.
func cached[T any](ctx context.Context, cs *CacheService, key string, load func() (T, error)) (T, error) {
	var value T
	if cs.GetJSON(ctx, key, &value) {
		return value, nil
	}

	generation := cs.Generation()
	value, err := load()
	if err != nil {
		return value, err
	}
	cs.SetJSONIfCurrent(ctx, key, value, generation)
	return value, nil
}
