package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache 内存缓存实现
type memoryCache struct {
	cache      *gocache.Cache
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

// newMemoryCache 创建内存缓存实例
func newMemoryCache(cfg *Config) (Cache, error) {
	if cfg.Memory == nil {
		cfg.Memory = DefaultMemoryConfig()
	}

	return &memoryCache{
		cache:      gocache.New(cfg.Memory.DefaultExpiration, cfg.Memory.CleanupInterval),
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// buildKey 构建完整的键名
func (m *memoryCache) buildKey(key string) string {
	if m.keyPrefix == "" {
		return key
	}
	return m.keyPrefix + key
}

// Get 获取缓存
func (m *memoryCache) Get(ctx context.Context, key string, value any) error {
	data, found := m.cache.Get(m.buildKey(key))
	if !found {
		return ErrCacheNotFound
	}

	bytes, ok := data.([]byte)
	if !ok {
		return ErrCacheSerialization.WithMessage("invalid cache data type")
	}

	if err := m.serializer.Unmarshal(bytes, value); err != nil {
		return ErrCacheSerialization.WithError(err)
	}

	return nil
}

// Set 设置缓存
func (m *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	bytes, err := m.serializer.Marshal(value)
	if err != nil {
		return ErrCacheSerialization.WithError(err)
	}

	if ttl == 0 {
		ttl = m.defaultTTL
	}

	m.cache.Set(m.buildKey(key), bytes, ttl)
	return nil
}

// Delete 删除缓存
func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.cache.Delete(m.buildKey(key))
	}
	return nil
}

// Ping 健康检查（内存缓存恒为健康）
func (m *memoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close 关闭缓存
func (m *memoryCache) Close() error {
	m.cache.Flush()
	return nil
}
