package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tokmz/datafeed/pkg/errors"
)

// 预定义错误
var (
	ErrCacheNotFound      = errors.New(3001, 404, "cache key not found")
	ErrCacheConnection    = errors.New(3002, 500, "cache connection failed")
	ErrCacheSerialization = errors.New(3003, 500, "cache serialization failed")
	ErrCacheInvalidConfig = errors.New(3004, 500, "cache invalid config")
)

// Cache 缓存接口（统一抽象）
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Serializer 序列化接口
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer JSON 序列化器（默认）
type JSONSerializer struct{}

// Marshal 序列化
func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal 反序列化
func (s *JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Config 缓存配置
type Config struct {
	Driver     string        // redis/memory
	KeyPrefix  string        // 键前缀（避免冲突）
	DefaultTTL time.Duration // 默认 TTL
	Serializer Serializer    // 序列化器（默认 JSON）

	// Redis 配置
	Redis *RedisConfig

	// Memory 配置
	Memory *MemoryConfig
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr         string        // 地址
	Username     string        // 用户名（Redis 6.0+）
	Password     string        // 密码
	DB           int           // 数据库编号
	PoolSize     int           // 连接池大小
	DialTimeout  time.Duration // 连接超时
	ReadTimeout  time.Duration // 读超时
	WriteTimeout time.Duration // 写超时
}

// MemoryConfig 内存缓存配置
type MemoryConfig struct {
	DefaultExpiration time.Duration // 默认过期时间
	CleanupInterval   time.Duration // 清理间隔
}

// DefaultMemoryConfig 返回内存缓存默认配置
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		DefaultExpiration: 10 * time.Minute,
		CleanupInterval:   time.Minute,
	}
}

// New 创建缓存实例
func New(cfg *Config) (Cache, error) {
	if cfg == nil {
		cfg = &Config{Driver: "memory"}
	}
	if cfg.Serializer == nil {
		cfg.Serializer = &JSONSerializer{}
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 10 * time.Minute
	}

	switch cfg.Driver {
	case "redis":
		return newRedisCache(cfg)
	case "memory", "":
		return newMemoryCache(cfg)
	default:
		return nil, ErrCacheInvalidConfig.WithMessage("unsupported driver: " + cfg.Driver)
	}
}
