package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	WS        WSConfig        `mapstructure:"ws"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Migration MigrationConfig `mapstructure:"migration"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`             // 监听地址
	Port            int           `mapstructure:"port"`             // 监听端口
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // 读超时
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // 写超时（0 则不限制，WebSocket 需要）
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 优雅关闭超时
}

// Addr 返回监听地址
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig 鉴权配置
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"` // 预共享密钥（REST 与 WebSocket 握手共用）
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string `mapstructure:"level"`   // debug/info/warn/error
	Format  string `mapstructure:"format"`  // json/console
	Console bool   `mapstructure:"console"` // 控制台输出
	File    string `mapstructure:"file"`    // 日志文件（空则不输出文件）
	Rotate  bool   `mapstructure:"rotate"`  // 是否启用轮转
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`       // 是否启用
	Exporter     string  `mapstructure:"exporter"`      // otlp/stdout/noop
	Endpoint     string  `mapstructure:"endpoint"`      // OTLP 端点
	Insecure     bool    `mapstructure:"insecure"`      // 非 TLS 连接
	SamplingRate float64 `mapstructure:"sampling_rate"` // 采样率
	Environment  string  `mapstructure:"environment"`   // 部署环境
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`            // mysql/postgres/sqlite/sqlserver
	DSN             string        `mapstructure:"dsn"`               // 主库 DSN
	Replicas        []string      `mapstructure:"replicas"`          // 从库 DSN 列表（可选，读写分离）
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大生命周期
	LogLevel        int           `mapstructure:"log_level"`         // GORM 日志级别 (1:Silent 2:Error 3:Warn 4:Info)
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`    // 慢查询阈值
}

// CacheConfig 查询缓存配置
type CacheConfig struct {
	Driver    string        `mapstructure:"driver"`     // redis/memory/none
	KeyPrefix string        `mapstructure:"key_prefix"` // 键前缀
	TTL       time.Duration `mapstructure:"ttl"`        // 缓存 TTL

	// Redis 配置
	Addr     string `mapstructure:"addr"`     // Redis 地址
	Username string `mapstructure:"username"` // 用户名
	Password string `mapstructure:"password"` // 密码
	DB       int    `mapstructure:"db"`       // 数据库编号
	PoolSize int    `mapstructure:"pool_size"`

	// 布隆过滤器配置（防缓存穿透）
	BloomCapacity uint    `mapstructure:"bloom_capacity"` // 预估键数量（0 则禁用）
	BloomFPRate   float64 `mapstructure:"bloom_fp_rate"`  // 误判率
}

// WSConfig WebSocket 配置
type WSConfig struct {
	Path              string        `mapstructure:"path"`               // 升级路径前缀（默认 /ws）
	MaxMessageSize    int64         `mapstructure:"max_message_size"`   // 最大消息大小
	SendQueueSize     int           `mapstructure:"send_queue_size"`    // 发送队列大小
	WriteWait         time.Duration `mapstructure:"write_wait"`         // 写超时
	PongWait          time.Duration `mapstructure:"pong_wait"`          // 心跳超时
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"` // 心跳间隔
	AllowAllOrigins   bool          `mapstructure:"allow_all_origins"`  // 允许任意 Origin（非浏览器客户端）
}

// StreamConfig 指标更新流配置
type StreamConfig struct {
	Enabled bool     `mapstructure:"enabled"` // 是否启用 Kafka 摄入
	Brokers []string `mapstructure:"brokers"` // Kafka 地址
	Topic   string   `mapstructure:"topic"`   // 主题
	Group   string   `mapstructure:"group"`   // 消费组
}

// MigrationConfig 数据迁移配置
type MigrationConfig struct {
	Auto      bool   `mapstructure:"auto"`       // 是否在启动时自动迁移
	Source    string `mapstructure:"source"`     // 原始数据文件路径
	BatchSize int    `mapstructure:"batch_size"` // 批量写入大小
}

// Loader 配置加载器
type Loader struct {
	viper *viper.Viper
	mu    sync.RWMutex

	onChange func(*Config) // 配置变更回调
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		viper: viper.New(),
	}
}

// Load 加载配置文件并解析
// path 为空时按默认搜索路径查找 config.yaml
func (l *Loader) Load(path string) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	setDefaults(l.viper)

	if path != "" {
		l.viper.SetConfigFile(path)
	} else {
		l.viper.SetConfigName("config")
		l.viper.SetConfigType("yaml")
		l.viper.AddConfigPath(".")
		l.viper.AddConfigPath("./config")
		l.viper.AddConfigPath("/etc/datafeed")
	}

	// 环境变量覆盖（DATAFEED_AUTH_API_KEY 等）
	l.viper.SetEnvPrefix("DATAFEED")
	l.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.viper.AutomaticEnv()

	if err := l.viper.ReadInConfig(); err != nil {
		// 配置文件缺失不致命，环境变量与默认值仍然可用
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return l.unmarshalLocked()
}

// Watch 监控配置文件变更
// 变更后重新解析并触发回调
func (l *Loader) Watch(onChange func(*Config)) {
	l.mu.Lock()
	l.onChange = onChange
	l.mu.Unlock()

	l.viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}

		l.mu.Lock()
		cfg, err := l.unmarshalLocked()
		cb := l.onChange
		l.mu.Unlock()

		if err == nil && cb != nil {
			cb(cfg)
		}
	})
	l.viper.WatchConfig()
}

// unmarshalLocked 解析配置
func (l *Loader) unmarshalLocked() (*Config, error) {
	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.console", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sampling_rate", 1.0)
	v.SetDefault("tracing.environment", "development")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "datafeed.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", 3)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.key_prefix", "datafeed:")
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.bloom_capacity", 100000)
	v.SetDefault("cache.bloom_fp_rate", 0.01)

	v.SetDefault("ws.path", "/ws")
	v.SetDefault("ws.max_message_size", 512*1024)
	v.SetDefault("ws.send_queue_size", 256)
	v.SetDefault("ws.write_wait", 10*time.Second)
	v.SetDefault("ws.pong_wait", 90*time.Second)
	v.SetDefault("ws.heartbeat_interval", 30*time.Second)
	v.SetDefault("ws.allow_all_origins", true)

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.topic", "nft-metric-updates")
	v.SetDefault("stream.group", "datafeed")

	v.SetDefault("migration.auto", false)
	v.SetDefault("migration.source", "rawdata.json")
	v.SetDefault("migration.batch_size", 100)
}
