package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Config WebSocket 配置
type Config struct {
	// 鉴权配置
	APIKey string // 握手预共享密钥（空则拒绝所有升级）

	// 路径配置
	Path string // 升级路径前缀（默认 /ws）

	// 连接配置
	MaxConnections int   // 最大连接数
	MaxMessageSize int64 // 最大消息大小

	// 心跳配置
	HeartbeatInterval time.Duration // 心跳间隔
	PongWait          time.Duration // 心跳超时
	WriteWait         time.Duration // 写超时

	// 消息配置
	SendQueueSize int // 发送队列大小

	// Upgrader 配置
	ReadBufferSize  int
	WriteBufferSize int
	AllowAllOrigins bool // 允许任意 Origin（非浏览器客户端）

	// 监控
	Metrics Metrics
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Path:              "/ws",
		MaxConnections:    10000,
		MaxMessageSize:    512 * 1024, // 512KB
		HeartbeatInterval: 30 * time.Second,
		PongWait:          90 * time.Second,
		WriteWait:         10 * time.Second,
		SendQueueSize:     256,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: Path is required", ErrInvalidConfig)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("%w: MaxConnections must be positive, got %d", ErrInvalidConfig, c.MaxConnections)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: MaxMessageSize must be positive, got %d", ErrInvalidConfig, c.MaxMessageSize)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: HeartbeatInterval must be positive, got %v", ErrInvalidConfig, c.HeartbeatInterval)
	}
	if c.PongWait <= c.HeartbeatInterval {
		return fmt.Errorf("%w: PongWait (%v) must be greater than HeartbeatInterval (%v)",
			ErrInvalidConfig, c.PongWait, c.HeartbeatInterval)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("%w: SendQueueSize must be positive, got %d", ErrInvalidConfig, c.SendQueueSize)
	}
	return nil
}

// newUpgrader 创建升级器
func newUpgrader(c *Config) *websocket.Upgrader {
	checkOrigin := defaultCheckOrigin
	if c.AllowAllOrigins {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &websocket.Upgrader{
		ReadBufferSize:  c.ReadBufferSize,
		WriteBufferSize: c.WriteBufferSize,
		CheckOrigin:     checkOrigin,
	}
}

// defaultCheckOrigin 默认 Origin 检查（同源策略）
func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// 拒绝空 Origin，非浏览器客户端需开启 AllowAllOrigins
		return false
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
