package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/logger"
)

// Hub WebSocket 接入枢纽
// 负责握手鉴权、房间解析与会话装配，并持有连接池、房间注册表与扇出器
type Hub struct {
	config      *Config
	upgrader    *websocket.Upgrader
	gate        *Gatekeeper
	pool        *sessionPool
	registry    *Registry
	broadcaster *Broadcaster
	responder   *Responder
	log         logger.Logger
	metrics     Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub 创建枢纽
func NewHub(cfg *Config, finder nft.Finder, log logger.Logger) (*Hub, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := newSessionPool(cfg.MaxConnections)
	registry := NewRegistry()

	return &Hub{
		config:      cfg,
		upgrader:    newUpgrader(cfg),
		gate:        NewGatekeeper(cfg.APIKey),
		pool:        pool,
		registry:    registry,
		broadcaster: newBroadcaster(pool, registry, log, metrics),
		responder:   NewResponder(finder, log, metrics),
		log:         log,
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Broadcaster 返回扇出器，供消息接入方使用
func (h *Hub) Broadcaster() *Broadcaster {
	return h.broadcaster
}

// SessionCount 当前在线会话数
func (h *Hub) SessionCount() int {
	return h.pool.Count()
}

// RoomCount 当前非空房间数
func (h *Hub) RoomCount() int {
	return h.registry.RoomCount()
}

// ServeHTTP 处理升级请求
// 鉴权失败在升级前拒绝，成功后解析房间并启动会话
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.gate.Authorize(r); err != nil {
		h.metrics.IncrementAuthFailures()
		h.log.Warn("websocket auth failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("path", r.URL.Path),
		)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写出错误响应
		h.log.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	room := ParseRoom(h.config.Path, r.URL.Path)
	sess := newSession(h, conn, room)

	if err := h.pool.Add(sess); err != nil {
		sess.cancel()
		h.log.Warn("connection rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"),
			time.Now().Add(h.config.WriteWait))
		_ = conn.Close()
		return
	}

	h.metrics.IncrementConnections()
	h.metrics.SetConnectionCount(h.pool.Count())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		sess.Run()
	}()
}

// Shutdown 关闭枢纽
// 关闭所有会话并等待其退出，超出 ctx 期限时提前返回
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	h.pool.Range(func(sess *Session) bool {
		sess.Close()
		return true
	})

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseRoom 从请求路径解析房间标识
// 约定路径形如 <base>/room/<roomId>，不符合约定时返回空串表示无房间
func ParseRoom(basePath, requestPath string) string {
	rest := strings.TrimPrefix(requestPath, basePath)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return ""
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] != "room" {
		return ""
	}
	return parts[1]
}

// newSessionID 生成会话标识
func newSessionID() string {
	return uuid.NewString()
}
