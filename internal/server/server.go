package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/datafeed/internal/ws"
	"github.com/tokmz/datafeed/pkg/logger"
)

// Config 服务配置
type Config struct {
	Addr            string        // 监听地址
	ReadTimeout     time.Duration // 读超时
	WriteTimeout    time.Duration // 写超时（WebSocket 长连接需为 0）
	ShutdownTimeout time.Duration // 优雅关闭超时
}

// Server HTTP 服务
// 同一端口上承载 REST 路由与 WebSocket 升级路径
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	cfg        Config
	log        logger.Logger
}

// New 创建服务
// wsPath 前缀下的请求交给枢纽处理升级，其余请求走 REST 路由
func New(cfg Config, rest http.Handler, hub *ws.Hub, wsPath string, log logger.Logger) *Server {
	mux := http.NewServeMux()
	base := strings.TrimSuffix(wsPath, "/")
	if base == "" {
		// 升级路径配置为根时由枢纽独占端口
		mux.Handle("/", hub)
	} else {
		mux.Handle(base, hub)
		mux.Handle(base+"/", hub)
		mux.Handle("/", rest)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		hub: hub,
		cfg: cfg,
		log: log,
	}
}

// Run 启动服务并阻塞直到 ctx 取消
// ctx 取消后执行优雅关闭：先停 HTTP 监听，再关闭所有 WebSocket 会话
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.log.Info("shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown incomplete", zap.Error(err))
		}
		if err := s.hub.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("websocket shutdown incomplete", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
