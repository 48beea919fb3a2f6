package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tokmz/datafeed/pkg/errors"
	"github.com/tokmz/datafeed/pkg/logger"
)

const apiKeyHeader = "x-api-key"

// APIKeyAuth 接口鉴权中间件
// 与 WebSocket 握手共用同一预共享密钥；密钥未配置时拒绝所有请求
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(apiKeyHeader)
		if apiKey == "" || provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			Fail(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger 请求日志中间件
// 记录请求方法、路径、客户端 IP、状态码、耗时等信息
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		method := c.Request.Method
		clientIP := c.ClientIP()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", clientIP),
		}

		// 根据状态码选择日志级别
		switch {
		case status >= 500:
			log.ErrorContext(c.Request.Context(), "request completed", fields...)
		case status >= 400:
			log.WarnContext(c.Request.Context(), "request completed", fields...)
		default:
			log.InfoContext(c.Request.Context(), "request completed", fields...)
		}
	}
}

// Recovery 恐慌恢复中间件
// 将处理器中的 panic 转换为统一的服务器错误响应
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered",
					zap.String("path", c.Request.URL.Path),
					zap.Any("panic", rec),
				)
				Fail(c, errors.ErrServer)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Tracing 链路追踪中间件
// 自动提取/注入 TraceContext，创建 HTTP Server Span
func Tracing(tracerName string) gin.HandlerFunc {
	if tracerName == "" {
		tracerName = "datafeed.http"
	}

	return func(c *gin.Context) {
		// 每次请求时获取 tracer 和 propagator，避免 Provider 后初始化导致使用 noop
		tracer := otel.Tracer(tracerName)
		propagator := otel.GetTextMapPropagator()

		// 从 HTTP Header 提取上游 TraceContext（如果有）
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		spanName := fmt.Sprintf("%s %s", c.Request.Method, c.FullPath())
		if c.FullPath() == "" {
			// 未匹配路由时回退到 URL.Path
			spanName = fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
		}
		spanAttrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.URLPath(c.Request.URL.Path),
			semconv.ServerAddress(c.Request.Host),
			semconv.UserAgentOriginalKey.String(c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		}
		if fullPath := c.FullPath(); fullPath != "" {
			spanAttrs = append(spanAttrs, semconv.HTTPRouteKey.String(fullPath))
		}

		ctx, span := tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(spanAttrs...),
		)
		defer span.End()

		// 将 SpanContext 注入到 Request.Context
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		statusCode := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(statusCode))
		if statusCode >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
		}

		// 将 TraceContext 注入到响应头（供下游服务使用）
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))
	}
}
