package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/errors"
	"github.com/tokmz/datafeed/pkg/logger"
)

// RouterConfig 路由配置
type RouterConfig struct {
	// APIKey 接口鉴权密钥
	APIKey string
	// ServiceName 追踪用服务名
	ServiceName string
	// EnableTracing 是否挂载追踪中间件
	EnableTracing bool
}

// NewRouter 装配 HTTP 路由
func NewRouter(cfg RouterConfig, finder nft.Finder, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(Recovery(log))
	if cfg.EnableTracing {
		r.Use(Tracing(cfg.ServiceName + ".http"))
	}
	r.Use(RequestLogger(log))
	r.Use(CORS())

	r.NoRoute(func(c *gin.Context) {
		Fail(c, errors.ErrNotFound)
	})

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Welcome to the NFT datafeed")
	})
	r.GET("/api/health-check", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	h := NewNFTHandler(finder, log)

	v1 := r.Group("/api/v1", APIKeyAuth(cfg.APIKey))
	{
		v1.GET("/nft/:chain_id/:address", h.GetCollection)
		v1.GET("/nft/:chain_id/:address/metrics/:metric_name", h.GetMetric)
	}

	return r
}
