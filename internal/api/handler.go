package api

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/errors"
	"github.com/tokmz/datafeed/pkg/logger"
)

// NFTHandler NFT 集合查询处理器
type NFTHandler struct {
	finder nft.Finder
	log    logger.Logger
}

// NewNFTHandler 创建处理器
func NewNFTHandler(finder nft.Finder, log logger.Logger) *NFTHandler {
	return &NFTHandler{
		finder: finder,
		log:    log,
	}
}

// GetCollection 查询集合概要
// GET /api/v1/nft/:chain_id/:address
func (h *NFTHandler) GetCollection(c *gin.Context) {
	chainID := c.Param("chain_id")
	address := c.Param("address")

	doc, err := h.finder.FindByChainIDAndAddress(c.Request.Context(), chainID, address, nft.DefaultFields)
	if err != nil {
		h.fail(c, chainID, address, err)
		return
	}
	Ok(c, doc)
}

// GetMetric 查询单项指标
// GET /api/v1/nft/:chain_id/:address/metrics/:metric_name
func (h *NFTHandler) GetMetric(c *gin.Context) {
	chainID := c.Param("chain_id")
	address := c.Param("address")
	metricName := c.Param("metric_name")

	if !nft.IsMetricName(metricName) {
		Fail(c, errors.ErrValidation.WithMessage("Invalid metric_name"))
		return
	}

	doc, err := h.finder.FindByChainIDAndAddress(c.Request.Context(), chainID, address, nft.SelectedFields(metricName))
	if err != nil {
		h.fail(c, chainID, address, err)
		return
	}

	Ok(c, gin.H{
		"metric_name": metricName,
		"value":       doc[metricName],
	})
}

// fail 查询错误归一化
func (h *NFTHandler) fail(c *gin.Context, chainID, address string, err error) {
	if stderrors.Is(err, nft.ErrNotFound) {
		Fail(c, errors.ErrNoData)
		return
	}

	h.log.ErrorContext(c.Request.Context(), "collection lookup failed",
		zap.String("chain_id", chainID),
		zap.String("address", address),
		zap.Error(err),
	)
	Fail(c, errors.ErrServer)
}
