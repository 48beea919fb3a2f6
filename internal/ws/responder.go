package ws

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/logger"
)

// 出站错误文案
const (
	msgValidatingError = "Error validating message."
	msgNoDocument      = "No document found"
	msgGenericError    = "Some error occurred"
	msgHandlingError   = "Some error occurred while handling message"
)

// MetricResponse 指标查询响应
type MetricResponse struct {
	MetricName string `json:"metric_name"`
	Value      any    `json:"value"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// Responder 响应构建器
// 把一条入站帧经过解析、校验、查询后固化为一条出站文本负载，
// 任何阶段的失败都转为错误负载而不是向上传播
type Responder struct {
	finder  nft.Finder
	log     logger.Logger
	metrics Metrics
}

// NewResponder 创建响应构建器
func NewResponder(finder nft.Finder, log logger.Logger, metrics Metrics) *Responder {
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	return &Responder{finder: finder, log: log, metrics: metrics}
}

// Respond 处理一条入站帧并返回序列化后的出站负载
// 永不返回错误：失败一律固化为 {"error": ...} 负载
func (r *Responder) Respond(ctx context.Context, raw []byte) []byte {
	req, err := ParseMessage(raw)
	if err != nil {
		r.metrics.IncrementInvalidMessages()
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return errorPayload(vErr.First())
		}
		return errorPayload(msgValidatingError)
	}

	doc, err := r.finder.FindByChainIDAndAddress(ctx, req.ChainID, req.Address, nft.SelectedFields(req.MetricName))
	if err != nil {
		if errors.Is(err, nft.ErrNotFound) {
			return errorPayload(msgNoDocument)
		}
		r.log.ErrorContext(ctx, "lookup failed",
			zap.String("chain_id", req.ChainID),
			zap.String("address", req.Address),
			zap.Error(err),
		)
		return errorPayload(msgHandlingError)
	}

	var payload []byte
	if req.MetricName != "" {
		payload, err = json.Marshal(MetricResponse{
			MetricName: req.MetricName,
			Value:      doc[req.MetricName],
		})
	} else {
		payload, err = json.Marshal(doc)
	}
	if err != nil {
		r.log.ErrorContext(ctx, "failed to marshal response", zap.Error(err))
		return errorPayload(msgHandlingError)
	}

	return payload
}

// errorPayload 构建错误负载
func errorPayload(message string) []byte {
	payload, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		// 不可达：固定结构的序列化不会失败
		return []byte(`{"error":"` + msgGenericError + `"}`)
	}
	return payload
}
