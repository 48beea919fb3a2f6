package ws

import (
	"encoding/json"
	"fmt"

	"github.com/tokmz/datafeed/internal/nft"
)

// Request 客户端查询请求
type Request struct {
	ChainID    string // 链 ID（必填，非空）
	Address    string // 合约地址（必填，非空）
	MetricName string // 指标名（可选，必须在允许集合内）
}

// ParseMessage 解码并校验一条入站文本帧
//
// 失败分两类：结构损坏（非法 JSON）返回 ErrMalformedMessage，
// 结构正确但语义非法（字段类型错误、指标名不在允许集合内）返回 *ValidationError。
// 类型错误优先于指标名检查，发现第一类失败即短路返回。
func ParseMessage(data []byte) (*Request, error) {
	var payload struct {
		ChainID    any `json:"chain_id"`
		Address    any `json:"address"`
		MetricName any `json:"metric_name"`
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	chainID, chainOK := payload.ChainID.(string)
	address, addrOK := payload.Address.(string)
	if !chainOK || !addrOK || chainID == "" || address == "" {
		return nil, &ValidationError{Messages: []string{"Invalid message values"}}
	}

	req := &Request{
		ChainID: chainID,
		Address: address,
	}

	if payload.MetricName != nil {
		metricName, ok := payload.MetricName.(string)
		if !ok {
			return nil, &ValidationError{Messages: []string{"Invalid message values"}}
		}
		if !nft.IsMetricName(metricName) {
			return nil, &ValidationError{Messages: []string{"Invalid metric_name"}}
		}
		req.MetricName = metricName
	}

	return req, nil
}
