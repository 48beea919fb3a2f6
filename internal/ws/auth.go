package ws

import (
	"crypto/subtle"
	"net/http"
)

// 握手时携带预共享密钥的请求头
const apiKeyHeader = "x-api-key"

// Gatekeeper 升级守门人
// 在协议升级前校验一次预共享密钥；未配置密钥时拒绝所有升级（失败关闭），
// 从不触碰注册表或会话状态
type Gatekeeper struct {
	apiKey string
}

// NewGatekeeper 创建守门人
func NewGatekeeper(apiKey string) *Gatekeeper {
	return &Gatekeeper{apiKey: apiKey}
}

// Authorize 校验升级请求的密钥
func (g *Gatekeeper) Authorize(r *http.Request) error {
	if g.apiKey == "" {
		return ErrUnauthorized
	}

	headerKey := r.Header.Get(apiKeyHeader)
	if headerKey == "" {
		return ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(headerKey), []byte(g.apiKey)) != 1 {
		return ErrUnauthorized
	}

	return nil
}
