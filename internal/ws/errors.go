package ws

import "errors"

// 错误定义
var (
	// 连接相关错误
	ErrTooManyConnections = errors.New("ws: too many connections")
	ErrSessionIDExists    = errors.New("ws: session id already exists")
	ErrConnectionClosed   = errors.New("ws: connection closed")
	ErrChannelFull        = errors.New("ws: send channel full")

	// 鉴权相关错误
	ErrUnauthorized = errors.New("ws: unauthorized")

	// 消息相关错误
	ErrMalformedMessage = errors.New("ws: malformed message")

	// 配置相关错误
	ErrInvalidConfig = errors.New("ws: invalid config")
)

// ValidationError 消息校验错误
// Messages 为人类可读的失败原因，调用方取第一条构建响应
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 {
		return "ws: validation failed"
	}
	return "ws: validation failed: " + e.Messages[0]
}

// First 返回第一条失败原因
func (e *ValidationError) First() string {
	if len(e.Messages) == 0 {
		return "Validation failed"
	}
	return e.Messages[0]
}
