package ws

// Metrics 监控接口
type Metrics interface {
	// 连接指标
	IncrementConnections()
	DecrementConnections()
	SetConnectionCount(count int)

	// 鉴权指标
	IncrementAuthFailures()

	// 消息指标
	IncrementMessages()
	IncrementInvalidMessages()

	// 广播指标
	IncrementDroppedMessages()

	// 房间指标
	SetRoomCount(count int)
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (m *NoopMetrics) IncrementConnections()      {}
func (m *NoopMetrics) DecrementConnections()      {}
func (m *NoopMetrics) SetConnectionCount(int)     {}
func (m *NoopMetrics) IncrementAuthFailures()     {}
func (m *NoopMetrics) IncrementMessages()         {}
func (m *NoopMetrics) IncrementInvalidMessages()  {}
func (m *NoopMetrics) IncrementDroppedMessages()  {}
func (m *NoopMetrics) SetRoomCount(int)           {}
