package ws

import (
	"go.uber.org/zap"

	"github.com/tokmz/datafeed/pkg/logger"
)

// Broadcaster 负载扇出器
//
// 只投递给处于 Open 状态的会话，投递本身尽力而为：单个会话投递失败
// 记录日志与指标后继续投递剩余会话，既不中断扇出也不关闭失败的会话
// （失败会话的清理由其自身的传输错误路径完成）。
type Broadcaster struct {
	pool     *sessionPool
	registry *Registry
	log      logger.Logger
	metrics  Metrics
}

// newBroadcaster 创建扇出器
func newBroadcaster(pool *sessionPool, registry *Registry, log logger.Logger, metrics Metrics) *Broadcaster {
	return &Broadcaster{
		pool:     pool,
		registry: registry,
		log:      log,
		metrics:  metrics,
	}
}

// BroadcastAll 全局广播
// 投递给所有 Open 状态的会话，不论房间归属
func (b *Broadcaster) BroadcastAll(payload []byte) {
	b.pool.Range(func(sess *Session) bool {
		b.deliver(sess, payload)
		return true
	})
}

// BroadcastRoom 房间广播
// 只投递给房间当前成员；房间不存在时不做任何事
func (b *Broadcaster) BroadcastRoom(roomID string, payload []byte) {
	for _, sess := range b.registry.Members(roomID) {
		b.deliver(sess, payload)
	}
}

// deliver 向单个会话投递
func (b *Broadcaster) deliver(sess *Session, payload []byte) {
	if sess.State() != StateOpen {
		return
	}

	if err := sess.SendBytes(payload); err != nil {
		b.metrics.IncrementDroppedMessages()
		b.log.Warn("failed to deliver payload",
			zap.String("session_id", sess.ID),
			zap.String("room", sess.Room()),
			zap.Error(err),
		)
	}
}
