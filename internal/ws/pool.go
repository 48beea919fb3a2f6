package ws

import (
	"sync"
	"sync/atomic"
)

// sessionPool 全局会话池
type sessionPool struct {
	sessions sync.Map     // sessionID -> *Session
	count    atomic.Int64 // 连接数
	maxConns int          // 最大连接数
}

// newSessionPool 创建会话池
func newSessionPool(maxConns int) *sessionPool {
	return &sessionPool{
		maxConns: maxConns,
	}
}

// Add 添加会话
func (p *sessionPool) Add(sess *Session) error {
	// 先检查 ID 是否存在，避免计数不一致
	if _, loaded := p.sessions.LoadOrStore(sess.ID, sess); loaded {
		return ErrSessionIDExists
	}

	// 递增计数并检查限制
	newCount := p.count.Add(1)
	if int(newCount) > p.maxConns {
		// 超过限制，回滚操作
		p.count.Add(-1)
		p.sessions.Delete(sess.ID)
		return ErrTooManyConnections
	}

	return nil
}

// Remove 移除会话
func (p *sessionPool) Remove(sessionID string) {
	if _, loaded := p.sessions.LoadAndDelete(sessionID); loaded {
		p.count.Add(-1)
	}
}

// Count 获取连接数
func (p *sessionPool) Count() int {
	return int(p.count.Load())
}

// Range 遍历所有会话
func (p *sessionPool) Range(f func(*Session) bool) {
	p.sessions.Range(func(key, value any) bool {
		sess, ok := value.(*Session)
		if !ok {
			return true
		}
		return f(sess)
	})
}
