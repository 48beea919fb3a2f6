package ws

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State 会话生命周期状态
type State int32

const (
	// StateConnecting 握手已开始但尚未完成
	StateConnecting State = iota
	// StateOpen 握手完成，可收发消息
	StateOpen
	// StateClosing 正在关闭，不再接受新的出站消息
	StateClosing
	// StateClosed 已关闭且资源已释放
	StateClosed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn 底层连接抽象
// *websocket.Conn 天然满足该接口，测试中可替换为内存实现
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
	RemoteAddr() net.Addr
}

// Session 单个 WebSocket 会话
//
// 每个会话持有独立的发送队列与读写两个泵协程，出站消息只经由
// writePump 写入连接，保证同一连接上的写操作串行。
type Session struct {
	// ID 会话唯一标识
	ID string

	hub  *Hub
	conn Conn
	room string

	state atomic.Int32

	send      chan []byte
	closeOnce sync.Once
	started   atomic.Bool
	writeDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// newSession 创建会话，初始状态为 Connecting
func newSession(hub *Hub, conn Conn, room string) *Session {
	ctx, cancel := context.WithCancel(hub.ctx)
	s := &Session{
		ID:        newSessionID(),
		hub:       hub,
		conn:      conn,
		room:      room,
		send:      make(chan []byte, hub.config.SendQueueSize),
		writeDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State 返回当前状态
func (s *Session) State() State {
	return State(s.state.Load())
}

// Room 返回握手路径携带的房间，未携带时为空串
func (s *Session) Room() string {
	return s.room
}

// Run 启动会话
// 进入 Open 状态并加入房间，随后阻塞直到连接终止，返回前完成清理
// 启动前已被关闭的会话直接返回，不会重新进入 Open
func (s *Session) Run() {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return
	}
	defer s.Close()

	if s.room != "" {
		s.hub.registry.Join(s, s.room)
		s.hub.metrics.SetRoomCount(s.hub.registry.RoomCount())
		// Close 可能在进入 Open 与加入房间之间完成，其退房先于入房执行，
		// 此处补一次退房保证成员关系被释放
		if s.State() != StateOpen {
			s.hub.registry.Leave(s, s.room)
			s.hub.metrics.SetRoomCount(s.hub.registry.RoomCount())
			return
		}
	}

	s.hub.log.Info("session opened",
		zap.String("session_id", s.ID),
		zap.String("room", s.room),
		zap.String("remote_addr", s.conn.RemoteAddr().String()),
	)

	s.started.Store(true)
	go s.writePump()
	s.readPump()
}

// SendBytes 入队一条出站消息
// 队列满时立即返回 ErrChannelFull 而不阻塞，会话关闭后返回 ErrConnectionClosed
func (s *Session) SendBytes(payload []byte) error {
	if s.State() != StateOpen {
		return ErrConnectionClosed
	}

	select {
	case <-s.ctx.Done():
		return ErrConnectionClosed
	case s.send <- payload:
		return nil
	default:
		return ErrChannelFull
	}
}

// readPump 读泵
// 逐条读取入站帧并处理；传输错误触发关闭流程
func (s *Session) readPump() {
	cfg := s.hub.config

	s.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}

		s.hub.metrics.IncrementMessages()
		s.handleFrame(data)
	}
}

// handleReadError 读错误处理
// 对端正常关闭只记录日志；其余错误按传输故障处理，会话转入 Closing
// 并尽力广播一条全局错误通知，之后照常走清理流程
func (s *Session) handleReadError(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.hub.log.Debug("session closed by peer",
			zap.String("session_id", s.ID),
		)
		return
	}

	if s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		s.hub.log.Warn("session transport error",
			zap.String("session_id", s.ID),
			zap.String("room", s.room),
			zap.Error(err),
		)
		s.hub.broadcaster.BroadcastAll(errorPayload(msgGenericError))
	}
}

// handleFrame 处理一条入站帧
// 应答投递到会话所属房间，无房间时投递到全局；处理过程中的
// panic 被转换为错误应答而不是终止会话
func (s *Session) handleFrame(data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			s.hub.log.Error("panic while handling message",
				zap.String("session_id", s.ID),
				zap.Any("panic", rec),
			)
			s.deliver(errorPayload(msgHandlingError))
		}
	}()

	payload := s.hub.responder.Respond(s.ctx, data)
	s.deliver(payload)
}

// deliver 按会话归属选择广播范围
func (s *Session) deliver(payload []byte) {
	if s.room != "" {
		s.hub.broadcaster.BroadcastRoom(s.room, payload)
		return
	}
	s.hub.broadcaster.BroadcastAll(payload)
}

// writePump 写泵
// 串行写出发送队列中的消息并按周期发送心跳
func (s *Session) writePump() {
	cfg := s.hub.config
	ticker := time.NewTicker(cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		close(s.writeDone)
	}()

	for {
		select {
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.hub.log.Debug("session write failed",
					zap.String("session_id", s.ID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close 关闭会话并释放资源，可安全地重复调用
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.cancel()

		s.hub.pool.Remove(s.ID)
		if s.room != "" {
			s.hub.registry.Leave(s, s.room)
			s.hub.metrics.SetRoomCount(s.hub.registry.RoomCount())
		}

		// 等待写泵退出后再关底层连接，避免并发写
		if s.started.Load() {
			select {
			case <-s.writeDone:
			case <-time.After(s.hub.config.WriteWait):
			}
		}
		_ = s.conn.Close()

		s.hub.metrics.DecrementConnections()
		s.hub.metrics.SetConnectionCount(s.hub.pool.Count())

		s.hub.log.Info("session closed",
			zap.String("session_id", s.ID),
			zap.String("room", s.room),
		)
	})
}
