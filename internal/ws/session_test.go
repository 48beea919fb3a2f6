package ws

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tokmz/datafeed/internal/nft"
	"github.com/tokmz/datafeed/pkg/logger"
)

// fakeConn 内存连接，替代真实 WebSocket 连接
type fakeConn struct {
	in chan []byte

	mu     sync.Mutex
	frames [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("fake: connection reset")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("fake: connection closed")
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	c.frames = append(c.frames, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) textFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) SetReadLimit(int64)                  {}
func (c *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error    { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)   {}
func (c *fakeConn) RemoteAddr() net.Addr                { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func newTestHub(t *testing.T, finder nft.Finder) *Hub {
	t.Helper()
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	cfg.AllowAllOrigins = true
	hub, err := NewHub(cfg, finder, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	return hub
}

// waitFor 轮询直到条件满足或超时
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestSessionLifecycle 测试会话生命周期
func TestSessionLifecycle(t *testing.T) {
	hub := newTestHub(t, &stubFinder{doc: nft.Document{"floorprice": 1.5}})

	conn := newFakeConn()
	sess := newSession(hub, conn, "alpha")
	if got := sess.State(); got != StateConnecting {
		t.Fatalf("expected connecting state, got %v", got)
	}

	if err := hub.pool.Add(sess); err != nil {
		t.Fatalf("failed to add session: %v", err)
	}
	go sess.Run()

	waitFor(t, func() bool { return sess.State() == StateOpen }, "session never opened")
	if got := hub.RoomCount(); got != 1 {
		t.Errorf("expected session to join room, got %d rooms", got)
	}

	// 查询响应应回到房间内的本会话
	conn.in <- []byte(`{"chain_id":"1","address":"0xabc","metric_name":"floorprice"}`)
	waitFor(t, func() bool { return len(conn.textFrames()) > 0 }, "no response delivered")

	var resp MetricResponse
	if err := json.Unmarshal(conn.textFrames()[0], &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MetricName != "floorprice" || resp.Value != 1.5 {
		t.Errorf("unexpected response: %+v", resp)
	}

	// 对端正常关闭：清理后房间与连接池应为空
	close(conn.in)
	waitFor(t, func() bool { return sess.State() == StateClosed }, "session never closed")
	waitFor(t, func() bool { return hub.SessionCount() == 0 }, "session not removed from pool")
	if got := hub.RoomCount(); got != 0 {
		t.Errorf("expected empty registry after close, got %d rooms", got)
	}
}

// TestSessionTransportError 传输错误触发全局错误广播
func TestSessionTransportError(t *testing.T) {
	hub := newTestHub(t, &stubFinder{})

	// 旁观会话用于接收全局广播
	observerConn := newFakeConn()
	observer := newSession(hub, observerConn, "")
	if err := hub.pool.Add(observer); err != nil {
		t.Fatalf("failed to add observer: %v", err)
	}
	go observer.Run()
	waitFor(t, func() bool { return observer.State() == StateOpen }, "observer never opened")

	conn := newFakeConn()
	sess := newSession(hub, conn, "alpha")
	if err := hub.pool.Add(sess); err != nil {
		t.Fatalf("failed to add session: %v", err)
	}
	go sess.Run()
	waitFor(t, func() bool { return sess.State() == StateOpen }, "session never opened")

	// 模拟底层连接异常断开
	_ = conn.Close()

	waitFor(t, func() bool { return len(observerConn.textFrames()) > 0 }, "observer never notified")
	var resp ErrorResponse
	if err := json.Unmarshal(observerConn.textFrames()[0], &resp); err != nil {
		t.Fatalf("failed to decode notification: %v", err)
	}
	if resp.Error != "Some error occurred" {
		t.Errorf("unexpected notification %q", resp.Error)
	}

	waitFor(t, func() bool { return sess.State() == StateClosed }, "failed session never closed")

	observer.Close()
}

// TestSessionCloseBeforeRun 启动前被关闭的会话不得重新打开
// 覆盖关闭流程（如枢纽停机）赶在 Run 协程调度前执行的窗口
func TestSessionCloseBeforeRun(t *testing.T) {
	hub := newTestHub(t, &stubFinder{})

	sess := newSession(hub, newFakeConn(), "alpha")
	if err := hub.pool.Add(sess); err != nil {
		t.Fatalf("failed to add session: %v", err)
	}

	sess.Close()
	sess.Run()

	if got := sess.State(); got != StateClosed {
		t.Errorf("expected closed state after Run on closed session, got %v", got)
	}
	if got := hub.RoomCount(); got != 0 {
		t.Errorf("closed session must not hold room membership, got %d rooms", got)
	}
	if got := hub.SessionCount(); got != 0 {
		t.Errorf("closed session must not remain in pool, got %d", got)
	}
}

// TestSessionSendBytes 测试发送队列语义
func TestSessionSendBytes(t *testing.T) {
	hub := newTestHub(t, &stubFinder{})
	cfg := *hub.config
	cfg.SendQueueSize = 1
	hub.config = &cfg

	sess := newSession(hub, newFakeConn(), "")

	t.Run("NotOpen", func(t *testing.T) {
		if err := sess.SendBytes([]byte("x")); err != ErrConnectionClosed {
			t.Errorf("expected ErrConnectionClosed before open, got %v", err)
		}
	})

	t.Run("QueueFull", func(t *testing.T) {
		sess.state.Store(int32(StateOpen))

		if err := sess.SendBytes([]byte("first")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := sess.SendBytes([]byte("second")); err != ErrChannelFull {
			t.Errorf("expected ErrChannelFull, got %v", err)
		}
	})
}
