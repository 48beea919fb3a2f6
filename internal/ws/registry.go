package ws

import "sync"

// Registry 房间注册表
//
// 进程级的 房间 ID -> 成员会话集合 映射。成员变更与房间的隐式创建/删除
// 必须是同一个原子操作，广播枚举也不能与删除交错，因此整张表用一把锁
// 串行化所有操作，而不是按房间分锁。
//
// 不变量：房间存在当且仅当至少有一个成员（空房间立即删除）。
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[*Session]struct{}
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[*Session]struct{}),
	}
}

// Join 把会话加入指定房间
// roomID 为空时不做任何事（会话只参与全局广播）；房间不存在时隐式创建；
// 重复加入与加入一次效果相同
func (r *Registry) Join(sess *Session, roomID string) {
	if roomID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[roomID] = members
	}
	members[sess] = struct{}{}
}

// Leave 把会话移出指定房间
// 移出后房间为空则删除房间；房间或成员不存在时不做任何事
// （连接关闭路径可能重复调用）
func (r *Registry) Leave(sess *Session, roomID string) {
	if roomID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, sess)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Members 返回房间当前成员快照
// 房间不存在时返回空切片；快照在锁外投递，枚举期间不持锁
func (r *Registry) Members(roomID string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	snapshot := make([]*Session, 0, len(members))
	for sess := range members {
		snapshot = append(snapshot, sess)
	}
	return snapshot
}

// Rooms 返回当前存在的房间 ID 快照
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// RoomCount 当前房间数量
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
